// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import "context"

// Handler is an interface for session lifecycle hooks. The Session is
// available from the context passed to every hook.
type Handler interface {
	// AuthHandshake is called once the client handshake is parsed,
	// prior to routing. Returning an error closes the connection.
	AuthHandshake(ctx context.Context) error

	// Connect is called after the handshake was replayed to the backend.
	Connect(ctx context.Context)

	// Disconnect is called when the session ends, whatever the outcome.
	Disconnect(ctx context.Context)
}
