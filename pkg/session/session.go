// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"net"

	"github.com/mainflux/mcproxy/pkg/mcproto"
)

type sessionKey struct{}

// Session represents a single proxied client connection.
type Session struct {
	ID         string
	ClientAddr net.Addr
	Handshake  mcproto.Handshake
	// Backend is the resolved backend address, empty for unknown hosts.
	Backend string
}

// NewContext stores Session in context.Context values.
// It uses pointer to the session so it can be modified by handler.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext retrieves Session from context.Context.
// Second value indicates if session is present in the context
// and if it's safe to use it (it's not nil).
func FromContext(ctx context.Context) (*Session, bool) {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s, true
	}
	return nil, false
}
