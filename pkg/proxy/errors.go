// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"github.com/mainflux/mainflux/pkg/errors"
	"github.com/mainflux/mcproxy/pkg/mcproto"
)

var (
	// ErrHandshakeRejected indicates the session handler refused the handshake.
	ErrHandshakeRejected = errors.New("handshake rejected by handler")

	// ErrBackendUnavailable indicates the resolved backend could not be
	// reached or did not accept the handshake.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnknownState indicates an unknown host response was requested for
	// a state other than status or login.
	ErrUnknownState = errors.New("no unknown host response for state")
)

var protocolErrors = []error{
	mcproto.ErrVarIntTooLarge,
	mcproto.ErrIncompleteFrame,
	mcproto.ErrInvalidFrameLength,
	mcproto.ErrUnexpectedPacketID,
	mcproto.ErrInvalidNextState,
	mcproto.ErrMalformedHandshake,
}

func isProtocolError(err error) bool {
	for _, e := range protocolErrors {
		if errors.Contains(err, e) {
			return true
		}
	}
	return false
}

func wrapAuth(err error) error {
	return errors.Wrap(ErrHandshakeRejected, err)
}

func wrapDial(err error) error {
	return errors.Wrap(ErrBackendUnavailable, err)
}
