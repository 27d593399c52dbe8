// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mcproto

import "github.com/mainflux/mainflux/pkg/errors"

var (
	// ErrVarIntTooLarge indicates a VarInt that did not terminate within 5 bytes.
	ErrVarIntTooLarge = errors.New("varint is too large")

	// ErrIncompleteFrame indicates the source ended before the declared frame length.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrInvalidFrameLength indicates a negative or oversized frame length prefix.
	ErrInvalidFrameLength = errors.New("invalid frame length")

	// ErrUnexpectedPacketID indicates the first packet is not a handshake.
	ErrUnexpectedPacketID = errors.New("unexpected handshake packet id")

	// ErrInvalidNextState indicates a next state other than status or login.
	ErrInvalidNextState = errors.New("invalid handshake next state")

	// ErrMalformedHandshake indicates a handshake payload that ended early
	// or carried an invalid field length.
	ErrMalformedHandshake = errors.New("malformed handshake")
)
