// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"io"

	"github.com/mainflux/mcproxy/pkg/mcproto"
)

const (
	// DefaultVersionName is reported in the unknown host status response.
	DefaultVersionName = "mcproxy"

	unknownProtocol = -1
)

// UnknownHostPolicy holds the responses sent when no backend matches.
type UnknownHostPolicy struct {
	// KickMessage is the disconnect reason sent to login attempts, either a
	// JSON chat component or plain text.
	KickMessage string
	// StatusDescription is the description shown in the server list, either
	// a JSON chat component or plain text.
	StatusDescription string
	// VersionName is the version label shown in the server list.
	VersionName string
}

// Responder answers clients whose hostname has no route. Both responses
// are rendered once and shared by every session.
type Responder struct {
	disconnect []byte
	status     []byte
}

// NewResponder renders the frames of policy.
func NewResponder(policy UnknownHostPolicy) (*Responder, error) {
	name := policy.VersionName
	if name == "" {
		name = DefaultVersionName
	}
	status, err := mcproto.StatusPayload(mcproto.Status{
		Version:     mcproto.StatusVersion{Name: name, Protocol: unknownProtocol},
		Description: mcproto.ChatComponent(policy.StatusDescription),
	})
	if err != nil {
		return nil, err
	}

	return &Responder{
		disconnect: mcproto.EncodeFrame(mcproto.DisconnectPayload(string(mcproto.ChatComponent(policy.KickMessage)))),
		status:     mcproto.EncodeFrame(status),
	}, nil
}

// Respond writes exactly one frame to w: a disconnect for login and a
// status response for status. The caller closes the connection afterwards.
func (r *Responder) Respond(w io.Writer, state mcproto.NextState) error {
	var frame []byte
	switch state {
	case mcproto.StateLogin:
		frame = r.disconnect
	case mcproto.StateStatus:
		frame = r.status
	default:
		return ErrUnknownState
	}
	_, err := w.Write(frame)
	return err
}
