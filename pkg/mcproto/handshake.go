// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mcproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/mainflux/mainflux/pkg/errors"
)

// HandshakePacketID is the packet id of the serverbound handshake.
const HandshakePacketID = 0x00

// NextState is the protocol phase the client requests after the handshake.
type NextState int32

const (
	// StateStatus requests the server list status.
	StateStatus NextState = 1
	// StateLogin requests a login.
	StateLogin NextState = 2
)

func (s NextState) String() string {
	switch s {
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

func parseNextState(v int32) (NextState, error) {
	switch s := NextState(v); s {
	case StateStatus, StateLogin:
		return s, nil
	default:
		return 0, ErrInvalidNextState
	}
}

// Handshake is the first packet a client sends on a new connection.
type Handshake struct {
	Length          int32
	Body            []byte
	Raw             []byte
	PacketID        int32
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       NextState
}

// Bytes returns the handshake frame exactly as the client sent it.
func (h Handshake) Bytes() []byte {
	return h.Raw
}

// HostPort returns the declared address and port as host:port.
func (h Handshake) HostPort() string {
	return fmt.Sprintf("%s:%d", h.ServerAddress, h.ServerPort)
}

// ReadHandshake reads one frame from r and parses it as a handshake.
func ReadHandshake(r io.Reader) (Handshake, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return Handshake{}, err
	}
	return ParseHandshake(f)
}

// ParseHandshake decodes the handshake fields from a frame. Only the fields
// needed for routing are modeled; the frame bytes are kept verbatim.
func ParseHandshake(f Frame) (Handshake, error) {
	r := bytes.NewReader(f.Payload)

	id, err := ReadVarInt(r)
	if err != nil {
		return Handshake{}, fieldErr(err)
	}
	if id != HandshakePacketID {
		return Handshake{}, ErrUnexpectedPacketID
	}

	version, err := ReadVarInt(r)
	if err != nil {
		return Handshake{}, fieldErr(err)
	}

	addr, err := readString(r)
	if err != nil {
		return Handshake{}, fieldErr(err)
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return Handshake{}, fieldErr(err)
	}

	ns, err := ReadVarInt(r)
	if err != nil {
		return Handshake{}, fieldErr(err)
	}
	state, err := parseNextState(ns)
	if err != nil {
		return Handshake{}, err
	}

	return Handshake{
		Length:          f.Length,
		Body:            f.Payload,
		Raw:             f.Raw,
		PacketID:        id,
		ProtocolVersion: version,
		ServerAddress:   addr,
		ServerPort:      binary.BigEndian.Uint16(port[:]),
		NextState:       state,
	}, nil
}

// NewHandshake builds the handshake frame a client would send.
func NewHandshake(version int32, addr string, port uint16, state NextState) Handshake {
	body := AppendVarInt(nil, HandshakePacketID)
	body = AppendVarInt(body, version)
	body = appendString(body, addr)
	body = binary.BigEndian.AppendUint16(body, port)
	body = AppendVarInt(body, int32(state))

	raw := EncodeFrame(body)
	return Handshake{
		Length:          int32(len(body)),
		Body:            raw[len(raw)-len(body):],
		Raw:             raw,
		PacketID:        HandshakePacketID,
		ProtocolVersion: version,
		ServerAddress:   addr,
		ServerPort:      port,
		NextState:       state,
	}
}

// readString reads a VarInt length prefixed string. Invalid UTF-8 is
// replaced rather than rejected.
func readString(r *bytes.Reader) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || int64(n) > int64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(buf), "\uFFFD"), nil
}

func appendString(b []byte, s string) []byte {
	b = AppendVarInt(b, int32(len(s)))
	return append(b, s...)
}

func fieldErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrMalformedHandshake, io.ErrUnexpectedEOF)
	}
	return err
}
