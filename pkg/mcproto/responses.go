// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mcproto

import (
	"bytes"
	"encoding/json"
	"io"
)

const (
	// DisconnectPacketID is the clientbound login disconnect packet id.
	DisconnectPacketID = 0x00
	// StatusResponsePacketID is the clientbound status response packet id.
	StatusResponsePacketID = 0x00
)

// Status describes a server list response.
type Status struct {
	Version     StatusVersion   `json:"version"`
	Players     StatusPlayers   `json:"players"`
	Description json.RawMessage `json:"description"`
}

// StatusVersion is the version section of a status response.
type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// StatusPlayers is the players section of a status response.
type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusPlayer `json:"sample"`
}

// StatusPlayer is a single entry of the player sample.
type StatusPlayer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ChatComponent returns text unchanged when it already is a JSON chat
// component and wraps it as {"text": text} otherwise.
func ChatComponent(text string) json.RawMessage {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	b, err := json.Marshal(struct {
		Text string `json:"text"`
	}{text})
	if err != nil {
		return json.RawMessage(`{"text":""}`)
	}
	return b
}

// DisconnectPayload returns the login disconnect packet payload carrying
// reason, a JSON chat component.
func DisconnectPayload(reason string) []byte {
	b := AppendVarInt(nil, DisconnectPacketID)
	return appendString(b, reason)
}

// StatusPayload returns the status response packet payload for s.
func StatusPayload(s Status) ([]byte, error) {
	if s.Players.Sample == nil {
		s.Players.Sample = []StatusPlayer{}
	}
	if s.Description == nil {
		s.Description = ChatComponent("")
	}
	js, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	b := AppendVarInt(nil, StatusResponsePacketID)
	return appendString(b, string(js)), nil
}

// ReadPacketString decodes a payload made of a packet id followed by a single
// string, the shape of both disconnect and status response packets.
func ReadPacketString(payload []byte) (int32, string, error) {
	r := bytes.NewReader(payload)
	id, err := ReadVarInt(r)
	if err != nil {
		return 0, "", unexpectedEOF(err)
	}
	s, err := readString(r)
	if err != nil {
		return 0, "", unexpectedEOF(err)
	}
	return id, s, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
