// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mcproto

import (
	"io"
	"sync"

	"github.com/mainflux/mainflux/pkg/errors"
)

// MaxFrameLength is the largest packet length the protocol can express
// in a 3-byte VarInt.
const MaxFrameLength = 1<<21 - 1

// Frame is a single length-prefixed unit of wire data.
type Frame struct {
	// Length is the declared payload size.
	Length int32
	// Payload holds exactly Length bytes following the prefix.
	Payload []byte
	// Raw holds the length prefix bytes as received, followed by Payload.
	Raw []byte
}

// ReadFrame reads a VarInt length prefix and then exactly that many bytes.
// A source closed before any byte was read yields io.EOF.
func ReadFrame(r io.Reader) (Frame, error) {
	length, raw, err := readVarInt(r, make([]byte, 0, MaxVarIntLen))
	switch {
	case err == io.EOF:
		return Frame{}, err
	case err == io.ErrUnexpectedEOF:
		return Frame{}, errors.Wrap(ErrIncompleteFrame, err)
	case err != nil:
		return Frame{}, err
	}
	if length < 0 || length > MaxFrameLength {
		return Frame{}, ErrInvalidFrameLength
	}

	prefix := len(raw)
	buf := make([]byte, prefix+int(length))
	copy(buf, raw)
	if _, err := io.ReadFull(r, buf[prefix:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, errors.Wrap(ErrIncompleteFrame, err)
	}

	return Frame{
		Length:  length,
		Payload: buf[prefix:],
		Raw:     buf,
	}, nil
}

// EncodeFrame returns the VarInt length of payload followed by payload.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, 0, VarIntSize(int32(len(payload)))+len(payload))
	buf = AppendVarInt(buf, int32(len(payload)))
	return append(buf, payload...)
}

// WriteFrame writes payload as one frame using a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(EncodeFrame(payload))
	return err
}

// FrameWriter serializes frames written concurrently to the same sink. It is
// meant for callers that share one connection between several writers; the
// proxy itself writes each response and the handshake replay from a single
// goroutine and uses WriteFrame or a plain Write.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewFrameWriter returns a FrameWriter writing to w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes payload as one frame. Frames from concurrent callers
// are never interleaved.
func (fw *FrameWriter) WriteFrame(payload []byte) error {
	buf := EncodeFrame(payload)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	_, err := fw.w.Write(buf)
	return err
}
