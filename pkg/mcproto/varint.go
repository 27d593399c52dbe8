// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mcproto

import (
	"io"
)

const (
	// MaxVarIntLen is the maximum number of bytes a VarInt may occupy.
	MaxVarIntLen = 5

	segmentBits  = 0x7f
	continueBit  = 0x80
	segmentShift = 7
)

// ReadVarInt decodes a single VarInt from r, reading one byte at a time so
// that nothing past the value is consumed.
func ReadVarInt(r io.Reader) (int32, error) {
	v, _, err := readVarInt(r, nil)
	return v, err
}

// readVarInt decodes a VarInt and appends the consumed bytes to raw.
func readVarInt(r io.Reader, raw []byte) (int32, []byte, error) {
	var (
		result uint32
		b      [1]byte
	)
	for i := 0; i < MaxVarIntLen; i++ {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			if err == io.EOF && i > 0 {
				err = io.ErrUnexpectedEOF
			}
			return 0, raw, err
		}
		raw = append(raw, b[0])
		result |= uint32(b[0]&segmentBits) << (segmentShift * i)
		if b[0]&continueBit == 0 {
			return int32(result), raw, nil
		}
	}
	return 0, raw, ErrVarIntTooLarge
}

// AppendVarInt appends the VarInt encoding of v to b. Negative values are
// encoded through their unsigned two's complement and always take 5 bytes.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for {
		temp := byte(u & segmentBits)
		u >>= segmentShift
		if u != 0 {
			temp |= continueBit
		}
		b = append(b, temp)
		if u == 0 {
			return b
		}
	}
}

// WriteVarInt writes the VarInt encoding of v to w.
func WriteVarInt(w io.Writer, v int32) error {
	var buf [MaxVarIntLen]byte
	_, err := w.Write(AppendVarInt(buf[:0], v))
	return err
}

// VarIntSize returns the number of bytes AppendVarInt emits for v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= continueBit {
		u >>= segmentShift
		n++
	}
	return n
}
