// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	mferrors "github.com/mainflux/mainflux/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (*net.TCPConn, *net.TCPConn) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer l.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			accepted <- nil
			return
		}
		accepted <- c
	}()

	dialed, err := net.Dial("tcp", l.Addr().String())
	require.Nil(t, err)
	other := <-accepted
	require.NotNil(t, other)

	return dialed.(*net.TCPConn), other.(*net.TCPConn)
}

type relay struct {
	client   *net.TCPConn
	backend  *net.TCPConn
	inbound  *net.TCPConn
	outbound *net.TCPConn
	done     chan struct{}
	transfer Transfer
	err      error
}

func startRelay(t *testing.T) *relay {
	t.Helper()

	r := &relay{done: make(chan struct{})}
	r.client, r.inbound = tcpPair(t)
	r.outbound, r.backend = tcpPair(t)
	go func() {
		defer close(r.done)
		r.transfer, r.err = Stream(r.inbound, r.outbound)
	}()
	return r
}

func (r *relay) close() {
	r.client.Close()
	r.backend.Close()
	<-r.done
	r.inbound.Close()
	r.outbound.Close()
}

func randomBytes(t *testing.T, n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.Nil(t, err)
	return b
}

func TestStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		desc string
		up   int
		down int
	}{
		{desc: "relay small payloads", up: 16, down: 32},
		{desc: "relay large payloads", up: 4 << 20, down: 1 << 20},
		{desc: "relay upstream only", up: 1024, down: 0},
		{desc: "relay downstream only", up: 0, down: 1024},
	}

	for _, tc := range cases {
		r := startRelay(t)
		up, down := randomBytes(t, tc.up), randomBytes(t, tc.down)

		received := make(chan []byte, 1)
		go func() {
			b, _ := io.ReadAll(r.backend)
			received <- b
		}()
		go func() {
			r.client.Write(up)
			r.client.CloseWrite()
		}()
		go func() {
			r.backend.Write(down)
			r.backend.CloseWrite()
		}()

		got, err := io.ReadAll(r.client)
		require.Nil(t, err, tc.desc)
		assert.True(t, bytes.Equal(down, got), "%s: downstream bytes differ", tc.desc)
		assert.True(t, bytes.Equal(up, <-received), "%s: upstream bytes differ", tc.desc)

		select {
		case <-r.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: stream did not finish", tc.desc)
		}
		assert.Nil(t, r.err, tc.desc)
		assert.Equal(t, Transfer{Upstream: int64(tc.up), Downstream: int64(tc.down)}, r.transfer, tc.desc)
		r.close()
	}
}

func TestStreamHalfClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := startRelay(t)
	defer r.close()

	// Client finishes sending first.
	_, err := r.client.Write([]byte("ping"))
	require.Nil(t, err)
	require.Nil(t, r.client.CloseWrite())

	got, err := io.ReadAll(r.backend)
	require.Nil(t, err)
	assert.Equal(t, []byte("ping"), got)

	select {
	case <-r.done:
		t.Fatal("stream finished while backend was still open")
	case <-time.After(100 * time.Millisecond):
	}

	// The other direction still relays.
	_, err = r.backend.Write([]byte("pong"))
	require.Nil(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(r.client, buf)
	require.Nil(t, err)
	assert.Equal(t, []byte("pong"), buf)

	require.Nil(t, r.backend.CloseWrite())
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish after both sides closed")
	}
	assert.Nil(t, r.err)
}

func TestWrap(t *testing.T) {
	errBroken := errors.New("broken pipe")

	cases := []struct {
		desc string
		dir  Direction
		want error
	}{
		{desc: "wrap upstream error", dir: Upstream, want: ErrUpstream},
		{desc: "wrap downstream error", dir: Downstream, want: ErrDownstream},
		{desc: "keep unknown direction error", dir: Direction(5), want: errBroken},
	}

	for _, tc := range cases {
		err := wrap(errBroken, tc.dir)
		assert.True(t, mferrors.Contains(err, tc.want), "%s: expected %s got %s", tc.desc, tc.want, err)
		assert.True(t, mferrors.Contains(err, errBroken), "%s: lost cause %s", tc.desc, err)
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "client->backend", Upstream.String())
	assert.Equal(t, "backend->client", Downstream.String())
	assert.Equal(t, "unknown", Direction(5).String())
}
