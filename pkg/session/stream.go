// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"net"

	"github.com/mainflux/mainflux/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	Upstream Direction = iota
	Downstream
)

var (
	// ErrUpstream wraps errors relaying from the client to the backend.
	ErrUpstream = errors.New("failed proxying from client to backend")
	// ErrDownstream wraps errors relaying from the backend to the client.
	ErrDownstream = errors.New("failed proxying from backend to client")
)

// Direction is the relay direction.
type Direction int

func (d Direction) String() string {
	switch d {
	case Upstream:
		return "client->backend"
	case Downstream:
		return "backend->client"
	default:
		return "unknown"
	}
}

// Transfer holds the number of bytes relayed in each direction.
type Transfer struct {
	Upstream   int64
	Downstream int64
}

type closeWriter interface {
	CloseWrite() error
}

// Stream relays bytes between inbound (client) and outbound (backend) in
// both directions. Each direction copies until EOF or an error on its source
// and then half-closes its destination; it never stops the other direction.
// Stream returns once both directions ended, with the first error seen.
func Stream(inbound, outbound net.Conn) (Transfer, error) {
	var (
		t Transfer
		g errgroup.Group
	)

	// In parallel read from client, send to backend
	// and read from backend, send to client.
	g.Go(func() (err error) {
		t.Upstream, err = stream(Upstream, inbound, outbound)
		return err
	})
	g.Go(func() (err error) {
		t.Downstream, err = stream(Downstream, outbound, inbound)
		return err
	})

	err := g.Wait()
	return t, err
}

func stream(dir Direction, r, w net.Conn) (int64, error) {
	n, err := io.Copy(w, r)
	if cw, ok := w.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	if err != nil {
		return n, wrap(err, dir)
	}
	return n, nil
}

func wrap(err error, dir Direction) error {
	switch dir {
	case Upstream:
		return errors.Wrap(ErrUpstream, err)
	case Downstream:
		return errors.Wrap(ErrDownstream, err)
	default:
		return err
	}
}
