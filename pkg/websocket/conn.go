// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package websocket

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

// conn exposes the binary messages of a websocket as a byte stream so it
// satisfies the net.Conn interface.
type conn struct {
	*websocket.Conn
	r          io.Reader
	rio        sync.Mutex
	wio        sync.Mutex
	peerClosed atomic.Bool
	closeSent  atomic.Bool
}

// NewConn wraps ws as a net.Conn. Message boundaries are not preserved.
// A close message from the peer ends reading only; the close is answered
// by CloseWrite or Close, so data can still be written after it.
func NewConn(ws *websocket.Conn) net.Conn {
	c := &conn{Conn: ws}
	ws.SetCloseHandler(func(code int, text string) error {
		c.peerClosed.Store(true)
		return nil
	})
	return c
}

// SetDeadline sets both the read and write deadlines.
func (c *conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

// Write sends p as a single binary message.
func (c *conn) Write(p []byte) (int, error) {
	c.wio.Lock()
	defer c.wio.Unlock()

	if err := c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read reads from the current message, advancing to the next one when it
// is exhausted. A normal close by the peer reads as io.EOF.
func (c *conn) Read(p []byte) (int, error) {
	c.rio.Lock()
	defer c.rio.Unlock()

	for {
		if c.peerClosed.Load() {
			return 0, io.EOF
		}
		if c.r == nil {
			var err error
			_, c.r, err = c.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// CloseWrite sends a close message once. The peer may keep sending until
// it answers with its own close.
func (c *conn) CloseWrite() error {
	c.wio.Lock()
	defer c.wio.Unlock()

	if c.closeSent.Swap(true) {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
}

// Close sends the close message if CloseWrite did not, then closes the
// underlying connection.
func (c *conn) Close() error {
	_ = c.CloseWrite()
	return c.Conn.Close()
}
