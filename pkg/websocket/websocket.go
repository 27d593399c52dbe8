// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package websocket accepts Minecraft sessions tunnelled over websocket
// binary messages.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mainflux/mainflux/logger"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPath is the request path upgraded when none is configured.
	DefaultPath = "/mc"

	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// ConnHandler runs a session on a stream connection and closes it when
// done.
type ConnHandler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// Proxy upgrades HTTP requests to websocket and hands them to a
// ConnHandler.
type Proxy struct {
	path     string
	handler  ConnHandler
	logger   logger.Logger
	upgrader websocket.Upgrader
}

// New returns a websocket ingress serving path.
func New(path string, handler ConnHandler, logger logger.Logger) *Proxy {
	if path == "" {
		path = DefaultPath
	}
	return &Proxy{
		path:    path,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			// Allow CORS
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP upgrades the request and runs the session until it ends.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != p.path {
		http.NotFound(w, r)
		return
	}
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn(fmt.Sprintf("Error upgrading connection from %s: %s", r.RemoteAddr, err))
		return
	}
	p.logger.Debug(fmt.Sprintf("Accepted new websocket client %s", ws.RemoteAddr()))
	p.handler.Handle(context.WithoutCancel(r.Context()), NewConn(ws))
}

// Listen serves websocket ingress on address until ctx is done.
func (p *Proxy) Listen(ctx context.Context, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return p.Serve(ctx, l)
}

// Serve serves websocket ingress on l until ctx is done.
func (p *Proxy) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{Handler: p}
	p.logger.Info(fmt.Sprintf("Websocket server started at %s%s", l.Addr(), p.path))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		p.logger.Warn(fmt.Sprintf("Websocket server at %s exiting with errors: %s", l.Addr(), err))
		return err
	}
	p.logger.Info(fmt.Sprintf("Websocket server at %s exiting...", l.Addr()))
	return nil
}
