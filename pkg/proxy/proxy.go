// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package proxy implements the accept loop and the per-connection session
// that routes a client by the hostname in its handshake.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/mainflux/mainflux/logger"
	"github.com/mainflux/mcproxy/pkg/mcproto"
	"github.com/mainflux/mcproxy/pkg/session"
	"golang.org/x/sync/errgroup"
)

const unknownBackend = "unknown"

// Config holds the supervisor settings. Zero timeouts disable the deadline.
type Config struct {
	Address          string
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
}

// Router resolves a hostname to a backend address.
type Router interface {
	Resolve(host string) (string, bool)
}

// Dialer opens backend connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithDialer replaces the dialer used to reach backends.
func WithDialer(d Dialer) Option {
	return func(p *Proxy) {
		p.dialer = d
	}
}

// Proxy is main Minecraft proxy struct.
type Proxy struct {
	config    Config
	router    Router
	responder *Responder
	handler   session.Handler
	logger    logger.Logger
	dialer    Dialer
}

// New returns a Proxy routing with router and answering unknown hosts
// with responder.
func New(cfg Config, router Router, responder *Responder, handler session.Handler, logger logger.Logger, opts ...Option) *Proxy {
	p := &Proxy{
		config:    cfg,
		router:    router,
		responder: responder,
		handler:   handler,
		logger:    logger,
		dialer:    &net.Dialer{},
	}
	if p.handler == nil {
		p.handler = nopHandler{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Listen binds the configured address and serves it. This will block.
func (p *Proxy) Listen(ctx context.Context) error {
	l, err := net.Listen("tcp", p.config.Address)
	if err != nil {
		return err
	}
	return p.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then closes l.
// Sessions already running are left to finish on their own.
func (p *Proxy) Serve(ctx context.Context, l net.Listener) error {
	p.logger.Info(fmt.Sprintf("Proxy server started at %s", l.Addr()))
	g, ctx := errgroup.WithContext(ctx)

	// Acceptor loop
	g.Go(func() error {
		return p.accept(ctx, l)
	})

	g.Go(func() error {
		<-ctx.Done()
		return l.Close()
	})

	if err := g.Wait(); err != nil {
		p.logger.Warn(fmt.Sprintf("Proxy server at %s exiting with errors: %s", l.Addr(), err))
		return err
	}
	p.logger.Info(fmt.Sprintf("Proxy server at %s exiting...", l.Addr()))
	return nil
}

func (p *Proxy) accept(ctx context.Context, l net.Listener) error {
	sctx := context.WithoutCancel(ctx)
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			p.logger.Warn(fmt.Sprintf("Accept error %s", err))
			continue
		}

		p.logger.Debug(fmt.Sprintf("Accepted new client %s", conn.RemoteAddr()))
		go p.Handle(sctx, conn)
	}
}

// Handle runs a session on an accepted connection and closes it when done.
// Failures, panics included, never leave the session.
func (p *Proxy) Handle(ctx context.Context, inbound net.Conn) {
	defer p.close(inbound)

	id, err := uuid.NewRandom()
	if err != nil {
		p.logger.Error(fmt.Sprintf("Failed to create session for %s: %s", inbound.RemoteAddr(), err))
		return
	}
	s := &session.Session{
		ID:         id.String(),
		ClientAddr: inbound.RemoteAddr(),
	}
	ctx = session.NewContext(ctx, s)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(fmt.Sprintf("Session %s from %s recovered from panic: %v", s.ID, s.ClientAddr, r))
		}
	}()

	if err := p.handle(ctx, inbound, s); err != nil {
		p.logSessionError(s, err)
	}
}

func (p *Proxy) handle(ctx context.Context, inbound net.Conn, s *session.Session) error {
	p.setNoDelay(s, inbound)

	if p.config.HandshakeTimeout > 0 {
		if err := inbound.SetReadDeadline(time.Now().Add(p.config.HandshakeTimeout)); err != nil {
			return err
		}
	}
	hs, err := mcproto.ReadHandshake(inbound)
	if err != nil {
		return err
	}
	if p.config.HandshakeTimeout > 0 {
		if err := inbound.SetReadDeadline(time.Time{}); err != nil {
			return err
		}
	}
	s.Handshake = hs

	defer p.handler.Disconnect(ctx)
	if err := p.handler.AuthHandshake(ctx); err != nil {
		return wrapAuth(err)
	}

	backend, ok := p.router.Resolve(hs.ServerAddress)
	p.logRoute(s, backend, ok)
	if !ok {
		return p.responder.Respond(inbound, hs.NextState)
	}
	s.Backend = backend

	outbound, err := p.dial(ctx, backend)
	if err != nil {
		return wrapDial(err)
	}
	defer p.close(outbound)
	p.setNoDelay(s, outbound)

	// The backend sees the handshake exactly as the client sent it.
	if _, err := outbound.Write(hs.Bytes()); err != nil {
		return wrapDial(err)
	}
	p.handler.Connect(ctx)

	t, err := session.Stream(inbound, outbound)
	if err != nil {
		p.logger.Debug(fmt.Sprintf("Session %s from %s relay ended with error, maybe disconnected: %s", s.ID, s.ClientAddr, err))
	}
	p.logger.Debug(fmt.Sprintf("Session %s from %s closed: %d bytes up, %d bytes down", s.ID, s.ClientAddr, t.Upstream, t.Downstream))
	return nil
}

func (p *Proxy) dial(ctx context.Context, backend string) (net.Conn, error) {
	if p.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.DialTimeout)
		defer cancel()
	}
	return p.dialer.DialContext(ctx, "tcp", backend)
}

func (p *Proxy) logRoute(s *session.Session, backend string, ok bool) {
	if !ok {
		backend = unknownBackend
	}
	p.logger.Info(fmt.Sprintf("Session %s from %s: %s: %s -> %s", s.ID, s.ClientAddr, s.Handshake.NextState, s.Handshake.HostPort(), backend))
}

func (p *Proxy) logSessionError(s *session.Session, err error) {
	switch {
	case err == io.EOF:
		p.logger.Debug(fmt.Sprintf("Session %s from %s closed before handshake", s.ID, s.ClientAddr))
	case isProtocolError(err):
		p.logger.Warn(fmt.Sprintf("Session %s from %s sent invalid handshake: %s", s.ID, s.ClientAddr, err))
	default:
		p.logger.Error(fmt.Sprintf("Session %s from %s failed: %s", s.ID, s.ClientAddr, err))
	}
}

func (p *Proxy) close(conn net.Conn) {
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		p.logger.Warn(fmt.Sprintf("Error closing connection %s", err))
	}
}

type nopHandler struct{}

func (nopHandler) AuthHandshake(context.Context) error { return nil }

func (nopHandler) Connect(context.Context) {}

func (nopHandler) Disconnect(context.Context) {}

// setNoDelay disables Nagle on TCP connections. Other transports are left
// as they are.
func (p *Proxy) setNoDelay(s *session.Session, conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(true); err != nil {
		p.logger.Debug(fmt.Sprintf("Session %s from %s failed to set nodelay on %s: %s", s.ID, s.ClientAddr, tc.RemoteAddr(), err))
	}
}
