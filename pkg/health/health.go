// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mainflux/mainflux/logger"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Server answers /health while running and /ready once the proxy listener
// is bound.
type Server struct {
	logger logger.Logger
	ready  atomic.Bool
	mux    *http.ServeMux
}

// New returns a Server reporting not ready.
func New(logger logger.Logger) *Server {
	s := &Server{
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	return s
}

// SetReady sets the readiness reported by /ready.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listen serves the probes on address until ctx is done.
func (s *Server) Listen(ctx context.Context, address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s}
	s.logger.Info(fmt.Sprintf("Health server listening at %s", l.Addr()))

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
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("not ready"))
}
