// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v10"
	mflog "github.com/mainflux/mainflux/logger"
	"github.com/mainflux/mcproxy"
	"github.com/mainflux/mcproxy/examples/simple"
	"github.com/mainflux/mcproxy/pkg/health"
	"github.com/mainflux/mcproxy/pkg/proxy"
	"github.com/mainflux/mcproxy/pkg/router"
	"github.com/mainflux/mcproxy/pkg/router/kubernetes"
	"github.com/mainflux/mcproxy/pkg/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	defConfigPath = "./config.toml"
	envConfigPath = "MCPROXY_CONFIG"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	path := defConfigPath
	if v := os.Getenv(envConfigPath); v != "" {
		path = v
	}
	cfg, err := mcproxy.LoadConfig(path, env.Options{Prefix: mcproxy.EnvPrefix})
	if err != nil {
		log.Fatalf("Failed to load config %s: %s", path, err)
	}

	logger, err := mflog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf(err.Error())
	}
	logger.Info(fmt.Sprintf("Configuration file: %s", path))

	hs := health.New(logger)
	if cfg.HealthAddress != "" {
		g.Go(func() error {
			return hs.Listen(ctx, cfg.HealthAddress)
		})
	}

	routes, err := loadRoutes(ctx, cfg)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to load routes: %s", err))
		os.Exit(1)
	}
	table := router.New(routes)
	logger.Info(fmt.Sprintf("Loaded %d routes: %s", table.Len(), strings.Join(table.Hosts(), ", ")))

	responder, err := proxy.NewResponder(proxy.UnknownHostPolicy{
		KickMessage:       cfg.UnknownHostMessage,
		StatusDescription: cfg.UnknownHostStatus,
	})
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to render unknown host responses: %s", err))
		os.Exit(1)
	}

	pcfg := proxy.Config{
		Address:          cfg.ListenAddress,
		HandshakeTimeout: cfg.HandshakeTimeout,
		DialTimeout:      cfg.DialTimeout,
	}
	p := proxy.New(pcfg, table, responder, simple.New(logger), logger)

	l, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to listen on %s: %s", cfg.ListenAddress, err))
		os.Exit(1)
	}
	hs.SetReady(true)

	g.Go(func() error {
		return p.Serve(ctx, l)
	})

	if cfg.WSAddress != "" {
		ws := websocket.New(cfg.WSPath, p, logger)
		g.Go(func() error {
			return ws.Listen(ctx, cfg.WSAddress)
		})
	}

	g.Go(func() error {
		return stopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("mcproxy terminated: %s", err))
		return
	}
	logger.Info("mcproxy stopped")
}

func loadRoutes(ctx context.Context, cfg mcproxy.Config) (map[string]string, error) {
	if !cfg.Kubernetes.Enabled {
		return cfg.Hosts, nil
	}
	client, err := kubernetes.NewClient(cfg.Kubernetes.Config)
	if err != nil {
		return nil, err
	}
	discovered, err := kubernetes.NewDiscoverer(client, cfg.Kubernetes.Namespace, cfg.Kubernetes.Annotation).Routes(ctx)
	if err != nil {
		return nil, err
	}
	return router.Merge(cfg.Hosts, discovered)
}

func stopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger mflog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		defer cancel()
		logger.Info(fmt.Sprintf("mcproxy shutdown by signal: %s", sig))
		return nil
	case <-ctx.Done():
		return nil
	}
}
