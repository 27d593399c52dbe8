// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Command client asks a Minecraft server, or mcproxy in front of it, for its
// status and measures the ping.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/mainflux/mcproxy/pkg/mcproto"
)

const (
	statusRequestID = 0x00
	pingID          = 0x01
)

type config struct {
	Address  string        `env:"ADDRESS"  envDefault:"localhost:25565"`
	Host     string        `env:"HOST"     envDefault:""`
	Protocol int32         `env:"PROTOCOL" envDefault:"754"`
	Timeout  time.Duration `env:"TIMEOUT"  envDefault:"5s"`
}

func main() {
	var cfg config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MCPROXY_CLIENT_"}); err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	host, port, err := target(cfg)
	if err != nil {
		log.Fatalf("Invalid address %s: %s", cfg.Address, err)
	}

	conn, err := net.DialTimeout("tcp", cfg.Address, cfg.Timeout)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %s", cfg.Address, err)
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		log.Fatalf("Failed to set deadline: %s", err)
	}

	hs := mcproto.NewHandshake(cfg.Protocol, host, port, mcproto.StateStatus)
	if _, err := conn.Write(hs.Bytes()); err != nil {
		log.Fatalf("Failed to send handshake: %s", err)
	}
	if err := mcproto.WriteFrame(conn, mcproto.AppendVarInt(nil, statusRequestID)); err != nil {
		log.Fatalf("Failed to send status request: %s", err)
	}

	frame, err := mcproto.ReadFrame(conn)
	if err != nil {
		log.Fatalf("Failed to read status response: %s", err)
	}
	_, payload, err := mcproto.ReadPacketString(frame.Payload)
	if err != nil {
		log.Fatalf("Invalid status response: %s", err)
	}

	var status mcproto.Status
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		log.Fatalf("Invalid status JSON: %s", err)
	}
	fmt.Printf("Version: %s (protocol %d)\n", status.Version.Name, status.Version.Protocol)
	fmt.Printf("Players: %d/%d\n", status.Players.Online, status.Players.Max)
	fmt.Printf("Description: %s\n", status.Description)

	rtt, err := ping(conn)
	if err != nil {
		fmt.Printf("Ping: no answer (%s)\n", err)
		return
	}
	fmt.Printf("Ping: %s\n", rtt)
}

// target returns the hostname and port to announce in the handshake.
func target(cfg config) (string, uint16, error) {
	h, p, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.ParseUint(p, 10, 16)
	if err != nil {
		return "", 0, err
	}
	if cfg.Host != "" {
		h = cfg.Host
	}
	return h, uint16(port), nil
}

func ping(conn net.Conn) (time.Duration, error) {
	start := time.Now()
	payload := mcproto.AppendVarInt(nil, pingID)
	payload = binary.BigEndian.AppendUint64(payload, uint64(start.UnixMilli()))
	if err := mcproto.WriteFrame(conn, payload); err != nil {
		return 0, err
	}
	if _, err := mcproto.ReadFrame(conn); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
