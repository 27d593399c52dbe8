// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package mcproxy holds the configuration of the Minecraft hostname proxy.
package mcproxy

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v10"
	"github.com/mainflux/mainflux/pkg/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MCPROXY_"

	defListenAddress      = "0.0.0.0:25565"
	defLogLevel           = "info"
	defUnknownHostMessage = `{"text":"Invalid address.","color":"red"}`
	defUnknownHostStatus  = `{"text":"Unknown host.","color":"red"}`
	defWSPath             = "/mc"
	defKubeAnnotation     = "mcproxy.mainflux.io/hostname"
)

// ErrInvalidConfig indicates a configuration that cannot be served.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the proxy configuration. File values are read first and
// environment variables override them.
type Config struct {
	ListenAddress      string            `toml:"listen_addr"          env:"LISTEN_ADDRESS"`
	LogLevel           string            `toml:"log_level"            env:"LOG_LEVEL"`
	UnknownHostMessage string            `toml:"unknown_host_message" env:"UNKNOWN_HOST_MESSAGE"`
	UnknownHostStatus  string            `toml:"unknown_host_status"  env:"UNKNOWN_HOST_STATUS"`
	HandshakeTimeout   time.Duration     `toml:"handshake_timeout"    env:"HANDSHAKE_TIMEOUT"`
	DialTimeout        time.Duration     `toml:"dial_timeout"         env:"DIAL_TIMEOUT"`
	WSAddress          string            `toml:"ws_address"           env:"WS_ADDRESS"`
	WSPath             string            `toml:"ws_path"              env:"WS_PATH"`
	HealthAddress      string            `toml:"health_address"       env:"HEALTH_ADDRESS"`
	Hosts              map[string]string `toml:"hosts"                env:"HOSTS"          envKeyValSeparator:"="`
	Kubernetes         KubeConfig        `toml:"kubernetes"           envPrefix:"KUBE_"`
}

// KubeConfig enables route discovery from annotated Services.
type KubeConfig struct {
	Enabled    bool   `toml:"enabled"    env:"ENABLED"`
	Namespace  string `toml:"namespace"  env:"NAMESPACE"`
	Config     string `toml:"config"     env:"CONFIG"`
	Annotation string `toml:"annotation" env:"ANNOTATION"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	return Config{
		ListenAddress:      defListenAddress,
		LogLevel:           defLogLevel,
		UnknownHostMessage: defUnknownHostMessage,
		UnknownHostStatus:  defUnknownHostStatus,
		WSPath:             defWSPath,
		Hosts:              map[string]string{},
		Kubernetes: KubeConfig{
			Annotation: defKubeAnnotation,
		},
	}
}

// LoadConfig reads the TOML file at path, or creates it with the defaults
// when it does not exist, then applies environment overrides and validates
// the result.
func LoadConfig(path string, opts env.Options) (Config, error) {
	c := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfig(path, c); err != nil {
			return Config{}, err
		}
	} else if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, errors.Wrap(ErrInvalidConfig, err)
	}

	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, errors.Wrap(ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks that every address the proxy would use is well formed.
func (c Config) Validate() error {
	if err := validateAddress(c.ListenAddress); err != nil {
		return errors.Wrap(ErrInvalidConfig, errors.New(fmt.Sprintf("listen address: %s", err)))
	}
	for host, backend := range c.Hosts {
		if host == "" {
			return errors.Wrap(ErrInvalidConfig, errors.New(fmt.Sprintf("empty hostname for backend %q", backend)))
		}
		if err := validateAddress(backend); err != nil {
			return errors.Wrap(ErrInvalidConfig, errors.New(fmt.Sprintf("backend of %q: %s", host, err)))
		}
	}
	if c.HandshakeTimeout < 0 || c.DialTimeout < 0 {
		return errors.Wrap(ErrInvalidConfig, errors.New("negative timeout"))
	}
	return nil
}

func validateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return errors.New(fmt.Sprintf("invalid port %q", port))
	}
	return nil
}

func writeConfig(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
