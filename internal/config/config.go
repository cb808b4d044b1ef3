// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config holds the gateway's settings and reads them from YAML.
package config

import (
	"bytes"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// Defaults applied to settings a config file leaves unset.
const (
	DefaultListenAddress   = ":8080"
	DefaultUpstreamURL     = "ws://localhost:3000/websocket"
	DefaultLoggingConfig   = "<root>=INFO"
	DefaultHeartbeat       = 2 * time.Second
	DefaultHandlerThrottle = 20 * time.Millisecond
	DefaultTopicThrottle   = 100 * time.Millisecond
	DefaultRetryDelay      = time.Second
	DefaultMaxRetryDelay   = 30 * time.Second
)

// Config holds the gateway settings.
type Config struct {
	// ListenAddress is the address the websocket server listens on.
	ListenAddress string `yaml:"listen-address"`

	// UpstreamURL is the websocket URL of the upstream DDP endpoint.
	UpstreamURL string `yaml:"upstream-url"`

	// StudioID is the studio whose state is published.
	StudioID string `yaml:"studio-id"`

	// DeviceID and DeviceToken identify the gateway to the upstream
	// system when it initializes its session.
	DeviceID    string `yaml:"device-id"`
	DeviceToken string `yaml:"device-token"`

	// LoggingConfig is a loggo configuration string.
	LoggingConfig string `yaml:"logging-config"`

	Heartbeat       time.Duration `yaml:"heartbeat"`
	HandlerThrottle time.Duration `yaml:"handler-throttle"`
	TopicThrottle   time.Duration `yaml:"topic-throttle"`

	// RetryDelay and MaxRetryDelay bound the backoff between upstream
	// connection attempts.
	RetryDelay    time.Duration `yaml:"retry-delay"`
	MaxRetryDelay time.Duration `yaml:"max-retry-delay"`
}

// Default returns a config with every default applied.
func Default() Config {
	return Config{
		ListenAddress:   DefaultListenAddress,
		UpstreamURL:     DefaultUpstreamURL,
		LoggingConfig:   DefaultLoggingConfig,
		Heartbeat:       DefaultHeartbeat,
		HandlerThrottle: DefaultHandlerThrottle,
		TopicThrottle:   DefaultTopicThrottle,
		RetryDelay:      DefaultRetryDelay,
		MaxRetryDelay:   DefaultMaxRetryDelay,
	}
}

// ReadFile reads the config at path. Settings missing from the file keep
// their defaults.
func ReadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %q", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Annotatef(err, "config %q", path)
	}
	return cfg, nil
}

// Parse decodes YAML config data over the defaults. Unknown keys are an
// error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.NotValidf("config: %v", err)
	}
	return cfg, nil
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if c.StudioID == "" {
		return errors.NotValidf("empty studio-id")
	}
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return errors.NotValidf("listen-address %q", c.ListenAddress)
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return errors.NotValidf("upstream-url %q", c.UpstreamURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.NotValidf("upstream-url scheme %q", u.Scheme)
	}
	for name, d := range map[string]time.Duration{
		"heartbeat":        c.Heartbeat,
		"handler-throttle": c.HandlerThrottle,
		"topic-throttle":   c.TopicThrottle,
		"retry-delay":      c.RetryDelay,
		"max-retry-delay":  c.MaxRetryDelay,
	} {
		if d <= 0 {
			return errors.NotValidf("non-positive %s", name)
		}
	}
	if c.MaxRetryDelay < c.RetryDelay {
		return errors.NotValidf("max-retry-delay less than retry-delay")
	}
	return nil
}
