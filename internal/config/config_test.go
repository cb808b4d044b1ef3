// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type configSuite struct{}

var _ = gc.Suite(&configSuite{})

func (s *configSuite) TestParseAppliesDefaults(c *gc.C) {
	cfg, err := Parse([]byte(`
studio-id: studio0
topic-throttle: 250ms
`))
	c.Assert(err, jc.ErrorIsNil)

	expected := Default()
	expected.StudioID = "studio0"
	expected.TopicThrottle = 250 * time.Millisecond
	c.Check(cfg, jc.DeepEquals, expected)
	c.Check(cfg.Validate(), jc.ErrorIsNil)
}

func (s *configSuite) TestParseEmpty(c *gc.C) {
	cfg, err := Parse(nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg, jc.DeepEquals, Default())
}

func (s *configSuite) TestParseUnknownKey(c *gc.C) {
	_, err := Parse([]byte("studio: studio0\n"))
	c.Check(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, `(?s)config: .*field studio not found.*`)
}

func (s *configSuite) TestReadFile(c *gc.C) {
	path := filepath.Join(c.MkDir(), "livestatus.yaml")
	err := os.WriteFile(path, []byte(`
listen-address: 127.0.0.1:9000
upstream-url: wss://core.example.com/websocket
studio-id: studio0
device-id: gateway
device-token: secret
heartbeat: 5s
`), 0600)
	c.Assert(err, jc.ErrorIsNil)

	cfg, err := ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg.ListenAddress, gc.Equals, "127.0.0.1:9000")
	c.Check(cfg.UpstreamURL, gc.Equals, "wss://core.example.com/websocket")
	c.Check(cfg.DeviceID, gc.Equals, "gateway")
	c.Check(cfg.DeviceToken, gc.Equals, "secret")
	c.Check(cfg.Heartbeat, gc.Equals, 5*time.Second)
	c.Check(cfg.HandlerThrottle, gc.Equals, DefaultHandlerThrottle)
}

func (s *configSuite) TestReadFileMissing(c *gc.C) {
	_, err := ReadFile(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Check(err, gc.ErrorMatches, `reading config ".*missing.yaml": .*`)
}

func (s *configSuite) TestValidate(c *gc.C) {
	valid := Default()
	valid.StudioID = "studio0"
	c.Assert(valid.Validate(), jc.ErrorIsNil)

	for i, test := range []struct {
		mutate func(*Config)
		err    string
	}{{
		mutate: func(cfg *Config) { cfg.StudioID = "" },
		err:    "empty studio-id not valid",
	}, {
		mutate: func(cfg *Config) { cfg.ListenAddress = "nowhere" },
		err:    `listen-address "nowhere" not valid`,
	}, {
		mutate: func(cfg *Config) { cfg.UpstreamURL = "http://core/websocket" },
		err:    `upstream-url scheme "http" not valid`,
	}, {
		mutate: func(cfg *Config) { cfg.TopicThrottle = 0 },
		err:    "non-positive topic-throttle not valid",
	}, {
		mutate: func(cfg *Config) { cfg.MaxRetryDelay = time.Millisecond },
		err:    "max-retry-delay less than retry-delay not valid",
	}} {
		c.Logf("test %d: %s", i, test.err)
		cfg := valid
		test.mutate(&cfg)
		err := cfg.Validate()
		c.Check(err, jc.ErrorIs, errors.NotValid)
		c.Check(err, gc.ErrorMatches, test.err)
	}
}
