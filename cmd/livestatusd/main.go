// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command livestatusd serves the live status of a studio to websocket
// clients.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"
	"github.com/juju/worker/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/juju/livestatus/internal/config"
	"github.com/juju/livestatus/internal/gateway"
	"github.com/juju/livestatus/internal/signalwatcher"
)

var logger = loggo.GetLogger("livestatus")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, gnuflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		os.Exit(1)
	}
}

// flags holds the command line. Set fields override the config file.
type flags struct {
	configPath    string
	listenAddress string
	upstreamURL   string
	studioID      string
	loggingConfig string
}

func parseArgs(args []string) (config.Config, error) {
	var f flags
	fs := gnuflag.NewFlagSet("livestatusd", gnuflag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to a yaml config file")
	fs.StringVar(&f.listenAddress, "listen", "", "address to serve clients on")
	fs.StringVar(&f.upstreamURL, "upstream", "", "websocket url of the upstream system")
	fs.StringVar(&f.studioID, "studio", "", "id of the studio to report on")
	fs.StringVar(&f.loggingConfig, "logging-config", "", "loggo configuration string")
	if err := fs.Parse(true, args); err != nil {
		return config.Config{}, err
	}
	if fs.NArg() > 0 {
		return config.Config{}, errors.Errorf("unrecognized args: %q", fs.Args())
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.ReadFile(f.configPath); err != nil {
			return config.Config{}, errors.Trace(err)
		}
	}
	for _, o := range []struct {
		value  string
		target *string
	}{
		{f.listenAddress, &cfg.ListenAddress},
		{f.upstreamURL, &cfg.UpstreamURL},
		{f.studioID, &cfg.StudioID},
		{f.loggingConfig, &cfg.LoggingConfig},
	} {
		if o.value != "" {
			*o.target = o.value
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.Trace(err)
	}
	return cfg, nil
}

func run(args []string) error {
	cfg, err := parseArgs(args)
	if err != nil {
		return errors.Trace(err)
	}
	if err := loggo.ConfigureLoggers(cfg.LoggingConfig); err != nil {
		return errors.Annotate(err, "configuring logging")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	watcher, err := signalwatcher.NewWatcher(logger, sig, signalwatcher.Handler(signalwatcher.ErrShutdown, nil))
	if err != nil {
		return errors.Trace(err)
	}
	defer worker.Stop(watcher)

	g, err := gateway.NewWorker(gateway.Config{
		Settings:   cfg,
		Clock:      clock.WallClock,
		Registerer: registry,
		Gatherer:   registry,
	})
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("gateway started on %s", g.Addr())

	gatewayDone := make(chan error, 1)
	go func() { gatewayDone <- g.Wait() }()
	watcherDone := make(chan error, 1)
	go func() { watcherDone <- watcher.Wait() }()
	select {
	case err := <-gatewayDone:
		return errors.Annotate(err, "gateway stopped")
	case err := <-watcherDone:
		if !errors.Is(err, signalwatcher.ErrShutdown) {
			logger.Warningf("signal watcher: %v", err)
		}
	}
	logger.Infof("shutting down")
	return errors.Trace(worker.Stop(g))
}
