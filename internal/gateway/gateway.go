// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package gateway runs the live status gateway: it connects to the
// upstream system, mirrors the studio's state and serves it to websocket
// clients.
package gateway

import (
	"context"
	"net"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	"github.com/juju/worker/v4/catacomb"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/livestatus/core/livestatus"
	coreupstream "github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/config"
	"github.com/juju/livestatus/internal/eventloop"
	"github.com/juju/livestatus/internal/handlers"
	"github.com/juju/livestatus/internal/metrics"
	"github.com/juju/livestatus/internal/rootchannel"
	"github.com/juju/livestatus/internal/topics"
	"github.com/juju/livestatus/internal/upstream"
	"github.com/juju/livestatus/internal/upstream/ddp"
	"github.com/juju/livestatus/internal/wsserver"
)

var logger = loggo.GetLogger("livestatus.gateway")

// ErrUpstreamNotConnected is reported by the health check while there is
// no upstream session.
const ErrUpstreamNotConnected = errors.ConstError("upstream not connected")

// InitializeMethod is called on the upstream system at the start of each
// session when a device id is configured.
const InitializeMethod = "peripheralDevice.initialize"

// Config holds the dependencies of the gateway.
type Config struct {
	Settings config.Config
	Clock    clock.Clock

	// Registerer and Gatherer expose the gateway metrics. Both are
	// optional.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	// Listener is optional; without it the gateway listens on
	// Settings.ListenAddress.
	Listener net.Listener
}

// Validate returns an error if the config cannot be used.
func (cfg Config) Validate() error {
	if err := cfg.Settings.Validate(); err != nil {
		return errors.Trace(err)
	}
	if cfg.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	return nil
}

// Gateway is a worker running every part of the gateway.
type Gateway struct {
	catacomb catacomb.Catacomb
	config   Config
	listener net.Listener
	metrics  *metrics.Collector
}

// NewWorker starts a gateway.
func NewWorker(cfg Config) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", cfg.Settings.ListenAddress)
		if err != nil {
			return nil, errors.Annotatef(err, "listening on %q", cfg.Settings.ListenAddress)
		}
	}
	g := &Gateway{
		config:   cfg,
		listener: listener,
		metrics:  metrics.NewMetricsCollector(),
	}
	if cfg.Registerer != nil {
		if err := cfg.Registerer.Register(g.metrics); err != nil {
			_ = listener.Close()
			return nil, errors.Annotate(err, "registering metrics")
		}
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &g.catacomb,
		Work: g.loop,
	}); err != nil {
		g.unregister()
		_ = listener.Close()
		return nil, errors.Trace(err)
	}
	return g, nil
}

// Kill is part of the worker.Worker interface.
func (g *Gateway) Kill() {
	g.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (g *Gateway) Wait() error {
	return g.catacomb.Wait()
}

// Addr returns the address the gateway serves clients on.
func (g *Gateway) Addr() net.Addr {
	return g.listener.Addr()
}

func (g *Gateway) unregister() {
	if g.config.Registerer != nil {
		g.config.Registerer.Unregister(g.metrics)
	}
}

func (g *Gateway) loop() error {
	defer g.unregister()
	settings := g.config.Settings
	serving := false
	defer func() {
		if !serving {
			_ = g.listener.Close()
		}
	}()

	hub := pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("livestatus.hub"),
	})
	store := upstream.NewStore(livestatus.AllCollections...)

	loop, err := eventloop.New(eventloop.Config{
		Clock:  g.config.Clock,
		Logger: loggo.GetLogger("livestatus.eventloop"),
	})
	if err != nil {
		return errors.Trace(err)
	}
	if err := g.catacomb.Add(loop); err != nil {
		return errors.Trace(err)
	}

	// The handlers, topics and channel are only touched on the loop.
	var (
		h       *handlers.Handlers
		ts      *topics.Topics
		channel *rootchannel.Channel
	)
	unsubConnected := hub.Subscribe(coreupstream.ConnectedTopic, func(string, interface{}) {
		g.metrics.UpstreamConnected(true)
		loop.Post(func() {
			if h != nil {
				h.Resubscribe()
			}
		})
	})
	defer unsubConnected()
	unsubDisconnected := hub.Subscribe(coreupstream.DisconnectedTopic, func(string, interface{}) {
		g.metrics.UpstreamConnected(false)
	})
	defer unsubDisconnected()

	client, err := ddp.NewClient(ddp.Config{
		URL:           settings.UpstreamURL,
		Store:         store,
		Hub:           hub,
		Clock:         g.config.Clock,
		Logger:        loggo.GetLogger("livestatus.ddp"),
		Initialize:    initializeCall(settings),
		RetryDelay:    settings.RetryDelay,
		MaxRetryDelay: settings.MaxRetryDelay,
	})
	if err != nil {
		return errors.Trace(err)
	}
	if err := g.catacomb.Add(client); err != nil {
		return errors.Trace(err)
	}

	ctx := g.catacomb.Context(context.Background())
	callErr := loop.Call(ctx, func() {
		h, err = g.start(loop, client)
		if err != nil {
			return
		}
		ts, err = topics.New(topics.Config{
			Scheduler: loop,
			Logger:    loggo.GetLogger("livestatus.topics"),
			Metrics:   g.metrics,
			Throttle:  settings.TopicThrottle,
		}, topics.SourcesFrom(h))
		if err != nil {
			return
		}
		channel, err = rootchannel.New(rootchannel.Config{
			Topics:    ts,
			Scheduler: loop,
			Logger:    loggo.GetLogger("livestatus.rootchannel"),
			Metrics:   g.metrics,
			Heartbeat: settings.Heartbeat,
		})
	})
	if callErr != nil {
		return errors.Trace(callErr)
	}
	if err != nil {
		return errors.Annotate(err, "starting handlers")
	}

	server, err := wsserver.NewServer(wsserver.Config{
		Listener:  g.listener,
		Channel:   channel,
		Scheduler: loop,
		Clock:     g.config.Clock,
		Logger:    loggo.GetLogger("livestatus.wsserver"),
		Gatherer:  g.config.Gatherer,
		Metrics:   g.metrics,
		Health: func() error {
			if !client.Connected() {
				return ErrUpstreamNotConnected
			}
			return nil
		},
	})
	if err != nil {
		return errors.Trace(err)
	}
	serving = true
	if err := g.catacomb.Add(server); err != nil {
		return errors.Trace(err)
	}
	logger.Infof("serving studio %q on %s", settings.StudioID, g.Addr())

	<-g.catacomb.Dying()
	_ = loop.Call(context.Background(), func() {
		channel.Close()
		ts.Close()
		h.Close()
	})
	return g.catacomb.ErrDying()
}

// start creates the handlers and starts their subscriptions.
func (g *Gateway) start(loop *eventloop.Loop, link coreupstream.Link) (*handlers.Handlers, error) {
	h, err := handlers.New(handlers.Config{
		StudioID:  g.config.Settings.StudioID,
		Link:      link,
		Scheduler: loop,
		Logger:    loggo.GetLogger("livestatus.handlers"),
		Metrics:   g.metrics,
		Throttle:  g.config.Settings.HandlerThrottle,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := h.Init(); err != nil {
		h.Close()
		return nil, errors.Trace(err)
	}
	return h, nil
}

func initializeCall(settings config.Config) *ddp.MethodCall {
	if settings.DeviceID == "" {
		return nil
	}
	return &ddp.MethodCall{
		Method: InitializeMethod,
		Params: []any{settings.DeviceID, settings.DeviceToken, map[string]any{
			"category":   "liveStatusGateway",
			"deviceName": "Live Status Gateway",
		}},
	}
}
