// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package wsserver serves the gateway's HTTP endpoints: the client
// websocket, prometheus metrics and a health check.
package wsserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/tomb.v2"

	"github.com/juju/livestatus/internal/topics"
)

// Connection defaults.
const (
	DefaultSendQueue  = 256
	DefaultPingPeriod = 30 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultWriteWait  = 10 * time.Second
)

// Channel routes the messages of client connections. Its methods are
// only called through the Scheduler.
type Channel interface {
	AddConnection(s topics.Subscriber)
	RemoveConnection(s topics.Subscriber)
	HandleMessage(s topics.Subscriber, data []byte)
}

// Scheduler runs functions in the context that owns the Channel.
type Scheduler interface {
	Post(fn func())
}

// Metrics records client connections.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed(d time.Duration)
}

// Logger is the logging interface used by the server.
type Logger interface {
	Errorf(string, ...any)
	Infof(string, ...any)
	Debugf(string, ...any)
}

// Config holds the dependencies of a Server.
type Config struct {
	Listener  net.Listener
	Channel   Channel
	Scheduler Scheduler
	Clock     clock.Clock
	Logger    Logger

	// Gatherer is served on /metrics. It is optional.
	Gatherer prometheus.Gatherer
	// Metrics is optional.
	Metrics Metrics
	// Health reports on /healthz why the gateway cannot serve clients.
	// It is optional.
	Health func() error

	// SendQueue is the number of frames that can be queued for one
	// connection before it is closed as too slow.
	SendQueue  int
	PingPeriod time.Duration
	PongWait   time.Duration
	WriteWait  time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Listener == nil {
		return errors.NotValidf("nil Listener")
	}
	if config.Channel == nil {
		return errors.NotValidf("nil Channel")
	}
	if config.Scheduler == nil {
		return errors.NotValidf("nil Scheduler")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.SendQueue < 0 {
		return errors.NotValidf("negative SendQueue")
	}
	return nil
}

func (config Config) withDefaults() Config {
	if config.SendQueue == 0 {
		config.SendQueue = DefaultSendQueue
	}
	if config.PingPeriod == 0 {
		config.PingPeriod = DefaultPingPeriod
	}
	if config.PongWait == 0 {
		config.PongWait = DefaultPongWait
	}
	if config.WriteWait == 0 {
		config.WriteWait = DefaultWriteWait
	}
	return config
}

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is a worker serving the gateway's HTTP endpoints until killed.
// Killing it closes every client connection.
type Server struct {
	tomb   tomb.Tomb
	config Config
	http   *http.Server

	mu      sync.Mutex
	closing bool
	conns   map[string]*Conn
}

// NewServer starts serving on config.Listener.
func NewServer(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Server{
		config: config.withDefaults(),
		conns:  make(map[string]*Conn),
	}
	router := mux.NewRouter()
	router.HandleFunc("/", s.serveWebsocket)
	router.HandleFunc("/healthz", s.serveHealth).Methods(http.MethodGet)
	if config.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.http = &http.Server{Handler: router}
	s.tomb.Go(s.loop)
	return s, nil
}

// Kill is part of the worker.Worker interface.
func (s *Server) Kill() {
	s.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *Server) Wait() error {
	return s.tomb.Wait()
}

// Addr returns the address the server listens on.
func (s *Server) Addr() net.Addr {
	return s.config.Listener.Addr()
}

// ConnectionCount returns the number of open client connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) loop() error {
	s.tomb.Go(func() error {
		err := s.http.Serve(s.config.Listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Annotate(err, "serving http")
	})
	s.config.Logger.Infof("listening on %s", s.Addr())

	<-s.tomb.Dying()
	_ = s.http.Close()

	s.mu.Lock()
	s.closing = true
	conns := make([]*Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Kill()
	}
	return tomb.ErrDying
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	if s.config.Health != nil {
		if err := s.config.Health(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) serveWebsocket(w http.ResponseWriter, req *http.Request) {
	socket, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		s.config.Logger.Errorf("problem initiating websocket: %v", err)
		return
	}
	conn := newConn(socket, connConfig{
		clock:      s.config.Clock,
		queue:      s.config.SendQueue,
		pingPeriod: s.config.PingPeriod,
		pongWait:   s.config.PongWait,
		writeWait:  s.config.WriteWait,
		onMessage: func(c *Conn, data []byte) {
			s.config.Scheduler.Post(func() {
				s.config.Channel.HandleMessage(c, data)
			})
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		_ = socket.Close()
		return
	}
	s.conns[conn.ID()] = conn
	s.config.Logger.Debugf("connection %s from %s", conn.ID(), socket.RemoteAddr())
	if s.config.Metrics != nil {
		s.config.Metrics.ConnectionOpened()
	}
	s.config.Scheduler.Post(func() {
		s.config.Channel.AddConnection(conn)
	})
	conn.start()
	opened := s.config.Clock.Now()
	s.tomb.Go(func() error {
		s.untrackWhenDone(conn, opened)
		return nil
	})
}

// untrackWhenDone removes conn from the channel once it ends.
func (s *Server) untrackWhenDone(conn *Conn, opened time.Time) {
	err := conn.Wait()
	s.config.Logger.Debugf("connection %s closed: %v", conn.ID(), err)

	s.config.Scheduler.Post(func() {
		s.config.Channel.RemoveConnection(conn)
	})
	if s.config.Metrics != nil {
		s.config.Metrics.ConnectionClosed(s.config.Clock.Now().Sub(opened))
	}
	s.mu.Lock()
	delete(s.conns, conn.ID())
	s.mu.Unlock()
}
