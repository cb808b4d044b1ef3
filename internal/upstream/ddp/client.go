// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package ddp implements the upstream link over the Meteor distributed
// data protocol. The client keeps a session open, reconnecting with
// backoff, and mirrors the documents of its subscriptions into a store.
//
// Mirrored state is volatile: when the session is lost the store is
// cleared, outstanding subscriptions fail and DisconnectedTopic is
// published. ConnectedTopic is published once a new session is ready, and
// subscribers are expected to subscribe again.
package ddp

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"github.com/juju/retry"
	"github.com/rs/xid"
	"gopkg.in/tomb.v2"

	coreupstream "github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/upstream"
)

const (
	// ErrNotConnected is returned by calls made while there is no session.
	ErrNotConnected = errors.ConstError("not connected")

	// ErrDisconnected is returned by calls outstanding when the session
	// was lost.
	ErrDisconnected = errors.ConstError("disconnected")
)

// Defaults for unset Config durations.
const (
	DefaultRetryDelay       = time.Second
	DefaultMaxRetryDelay    = 30 * time.Second
	DefaultPingPeriod       = 20 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Logger is the logging interface used by the client.
type Logger interface {
	Errorf(string, ...any)
	Warningf(string, ...any)
	Infof(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// MethodCall names a method and its parameters.
type MethodCall struct {
	Method string
	Params []any
}

// Config holds the dependencies of a Client.
type Config struct {
	// URL is the websocket URL of the DDP endpoint.
	URL    string
	Store  *upstream.Store
	Hub    *pubsub.SimpleHub
	Clock  clock.Clock
	Logger Logger

	// Dialer is optional.
	Dialer *websocket.Dialer

	// Initialize, if set, is called on every new session before it is
	// reported as connected.
	Initialize *MethodCall

	RetryDelay       time.Duration
	MaxRetryDelay    time.Duration
	PingPeriod       time.Duration
	HandshakeTimeout time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.URL == "" {
		return errors.NotValidf("empty URL")
	}
	if config.Store == nil {
		return errors.NotValidf("nil Store")
	}
	if config.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.RetryDelay < 0 || config.MaxRetryDelay < 0 {
		return errors.NotValidf("negative retry delay")
	}
	return nil
}

func (config Config) withDefaults() Config {
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if config.MaxRetryDelay == 0 {
		config.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if config.PingPeriod == 0 {
		config.PingPeriod = DefaultPingPeriod
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return config
}

type subscription struct {
	name  string
	ready bool
	done  chan error
}

type methodResult struct {
	result []byte
	err    error
}

// Client is a worker maintaining a DDP session. It implements
// coreupstream.Link.
type Client struct {
	tomb    tomb.Tomb
	config  Config
	backoff func(time.Duration, int) time.Duration

	mu      sync.Mutex
	session *session
	subs    map[string]*subscription
	calls   map[string]chan methodResult
}

var _ coreupstream.Link = (*Client)(nil)

// NewClient starts a client connecting to config.URL.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	config = config.withDefaults()
	c := &Client{
		config:  config,
		backoff: retry.ExpBackoff(config.RetryDelay, config.MaxRetryDelay, 2, false),
		subs:    make(map[string]*subscription),
		calls:   make(map[string]chan methodResult),
	}
	c.tomb.Go(c.loop)
	return c, nil
}

// Kill is part of the worker.Worker interface.
func (c *Client) Kill() {
	c.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (c *Client) Wait() error {
	return c.tomb.Wait()
}

// Connected reports whether a session is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Observe is part of coreupstream.Link.
func (c *Client) Observe(collection string, observer coreupstream.Observer) (func(), error) {
	return c.config.Store.Observe(collection, observer)
}

// Collection is part of coreupstream.Link.
func (c *Client) Collection(name string) (coreupstream.Collection, error) {
	return c.config.Store.Collection(name)
}

// Subscribe is part of coreupstream.Link. It fails with ErrNotConnected
// when there is no session.
func (c *Client) Subscribe(ctx context.Context, publication string, params ...any) (string, error) {
	id := xid.New().String()
	sub := &subscription{name: publication, done: make(chan error, 1)}

	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return "", ErrNotConnected
	}
	c.subs[id] = sub
	c.mu.Unlock()

	err := s.send(subMsg{Msg: "sub", ID: id, Name: publication, Params: params})
	if err != nil {
		c.dropSubscription(id)
		return "", errors.Annotatef(err, "subscribing to %q", publication)
	}
	select {
	case err := <-sub.done:
		if err != nil {
			return "", errors.Annotatef(err, "subscribing to %q", publication)
		}
		return id, nil
	case <-ctx.Done():
		_ = c.Unsubscribe(id)
		return "", ctx.Err()
	case <-c.tomb.Dying():
		return "", ErrNotConnected
	}
}

// Unsubscribe is part of coreupstream.Link.
func (c *Client) Unsubscribe(id string) error {
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	s := c.session
	c.mu.Unlock()
	if !ok || s == nil {
		return nil
	}
	return errors.Trace(s.send(idMsg{Msg: "unsub", ID: id}))
}

// Call invokes a method and returns its JSON encoded result.
func (c *Client) Call(ctx context.Context, method string, params ...any) ([]byte, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNotConnected
	}
	return c.call(ctx, s, method, params)
}

func (c *Client) call(ctx context.Context, s *session, method string, params []any) ([]byte, error) {
	id := xid.New().String()
	done := make(chan methodResult, 1)
	c.mu.Lock()
	c.calls[id] = done
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.calls, id)
		c.mu.Unlock()
	}()

	if err := s.send(methodMsg{Msg: "method", ID: id, Method: method, Params: params}); err != nil {
		return nil, errors.Annotatef(err, "calling %q", method)
	}
	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Annotatef(r.err, "calling %q", method)
		}
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) dropSubscription(id string) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *Client) loop() error {
	attempt := 0
	for {
		if attempt > 0 {
			delay := c.backoff(0, attempt)
			c.config.Logger.Debugf("reconnecting in %v", delay)
			select {
			case <-c.tomb.Dying():
				return tomb.ErrDying
			case <-c.config.Clock.After(delay):
			}
		}
		attempt++

		socket, err := c.dial()
		if err != nil {
			select {
			case <-c.tomb.Dying():
				return tomb.ErrDying
			default:
			}
			c.config.Logger.Warningf("cannot connect to %s: %v", c.config.URL, err)
			continue
		}
		established, err := c.runSession(socket)
		select {
		case <-c.tomb.Dying():
			return tomb.ErrDying
		default:
		}
		c.config.Logger.Warningf("upstream session lost: %v", err)
		if established {
			attempt = 1
		}
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	ctx := c.tomb.Context(context.Background())
	socket, _, err := c.config.Dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return socket, nil
}
