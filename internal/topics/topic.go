// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package topics turns handler state into the status frames broadcast to
// subscribed client connections.
//
// Every topic observes the handlers it reports on, rebuilds its status
// when they change, and broadcasts it to its subscribers at most once per
// throttle interval. A topic that combines handlers which may briefly
// disagree withholds its status until they agree again.
//
// All topic methods must be called from the gateway's event loop.
package topics

import (
	"sort"
	"time"

	"github.com/juju/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/throttle"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultThrottle is the minimum interval between two broadcasts of a
// topic when Config.Throttle is not set.
const DefaultThrottle = 100 * time.Millisecond

// Subscriber is a client connection that receives topic frames.
type Subscriber interface {
	// ID identifies the connection.
	ID() string
	// Send queues a frame for the connection. It must not block.
	Send(frame []byte) error
}

// Topic is a named status stream clients can subscribe to.
type Topic interface {
	Name() string
	// AddSubscriber registers s and sends it the current status.
	AddSubscriber(s Subscriber)
	RemoveSubscriber(s Subscriber)
	HasSubscriber(s Subscriber) bool
	SubscriberCount() int
}

// Source is a handler value a topic can observe.
type Source[T any] interface {
	Subscribe(callback func(T), keys ...collection.Key) (unsubscribe func())
}

// Logger is the logging interface used by the topics.
type Logger interface {
	Errorf(string, ...any)
	Warningf(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// Metrics records broadcasts.
type Metrics interface {
	// Broadcast records a status frame sent to the given number of
	// subscribers.
	Broadcast(topic string, subscribers int)
	// Skipped records a status withheld because its sources disagreed.
	Skipped(topic string)
}

// Config holds the dependencies shared by every topic.
type Config struct {
	Scheduler throttle.Scheduler
	Logger    Logger
	// Metrics is optional.
	Metrics Metrics

	// Throttle is the minimum interval between two broadcasts of the
	// same topic. Zero means DefaultThrottle.
	Throttle time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Scheduler == nil {
		return errors.NotValidf("nil Scheduler")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.Throttle < 0 {
		return errors.NotValidf("negative Throttle")
	}
	return nil
}

// statusFunc builds the status of a topic. It returns false when the
// sources are inconsistent and nothing must be sent.
type statusFunc func() (any, bool)

// topic holds the subscriber set and broadcast logic shared by every
// concrete topic.
type topic struct {
	name        string
	config      Config
	status      statusFunc
	subscribers map[string]Subscriber
	throttle    *throttle.Throttle
	stops       []func()
}

func newTopic(name string, config Config, status statusFunc) *topic {
	interval := config.Throttle
	if interval == 0 {
		interval = DefaultThrottle
	}
	t := &topic{
		name:        name,
		config:      config,
		status:      status,
		subscribers: make(map[string]Subscriber),
	}
	t.throttle = throttle.New(config.Scheduler, interval, func() {
		t.SendStatus(t.Subscribers())
	})
	return t
}

// Name is part of Topic.
func (t *topic) Name() string {
	return t.name
}

// AddSubscriber is part of Topic.
func (t *topic) AddSubscriber(s Subscriber) {
	t.subscribers[s.ID()] = s
	t.SendStatus([]Subscriber{s})
}

// RemoveSubscriber is part of Topic.
func (t *topic) RemoveSubscriber(s Subscriber) {
	delete(t.subscribers, s.ID())
}

// HasSubscriber is part of Topic.
func (t *topic) HasSubscriber(s Subscriber) bool {
	_, ok := t.subscribers[s.ID()]
	return ok
}

// SubscriberCount is part of Topic.
func (t *topic) SubscriberCount() int {
	return len(t.subscribers)
}

// Subscribers returns the subscribers ordered by id.
func (t *topic) Subscribers() []Subscriber {
	out := make([]Subscriber, 0, len(t.subscribers))
	for _, s := range t.subscribers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SendStatus builds the status and sends it to subs.
func (t *topic) SendStatus(subs []Subscriber) {
	if len(subs) == 0 {
		return
	}
	status, ok := t.status()
	if !ok {
		t.config.Logger.Debugf("%s: sources inconsistent, not sending status", t.name)
		if t.config.Metrics != nil {
			t.config.Metrics.Skipped(t.name)
		}
		return
	}
	frame, err := json.Marshal(status)
	if err != nil {
		t.config.Logger.Errorf("%s: encoding status: %v", t.name, err)
		return
	}
	for _, s := range subs {
		if err := s.Send(frame); err != nil {
			t.config.Logger.Warningf("%s: sending status to %s: %v", t.name, s.ID(), err)
		}
	}
	if t.config.Metrics != nil {
		t.config.Metrics.Broadcast(t.name, len(subs))
	}
}

// SendStatusToAll schedules a broadcast to every subscriber.
func (t *topic) SendStatusToAll() {
	t.throttle.Trigger()
}

// Throttled reports whether a broadcast is scheduled.
func (t *topic) Throttled() bool {
	return t.throttle.Pending()
}

func (t *topic) close() {
	for _, stop := range t.stops {
		stop()
	}
	t.stops = nil
	t.throttle.Stop()
}

// observe subscribes fn to src and records the unsubscribe function.
func observe[T any](t *topic, src Source[T], fn func(T), keys ...collection.Key) {
	t.stops = append(t.stops, src.Subscribe(fn, keys...))
}
