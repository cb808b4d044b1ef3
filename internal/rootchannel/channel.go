// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package rootchannel routes the messages of client connections: it
// answers pings, joins and leaves topics on request, and keeps every
// connection alive with a heartbeat.
//
// All Channel methods must be called from the gateway's event loop.
package rootchannel

import (
	"fmt"
	"sort"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/juju/livestatus/internal/throttle"
	"github.com/juju/livestatus/internal/topics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultHeartbeat is the heartbeat interval used when
// Config.Heartbeat is not set.
const DefaultHeartbeat = 2 * time.Second

// TopicSet holds the topics a connection can subscribe to.
type TopicSet interface {
	// Get returns the named topic, or a NotFound error.
	Get(name string) (topics.Topic, error)
	// RemoveSubscriber removes the subscriber from every topic.
	RemoveSubscriber(s topics.Subscriber)
}

// Logger is the logging interface used by the channel.
type Logger interface {
	Warningf(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// Metrics records the requests handled by the channel.
type Metrics interface {
	// Request records a well-formed request.
	Request(event string)
	// Malformed records a dropped message.
	Malformed()
}

// Config holds the dependencies of a Channel.
type Config struct {
	Topics    TopicSet
	Scheduler throttle.Scheduler
	Logger    Logger
	// Metrics is optional.
	Metrics Metrics

	// Heartbeat is the interval between heartbeats. Zero means
	// DefaultHeartbeat.
	Heartbeat time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.Topics == nil {
		return errors.NotValidf("nil Topics")
	}
	if config.Scheduler == nil {
		return errors.NotValidf("nil Scheduler")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.Heartbeat < 0 {
		return errors.NotValidf("negative Heartbeat")
	}
	return nil
}

// Channel routes the messages of every open connection.
type Channel struct {
	config    Config
	interval  time.Duration
	conns     map[string]topics.Subscriber
	heartbeat []byte
	cancel    func()
	closed    bool
}

// New returns a Channel and starts its heartbeat.
func New(config Config) (*Channel, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	heartbeat, err := json.Marshal(Heartbeat{Event: EventHeartbeat})
	if err != nil {
		return nil, errors.Trace(err)
	}
	ch := &Channel{
		config:    config,
		interval:  config.Heartbeat,
		conns:     make(map[string]topics.Subscriber),
		heartbeat: heartbeat,
	}
	if ch.interval == 0 {
		ch.interval = DefaultHeartbeat
	}
	ch.scheduleHeartbeat()
	return ch, nil
}

// AddConnection starts routing for s.
func (ch *Channel) AddConnection(s topics.Subscriber) {
	ch.conns[s.ID()] = s
	ch.config.Logger.Debugf("connection %s opened", s.ID())
}

// RemoveConnection stops routing for s and removes it from every topic.
func (ch *Channel) RemoveConnection(s topics.Subscriber) {
	delete(ch.conns, s.ID())
	ch.config.Topics.RemoveSubscriber(s)
	ch.config.Logger.Debugf("connection %s closed", s.ID())
}

// ConnectionIDs returns the ids of the open connections in order.
func (ch *Channel) ConnectionIDs() []string {
	ids := make([]string, 0, len(ch.conns))
	for id := range ch.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops the heartbeat.
func (ch *Channel) Close() {
	ch.closed = true
	if ch.cancel != nil {
		ch.cancel()
		ch.cancel = nil
	}
}

// HandleMessage handles a message received from s. Messages that cannot
// be parsed, or lack an event or request id, are dropped.
func (ch *Channel) HandleMessage(s topics.Subscriber, data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		ch.malformed(s, "cannot parse message: %v", err)
		return
	}
	if req.Event == "" {
		ch.malformed(s, "message has no event")
		return
	}
	if req.ReqID == nil {
		ch.malformed(s, "%s message has no reqid", req.Event)
		return
	}
	ch.config.Logger.Tracef("%s: %s %d", s.ID(), req.Event, *req.ReqID)

	switch req.Event {
	case EventPing:
		ch.send(s, Pong{Event: EventPong, ReqID: *req.ReqID})
	case EventSubscribe:
		status, t := ch.subscribe(s, *req.ReqID, req.Subscription)
		ch.send(s, status)
		// The first status goes out once the client has its ack.
		if t != nil {
			t.AddSubscriber(s)
		}
	case EventUnsubscribe:
		ch.send(s, ch.unsubscribe(s, *req.ReqID, req.Subscription))
	default:
		ch.malformed(s, "unknown event %q", req.Event)
		return
	}
	if ch.config.Metrics != nil {
		ch.config.Metrics.Request(req.Event)
	}
}

// subscribe answers a subscribe request. It returns the topic s still has
// to be added to, if any.
func (ch *Channel) subscribe(s topics.Subscriber, reqID int64, details *SubscriptionDetails) (SubscriptionStatus, topics.Topic) {
	t, status := ch.lookup(reqID, details)
	if t == nil {
		return status, nil
	}
	status.Subscription.Status = StatusSubscribed
	if t.HasSubscriber(s) {
		return status, nil
	}
	return status, t
}

func (ch *Channel) unsubscribe(s topics.Subscriber, reqID int64, details *SubscriptionDetails) SubscriptionStatus {
	t, status := ch.lookup(reqID, details)
	if t == nil {
		return status
	}
	t.RemoveSubscriber(s)
	status.Subscription.Status = StatusUnsubscribed
	return status
}

// lookup returns the requested topic, or nil and the error reply.
func (ch *Channel) lookup(reqID int64, details *SubscriptionDetails) (topics.Topic, SubscriptionStatus) {
	status := SubscriptionStatus{
		Event: EventSubscriptionStatus,
		ReqID: reqID,
	}
	if details == nil || details.Name == "" {
		status.Subscription.Status = StatusUnsubscribed
		status.ErrorMessage = "missing subscription name"
		return nil, status
	}
	status.Subscription.Name = details.Name
	t, err := ch.config.Topics.Get(details.Name)
	if err != nil {
		status.Subscription.Status = StatusUnsubscribed
		status.ErrorMessage = err.Error()
		return nil, status
	}
	return t, status
}

func (ch *Channel) send(s topics.Subscriber, msg any) {
	frame, err := json.Marshal(msg)
	if err != nil {
		ch.config.Logger.Warningf("encoding reply to %s: %v", s.ID(), err)
		return
	}
	if err := s.Send(frame); err != nil {
		ch.config.Logger.Warningf("sending reply to %s: %v", s.ID(), err)
	}
}

func (ch *Channel) malformed(s topics.Subscriber, format string, args ...any) {
	ch.config.Logger.Warningf("dropping message from %s: %s", s.ID(), fmt.Sprintf(format, args...))
	if ch.config.Metrics != nil {
		ch.config.Metrics.Malformed()
	}
}

func (ch *Channel) scheduleHeartbeat() {
	ch.cancel = ch.config.Scheduler.AfterFunc(ch.interval, func() {
		if ch.closed {
			return
		}
		ch.beat()
		ch.scheduleHeartbeat()
	})
}

// beat sends a heartbeat to every connection.
func (ch *Channel) beat() {
	failed := set.NewStrings()
	for _, id := range ch.ConnectionIDs() {
		if err := ch.conns[id].Send(ch.heartbeat); err != nil {
			failed.Add(id)
		}
	}
	if !failed.IsEmpty() {
		ch.config.Logger.Debugf("heartbeat not sent to %v", failed.SortedValues())
	}
}
