// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package ddp

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"gopkg.in/tomb.v2"

	coreupstream "github.com/juju/livestatus/core/upstream"
)

// session is one websocket connection to the server.
type session struct {
	id     string
	socket *websocket.Conn

	writeMu sync.Mutex
}

// send writes msg to the socket. It is safe for concurrent use.
func (s *session) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Trace(err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return errors.Trace(s.socket.WriteMessage(websocket.TextMessage, data))
}

func (s *session) read() (*message, error) {
	_, data, err := s.socket.ReadMessage()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Annotatef(err, "decoding %q", data)
	}
	return &msg, nil
}

// runSession performs the handshake on socket and then serves the
// session until it fails or the client is killed. It reports whether the
// session was established.
func (c *Client) runSession(socket *websocket.Conn) (bool, error) {
	defer socket.Close()

	s, err := c.handshake(socket)
	if err != nil {
		return false, errors.Trace(err)
	}
	c.config.Logger.Infof("connected to %s (session %s)", c.config.URL, s.id)

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	defer c.disconnected()

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readLoop(s)
	}()
	// The read loop exits once the socket is closed.
	defer func() {
		socket.Close()
		<-readErr
	}()

	if err := c.initialize(s, readErr); err != nil {
		return false, errors.Trace(err)
	}
	_ = c.config.Hub.Publish(coreupstream.ConnectedTopic, coreupstream.ConnectionState{Session: s.id})

	ping := c.config.Clock.NewTimer(c.config.PingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.tomb.Dying():
			return true, tomb.ErrDying
		case err := <-readErr:
			// Put it back for the deferred drain.
			readErr <- err
			return true, errors.Trace(err)
		case <-ping.Chan():
			if err := s.send(idMsg{Msg: "ping", ID: "keepalive"}); err != nil {
				return true, errors.Annotate(err, "sending ping")
			}
			ping.Reset(c.config.PingPeriod)
		}
	}
}

func (c *Client) handshake(socket *websocket.Conn) (*session, error) {
	s := &session{socket: socket}
	err := s.send(connectMsg{Msg: "connect", Version: Version, Support: supportedVersions})
	if err != nil {
		return nil, errors.Annotate(err, "sending connect")
	}
	_ = socket.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	for {
		msg, err := s.read()
		if err != nil {
			return nil, errors.Annotate(err, "waiting for connected")
		}
		switch msg.Msg {
		case "connected":
			s.id = msg.Session
			_ = socket.SetReadDeadline(time.Time{})
			return s, nil
		case "failed":
			return nil, errors.Errorf("server does not support protocol version, it wants %q", msg.Version)
		default:
			// The server announces itself with a message that has no msg.
			c.config.Logger.Tracef("ignoring %q before connected", msg.Msg)
		}
	}
}

// initialize calls the configured initialize method, giving up if the
// session fails first.
func (c *Client) initialize(s *session, readErr chan error) error {
	if c.config.Initialize == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(c.tomb.Context(context.Background()))
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := c.call(ctx, s, c.config.Initialize.Method, params(c.config.Initialize.Params))
		done <- err
	}()
	select {
	case err := <-done:
		return errors.Trace(err)
	case err := <-readErr:
		readErr <- err
		cancel()
		<-done
		return errors.Trace(err)
	}
}

// readLoop dispatches server messages until the socket fails. The read
// deadline is extended by every message, so a server that stops answering
// pings is detected.
func (c *Client) readLoop(s *session) error {
	for {
		_ = s.socket.SetReadDeadline(time.Now().Add(2 * c.config.PingPeriod))
		msg, err := s.read()
		if err != nil {
			return errors.Trace(err)
		}
		if err := c.dispatch(s, msg); err != nil {
			return errors.Trace(err)
		}
	}
}

func (c *Client) dispatch(s *session, msg *message) error {
	store := c.config.Store
	switch msg.Msg {
	case "ping":
		return s.send(idMsg{Msg: "pong", ID: msg.ID})
	case "pong":
	case "added":
		c.applyDocument(store.Added(msg.Collection, msg.ID, msg.Fields), msg)
	case "changed":
		c.applyDocument(store.Changed(msg.Collection, msg.ID, msg.Fields, msg.Cleared), msg)
	case "removed":
		c.applyDocument(store.Removed(msg.Collection, msg.ID), msg)
	case "ready":
		c.subscriptionsReady(msg.Subs)
	case "nosub":
		c.subscriptionEnded(msg.ID, msg.Error)
	case "result":
		c.methodResult(msg)
	case "updated", "addedBefore", "movedBefore":
	case "error":
		c.config.Logger.Errorf("server rejected a message: %s", msg.Reason)
	default:
		c.config.Logger.Tracef("ignoring message %q", msg.Msg)
	}
	return nil
}

func (c *Client) applyDocument(err error, msg *message) {
	if errors.Is(err, errors.NotFound) {
		c.config.Logger.Tracef("ignoring %s for %s", msg.Msg, msg.Collection)
		return
	}
	if err != nil {
		c.config.Logger.Errorf("applying %s %s/%s: %v", msg.Msg, msg.Collection, msg.ID, err)
	}
}

func (c *Client) subscriptionsReady(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		sub, ok := c.subs[id]
		if !ok || sub.ready {
			continue
		}
		sub.ready = true
		sub.done <- nil
	}
}

func (c *Client) subscriptionEnded(id string, reason *Error) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	var err error = ErrDisconnected
	if reason != nil {
		err = reason
	}
	if !sub.ready {
		sub.done <- err
		return
	}
	c.config.Logger.Warningf("subscription %s to %q ended: %v", id, sub.name, err)
}

func (c *Client) methodResult(msg *message) {
	c.mu.Lock()
	done, ok := c.calls[msg.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	r := methodResult{result: msg.Result}
	if msg.Error != nil {
		r.err = msg.Error
	}
	select {
	case done <- r:
	default:
	}
}

// disconnected fails everything outstanding on the lost session, clears
// the mirror and announces the loss.
func (c *Client) disconnected() {
	c.mu.Lock()
	c.session = nil
	subs := c.subs
	c.subs = make(map[string]*subscription)
	calls := c.calls
	c.calls = make(map[string]chan methodResult)
	c.mu.Unlock()

	for _, sub := range subs {
		if !sub.ready {
			sub.done <- ErrDisconnected
		}
	}
	for _, done := range calls {
		select {
		case done <- methodResult{err: ErrDisconnected}:
		default:
		}
	}
	c.config.Store.Clear()
	_ = c.config.Hub.Publish(coreupstream.DisconnectedTopic, coreupstream.ConnectionState{})
}
