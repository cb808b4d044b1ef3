// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package upstreamtest provides an in-memory upstream link for tests.
package upstreamtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	gc "gopkg.in/check.v1"

	"github.com/juju/livestatus/internal/upstream"
)

// SubscribeCall records one Subscribe request.
type SubscribeCall struct {
	ID          string
	Publication string
	Params      []any
}

type heldCall struct {
	call   SubscribeCall
	result chan error
}

// Link is an upstream.Link backed by an upstream.Store. Subscriptions
// resolve immediately unless Hold has been called, in which case they wait
// for Release.
type Link struct {
	*upstream.Store

	mu           sync.Mutex
	nextID       int
	hold         bool
	held         []*heldCall
	failures     map[string]error
	calls        []SubscribeCall
	unsubscribed []string
	active       map[string]SubscribeCall
	notify       chan SubscribeCall
}

// NewLink returns a link whose store has the given collections registered.
func NewLink(collections ...string) *Link {
	return &Link{
		Store:    upstream.NewStore(collections...),
		failures: make(map[string]error),
		active:   make(map[string]SubscribeCall),
		notify:   make(chan SubscribeCall, 1000),
	}
}

// Hold makes subsequent Subscribe calls block until released.
func (l *Link) Hold() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = true
}

// FailPublication makes Subscribe calls for the publication return err.
func (l *Link) FailPublication(publication string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[publication] = err
}

// Subscribe is part of upstream.Link.
func (l *Link) Subscribe(ctx context.Context, publication string, params ...any) (string, error) {
	l.mu.Lock()
	l.nextID++
	call := SubscribeCall{
		ID:          fmt.Sprintf("sub-%d", l.nextID),
		Publication: publication,
		Params:      params,
	}
	l.calls = append(l.calls, call)
	failure := l.failures[publication]
	var held *heldCall
	if l.hold {
		held = &heldCall{call: call, result: make(chan error, 1)}
		l.held = append(l.held, held)
	}
	l.mu.Unlock()

	select {
	case l.notify <- call:
	default:
	}

	if held != nil {
		select {
		case err := <-held.result:
			if err != nil {
				return "", err
			}
			if err := ctx.Err(); err != nil {
				return "", err
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if failure != nil {
		return "", failure
	}
	l.mu.Lock()
	l.active[call.ID] = call
	l.mu.Unlock()
	return call.ID, nil
}

// Unsubscribe is part of upstream.Link.
func (l *Link) Unsubscribe(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unsubscribed = append(l.unsubscribed, id)
	delete(l.active, id)
	return nil
}

// Release resolves the oldest held subscription, failing it if err is not
// nil. It reports whether there was one.
func (l *Link) Release(err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.held) == 0 {
		return false
	}
	h := l.held[0]
	l.held = l.held[1:]
	h.result <- err
	return true
}

// Resume stops holding Subscribe calls and resolves every held one.
func (l *Link) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hold = false
	for _, h := range l.held {
		h.result <- nil
	}
	l.held = nil
}

// Calls returns every Subscribe request made so far.
func (l *Link) Calls() []SubscribeCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SubscribeCall(nil), l.calls...)
}

// CallsFor returns the Subscribe requests made for one publication.
func (l *Link) CallsFor(publication string) []SubscribeCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []SubscribeCall
	for _, call := range l.calls {
		if call.Publication == publication {
			out = append(out, call)
		}
	}
	return out
}

// Unsubscribed returns the ids passed to Unsubscribe.
func (l *Link) Unsubscribed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.unsubscribed...)
}

// Active returns the subscriptions that resolved and have not been
// unsubscribed.
func (l *Link) Active() map[string]SubscribeCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]SubscribeCall, len(l.active))
	for id, call := range l.active {
		out[id] = call
	}
	return out
}

// WaitSubscribe waits for the next Subscribe request.
func (l *Link) WaitSubscribe(c *gc.C) SubscribeCall {
	select {
	case call := <-l.notify:
		return call
	case <-time.After(testing.LongWait):
		c.Fatalf("timed out waiting for subscribe")
	}
	panic("unreachable")
}

// AssertNoSubscribe checks that no Subscribe request arrives for a short
// while.
func (l *Link) AssertNoSubscribe(c *gc.C) {
	select {
	case call := <-l.notify:
		c.Fatalf("unexpected subscribe to %s%v", call.Publication, call.Params)
	case <-time.After(testing.ShortWait):
	}
}

// MustAdd adds a document, failing the test on error.
func (l *Link) MustAdd(c *gc.C, collection, id string, fields map[string]any) {
	err := l.Store.Added(collection, id, fields)
	c.Assert(err, gc.IsNil, gc.Commentf("adding %s/%s", collection, id))
}

// MustChange changes a document, failing the test on error.
func (l *Link) MustChange(c *gc.C, collection, id string, fields map[string]any, cleared ...string) {
	err := l.Store.Changed(collection, id, fields, cleared)
	c.Assert(err, gc.IsNil, gc.Commentf("changing %s/%s", collection, id))
}

// MustRemove removes a document, failing the test on error.
func (l *Link) MustRemove(c *gc.C, collection, id string) {
	err := l.Store.Removed(collection, id)
	c.Assert(err, gc.IsNil, gc.Commentf("removing %s/%s", collection, id))
}

// ErrRejected is a convenient subscription failure.
var ErrRejected = errors.New("subscription rejected")
