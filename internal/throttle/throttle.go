// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package throttle coalesces bursts of change signals into infrequent
// calls. The first signal after a quiet period is delivered on the next
// turn of the scheduler; signals arriving before, or within the interval
// after, a delivery are merged into a single trailing delivery.
package throttle

import (
	"time"
)

// Scheduler runs functions in a single execution context. All Throttle
// methods must be called from that context.
type Scheduler interface {
	// Post runs fn on the next turn.
	Post(fn func())
	// AfterFunc runs fn once d has elapsed, unless cancelled.
	AfterFunc(d time.Duration, fn func()) (cancel func())
	// Now returns the scheduler's current time.
	Now() time.Time
}

// Throttle calls a function at most once per interval.
type Throttle struct {
	sched    Scheduler
	interval time.Duration
	fn       func()

	// seq identifies the currently armed delivery; deliveries carrying an
	// older value have been superseded and are dropped.
	seq      uint64
	armed    bool
	cancel   func()
	lastFire time.Time
	fired    bool
}

// New returns a Throttle that calls fn at most once per interval.
func New(sched Scheduler, interval time.Duration, fn func()) *Throttle {
	return &Throttle{
		sched:    sched,
		interval: interval,
		fn:       fn,
	}
}

// Trigger arms a delivery unless one is already pending.
func (t *Throttle) Trigger() {
	if t.armed {
		return
	}
	t.armed = true
	t.seq++
	seq := t.seq

	var wait time.Duration
	if t.fired {
		wait = t.interval - t.sched.Now().Sub(t.lastFire)
	}
	if wait <= 0 {
		t.sched.Post(func() { t.deliver(seq) })
		return
	}
	t.cancel = t.sched.AfterFunc(wait, func() { t.deliver(seq) })
}

// Pending reports whether a delivery is armed.
func (t *Throttle) Pending() bool {
	return t.armed
}

// FireNow cancels any armed delivery and calls the function immediately.
func (t *Throttle) FireNow() {
	t.Stop()
	t.fire()
}

// Stop cancels any armed delivery.
func (t *Throttle) Stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.armed = false
	t.seq++
}

func (t *Throttle) deliver(seq uint64) {
	if !t.armed || seq != t.seq {
		return
	}
	t.armed = false
	t.cancel = nil
	t.fire()
}

func (t *Throttle) fire() {
	t.lastFire = t.sched.Now()
	t.fired = true
	t.fn()
}
