// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package eventloop provides the single execution context in which all
// gateway state is mutated. Upstream document events, websocket requests
// and timer expiries are posted to the loop and run one at a time, in the
// order they were posted.
package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// ErrLoopStopped is returned by Call when the loop is no longer running.
const ErrLoopStopped = errors.ConstError("event loop stopped")

// Logger is the logging interface used by the loop.
type Logger interface {
	Errorf(string, ...any)
	Tracef(string, ...any)
}

// Config holds the dependencies of a Loop.
type Config struct {
	Clock  clock.Clock
	Logger Logger
}

// Validate returns an error if the config cannot start a Loop.
func (config Config) Validate() error {
	if config.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Loop is a worker that runs posted functions serially on one goroutine.
type Loop struct {
	catacomb catacomb.Catacomb
	config   Config

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// New starts a new Loop.
func New(config Config) (*Loop, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	l := &Loop{
		config: config,
		wake:   make(chan struct{}, 1),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &l.catacomb,
		Work: l.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return l, nil
}

// Kill is part of the worker.Worker interface.
func (l *Loop) Kill() {
	l.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (l *Loop) Wait() error {
	return l.catacomb.Wait()
}

// Now returns the current time according to the loop's clock.
func (l *Loop) Now() time.Time {
	return l.config.Clock.Now()
}

// Post queues fn to run on the loop. It never blocks, so it is safe to call
// from within the loop itself. Functions posted after the loop has started
// dying are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.catacomb.Dying():
		return
	default:
	}

	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call runs fn on the loop and waits for it to complete. It must not be
// called from within the loop.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-l.catacomb.Dying():
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop once d has elapsed. The returned function
// cancels the call; once it returns fn is guaranteed not to run, provided
// cancel is itself called from the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (cancel func()) {
	var cancelled bool
	timer := l.config.Clock.AfterFunc(d, func() {
		l.Post(func() {
			if cancelled {
				return
			}
			fn()
		})
	})
	return func() {
		cancelled = true
		timer.Stop()
	}
}

func (l *Loop) loop() error {
	for {
		select {
		case <-l.catacomb.Dying():
			return l.catacomb.ErrDying()
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			if err := l.run(fn); err != nil {
				return errors.Trace(err)
			}
			select {
			case <-l.catacomb.Dying():
				return l.catacomb.ErrDying()
			default:
			}
		}
	}
}

func (l *Loop) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("event loop callback panicked: %v", r)
		}
	}()
	fn()
	return nil
}
