// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package signalwatcher

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// ErrShutdown is returned by a watcher stopped by a shutdown signal.
const ErrShutdown = errors.ConstError("shutdown requested")

// Logger is the logging used by the watcher.
type Logger interface {
	Infof(string, ...any)
}

// HandlerFunc maps a received signal to the error the watcher stops with.
type HandlerFunc func(os.Signal) error

// Handler returns a HandlerFunc that looks the signal up in signals and
// falls back to defaultErr.
func Handler(defaultErr error, signals map[os.Signal]error) HandlerFunc {
	return func(sig os.Signal) error {
		if err, ok := signals[sig]; ok {
			return err
		}
		return defaultErr
	}
}

// Watcher is a worker that stops when a signal arrives.
type Watcher struct {
	catacomb catacomb.Catacomb
	handler  HandlerFunc
	logger   Logger
	sigCh    <-chan os.Signal
}

// NewWatcher starts a watcher reading signals from sig.
func NewWatcher(logger Logger, sig <-chan os.Signal, handler HandlerFunc) (*Watcher, error) {
	if logger == nil {
		return nil, errors.NotValidf("nil Logger")
	}
	if sig == nil {
		return nil, errors.NotValidf("nil signal channel")
	}
	if handler == nil {
		return nil, errors.NotValidf("nil handler")
	}
	w := &Watcher{
		handler: handler,
		logger:  logger,
		sigCh:   sig,
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.watch,
	}); err != nil {
		return nil, errors.Annotate(err, "starting signal watcher")
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Watcher) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Watcher) Wait() error {
	return w.catacomb.Wait()
}

func (w *Watcher) watch() error {
	select {
	case sig, ok := <-w.sigCh:
		if !ok {
			return errors.New("signal channel closed unexpectedly")
		}
		w.logger.Infof("received %v", sig)
		return w.handler(sig)
	case <-w.catacomb.Dying():
		return w.catacomb.ErrDying()
	}
}
