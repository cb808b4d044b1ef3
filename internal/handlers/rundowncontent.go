// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"sort"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// RundownContentHandler mirrors one rundown-scoped collection for the
// current rundown: the rundown of the playlist's current part, or of the
// next part before the first take.
type RundownContentHandler[E any] struct {
	*collection.Publication[[]*E]
	config    Config
	rundownID string
	less      func(a, b *E) bool
	stops     []func()
}

// AdLibActionsHandler mirrors rundown or rundown baseline ad-lib actions.
type AdLibActionsHandler = RundownContentHandler[livestatus.AdLibAction]

// AdLibsHandler mirrors rundown or rundown baseline ad-lib pieces.
type AdLibsHandler = RundownContentHandler[livestatus.AdLibPiece]

func newRundownContentHandler[E any](config Config, name, coll, pub string, less func(a, b *E) bool) (*RundownContentHandler[E], error) {
	h := &RundownContentHandler[E]{
		config: config,
		less:   less,
	}
	var err error
	h.Publication, err = newPublication[[]*E](config, name, coll, pub, h.changed)
	return h, errors.Trace(err)
}

func newAdLibActionsHandler(config Config, name, coll, pub string) (*AdLibActionsHandler, error) {
	return newRundownContentHandler[livestatus.AdLibAction](config, name, coll, pub, nil)
}

func newAdLibsHandler(config Config, name, coll, pub string) (*AdLibsHandler, error) {
	return newRundownContentHandler(config, name, coll, pub, func(a, b *livestatus.AdLibPiece) bool {
		return a.Rank < b.Rank
	})
}

func (h *RundownContentHandler[E]) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.DeepField("CurrentPartInfo"),
		collection.DeepField("NextPartInfo"),
	))
	return nil
}

func (h *RundownContentHandler[E]) close() {
	stopAll(h.stops)
	h.Close()
}

// RundownID returns the rundown the handler follows.
func (h *RundownContentHandler[E]) RundownID() string {
	return h.rundownID
}

func (h *RundownContentHandler[E]) onPlaylistUpdate(playlist *livestatus.Playlist) {
	rundownID := playlist.CurrentRundownID()
	if rundownID == "" {
		h.rundownID = ""
		if h.Subscribed() {
			h.StopSubscription()
		}
		// Observers get an empty value even before any rundown is known.
		notifyChanged(h.Mirror, nil)
		return
	}
	if rundownID == h.rundownID && h.Subscribed() {
		return
	}
	h.rundownID = rundownID
	h.SetupSubscription([]string{rundownID})
}

func (h *RundownContentHandler[E]) changed() {
	if h.rundownID == "" {
		notifyChanged(h.Mirror, nil)
		return
	}
	docs := h.Find(upstream.Selector{"rundownId": h.rundownID})
	items := decodeAll[E](h.config.Logger, h.Name(), docs)
	if h.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return h.less(items[i], items[j]) })
	}
	notifyChanged(h.Mirror, items)
}
