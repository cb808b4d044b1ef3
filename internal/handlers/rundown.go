// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// RundownsHandler mirrors the rundowns of the selected playlist, in
// playlist order.
type RundownsHandler struct {
	*collection.Publication[[]*livestatus.Rundown]
	config   Config
	playlist *livestatus.Playlist
	stops    []func()
}

func newRundownsHandler(config Config) (*RundownsHandler, error) {
	h := &RundownsHandler{config: config}
	var err error
	h.Publication, err = newPublication[[]*livestatus.Rundown](config, "rundowns",
		livestatus.CollectionRundowns, livestatus.PublicationRundownsInPlaylists, h.changed)
	return h, errors.Trace(err)
}

func (h *RundownsHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.Field("ID"),
		collection.DeepField("RundownIDsInOrder"),
	))
	return nil
}

func (h *RundownsHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *RundownsHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	h.playlist = playlist
	if playlist == nil {
		h.StopSubscription()
		notifyChanged(h.Mirror, nil)
		return
	}
	params := []any{[]string{playlist.ID}}
	if h.Subscribed() && sameParams(params, h.Params()) {
		// Only the rundown order changed.
		if !h.Pending() {
			h.changed()
		}
		return
	}
	h.SetupSubscription(params...)
}

func (h *RundownsHandler) changed() {
	if h.playlist == nil {
		notifyChanged(h.Mirror, nil)
		return
	}
	docs := h.Find(upstream.Selector{"playlistId": h.playlist.ID})
	rundowns := decodeAll[livestatus.Rundown](h.config.Logger, h.Name(), docs)
	rundownOrder(rundowns, h.playlist.RundownIDsInOrder,
		func(r *livestatus.Rundown) string { return r.ID },
		func(*livestatus.Rundown) float64 { return 0 },
	)
	notifyChanged(h.Mirror, rundowns)
}

// RundownHandler publishes the rundown of the playlist's current part,
// falling back to the next part before the first take.
type RundownHandler struct {
	*collection.Mirror[*livestatus.Rundown]
	config    Config
	rundownID string
	rundowns  []*livestatus.Rundown
	stops     []func()
}

func newRundownHandler(config Config) *RundownHandler {
	return &RundownHandler{
		Mirror: collection.NewMirror[*livestatus.Rundown]("rundown"),
		config: config,
	}
}

func (h *RundownHandler) init(handlers *Handlers) error {
	h.stops = append(h.stops,
		handlers.Playlist.Subscribe(h.onPlaylistUpdate,
			collection.DeepField("CurrentPartInfo"),
			collection.DeepField("NextPartInfo"),
		),
		handlers.Rundowns.Subscribe(h.onRundownsUpdate),
	)
	return nil
}

func (h *RundownHandler) close() {
	stopAll(h.stops)
}

func (h *RundownHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	h.rundownID = playlist.CurrentRundownID()
	h.update()
}

func (h *RundownHandler) onRundownsUpdate(rundowns []*livestatus.Rundown) {
	h.rundowns = rundowns
	h.update()
}

func (h *RundownHandler) update() {
	var current *livestatus.Rundown
	for _, r := range h.rundowns {
		if r.ID == h.rundownID {
			current = r
			break
		}
	}
	notifyChanged(h.Mirror, current)
}
