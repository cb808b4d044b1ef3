// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// PartsHandler mirrors every part of the selected playlist, in playlist
// order.
type PartsHandler struct {
	*collection.Publication[[]*livestatus.Part]
	config     Config
	rundownIDs []string
	stops      []func()
}

func newPartsHandler(config Config) (*PartsHandler, error) {
	h := &PartsHandler{config: config}
	var err error
	h.Publication, err = newPublication[[]*livestatus.Part](config, "parts",
		livestatus.CollectionParts, livestatus.PublicationParts, h.changed)
	return h, errors.Trace(err)
}

func (h *PartsHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.DeepField("RundownIDsInOrder"),
	))
	return nil
}

func (h *PartsHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *PartsHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	var rundownIDs []string
	if playlist != nil {
		rundownIDs = playlist.RundownIDsInOrder
	}
	h.rundownIDs = rundownIDs
	if len(rundownIDs) == 0 {
		h.StopSubscription()
		notifyChanged(h.Mirror, nil)
		return
	}
	params := []any{rundownIDs}
	if h.Subscribed() && sameParams(params, h.Params()) {
		return
	}
	h.SetupSubscription(params...)
}

func (h *PartsHandler) changed() {
	if len(h.rundownIDs) == 0 {
		notifyChanged(h.Mirror, nil)
		return
	}
	docs := h.Find(upstream.Selector{"rundownId": upstream.InStrings(h.rundownIDs)})
	parts := decodeAll[livestatus.Part](h.config.Logger, h.Name(), docs)
	rundownOrder(parts, h.rundownIDs,
		func(p *livestatus.Part) string { return p.RundownID },
		func(p *livestatus.Part) float64 { return p.Rank },
	)
	notifyChanged(h.Mirror, parts)
}

// PartHandler publishes the part of the current part instance. When the
// part is not mirrored (it may have been removed since it was taken), the
// copy held by the part instance is used.
type PartHandler struct {
	*collection.Mirror[*livestatus.Part]
	config   Config
	instance *livestatus.PartInstance
	parts    []*livestatus.Part
	stops    []func()
}

func newPartHandler(config Config) *PartHandler {
	return &PartHandler{
		Mirror: collection.NewMirror[*livestatus.Part]("part"),
		config: config,
	}
}

func (h *PartHandler) init(handlers *Handlers) error {
	h.stops = append(h.stops,
		handlers.Parts.Subscribe(h.onPartsUpdate),
		handlers.PartInstances.Subscribe(h.onPartInstancesUpdate, collection.Field("Current")),
	)
	return nil
}

func (h *PartHandler) close() {
	stopAll(h.stops)
}

func (h *PartHandler) onPartsUpdate(parts []*livestatus.Part) {
	h.parts = parts
	h.update()
}

func (h *PartHandler) onPartInstancesUpdate(selected *SelectedPartInstances) {
	h.instance = nil
	if selected != nil {
		h.instance = selected.Current
	}
	h.update()
}

func (h *PartHandler) update() {
	if h.instance == nil {
		notifyChanged(h.Mirror, nil)
		return
	}
	current := &h.instance.Part
	for _, p := range h.parts {
		if p.ID == h.instance.Part.ID {
			current = p
			break
		}
	}
	prev, _ := h.Data()
	notifyChanged(h.Mirror, reuse(prev, current))
}
