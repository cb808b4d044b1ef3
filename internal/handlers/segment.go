// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// SegmentsHandler mirrors every segment of the selected playlist, in
// playlist order. Its subscription follows the playlist's rundown order
// only, not the current selection.
type SegmentsHandler struct {
	*collection.Publication[[]*livestatus.Segment]
	config     Config
	rundownIDs []string
	stops      []func()
}

func newSegmentsHandler(config Config) (*SegmentsHandler, error) {
	h := &SegmentsHandler{config: config}
	var err error
	h.Publication, err = newPublication[[]*livestatus.Segment](config, "segments",
		livestatus.CollectionSegments, livestatus.PublicationSegments, h.changed)
	return h, errors.Trace(err)
}

func (h *SegmentsHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.DeepField("RundownIDsInOrder"),
	))
	return nil
}

func (h *SegmentsHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *SegmentsHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
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

func (h *SegmentsHandler) changed() {
	if len(h.rundownIDs) == 0 {
		notifyChanged(h.Mirror, nil)
		return
	}
	docs := h.Find(upstream.Selector{"rundownId": upstream.InStrings(h.rundownIDs)})
	segments := decodeAll[livestatus.Segment](h.config.Logger, h.Name(), docs)
	rundownOrder(segments, h.rundownIDs,
		func(s *livestatus.Segment) string { return s.RundownID },
		func(s *livestatus.Segment) float64 { return s.Rank },
	)
	notifyChanged(h.Mirror, segments)
}

// SegmentHandler publishes the segment of the current part instance.
type SegmentHandler struct {
	*collection.Mirror[*livestatus.Segment]
	config    Config
	segmentID string
	segments  []*livestatus.Segment
	stops     []func()
}

func newSegmentHandler(config Config) *SegmentHandler {
	return &SegmentHandler{
		Mirror: collection.NewMirror[*livestatus.Segment]("segment"),
		config: config,
	}
}

func (h *SegmentHandler) init(handlers *Handlers) error {
	h.stops = append(h.stops,
		handlers.Segments.Subscribe(h.onSegmentsUpdate),
		handlers.PartInstances.Subscribe(h.onPartInstancesUpdate, collection.Field("Current")),
	)
	return nil
}

func (h *SegmentHandler) close() {
	stopAll(h.stops)
}

func (h *SegmentHandler) onSegmentsUpdate(segments []*livestatus.Segment) {
	h.segments = segments
	h.update()
}

func (h *SegmentHandler) onPartInstancesUpdate(selected *SelectedPartInstances) {
	h.segmentID = ""
	if selected != nil && selected.Current != nil {
		h.segmentID = selected.Current.SegmentID
	}
	h.update()
}

func (h *SegmentHandler) update() {
	var current *livestatus.Segment
	for _, s := range h.segments {
		if s.ID == h.segmentID {
			current = s
			break
		}
	}
	notifyChanged(h.Mirror, current)
}
