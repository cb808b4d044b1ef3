// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// PieceContentStatusesHandler mirrors the media status of the pieces of
// the selected playlist, in running order.
type PieceContentStatusesHandler struct {
	*collection.Publication[[]*livestatus.PieceContentStatus]
	config   Config
	playlist *livestatus.Playlist
	stops    []func()
}

func newPieceContentStatusesHandler(config Config) (*PieceContentStatusesHandler, error) {
	h := &PieceContentStatusesHandler{config: config}
	var err error
	h.Publication, err = newPublication[[]*livestatus.PieceContentStatus](config, "pieceContentStatuses",
		livestatus.CollectionPieceContentStatuses, livestatus.PublicationPieceContentStatuses, h.changed)
	return h, errors.Trace(err)
}

func (h *PieceContentStatusesHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.Field("ID"),
		collection.DeepField("RundownIDsInOrder"),
	))
	return nil
}

func (h *PieceContentStatusesHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *PieceContentStatusesHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	h.playlist = playlist
	if playlist == nil {
		h.StopSubscription()
		notifyChanged(h.Mirror, nil)
		return
	}
	params := []any{playlist.ID}
	if h.Subscribed() && sameParams(params, h.Params()) {
		if !h.Pending() {
			h.changed()
		}
		return
	}
	h.SetupSubscription(params...)
}

func (h *PieceContentStatusesHandler) changed() {
	if h.playlist == nil {
		notifyChanged(h.Mirror, nil)
		return
	}
	rundowns := set.NewStrings(h.playlist.RundownIDsInOrder...)
	docs := h.Find(upstream.Selector{})
	var statuses []*livestatus.PieceContentStatus
	for _, s := range decodeAll[livestatus.PieceContentStatus](h.config.Logger, h.Name(), docs) {
		if rundowns.Contains(s.RundownID) {
			statuses = append(statuses, s)
		}
	}
	rundownIndex := make(map[string]int)
	for i, id := range h.playlist.RundownIDsInOrder {
		rundownIndex[id] = i
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i], statuses[j]
		if ra, rb := rundownIndex[a.RundownID], rundownIndex[b.RundownID]; ra != rb {
			return ra < rb
		}
		if a.SegmentRank != b.SegmentRank {
			return a.SegmentRank < b.SegmentRank
		}
		return a.PartRank < b.PartRank
	})
	notifyChanged(h.Mirror, statuses)
}
