// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/pieces"
)

// SelectedPieceInstances holds the piece instances of the selected part
// instances.
type SelectedPieceInstances struct {
	// Active holds the pieces on air: those of the current part instance
	// whose window covers now, preceded by those of the previous part
	// instance while it is still planned to be playing.
	Active []*livestatus.PieceInstance

	CurrentPartInstance []*livestatus.PieceInstance
	NextPartInstance    []*livestatus.PieceInstance
}

// playbackTimestamps change on every take without changing what is shown.
var ignorePlaybackTimestamps = cmpopts.IgnoreFields(livestatus.PieceInstance{},
	"PlannedStartedPlayback",
	"ReportedStartedPlayback",
	"PlannedStoppedPlayback",
	"ReportedStoppedPlayback",
)

// PieceInstancesHandler mirrors the piece instances of the active playlist
// and resolves which of them are on air. The active set is recomputed on
// every dependency change and whenever a piece window opens or closes.
type PieceInstancesHandler struct {
	*collection.Publication[*SelectedPieceInstances]
	config   Config
	playlist *livestatus.Playlist
	parts    *SelectedPartInstances
	layers   map[string]livestatus.SourceLayer

	cancelTimer func()
	stops       []func()
}

func newPieceInstancesHandler(config Config) (*PieceInstancesHandler, error) {
	h := &PieceInstancesHandler{config: config}
	var err error
	h.Publication, err = newPublication[*SelectedPieceInstances](config, "pieceInstances",
		livestatus.CollectionPieceInstances, livestatus.PublicationPieceInstancesSimple, h.changed)
	return h, errors.Trace(err)
}

func (h *PieceInstancesHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops,
		handlers.Playlist.Subscribe(h.onPlaylistUpdate,
			collection.DeepField("RundownIDsInOrder"),
			collection.Field("ActivationID"),
			collection.DeepField("PreviousPartInfo"),
			collection.DeepField("CurrentPartInfo"),
			collection.DeepField("NextPartInfo"),
		),
		handlers.PartInstances.Subscribe(h.onPartInstancesUpdate,
			collection.Field("Previous"),
			collection.Field("Current"),
			collection.Field("Next"),
		),
		handlers.ShowStyleBase.Subscribe(h.onShowStyleBaseUpdate,
			collection.Field("SourceLayers"),
		),
	)
	return nil
}

func (h *PieceInstancesHandler) close() {
	stopAll(h.stops)
	h.stopTimer()
	h.Close()
}

func (h *PieceInstancesHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	h.playlist = playlist
	if !playlist.IsActive() || len(playlist.RundownIDsInOrder) == 0 {
		h.StopSubscription()
		h.changed()
		return
	}
	params := []any{playlist.RundownIDsInOrder, playlist.ActivationID}
	if !h.Subscribed() || !sameParams(params, h.Params()) {
		h.SetupSubscription(params...)
		return
	}
	h.recompute()
}

func (h *PieceInstancesHandler) onPartInstancesUpdate(parts *SelectedPartInstances) {
	h.parts = parts
	h.recompute()
}

func (h *PieceInstancesHandler) onShowStyleBaseUpdate(base *livestatus.ShowStyleBase) {
	h.layers = nil
	if base != nil {
		h.layers = base.SourceLayers
	}
	h.recompute()
}

// recompute refreshes the selection against the current mirror, unless a
// new subscription is resolving, in which case its completion will.
func (h *PieceInstancesHandler) recompute() {
	if h.Pending() {
		return
	}
	h.changed()
}

func (h *PieceInstancesHandler) changed() {
	h.stopTimer()

	next := &SelectedPieceInstances{}
	if !h.playlist.IsActive() || h.parts == nil || !h.Subscribed() {
		h.update(next)
		return
	}

	var ids []string
	for _, pi := range []*livestatus.PartInstance{h.parts.Previous, h.parts.Current, h.parts.Next} {
		if pi != nil {
			ids = append(ids, pi.ID)
		}
	}
	if len(ids) == 0 {
		h.update(next)
		return
	}
	docs := h.Find(upstream.Selector{
		"partInstanceId":       upstream.InStrings(ids),
		"playlistActivationId": h.playlist.ActivationID,
	})
	byPart := make(map[string][]*livestatus.PieceInstance)
	for _, pi := range decodeAll[livestatus.PieceInstance](h.config.Logger, h.Name(), docs) {
		byPart[pi.PartInstanceID] = append(byPart[pi.PartInstanceID], pi)
	}

	now := h.config.Scheduler.Now().UnixMilli()
	var boundaries []int64

	if prev := h.parts.Previous; prev != nil {
		if stop := prev.Timings.PlannedStoppedPlayback; stop != nil && *stop > now {
			resolved := pieces.ProcessAndPrune(h.layers, byPart[prev.ID], partStart(prev, now), now)
			next.Active = append(next.Active, pieces.Active(resolved, now)...)
			boundaries = append(boundaries, *stop)
		}
	}
	if current := h.parts.Current; current != nil {
		next.CurrentPartInstance = byPart[current.ID]
		resolved := pieces.ProcessAndPrune(h.layers, next.CurrentPartInstance, partStart(current, now), now)
		next.Active = append(next.Active, pieces.Active(resolved, now)...)
		// Windows of a part that has not started move with now.
		if t, ok := pieces.NextBoundary(resolved, now); ok && current.StartedPlayback() != nil {
			boundaries = append(boundaries, t)
		}
	}
	if upcoming := h.parts.Next; upcoming != nil {
		next.NextPartInstance = byPart[upcoming.ID]
	}

	h.update(next)
	h.scheduleAt(now, boundaries)
}

// update notifies next unless every list matches the current value when
// playback timestamps are disregarded.
func (h *PieceInstancesHandler) update(next *SelectedPieceInstances) {
	prev, ok := h.Data()
	if ok && prev != nil {
		same := true
		if cmp.Equal(prev.Active, next.Active, ignorePlaybackTimestamps) {
			next.Active = prev.Active
		} else {
			same = false
		}
		if cmp.Equal(prev.CurrentPartInstance, next.CurrentPartInstance, ignorePlaybackTimestamps) {
			next.CurrentPartInstance = prev.CurrentPartInstance
		} else {
			same = false
		}
		if cmp.Equal(prev.NextPartInstance, next.NextPartInstance, ignorePlaybackTimestamps) {
			next.NextPartInstance = prev.NextPartInstance
		} else {
			same = false
		}
		if same {
			return
		}
	}
	h.Notify(next)
}

// scheduleAt arranges a recompute at the earliest of the given times.
func (h *PieceInstancesHandler) scheduleAt(now int64, times []int64) {
	var at int64
	for _, t := range times {
		if t > now && (at == 0 || t < at) {
			at = t
		}
	}
	if at == 0 {
		return
	}
	delay := time.Duration(at-now) * time.Millisecond
	h.config.Logger.Tracef("%s: recomputing in %s", h.Name(), delay)
	h.cancelTimer = h.config.Scheduler.AfterFunc(delay, func() {
		h.cancelTimer = nil
		h.recompute()
	})
}

func (h *PieceInstancesHandler) stopTimer() {
	if h.cancelTimer != nil {
		h.cancelTimer()
		h.cancelTimer = nil
	}
}

// partStart is when the part instance started playing, or now if it has
// not yet.
func partStart(pi *livestatus.PartInstance, now int64) int64 {
	if started := pi.StartedPlayback(); started != nil {
		return *started
	}
	return now
}
