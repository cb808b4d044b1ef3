// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"reflect"
	"sort"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// SelectedPartInstances is the part instance selection of the playlist.
// Fields that did not change between two notifications keep their
// identity, so observers can compare them by reference.
type SelectedPartInstances struct {
	Previous *livestatus.PartInstance
	Current  *livestatus.PartInstance
	Next     *livestatus.PartInstance

	// FirstInSegmentPlayout is the instance with the lowest take count in
	// the current segment playout.
	FirstInSegmentPlayout *livestatus.PartInstance

	// InCurrentSegment holds every instance of the current segment
	// playout, in take order.
	InCurrentSegment []*livestatus.PartInstance
}

// PartInstancesHandler mirrors the part instances of the active playlist.
// The subscription only follows the playlist's rundowns and activation;
// moving the selection within them recomputes from the mirror.
type PartInstancesHandler struct {
	*collection.Publication[*SelectedPartInstances]
	config   Config
	playlist *livestatus.Playlist
	stops    []func()
}

func newPartInstancesHandler(config Config) (*PartInstancesHandler, error) {
	h := &PartInstancesHandler{config: config}
	var err error
	h.Publication, err = newPublication[*SelectedPartInstances](config, "partInstances",
		livestatus.CollectionPartInstances, livestatus.PublicationPartInstancesSimple, h.changed)
	return h, errors.Trace(err)
}

func (h *PartInstancesHandler) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Playlist.Subscribe(h.onPlaylistUpdate,
		collection.DeepField("RundownIDsInOrder"),
		collection.Field("ActivationID"),
		collection.DeepField("PreviousPartInfo"),
		collection.DeepField("CurrentPartInfo"),
		collection.DeepField("NextPartInfo"),
	))
	return nil
}

func (h *PartInstancesHandler) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *PartInstancesHandler) onPlaylistUpdate(playlist *livestatus.Playlist) {
	h.playlist = playlist
	if !playlist.IsActive() || len(playlist.RundownIDsInOrder) == 0 {
		h.StopSubscription()
		h.update(nil)
		return
	}
	params := []any{playlist.RundownIDsInOrder, playlist.ActivationID}
	if !h.Subscribed() || !sameParams(params, h.Params()) {
		h.SetupSubscription(params...)
		return
	}
	if !h.Pending() {
		h.changed()
	}
}

func (h *PartInstancesHandler) changed() {
	if !h.playlist.IsActive() {
		h.update(nil)
		return
	}
	docs := h.Find(upstream.Selector{
		"rundownId":            upstream.InStrings(h.playlist.RundownIDsInOrder),
		"playlistActivationId": h.playlist.ActivationID,
	})
	all := decodeAll[livestatus.PartInstance](h.config.Logger, h.Name(), docs)
	instances := all[:0]
	for _, pi := range all {
		if !pi.Reset {
			instances = append(instances, pi)
		}
	}
	h.update(instances)
}

// update derives the selection from instances and notifies observers if
// any of its fields changed.
func (h *PartInstancesHandler) update(instances []*livestatus.PartInstance) {
	prev, hasPrev := h.Data()
	if prev == nil {
		prev = &SelectedPartInstances{}
	}

	// Keep the identity of instances that did not change.
	known := make(map[string]*livestatus.PartInstance)
	for _, pi := range append([]*livestatus.PartInstance{prev.Previous, prev.Current, prev.Next, prev.FirstInSegmentPlayout}, prev.InCurrentSegment...) {
		if pi != nil {
			known[pi.ID] = pi
		}
	}
	byID := make(map[string]*livestatus.PartInstance, len(instances))
	for _, pi := range instances {
		byID[pi.ID] = reuse(known[pi.ID], pi)
	}
	lookup := func(info *livestatus.SelectedPartInstance) *livestatus.PartInstance {
		if info == nil || h.playlist == nil {
			return nil
		}
		return byID[info.PartInstanceID]
	}

	next := &SelectedPartInstances{}
	if h.playlist != nil && len(instances) > 0 {
		next.Previous = lookup(h.playlist.PreviousPartInfo)
		next.Current = lookup(h.playlist.CurrentPartInfo)
		next.Next = lookup(h.playlist.NextPartInfo)
	}
	if next.Current != nil && next.Current.SegmentPlayoutID != "" {
		var inSegment []*livestatus.PartInstance
		for _, pi := range instances {
			if pi.SegmentPlayoutID == next.Current.SegmentPlayoutID {
				inSegment = append(inSegment, byID[pi.ID])
			}
		}
		sort.SliceStable(inSegment, func(i, j int) bool {
			return inSegment[i].TakeCount < inSegment[j].TakeCount
		})
		next.InCurrentSegment = inSegment
		next.FirstInSegmentPlayout = inSegment[0]
	}

	dirty := !hasPrev
	if next.Previous != prev.Previous {
		dirty = true
	}
	if next.Current != prev.Current {
		dirty = true
	}
	if next.Next != prev.Next {
		dirty = true
	}
	if next.FirstInSegmentPlayout != prev.FirstInSegmentPlayout {
		dirty = true
	}
	if sameInstances(next.InCurrentSegment, prev.InCurrentSegment) {
		next.InCurrentSegment = prev.InCurrentSegment
	} else {
		dirty = true
	}
	if !dirty {
		return
	}
	h.Notify(next)
}

func sameInstances(a, b []*livestatus.PartInstance) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
