// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/collections/set"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// SegmentsTopic is the name of the segments topic.
const SegmentsTopic = "segments"

// SegmentsStatus is the frame sent on the segments topic.
type SegmentsStatus struct {
	Event             string          `json:"event"`
	RundownPlaylistID *string         `json:"rundownPlaylistId"`
	Segments          []SegmentStatus `json:"segments"`
}

// SegmentStatus describes a visible segment of the playlist.
type SegmentStatus struct {
	ID         string        `json:"id"`
	RundownID  string        `json:"rundownId"`
	Name       string        `json:"name"`
	Identifier string        `json:"identifier,omitempty"`
	Timing     SegmentTiming `json:"timing"`
	PublicData any           `json:"publicData,omitempty"`
}

// SegmentTiming is in milliseconds.
type SegmentTiming struct {
	ExpectedDurationMs int64  `json:"expectedDurationMs"`
	BudgetDurationMs   *int64 `json:"budgetDurationMs,omitempty"`
	CountdownType      string `json:"countdownType,omitempty"`
}

type segmentsTopic struct {
	*topic
	playlist *livestatus.Playlist
	segments []*livestatus.Segment
	parts    []*livestatus.Part
}

func newSegmentsTopic(config Config, sources Sources) *segmentsTopic {
	t := &segmentsTopic{}
	t.topic = newTopic(SegmentsTopic, config, t.buildStatus)
	observe(t.topic, sources.Playlist, t.onPlaylistUpdate,
		collection.Field("ID"), collection.DeepField("RundownIDsInOrder"))
	observe(t.topic, sources.Segments, t.onSegmentsUpdate)
	observe(t.topic, sources.Parts, t.onPartsUpdate)
	return t
}

func (t *segmentsTopic) onPlaylistUpdate(playlist *livestatus.Playlist) {
	t.playlist = playlist
	t.SendStatusToAll()
}

func (t *segmentsTopic) onSegmentsUpdate(segments []*livestatus.Segment) {
	t.segments = segments
	t.SendStatusToAll()
}

func (t *segmentsTopic) onPartsUpdate(parts []*livestatus.Part) {
	t.parts = parts
	t.SendStatusToAll()
}

func (t *segmentsTopic) buildStatus() (any, bool) {
	status := SegmentsStatus{
		Event:    SegmentsTopic,
		Segments: []SegmentStatus{},
	}
	if t.playlist == nil {
		return status, true
	}
	if !t.inPlaylist() {
		return nil, false
	}
	status.RundownPlaylistID = &t.playlist.ID

	durations := make(map[string]int64)
	for _, p := range t.parts {
		if !p.Untimed {
			durations[p.SegmentID] += p.PlannedDuration()
		}
	}
	for _, s := range t.segments {
		if s.IsHidden {
			continue
		}
		segment := SegmentStatus{
			ID:         s.ID,
			RundownID:  s.RundownID,
			Name:       s.Name,
			Identifier: s.Identifier,
			Timing: SegmentTiming{
				ExpectedDurationMs: durations[s.ID],
			},
			PublicData: s.PublicData,
		}
		if st := s.SegmentTiming; st != nil {
			segment.Timing.BudgetDurationMs = st.BudgetDuration
			segment.Timing.CountdownType = st.CountdownType
		}
		status.Segments = append(status.Segments, segment)
	}
	return status, true
}

// inPlaylist reports whether every segment and part belongs to one of the
// playlist's rundowns. Both lists lag behind a playlist change until their
// new subscriptions are ready.
func (t *segmentsTopic) inPlaylist() bool {
	rundowns := set.NewStrings(t.playlist.RundownIDsInOrder...)
	for _, s := range t.segments {
		if !rundowns.Contains(s.RundownID) {
			return false
		}
	}
	for _, p := range t.parts {
		if !rundowns.Contains(p.RundownID) {
			return false
		}
	}
	return true
}
