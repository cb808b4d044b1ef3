// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/collections/set"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/handlers"
)

// ActivePlaylistTopic is the name of the active playlist topic.
const ActivePlaylistTopic = "activePlaylist"

// ActivePlaylistStatus is the frame sent on the active playlist topic.
type ActivePlaylistStatus struct {
	Event          string                `json:"event"`
	ID             *string               `json:"id"`
	ExternalID     *string               `json:"externalId"`
	Name           string                `json:"name"`
	RundownIDs     []string              `json:"rundownIds"`
	CurrentPart    *CurrentPartStatus    `json:"currentPart"`
	CurrentSegment *CurrentSegmentStatus `json:"currentSegment"`
	NextPart       *PartStatus           `json:"nextPart"`
	PublicData     any                   `json:"publicData,omitempty"`
	Timing         PlaylistTimingStatus  `json:"timing"`
}

// PartStatus describes a part instance.
type PartStatus struct {
	ID         string `json:"id"`
	SegmentID  string `json:"segmentId"`
	Name       string `json:"name"`
	AutoNext   *bool  `json:"autoNext,omitempty"`
	PublicData any    `json:"publicData,omitempty"`
}

// CurrentPartStatus describes the part instance on air.
type CurrentPartStatus struct {
	PartStatus
	Timing CurrentPartTiming `json:"timing"`
}

// CurrentPartTiming is in milliseconds; times are since the epoch.
type CurrentPartTiming struct {
	StartTime          int64 `json:"startTime"`
	ExpectedDurationMs int64 `json:"expectedDurationMs"`
	ExpectedEnd        int64 `json:"expectedEnd"`
}

// CurrentSegmentStatus describes the segment on air.
type CurrentSegmentStatus struct {
	ID     string               `json:"id"`
	Timing CurrentSegmentTiming `json:"timing"`
}

// CurrentSegmentTiming is in milliseconds; times are since the epoch.
type CurrentSegmentTiming struct {
	ExpectedDurationMs int64  `json:"expectedDurationMs"`
	BudgetDurationMs   *int64 `json:"budgetDurationMs,omitempty"`
	ProjectedEndTime   int64  `json:"projectedEndTime"`
	CountdownType      string `json:"countdownType,omitempty"`
}

// PlaylistTimingStatus is the planned timing of the playlist.
type PlaylistTimingStatus struct {
	TimingMode         string `json:"timingMode"`
	StartedPlayback    *int64 `json:"startedPlayback,omitempty"`
	ExpectedStart      *int64 `json:"expectedStart,omitempty"`
	ExpectedDurationMs *int64 `json:"expectedDurationMs,omitempty"`
	ExpectedEnd        *int64 `json:"expectedEnd,omitempty"`
}

type activePlaylistTopic struct {
	*topic
	playlist *livestatus.Playlist
	parts    *handlers.SelectedPartInstances
	pieces   *handlers.SelectedPieceInstances
	segment  *livestatus.Segment
	allParts []*livestatus.Part
}

func newActivePlaylistTopic(config Config, sources Sources) *activePlaylistTopic {
	t := &activePlaylistTopic{}
	t.topic = newTopic(ActivePlaylistTopic, config, t.buildStatus)
	observe(t.topic, sources.Playlist, t.onPlaylistUpdate)
	observe(t.topic, sources.PartInstances, t.onPartInstancesUpdate,
		collection.Fields("Current", "Next", "FirstInSegmentPlayout", "InCurrentSegment")...)
	observe(t.topic, sources.PieceInstances, t.onPieceInstancesUpdate,
		collection.Field("CurrentPartInstance"))
	observe(t.topic, sources.Segment, t.onSegmentUpdate)
	observe(t.topic, sources.Parts, t.onPartsUpdate)
	return t
}

func (t *activePlaylistTopic) onPlaylistUpdate(playlist *livestatus.Playlist) {
	t.playlist = playlist
	t.SendStatusToAll()
}

func (t *activePlaylistTopic) onPartInstancesUpdate(parts *handlers.SelectedPartInstances) {
	t.parts = parts
	t.SendStatusToAll()
}

func (t *activePlaylistTopic) onPieceInstancesUpdate(pieces *handlers.SelectedPieceInstances) {
	t.pieces = pieces
	t.SendStatusToAll()
}

func (t *activePlaylistTopic) onSegmentUpdate(segment *livestatus.Segment) {
	t.segment = segment
	t.SendStatusToAll()
}

func (t *activePlaylistTopic) onPartsUpdate(parts []*livestatus.Part) {
	t.allParts = parts
	t.SendStatusToAll()
}

func (t *activePlaylistTopic) buildStatus() (any, bool) {
	if !partsAndPiecesAgree(t.parts, t.pieces) || !selectionInActivation(t.playlist, t.parts) {
		return nil, false
	}
	status := ActivePlaylistStatus{
		Event:      ActivePlaylistTopic,
		RundownIDs: []string{},
	}
	p := t.playlist
	if !p.IsActive() {
		return status, true
	}
	status.ID = &p.ID
	status.ExternalID = &p.ExternalID
	status.Name = p.Name
	status.RundownIDs = append(status.RundownIDs, p.RundownIDsInOrder...)
	status.PublicData = p.PublicData
	status.Timing = PlaylistTimingStatus{
		TimingMode:         string(p.Timing.Type),
		StartedPlayback:    p.StartedPlayback,
		ExpectedStart:      p.Timing.ExpectedStart,
		ExpectedDurationMs: p.Timing.ExpectedDuration,
		ExpectedEnd:        p.Timing.ExpectedEnd,
	}
	if status.Timing.TimingMode == "" {
		status.Timing.TimingMode = string(livestatus.PlaylistTimingNone)
	}

	if t.parts == nil {
		return status, true
	}
	if next := t.parts.Next; next != nil {
		part := partStatus(next)
		status.NextPart = &part
	}
	current := t.parts.Current
	if current == nil {
		return status, true
	}
	partTiming := t.currentPartTiming(current)
	status.CurrentPart = &CurrentPartStatus{
		PartStatus: partStatus(current),
		Timing:     partTiming,
	}
	if t.segment != nil && t.segment.ID == current.SegmentID {
		status.CurrentSegment = t.currentSegment(current, partTiming)
	}
	return status, true
}

func partStatus(pi *livestatus.PartInstance) PartStatus {
	status := PartStatus{
		ID:         pi.Part.ID,
		SegmentID:  pi.SegmentID,
		Name:       pi.Part.Title,
		PublicData: pi.Part.PublicData,
	}
	if pi.Part.AutoNext {
		autoNext := true
		status.AutoNext = &autoNext
	}
	return status
}

// currentPartTiming uses the planned duration of the part, unless an
// operator has set the end of one of its pieces.
func (t *activePlaylistTopic) currentPartTiming(current *livestatus.PartInstance) CurrentPartTiming {
	var timing CurrentPartTiming
	if started := current.StartedPlayback(); started != nil {
		timing.StartTime = *started
	}
	timing.ExpectedDurationMs = current.Part.PlannedDuration()
	if t.pieces != nil {
		for _, pi := range t.pieces.CurrentPartInstance {
			if pi.UserDuration != nil && pi.UserDuration.EndRelativeToPart != nil {
				timing.ExpectedDurationMs = *pi.UserDuration.EndRelativeToPart
				break
			}
		}
	}
	timing.ExpectedEnd = timing.StartTime + timing.ExpectedDurationMs
	return timing
}

// currentSegment adds the parts already played in this segment playout to
// the parts still to come after the current one.
func (t *activePlaylistTopic) currentSegment(current *livestatus.PartInstance, partTiming CurrentPartTiming) *CurrentSegmentStatus {
	played := set.NewStrings()
	var expected int64
	for _, pi := range t.parts.InCurrentSegment {
		played.Add(pi.Part.ID)
		if pi == current {
			expected += partTiming.ExpectedDurationMs
			continue
		}
		if pi.Part.Untimed {
			continue
		}
		expected += pi.Part.PlannedDuration()
	}
	var remaining int64
	for _, part := range t.allParts {
		if part.SegmentID != current.SegmentID || part.Rank <= current.Part.Rank {
			continue
		}
		if played.Contains(part.ID) || part.Untimed {
			continue
		}
		remaining += part.PlannedDuration()
	}
	status := &CurrentSegmentStatus{
		ID: t.segment.ID,
		Timing: CurrentSegmentTiming{
			ExpectedDurationMs: expected + remaining,
			ProjectedEndTime:   partTiming.ExpectedEnd + remaining,
		},
	}
	if st := t.segment.SegmentTiming; st != nil {
		status.Timing.BudgetDurationMs = st.BudgetDuration
		status.Timing.CountdownType = st.CountdownType
	}
	return status
}

// partsAndPiecesAgree reports whether the piece instances were computed
// for the current part instance. The two handlers update independently,
// so for a short while after a take they may describe different parts.
func partsAndPiecesAgree(parts *handlers.SelectedPartInstances, pieces *handlers.SelectedPieceInstances) bool {
	if pieces == nil || len(pieces.CurrentPartInstance) == 0 {
		return true
	}
	var current string
	if parts != nil && parts.Current != nil {
		current = parts.Current.ID
	}
	return pieces.CurrentPartInstance[0].PartInstanceID == current
}

// selectionInActivation reports whether the selected part instances belong
// to the playlist's activation. After a reactivation the part instances
// keep the old selection until the new subscription is ready.
func selectionInActivation(playlist *livestatus.Playlist, parts *handlers.SelectedPartInstances) bool {
	if !playlist.IsActive() || parts == nil {
		return true
	}
	for _, pi := range []*livestatus.PartInstance{parts.Current, parts.Next} {
		if pi != nil && pi.PlaylistActivationID != playlist.ActivationID {
			return false
		}
	}
	return true
}
