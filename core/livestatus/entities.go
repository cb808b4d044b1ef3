// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package livestatus

// Studio is the root of the mirrored hierarchy.
type Studio struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// SelectedPartInstance points a playlist at one of its part instances.
type SelectedPartInstance struct {
	PartInstanceID   string `json:"partInstanceId"`
	RundownID        string `json:"rundownId"`
	ManuallySelected bool   `json:"manuallySelected,omitempty"`
}

// PlaylistTimingType is the timing mode of a playlist.
type PlaylistTimingType string

const (
	PlaylistTimingNone     PlaylistTimingType = "none"
	PlaylistTimingForward  PlaylistTimingType = "forward-time"
	PlaylistTimingBackTime PlaylistTimingType = "back-time"
)

// PlaylistTiming is the planned timing of a playlist.
type PlaylistTiming struct {
	Type             PlaylistTimingType `json:"type"`
	ExpectedStart    *int64             `json:"expectedStart,omitempty"`
	ExpectedDuration *int64             `json:"expectedDuration,omitempty"`
	ExpectedEnd      *int64             `json:"expectedEnd,omitempty"`
}

// Playlist is a rundown playlist. It is on air iff ActivationID is set.
type Playlist struct {
	ID                string                `json:"_id"`
	ExternalID        string                `json:"externalId"`
	StudioID          string                `json:"studioId"`
	Name              string                `json:"name"`
	ActivationID      string                `json:"activationId,omitempty"`
	Rehearsal         bool                  `json:"rehearsal,omitempty"`
	RundownIDsInOrder []string              `json:"rundownIdsInOrder"`
	CurrentPartInfo   *SelectedPartInstance `json:"currentPartInfo,omitempty"`
	NextPartInfo      *SelectedPartInstance `json:"nextPartInfo,omitempty"`
	PreviousPartInfo  *SelectedPartInstance `json:"previousPartInfo,omitempty"`
	StartedPlayback   *int64                `json:"startedPlayback,omitempty"`
	Timing            PlaylistTiming        `json:"timing"`
	PublicData        any                   `json:"publicData,omitempty"`
}

// IsActive reports whether the playlist is on air.
func (p *Playlist) IsActive() bool {
	return p != nil && p.ActivationID != ""
}

// CurrentRundownID is the rundown of the current part instance, falling
// back to the next one when nothing has been taken yet.
func (p *Playlist) CurrentRundownID() string {
	if p == nil {
		return ""
	}
	if p.CurrentPartInfo != nil && p.CurrentPartInfo.RundownID != "" {
		return p.CurrentPartInfo.RundownID
	}
	if p.NextPartInfo != nil {
		return p.NextPartInfo.RundownID
	}
	return ""
}

// Rundown belongs to a playlist.
type Rundown struct {
	ID              string `json:"_id"`
	PlaylistID      string `json:"playlistId"`
	ExternalID      string `json:"externalId"`
	Name            string `json:"name"`
	ShowStyleBaseID string `json:"showStyleBaseId"`
	PublicData      any    `json:"publicData,omitempty"`
}

// SegmentTiming carries the budget of a segment.
type SegmentTiming struct {
	BudgetDuration *int64 `json:"budgetDuration,omitempty"`
	CountdownType  string `json:"countdownType,omitempty"`
}

// Segment belongs to a rundown.
type Segment struct {
	ID            string         `json:"_id"`
	RundownID     string         `json:"rundownId"`
	ExternalID    string         `json:"externalId"`
	Name          string         `json:"name"`
	Rank          float64        `json:"_rank"`
	IsHidden      bool           `json:"isHidden,omitempty"`
	Identifier    string         `json:"identifier,omitempty"`
	SegmentTiming *SegmentTiming `json:"segmentTiming,omitempty"`
	PublicData    any            `json:"publicData,omitempty"`
}

// Part belongs to a segment.
type Part struct {
	ID                             string  `json:"_id"`
	RundownID                      string  `json:"rundownId"`
	SegmentID                      string  `json:"segmentId"`
	ExternalID                     string  `json:"externalId"`
	Title                          string  `json:"title"`
	Rank                           float64 `json:"_rank"`
	AutoNext                       bool    `json:"autoNext,omitempty"`
	Invalid                        bool    `json:"invalid,omitempty"`
	Floated                        bool    `json:"floated,omitempty"`
	Untimed                        bool    `json:"untimed,omitempty"`
	ExpectedDuration               *int64  `json:"expectedDuration,omitempty"`
	ExpectedDurationWithTransition *int64  `json:"expectedDurationWithTransition,omitempty"`
	PublicData                     any     `json:"publicData,omitempty"`
}

// PlannedDuration is the expected duration including transition, falling
// back to the bare expected duration.
func (p *Part) PlannedDuration() int64 {
	if p == nil {
		return 0
	}
	if p.ExpectedDurationWithTransition != nil {
		return *p.ExpectedDurationWithTransition
	}
	if p.ExpectedDuration != nil {
		return *p.ExpectedDuration
	}
	return 0
}

// PartInstanceTimings holds the playout timestamps of a part instance, in
// milliseconds since the epoch.
type PartInstanceTimings struct {
	Take                    *int64 `json:"take,omitempty"`
	PlannedStartedPlayback  *int64 `json:"plannedStartedPlayback,omitempty"`
	ReportedStartedPlayback *int64 `json:"reportedStartedPlayback,omitempty"`
	PlannedStoppedPlayback  *int64 `json:"plannedStoppedPlayback,omitempty"`
	ReportedStoppedPlayback *int64 `json:"reportedStoppedPlayback,omitempty"`
}

// PartInstance is a playout instance of a part.
type PartInstance struct {
	ID                   string              `json:"_id"`
	RundownID            string              `json:"rundownId"`
	SegmentID            string              `json:"segmentId"`
	PlaylistActivationID string              `json:"playlistActivationId"`
	SegmentPlayoutID     string              `json:"segmentPlayoutId"`
	TakeCount            int64               `json:"takeCount"`
	Reset                bool                `json:"reset,omitempty"`
	Orphaned             string              `json:"orphaned,omitempty"`
	Part                 Part                `json:"part"`
	Timings              PartInstanceTimings `json:"timings"`
}

// StartedPlayback is the planned start, falling back to the reported one.
func (pi *PartInstance) StartedPlayback() *int64 {
	if pi == nil {
		return nil
	}
	if pi.Timings.PlannedStartedPlayback != nil {
		return pi.Timings.PlannedStartedPlayback
	}
	return pi.Timings.ReportedStartedPlayback
}

// PieceLifespan describes how long a piece outlives its part.
type PieceLifespan string

const (
	LifespanWithinPart       PieceLifespan = "part-only"
	LifespanOutOnSegmentEnd  PieceLifespan = "segment-change"
	LifespanOutOnRundownEnd  PieceLifespan = "rundown-change"
	LifespanOutOnShowStyle   PieceLifespan = "showstyle-end"
	LifespanSegmentUntilNext PieceLifespan = "segment-last"
	LifespanRundownUntilNext PieceLifespan = "rundown-last"
)

// PieceStart is the in-part start of a piece: an offset in milliseconds, or
// "now" for pieces inserted while the part is playing.
type PieceStart struct {
	Now    bool
	Offset int64
}

// PieceEnable positions a piece within its part.
type PieceEnable struct {
	Start    PieceStart `json:"start"`
	Duration *int64     `json:"duration,omitempty"`
}

// Piece is the blueprint-generated content of a piece instance.
type Piece struct {
	ID            string        `json:"_id"`
	ExternalID    string        `json:"externalId"`
	Name          string        `json:"name"`
	SourceLayerID string        `json:"sourceLayerId"`
	OutputLayerID string        `json:"outputLayerId"`
	Enable        PieceEnable   `json:"enable"`
	Lifespan      PieceLifespan `json:"lifespan"`
	Virtual       bool          `json:"virtual,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	PublicData    any           `json:"publicData,omitempty"`
}

// PieceUserDuration is an operator override of a piece's end.
type PieceUserDuration struct {
	EndRelativeToPart *int64 `json:"endRelativeToPart,omitempty"`
}

// PieceInstance is a playout instance of a piece.
type PieceInstance struct {
	ID                      string             `json:"_id"`
	RundownID               string             `json:"rundownId"`
	PartInstanceID          string             `json:"partInstanceId"`
	PlaylistActivationID    string             `json:"playlistActivationId"`
	Piece                   Piece              `json:"piece"`
	Disabled                bool               `json:"disabled,omitempty"`
	DynamicallyInserted     *int64             `json:"dynamicallyInserted,omitempty"`
	AdLibSourceID           string             `json:"adLibSourceId,omitempty"`
	UserDuration            *PieceUserDuration `json:"userDuration,omitempty"`
	PlannedStartedPlayback  *int64             `json:"plannedStartedPlayback,omitempty"`
	PlannedStoppedPlayback  *int64             `json:"plannedStoppedPlayback,omitempty"`
	ReportedStartedPlayback *int64             `json:"reportedStartedPlayback,omitempty"`
	ReportedStoppedPlayback *int64             `json:"reportedStoppedPlayback,omitempty"`
}

// SourceLayer describes a source layer of a show style.
type SourceLayer struct {
	ID             string  `json:"_id"`
	Name           string  `json:"name"`
	Abbreviation   string  `json:"abbreviation,omitempty"`
	Rank           float64 `json:"_rank"`
	Type           int     `json:"type"`
	ExclusiveGroup string  `json:"exclusiveGroup,omitempty"`
	IsHidden       bool    `json:"isHidden,omitempty"`
}

// OutputLayer describes an output layer of a show style.
type OutputLayer struct {
	ID        string  `json:"_id"`
	Name      string  `json:"name"`
	Rank      float64 `json:"_rank"`
	IsPGM     bool    `json:"isPGM,omitempty"`
	IsDefault bool    `json:"isDefaultCollapsed,omitempty"`
}

// ShowStyleBase supplies layer metadata referenced by pieces and ad-libs.
type ShowStyleBase struct {
	ID           string                 `json:"_id"`
	Name         string                 `json:"name"`
	SourceLayers map[string]SourceLayer `json:"sourceLayers"`
	OutputLayers map[string]OutputLayer `json:"outputLayers"`
}

// SourceLayerName returns the display name of a source layer, or the id if
// it is unknown.
func (s *ShowStyleBase) SourceLayerName(id string) string {
	if s != nil {
		if l, ok := s.SourceLayers[id]; ok && l.Name != "" {
			return l.Name
		}
	}
	return id
}

// OutputLayerName returns the display name of an output layer, or the id
// if it is unknown.
func (s *ShowStyleBase) OutputLayerName(id string) string {
	if s != nil {
		if l, ok := s.OutputLayers[id]; ok && l.Name != "" {
			return l.Name
		}
	}
	return id
}

// AdLibActionDisplay is the presentation of an ad-lib action.
type AdLibActionDisplay struct {
	Label         any      `json:"label"`
	SourceLayerID string   `json:"sourceLayerId"`
	OutputLayerID string   `json:"outputLayerId"`
	Tags          []string `json:"tags,omitempty"`
}

// AdLibActionTriggerMode is one variant of an ad-lib action.
type AdLibActionTriggerMode struct {
	Data    string `json:"data"`
	Display struct {
		Label any `json:"label"`
	} `json:"display"`
}

// AdLibAction is a blueprint action available to the operator. Rundown
// baseline (global) and bucket actions share this shape.
type AdLibAction struct {
	ID           string                   `json:"_id"`
	RundownID    string                   `json:"rundownId,omitempty"`
	PartID       string                   `json:"partId,omitempty"`
	BucketID     string                   `json:"bucketId,omitempty"`
	StudioID     string                   `json:"studioId,omitempty"`
	ExternalID   string                   `json:"externalId"`
	ActionID     string                   `json:"actionId"`
	Display      AdLibActionDisplay       `json:"display"`
	TriggerModes []AdLibActionTriggerMode `json:"triggerModes,omitempty"`
	PublicData   any                      `json:"publicData,omitempty"`
}

// AdLibPiece is a piece available for ad-lib. Rundown baseline (global) and
// bucket pieces share this shape.
type AdLibPiece struct {
	ID            string   `json:"_id"`
	RundownID     string   `json:"rundownId,omitempty"`
	PartID        string   `json:"partId,omitempty"`
	BucketID      string   `json:"bucketId,omitempty"`
	StudioID      string   `json:"studioId,omitempty"`
	ExternalID    string   `json:"externalId"`
	Name          string   `json:"name"`
	Rank          float64  `json:"_rank"`
	SourceLayerID string   `json:"sourceLayerId"`
	OutputLayerID string   `json:"outputLayerId"`
	Tags          []string `json:"tags,omitempty"`
	PublicData    any      `json:"publicData,omitempty"`
}

// Bucket groups ad-libs at studio level.
type Bucket struct {
	ID       string  `json:"_id"`
	StudioID string  `json:"studioId"`
	Name     string  `json:"name"`
	Rank     float64 `json:"_rank"`
}

// ContentStatus is the package status of a piece's media.
type ContentStatus struct {
	Status       int    `json:"status"`
	PackageName  string `json:"packageName,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	PreviewURL   string `json:"previewUrl,omitempty"`
}

// PieceContentStatus is the media status of a piece, ad-lib or piece
// instance in a playlist.
type PieceContentStatus struct {
	ID              string        `json:"_id"`
	RundownID       string        `json:"rundownId"`
	SegmentID       string        `json:"segmentId,omitempty"`
	PartID          string        `json:"partId,omitempty"`
	PieceID         string        `json:"pieceId"`
	IsPieceInstance bool          `json:"isPieceInstance,omitempty"`
	Name            any           `json:"name"`
	SegmentRank     float64       `json:"segmentRank"`
	PartRank        float64       `json:"partRank"`
	Status          ContentStatus `json:"status"`
}
