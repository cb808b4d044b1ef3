// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package pieces resolves the playout windows of piece instances and
// decides which of them are on air at a given time.
package pieces

import (
	"sort"

	"github.com/juju/livestatus/core/livestatus"
)

// Resolved is a piece instance with its absolute playout window, in
// milliseconds since the epoch. A nil Duration means the window is open
// ended.
type Resolved struct {
	Instance *livestatus.PieceInstance
	Start    int64
	Duration *int64
}

// End returns the end of the window, and false if it is open ended.
func (r Resolved) End() (int64, bool) {
	if r.Duration == nil {
		return 0, false
	}
	return r.Start + *r.Duration, true
}

// ActiveAt reports whether the piece is playing at now. The window is
// half-open: a piece is no longer active at exactly Start+Duration.
func (r Resolved) ActiveAt(now int64) bool {
	if r.Instance == nil || r.Instance.Disabled || r.Instance.Piece.Virtual {
		return false
	}
	if r.Start > now {
		return false
	}
	end, ok := r.End()
	return !ok || end > now
}

// ProcessAndPrune resolves the windows of the piece instances of one part
// instance whose playback started, or is planned to start, at partStart.
//
// Within an exclusivity group (the source layer's exclusive group, or the
// layer itself) a piece is cut short by the next piece to start. Pieces
// sharing a start time keep only the last listed one; the others are pruned
// to an empty window. Instances are returned ordered by start, then in
// their original order.
func ProcessAndPrune(
	layers map[string]livestatus.SourceLayer,
	instances []*livestatus.PieceInstance,
	partStart int64,
	now int64,
) []Resolved {
	resolved := make([]Resolved, 0, len(instances))
	for _, pi := range instances {
		if pi == nil {
			continue
		}
		resolved = append(resolved, resolve(pi, partStart, now))
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Start < resolved[j].Start
	})

	// Last seen piece per exclusivity group.
	last := make(map[string]int)
	for i := range resolved {
		group := exclusivityGroup(layers, resolved[i].Instance)
		if prev, ok := last[group]; ok {
			capDuration(&resolved[prev], resolved[i].Start)
		}
		last[group] = i
	}
	return resolved
}

// Active returns the instances among resolved that are playing at now.
func Active(resolved []Resolved, now int64) []*livestatus.PieceInstance {
	var out []*livestatus.PieceInstance
	for _, r := range resolved {
		if r.ActiveAt(now) {
			out = append(out, r.Instance)
		}
	}
	return out
}

// NextBoundary returns the earliest window start or end strictly after
// now, and false if there is none.
func NextBoundary(resolved []Resolved, now int64) (int64, bool) {
	var next int64
	var found bool
	consider := func(t int64) {
		if t > now && (!found || t < next) {
			next = t
			found = true
		}
	}
	for _, r := range resolved {
		consider(r.Start)
		if end, ok := r.End(); ok {
			consider(end)
		}
	}
	return next, found
}

func resolve(pi *livestatus.PieceInstance, partStart, now int64) Resolved {
	var start int64
	enable := pi.Piece.Enable
	if enable.Start.Now {
		switch {
		case pi.PlannedStartedPlayback != nil:
			start = *pi.PlannedStartedPlayback
		case pi.ReportedStartedPlayback != nil:
			start = *pi.ReportedStartedPlayback
		default:
			start = now
		}
	} else {
		start = partStart + enable.Start.Offset
	}

	r := Resolved{Instance: pi, Start: start}
	switch {
	case pi.UserDuration != nil && pi.UserDuration.EndRelativeToPart != nil:
		r.Duration = nonNegative(partStart + *pi.UserDuration.EndRelativeToPart - start)
	case enable.Duration != nil:
		r.Duration = nonNegative(*enable.Duration)
	}
	if pi.PlannedStoppedPlayback != nil {
		capDuration(&r, *pi.PlannedStoppedPlayback)
	}
	return r
}

// capDuration ends r no later than end.
func capDuration(r *Resolved, end int64) {
	if current, ok := r.End(); ok && current <= end {
		return
	}
	r.Duration = nonNegative(end - r.Start)
}

func nonNegative(d int64) *int64 {
	if d < 0 {
		d = 0
	}
	return &d
}

func exclusivityGroup(layers map[string]livestatus.SourceLayer, pi *livestatus.PieceInstance) string {
	layerID := pi.Piece.SourceLayerID
	if layer, ok := layers[layerID]; ok && layer.ExclusiveGroup != "" {
		return "group:" + layer.ExclusiveGroup
	}
	return "layer:" + layerID
}
