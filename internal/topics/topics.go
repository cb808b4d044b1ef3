// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"sort"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/handlers"
)

// Sources are the handler values the topics report on.
type Sources struct {
	Studio               Source[*livestatus.Studio]
	Playlist             Source[*livestatus.Playlist]
	Playlists            Source[[]*livestatus.Playlist]
	ShowStyleBase        Source[*livestatus.ShowStyleBase]
	Segment              Source[*livestatus.Segment]
	Segments             Source[[]*livestatus.Segment]
	Parts                Source[[]*livestatus.Part]
	PartInstances        Source[*handlers.SelectedPartInstances]
	PieceInstances       Source[*handlers.SelectedPieceInstances]
	AdLibActions         Source[[]*livestatus.AdLibAction]
	AdLibs               Source[[]*livestatus.AdLibPiece]
	GlobalAdLibActions   Source[[]*livestatus.AdLibAction]
	GlobalAdLibs         Source[[]*livestatus.AdLibPiece]
	Buckets              Source[[]*livestatus.Bucket]
	BucketAdLibActions   Source[[]*livestatus.AdLibAction]
	BucketAdLibs         Source[[]*livestatus.AdLibPiece]
	PieceContentStatuses Source[[]*livestatus.PieceContentStatus]
}

// SourcesFrom returns the sources backed by h.
func SourcesFrom(h *handlers.Handlers) Sources {
	return Sources{
		Studio:               h.Studio,
		Playlist:             h.Playlist,
		Playlists:            h.Playlists,
		ShowStyleBase:        h.ShowStyleBase,
		Segment:              h.Segment,
		Segments:             h.Segments,
		Parts:                h.Parts,
		PartInstances:        h.PartInstances,
		PieceInstances:       h.PieceInstances,
		AdLibActions:         h.AdLibActions,
		AdLibs:               h.AdLibs,
		GlobalAdLibActions:   h.GlobalAdLibActions,
		GlobalAdLibs:         h.GlobalAdLibs,
		Buckets:              h.Buckets,
		BucketAdLibActions:   h.BucketAdLibActions,
		BucketAdLibs:         h.BucketAdLibs,
		PieceContentStatuses: h.PieceContentStatuses,
	}
}

// Validate returns an error if any source is missing.
func (s Sources) Validate() error {
	for name, src := range map[string]any{
		"Studio":               s.Studio,
		"Playlist":             s.Playlist,
		"Playlists":            s.Playlists,
		"ShowStyleBase":        s.ShowStyleBase,
		"Segment":              s.Segment,
		"Segments":             s.Segments,
		"Parts":                s.Parts,
		"PartInstances":        s.PartInstances,
		"PieceInstances":       s.PieceInstances,
		"AdLibActions":         s.AdLibActions,
		"AdLibs":               s.AdLibs,
		"GlobalAdLibActions":   s.GlobalAdLibActions,
		"GlobalAdLibs":         s.GlobalAdLibs,
		"Buckets":              s.Buckets,
		"BucketAdLibActions":   s.BucketAdLibActions,
		"BucketAdLibs":         s.BucketAdLibs,
		"PieceContentStatuses": s.PieceContentStatuses,
	} {
		if src == nil {
			return errors.NotValidf("nil %s source", name)
		}
	}
	return nil
}

// Topics is the set of topics clients can subscribe to.
type Topics struct {
	byName map[string]*topic
}

// New creates every topic and starts observing the sources.
func New(config Config, sources Sources) (*Topics, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := sources.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	t := &Topics{byName: make(map[string]*topic)}
	for _, tp := range []*topic{
		newStudioTopic(config, sources).topic,
		newActivePlaylistTopic(config, sources).topic,
		newActivePiecesTopic(config, sources).topic,
		newSegmentsTopic(config, sources).topic,
		newAdLibsTopic(config, sources).topic,
		newBucketsTopic(config, sources).topic,
		newPackagesTopic(config, sources).topic,
	} {
		t.byName[tp.name] = tp
	}
	return t, nil
}

// Get returns the named topic.
func (t *Topics) Get(name string) (Topic, error) {
	tp, ok := t.byName[name]
	if !ok {
		return nil, errors.NotFoundf("topic %q", name)
	}
	return tp, nil
}

// Names returns the topic names in order.
func (t *Topics) Names() []string {
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemoveSubscriber removes s from every topic.
func (t *Topics) RemoveSubscriber(s Subscriber) {
	for _, tp := range t.byName {
		tp.RemoveSubscriber(s)
	}
}

// Report returns the subscriber count and broadcast state of each topic.
func (t *Topics) Report() map[string]any {
	out := make(map[string]any, len(t.byName))
	for name, tp := range t.byName {
		out[name] = map[string]any{
			"subscribers": tp.SubscriberCount(),
			"throttled":   tp.Throttled(),
		}
	}
	return out
}

// Close stops observing the sources and cancels pending broadcasts.
func (t *Topics) Close() {
	for _, tp := range t.byName {
		tp.close()
	}
}
