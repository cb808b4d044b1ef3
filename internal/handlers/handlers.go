// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package handlers mirrors the parts of the upstream state the gateway
// reports on. Each handler owns at most one upstream subscription, learns
// its subscription parameters from the handlers it depends on, and derives
// the value it publishes to its own observers.
//
// All handler methods must be called from the gateway's event loop.
package handlers

import (
	"reflect"
	"sort"
	"time"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/throttle"
)

// Logger is the logging interface used by the handlers.
type Logger interface {
	Criticalf(string, ...any)
	Errorf(string, ...any)
	Warningf(string, ...any)
	Infof(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// Config holds the dependencies shared by every handler.
type Config struct {
	// StudioID is the studio whose state is mirrored.
	StudioID string

	Link      upstream.Link
	Scheduler throttle.Scheduler
	Logger    Logger
	// Metrics is optional.
	Metrics collection.Metrics

	// Throttle is the minimum interval between recomputations caused by
	// document events. Zero means collection.DefaultThrottle.
	Throttle time.Duration
}

// Validate returns an error if the config cannot be used.
func (config Config) Validate() error {
	if config.StudioID == "" {
		return errors.NotValidf("empty StudioID")
	}
	if config.Link == nil {
		return errors.NotValidf("nil Link")
	}
	if config.Scheduler == nil {
		return errors.NotValidf("nil Scheduler")
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	if config.Throttle < 0 {
		return errors.NotValidf("negative Throttle")
	}
	return nil
}

type handler interface {
	init(*Handlers) error
	close()
}

type resubscriber interface {
	Resubscribe()
}

type reporter interface {
	Name() string
	Report() map[string]any
}

// Handlers is the set of handlers making up the dependency graph.
type Handlers struct {
	Studio               *StudioHandler
	Playlist             *PlaylistHandler
	Playlists            *PlaylistsHandler
	Rundowns             *RundownsHandler
	Rundown              *RundownHandler
	ShowStyleBase        *ShowStyleBaseHandler
	Segments             *SegmentsHandler
	Segment              *SegmentHandler
	Parts                *PartsHandler
	Part                 *PartHandler
	PartInstances        *PartInstancesHandler
	PieceInstances       *PieceInstancesHandler
	AdLibActions         *AdLibActionsHandler
	AdLibs               *AdLibsHandler
	GlobalAdLibActions   *AdLibActionsHandler
	GlobalAdLibs         *AdLibsHandler
	Buckets              *BucketsHandler
	BucketAdLibActions   *BucketAdLibActionsHandler
	BucketAdLibs         *BucketAdLibsHandler
	PieceContentStatuses *PieceContentStatusesHandler

	config Config
	// ordered lists the handlers roots first.
	ordered []handler
}

// New creates every handler. None of them subscribes to anything until
// Init is called.
func New(config Config) (*Handlers, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	h := &Handlers{config: config}

	var err error
	if h.Studio, err = newStudioHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.Playlist, h.Playlists, err = newPlaylistHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.Rundowns, err = newRundownsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	h.Rundown = newRundownHandler(config)
	if h.ShowStyleBase, err = newShowStyleBaseHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.Segments, err = newSegmentsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.Parts, err = newPartsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.PartInstances, err = newPartInstancesHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	h.Segment = newSegmentHandler(config)
	h.Part = newPartHandler(config)
	if h.PieceInstances, err = newPieceInstancesHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.AdLibActions, err = newAdLibActionsHandler(config, "adLibActions",
		livestatus.CollectionAdLibActions, livestatus.PublicationAdLibActions); err != nil {
		return nil, errors.Trace(err)
	}
	if h.AdLibs, err = newAdLibsHandler(config, "adLibs",
		livestatus.CollectionAdLibPieces, livestatus.PublicationAdLibPieces); err != nil {
		return nil, errors.Trace(err)
	}
	if h.GlobalAdLibActions, err = newAdLibActionsHandler(config, "globalAdLibActions",
		livestatus.CollectionRundownBaselineAdLibActions, livestatus.PublicationRundownBaselineAdLibActions); err != nil {
		return nil, errors.Trace(err)
	}
	if h.GlobalAdLibs, err = newAdLibsHandler(config, "globalAdLibs",
		livestatus.CollectionRundownBaselineAdLibPieces, livestatus.PublicationRundownBaselineAdLibPieces); err != nil {
		return nil, errors.Trace(err)
	}
	if h.Buckets, err = newBucketsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.BucketAdLibActions, err = newBucketAdLibActionsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.BucketAdLibs, err = newBucketAdLibsHandler(config); err != nil {
		return nil, errors.Trace(err)
	}
	if h.PieceContentStatuses, err = newPieceContentStatusesHandler(config); err != nil {
		return nil, errors.Trace(err)
	}

	h.ordered = []handler{
		h.Studio,
		h.Playlist,
		h.Playlists,
		h.Rundowns,
		h.Rundown,
		h.ShowStyleBase,
		h.Segments,
		h.Parts,
		h.PartInstances,
		h.Segment,
		h.Part,
		h.PieceInstances,
		h.AdLibActions,
		h.AdLibs,
		h.GlobalAdLibActions,
		h.GlobalAdLibs,
		h.Buckets,
		h.BucketAdLibActions,
		h.BucketAdLibs,
		h.PieceContentStatuses,
	}
	return h, nil
}

// Init wires every handler to the handlers it depends on and starts the
// root subscriptions. An error means a handler's collection is not
// available from the link, and the gateway cannot run.
func (h *Handlers) Init() error {
	for _, hd := range h.ordered {
		if err := hd.init(h); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Close stops every subscription, leaves first.
func (h *Handlers) Close() {
	for i := len(h.ordered) - 1; i >= 0; i-- {
		h.ordered[i].close()
	}
}

// Resubscribe repeats every active subscription. It is called once the
// upstream session has been re-established, since the upstream system
// forgets subscriptions along with the session.
func (h *Handlers) Resubscribe() {
	for _, hd := range h.ordered {
		if r, ok := hd.(resubscriber); ok {
			r.Resubscribe()
		}
	}
}

// Report returns the state of every subscribed handler, keyed by name.
func (h *Handlers) Report() map[string]any {
	out := make(map[string]any)
	for _, hd := range h.ordered {
		if r, ok := hd.(reporter); ok {
			out[r.Name()] = r.Report()
		}
	}
	return out
}

func newPublication[T any](config Config, name, coll, pub string, changed func()) (*collection.Publication[T], error) {
	p, err := collection.NewPublication[T](collection.PublicationConfig{
		Name:        name,
		Collection:  coll,
		Publication: pub,
		Link:        config.Link,
		Scheduler:   config.Scheduler,
		Logger:      config.Logger,
		Metrics:     config.Metrics,
		Throttle:    config.Throttle,
		Changed:     changed,
	})
	return p, errors.Trace(err)
}

// checkCollection fails when the publication's collection is not mirrored
// by the link.
func checkCollection[T any](p *collection.Publication[T]) error {
	_, err := p.CollectionOrFail()
	return errors.Trace(err)
}

// notifyChanged notifies next unless it is structurally equal to the
// current value, so observers comparing by identity are not disturbed by
// documents that were re-read but did not change.
func notifyChanged[T any](m *collection.Mirror[T], next T) bool {
	if prev, ok := m.Data(); ok && reflect.DeepEqual(prev, next) {
		return false
	}
	m.Notify(next)
	return true
}

// reuse returns prev if it is structurally equal to next.
func reuse[T any](prev, next *T) *T {
	if prev != nil && next != nil && reflect.DeepEqual(prev, next) {
		return prev
	}
	return next
}

func decodeAll[T any](logger Logger, name string, docs []upstream.Document) []*T {
	out, errs := livestatus.DecodeAll[T](docs)
	for _, err := range errs {
		logger.Warningf("%s: skipping document: %v", name, err)
	}
	return out
}

func decodeOne[T any](logger Logger, name string, doc upstream.Document, ok bool) *T {
	if !ok {
		return nil
	}
	v, err := livestatus.Decode[T](doc)
	if err != nil {
		logger.Warningf("%s: skipping document: %v", name, err)
		return nil
	}
	return v
}

// rundownOrder sorts rundown-scoped values by the position of their
// rundown in the playlist, then by rank.
func rundownOrder[T any](values []*T, rundownIDs []string, rundownID func(*T) string, rank func(*T) float64) {
	index := make(map[string]int, len(rundownIDs))
	for i, id := range rundownIDs {
		index[id] = i
	}
	sort.SliceStable(values, func(i, j int) bool {
		ri, rj := index[rundownID(values[i])], index[rundownID(values[j])]
		if ri != rj {
			return ri < rj
		}
		return rank(values[i]) < rank(values[j])
	})
}

func sameParams(a, b []any) bool {
	return reflect.DeepEqual(a, b)
}

// stopAll calls every stop function once.
func stopAll(stops []func()) {
	for _, stop := range stops {
		stop()
	}
}
