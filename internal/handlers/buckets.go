// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers

import (
	"sort"

	"github.com/juju/errors"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/core/upstream"
	"github.com/juju/livestatus/internal/collection"
)

// BucketsHandler mirrors the ad-lib buckets of the studio, ordered by rank.
type BucketsHandler struct {
	*collection.Publication[[]*livestatus.Bucket]
	config Config
}

func newBucketsHandler(config Config) (*BucketsHandler, error) {
	h := &BucketsHandler{config: config}
	var err error
	h.Publication, err = newPublication[[]*livestatus.Bucket](config, "buckets",
		livestatus.CollectionBuckets, livestatus.PublicationBuckets, h.changed)
	return h, errors.Trace(err)
}

func (h *BucketsHandler) init(*Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.SetupSubscription(h.config.StudioID)
	return nil
}

func (h *BucketsHandler) close() {
	h.Close()
}

func (h *BucketsHandler) changed() {
	docs := h.Find(upstream.Selector{"studioId": h.config.StudioID})
	buckets := decodeAll[livestatus.Bucket](h.config.Logger, h.Name(), docs)
	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Rank < buckets[j].Rank })
	notifyChanged(h.Mirror, buckets)
}

// BucketContentHandler mirrors one bucket-scoped collection for every
// bucket of the studio.
type BucketContentHandler[E any] struct {
	*collection.Publication[[]*E]
	config    Config
	bucketIDs []string
	bucketID  func(*E) string
	rank      func(*E) float64
	stops     []func()
}

// BucketAdLibActionsHandler mirrors the ad-lib actions of the buckets.
type BucketAdLibActionsHandler = BucketContentHandler[livestatus.AdLibAction]

// BucketAdLibsHandler mirrors the ad-lib pieces of the buckets.
type BucketAdLibsHandler = BucketContentHandler[livestatus.AdLibPiece]

func newBucketAdLibActionsHandler(config Config) (*BucketAdLibActionsHandler, error) {
	h := &BucketAdLibActionsHandler{
		config:   config,
		bucketID: func(a *livestatus.AdLibAction) string { return a.BucketID },
		rank:     func(*livestatus.AdLibAction) float64 { return 0 },
	}
	var err error
	h.Publication, err = newPublication[[]*livestatus.AdLibAction](config, "bucketAdLibActions",
		livestatus.CollectionBucketAdLibActions, livestatus.PublicationBucketAdLibActions, h.changed)
	return h, errors.Trace(err)
}

func newBucketAdLibsHandler(config Config) (*BucketAdLibsHandler, error) {
	h := &BucketAdLibsHandler{
		config:   config,
		bucketID: func(p *livestatus.AdLibPiece) string { return p.BucketID },
		rank:     func(p *livestatus.AdLibPiece) float64 { return p.Rank },
	}
	var err error
	h.Publication, err = newPublication[[]*livestatus.AdLibPiece](config, "bucketAdLibs",
		livestatus.CollectionBucketAdLibPieces, livestatus.PublicationBucketAdLibPieces, h.changed)
	return h, errors.Trace(err)
}

func (h *BucketContentHandler[E]) init(handlers *Handlers) error {
	if err := checkCollection(h.Publication); err != nil {
		return errors.Trace(err)
	}
	h.stops = append(h.stops, handlers.Buckets.Subscribe(h.onBucketsUpdate))
	return nil
}

func (h *BucketContentHandler[E]) close() {
	stopAll(h.stops)
	h.Close()
}

func (h *BucketContentHandler[E]) onBucketsUpdate(buckets []*livestatus.Bucket) {
	ids := make([]string, len(buckets))
	for i, b := range buckets {
		ids[i] = b.ID
	}
	h.bucketIDs = ids
	if len(ids) == 0 {
		h.StopSubscription()
		notifyChanged(h.Mirror, nil)
		return
	}
	params := []any{h.config.StudioID, ids}
	if h.Subscribed() && sameParams(params, h.Params()) {
		// Only the bucket order changed.
		if !h.Pending() {
			h.changed()
		}
		return
	}
	h.SetupSubscription(params...)
}

func (h *BucketContentHandler[E]) changed() {
	if len(h.bucketIDs) == 0 {
		notifyChanged(h.Mirror, nil)
		return
	}
	docs := h.Find(upstream.Selector{
		"studioId": h.config.StudioID,
		"bucketId": upstream.InStrings(h.bucketIDs),
	})
	items := decodeAll[E](h.config.Logger, h.Name(), docs)
	rundownOrder(items, h.bucketIDs, h.bucketID, h.rank)
	notifyChanged(h.Mirror, items)
}
