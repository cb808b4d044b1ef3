// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
)

// BucketsTopic is the name of the buckets topic.
const BucketsTopic = "buckets"

// BucketsStatus is the frame sent on the buckets topic.
type BucketsStatus struct {
	Event   string         `json:"event"`
	Buckets []BucketStatus `json:"buckets"`
}

// BucketStatus describes a bucket and its ad-libs.
type BucketStatus struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	AdLibs []AdLibStatus `json:"adLibs"`
}

type bucketsTopic struct {
	*topic
	buckets   []*livestatus.Bucket
	actions   []*livestatus.AdLibAction
	pieces    []*livestatus.AdLibPiece
	showStyle *livestatus.ShowStyleBase
}

func newBucketsTopic(config Config, sources Sources) *bucketsTopic {
	t := &bucketsTopic{}
	t.topic = newTopic(BucketsTopic, config, t.buildStatus)
	observe(t.topic, sources.Buckets, func(buckets []*livestatus.Bucket) {
		t.buckets = buckets
		t.SendStatusToAll()
	})
	observe(t.topic, sources.BucketAdLibActions, func(actions []*livestatus.AdLibAction) {
		t.actions = actions
		t.SendStatusToAll()
	})
	observe(t.topic, sources.BucketAdLibs, func(pieces []*livestatus.AdLibPiece) {
		t.pieces = pieces
		t.SendStatusToAll()
	})
	observe(t.topic, sources.ShowStyleBase, func(base *livestatus.ShowStyleBase) {
		t.showStyle = base
		t.SendStatusToAll()
	}, collection.Fields("SourceLayers", "OutputLayers")...)
	return t
}

func (t *bucketsTopic) buildStatus() (any, bool) {
	actions := make(map[string][]*livestatus.AdLibAction)
	for _, a := range t.actions {
		actions[a.BucketID] = append(actions[a.BucketID], a)
	}
	pieces := make(map[string][]*livestatus.AdLibPiece)
	for _, p := range t.pieces {
		pieces[p.BucketID] = append(pieces[p.BucketID], p)
	}
	status := BucketsStatus{
		Event:   BucketsTopic,
		Buckets: make([]BucketStatus, 0, len(t.buckets)),
	}
	for _, b := range t.buckets {
		status.Buckets = append(status.Buckets, BucketStatus{
			ID:     b.ID,
			Name:   b.Name,
			AdLibs: adLibStatuses(t.showStyle, actions[b.ID], pieces[b.ID]),
		})
	}
	return status, true
}
