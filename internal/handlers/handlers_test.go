// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package handlers_test

import (
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/handlers"
	"github.com/juju/livestatus/internal/upstream/upstreamtest"
)

type HandlersSuite struct {
	fixture
}

var _ = gc.Suite(&HandlersSuite{})

func (s *HandlersSuite) TestValidate(c *gc.C) {
	_, err := handlers.New(handlers.Config{
		Link:      s.link,
		Scheduler: s.loop,
		Logger:    loggo.GetLogger("test"),
	})
	c.Check(err, jc.Satisfies, errors.IsNotValid)
	c.Check(err, gc.ErrorMatches, "empty StudioID not valid")
}

func (s *HandlersSuite) TestInitFailsWithoutCollection(c *gc.C) {
	var names []string
	for _, name := range livestatus.AllCollections {
		if name != livestatus.CollectionPieceContentStatuses {
			names = append(names, name)
		}
	}
	s.link = upstreamtest.NewLink(names...)
	s.handlers = s.newHandlers(c)

	var err error
	s.call(c, func() { err = s.handlers.Init() })
	c.Check(err, jc.Satisfies, errors.IsNotFound)
	c.Check(err, gc.ErrorMatches, `pieceContentStatuses: collection "uiPieceContentStatuses" not available: .*`)
}

func (s *HandlersSuite) TestRootSubscriptions(c *gc.C) {
	s.start(c)

	for _, pub := range []string{
		livestatus.PublicationStudios,
		livestatus.PublicationRundownPlaylists,
		livestatus.PublicationBuckets,
	} {
		calls := s.link.CallsFor(pub)
		c.Assert(calls, gc.HasLen, 1, gc.Commentf(pub))
		c.Check(calls[0].Params, jc.DeepEquals, []any{studioID})
	}
	// Nothing depends on a playlist yet.
	c.Check(s.link.CallsFor(livestatus.PublicationSegments), gc.HasLen, 0)
	c.Check(s.link.CallsFor(livestatus.PublicationPartInstancesSimple), gc.HasLen, 0)
}

func (s *HandlersSuite) TestStudio(c *gc.C) {
	s.link.MustAdd(c, livestatus.CollectionStudios, studioID, map[string]any{"name": "Studio A"})
	s.start(c)

	s.call(c, func() {
		studio, ok := s.handlers.Studio.Data()
		c.Assert(ok, jc.IsTrue)
		c.Assert(studio, gc.NotNil)
		c.Check(studio.Name, gc.Equals, "Studio A")
	})
}

func (s *HandlersSuite) TestActivationSubscribesPartInstancesOnce(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.start(c)

	c.Check(s.link.CallsFor(livestatus.PublicationPartInstancesSimple), gc.HasLen, 0)
	segments := s.link.CallsFor(livestatus.PublicationSegments)
	c.Assert(segments, gc.HasLen, 1)
	c.Check(segments[0].Params, jc.DeepEquals, []any{[]string{"R1", "R2"}})

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"activationId": "X",
		"nextPartInfo": selected("pi1", "R1"),
	})
	s.waitIdle(c)

	partInstances := s.link.CallsFor(livestatus.PublicationPartInstancesSimple)
	c.Assert(partInstances, gc.HasLen, 1)
	c.Check(partInstances[0].Params, jc.DeepEquals, []any{[]string{"R1", "R2"}, "X"})
	c.Check(s.link.CallsFor(livestatus.PublicationSegments), gc.HasLen, 1)
	c.Check(s.link.CallsFor(livestatus.PublicationParts), gc.HasLen, 1)
}

func (s *HandlersSuite) TestUnrelatedPlaylistChangeDoesNotResubscribe(c *gc.C) {
	s.addPlaylist(c, "P1", map[string]any{
		"activationId":    "X",
		"currentPartInfo": selected("pi1", "R1"),
	})
	s.start(c)
	before := len(s.link.Calls())

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"name":       "Renamed",
		"publicData": map[string]any{"a": 1},
	})
	s.waitIdle(c)

	c.Check(s.link.Calls(), gc.HasLen, before)
	c.Check(s.link.Unsubscribed(), gc.HasLen, 0)
	s.call(c, func() {
		playlist, _ := s.handlers.Playlist.Data()
		c.Check(playlist.Name, gc.Equals, "Renamed")
	})
}

func (s *HandlersSuite) TestRundownOrderChangeResubscribes(c *gc.C) {
	s.addPlaylist(c, "P1", map[string]any{"activationId": "X"})
	s.start(c)

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"rundownIdsInOrder": []any{"R2", "R1", "R3"},
	})
	s.waitIdle(c)

	segments := s.link.CallsFor(livestatus.PublicationSegments)
	c.Assert(segments, gc.HasLen, 2)
	c.Check(segments[1].Params, jc.DeepEquals, []any{[]string{"R2", "R1", "R3"}})
	c.Check(s.link.CallsFor(livestatus.PublicationPartInstancesSimple), gc.HasLen, 2)
	// The playlist itself is unchanged, so its rundowns are too.
	c.Check(s.link.CallsFor(livestatus.PublicationRundownsInPlaylists), gc.HasLen, 1)
}

func (s *HandlersSuite) TestDeactivationStopsSubscription(c *gc.C) {
	s.addPlaylist(c, "P1", map[string]any{"activationId": "X"})
	s.start(c)
	c.Assert(s.link.CallsFor(livestatus.PublicationPartInstancesSimple), gc.HasLen, 1)

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", nil, "activationId")
	s.waitIdle(c)

	for _, call := range s.link.Active() {
		c.Check(call.Publication, gc.Not(gc.Equals), livestatus.PublicationPartInstancesSimple)
		c.Check(call.Publication, gc.Not(gc.Equals), livestatus.PublicationPieceInstancesSimple)
	}
	s.call(c, func() {
		selection, ok := s.handlers.PartInstances.Data()
		c.Assert(ok, jc.IsTrue)
		c.Check(selection.Current, gc.IsNil)
	})
}

func (s *HandlersSuite) TestPlaylistSelection(c *gc.C) {
	s.addPlaylist(c, "P2", nil)
	s.addPlaylist(c, "P1", nil)
	s.start(c)

	current := func() string {
		var id string
		s.call(c, func() {
			if p, _ := s.handlers.Playlist.Data(); p != nil {
				id = p.ID
			}
		})
		return id
	}
	c.Check(current(), gc.Equals, "P1")

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P2", map[string]any{"activationId": "X"})
	s.waitIdle(c)
	c.Check(current(), gc.Equals, "P2")

	// Deactivating keeps the last selection.
	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P2", nil, "activationId")
	s.waitIdle(c)
	c.Check(current(), gc.Equals, "P2")

	s.call(c, func() {
		playlists, _ := s.handlers.Playlists.Data()
		c.Check(playlists, gc.HasLen, 2)
	})
}

func (s *HandlersSuite) TestSubscriptionFailureStillNotifies(c *gc.C) {
	s.link.FailPublication(livestatus.PublicationSegments, upstreamtest.ErrRejected)
	s.addPlaylist(c, "P1", nil)
	s.start(c)

	s.call(c, func() {
		segments, ok := s.handlers.Segments.Data()
		c.Check(ok, jc.IsTrue)
		c.Check(segments, gc.HasLen, 0)
	})
}

func (s *HandlersSuite) TestSegmentsOrdered(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.link.MustAdd(c, livestatus.CollectionSegments, "a", map[string]any{"rundownId": "R2", "_rank": 0})
	s.link.MustAdd(c, livestatus.CollectionSegments, "b", map[string]any{"rundownId": "R1", "_rank": 2})
	s.link.MustAdd(c, livestatus.CollectionSegments, "c", map[string]any{"rundownId": "R1", "_rank": 1})
	s.link.MustAdd(c, livestatus.CollectionSegments, "d", map[string]any{"rundownId": "R9", "_rank": 0})
	s.start(c)

	s.call(c, func() {
		segments, _ := s.handlers.Segments.Data()
		var ids []string
		for _, seg := range segments {
			ids = append(ids, seg.ID)
		}
		c.Check(ids, jc.DeepEquals, []string{"c", "b", "a"})
	})
}

func (s *HandlersSuite) TestRundownContentFollowsCurrentRundown(c *gc.C) {
	s.addPlaylist(c, "P1", map[string]any{
		"activationId": "X",
		"nextPartInfo": selected("pi1", "R2"),
	})
	s.link.MustAdd(c, livestatus.CollectionAdLibPieces, "a1", map[string]any{"rundownId": "R1", "name": "one", "_rank": 1})
	s.link.MustAdd(c, livestatus.CollectionAdLibPieces, "a2", map[string]any{"rundownId": "R2", "name": "two", "_rank": 2})
	s.link.MustAdd(c, livestatus.CollectionAdLibPieces, "a3", map[string]any{"rundownId": "R2", "name": "three", "_rank": 0})
	s.start(c)

	adlibIDs := func() []string {
		var ids []string
		s.call(c, func() {
			adlibs, _ := s.handlers.AdLibs.Data()
			for _, a := range adlibs {
				ids = append(ids, a.ID)
			}
		})
		return ids
	}
	calls := s.link.CallsFor(livestatus.PublicationAdLibPieces)
	c.Assert(calls, gc.HasLen, 1)
	c.Check(calls[0].Params, jc.DeepEquals, []any{[]string{"R2"}})
	c.Check(adlibIDs(), jc.DeepEquals, []string{"a3", "a2"})

	// Taking the next part keeps the rundown.
	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"currentPartInfo": selected("pi1", "R2"),
		"nextPartInfo":    selected("pi2", "R1"),
	})
	s.waitIdle(c)
	c.Check(s.link.CallsFor(livestatus.PublicationAdLibPieces), gc.HasLen, 1)

	s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"currentPartInfo": selected("pi2", "R1"),
	})
	s.waitIdle(c)
	c.Check(s.link.CallsFor(livestatus.PublicationAdLibPieces), gc.HasLen, 2)
	c.Check(adlibIDs(), jc.DeepEquals, []string{"a1"})
}

func (s *HandlersSuite) TestRundownContentEmptyBeforeAnyPart(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.start(c)

	c.Check(s.link.CallsFor(livestatus.PublicationAdLibPieces), gc.HasLen, 0)
	s.call(c, func() {
		adlibs, ok := s.handlers.AdLibs.Data()
		c.Check(ok, jc.IsTrue)
		c.Check(adlibs, gc.HasLen, 0)
		actions, ok := s.handlers.AdLibActions.Data()
		c.Check(ok, jc.IsTrue)
		c.Check(actions, gc.HasLen, 0)
	})
}

func (s *HandlersSuite) TestRundownOrderChangeWaitsForPendingSubscription(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.link.MustAdd(c, livestatus.CollectionRundowns, "R1", map[string]any{"playlistId": "P1", "name": "One"})
	s.link.MustAdd(c, livestatus.CollectionRundowns, "R2", map[string]any{"playlistId": "P1", "name": "Two"})
	s.start(c)

	rundownIDs := func() []string {
		rundowns, _ := s.handlers.Rundowns.Data()
		ids := make([]string, len(rundowns))
		for i, r := range rundowns {
			ids[i] = r.ID
		}
		return ids
	}
	var notified int
	s.call(c, func() {
		c.Check(rundownIDs(), jc.DeepEquals, []string{"R1", "R2"})
		s.handlers.Rundowns.Subscribe(func([]*livestatus.Rundown) { notified++ })
	})
	c.Assert(notified, gc.Equals, 1)

	// The rundowns subscription is being re-established when the order
	// changes.
	s.link.Hold()
	s.call(c, func() {
		s.handlers.Rundowns.SetupSubscription(s.handlers.Rundowns.Params()...)
	})
	s.call(c, func() {
		s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
			"rundownIdsInOrder": []any{"R2", "R1"},
		})
	})
	s.advanceUntil(c, "playlist order", func() bool {
		playlist, _ := s.handlers.Playlist.Data()
		return playlist != nil && len(playlist.RundownIDsInOrder) == 2 && playlist.RundownIDsInOrder[0] == "R2"
	})
	s.call(c, func() {
		c.Check(s.handlers.Rundowns.Pending(), jc.IsTrue)
		c.Check(notified, gc.Equals, 1)
		c.Check(rundownIDs(), jc.DeepEquals, []string{"R1", "R2"})
	})

	s.link.Resume()
	s.waitIdle(c)
	s.call(c, func() {
		c.Check(notified, gc.Equals, 2)
		c.Check(rundownIDs(), jc.DeepEquals, []string{"R2", "R1"})
	})
}

func (s *HandlersSuite) TestBucketContent(c *gc.C) {
	s.link.MustAdd(c, livestatus.CollectionBuckets, "b2", map[string]any{"studioId": studioID, "name": "two", "_rank": 2})
	s.link.MustAdd(c, livestatus.CollectionBuckets, "b1", map[string]any{"studioId": studioID, "name": "one", "_rank": 1})
	s.link.MustAdd(c, livestatus.CollectionBucketAdLibPieces, "x", map[string]any{"studioId": studioID, "bucketId": "b2", "_rank": 0})
	s.link.MustAdd(c, livestatus.CollectionBucketAdLibPieces, "y", map[string]any{"studioId": studioID, "bucketId": "b1", "_rank": 5})
	s.start(c)

	calls := s.link.CallsFor(livestatus.PublicationBucketAdLibPieces)
	c.Assert(calls, gc.HasLen, 1)
	c.Check(calls[0].Params, jc.DeepEquals, []any{studioID, []string{"b1", "b2"}})

	s.call(c, func() {
		adlibs, _ := s.handlers.BucketAdLibs.Data()
		c.Assert(adlibs, gc.HasLen, 2)
		c.Check(adlibs[0].ID, gc.Equals, "y")
		c.Check(adlibs[1].ID, gc.Equals, "x")
	})
}

func (s *HandlersSuite) TestResubscribeRepeatsActiveSubscriptions(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.start(c)
	before := len(s.link.Calls())
	active := len(s.link.Active())

	s.call(c, s.handlers.Resubscribe)
	s.waitIdle(c)

	c.Check(s.link.Calls(), gc.HasLen, before+active)
	c.Check(s.link.Active(), gc.HasLen, active)
}

func (s *HandlersSuite) TestThrottledRecompute(c *gc.C) {
	s.addPlaylist(c, "P1", nil)
	s.start(c)

	var notified int
	s.call(c, func() {
		s.handlers.Segments.Subscribe(func([]*livestatus.Segment) { notified++ })
	})
	c.Assert(notified, gc.Equals, 1)

	s.call(c, func() {
		s.link.MustAdd(c, livestatus.CollectionSegments, "a", map[string]any{"rundownId": "R1"})
		s.link.MustAdd(c, livestatus.CollectionSegments, "b", map[string]any{"rundownId": "R1"})
	})
	s.waitIdle(c)
	c.Check(notified, gc.Equals, 2)

	// Outside the window each change is delivered.
	s.clock.Advance(time.Second)
	s.link.MustChange(c, livestatus.CollectionSegments, "a", map[string]any{"name": "A"})
	s.waitIdle(c)
	c.Check(notified, gc.Equals, 3)
}
