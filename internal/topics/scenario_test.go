// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"time"

	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/handlers"
	"github.com/juju/livestatus/internal/upstream/upstreamtest"
)

// ScenarioSuite runs the topics against real handlers fed by a fake
// upstream link.
type ScenarioSuite struct {
	fixture
	link     *upstreamtest.Link
	handlers *handlers.Handlers
}

var _ = gc.Suite(&ScenarioSuite{})

func (s *ScenarioSuite) SetUpTest(c *gc.C) {
	s.fixture.SetUpTest(c)
	s.link = upstreamtest.NewLink(livestatus.AllCollections...)
	s.handlers = nil
}

func (s *ScenarioSuite) TearDownTest(c *gc.C) {
	if s.topics != nil {
		s.call(c, s.topics.Close)
		s.topics = nil
	}
	if s.handlers != nil {
		s.call(c, s.handlers.Close)
	}
	s.fixture.TearDownTest(c)
}

func (s *ScenarioSuite) start(c *gc.C) {
	h, err := handlers.New(handlers.Config{
		StudioID:  "studio0",
		Link:      s.link,
		Scheduler: s.loop,
		Logger:    loggo.GetLogger("test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	s.handlers = h
	s.call(c, func() { err = h.Init() })
	c.Assert(err, jc.ErrorIsNil)
	s.newTopicsFrom(c, SourcesFrom(h))
	s.waitIdle(c)
}

func (s *ScenarioSuite) newTopicsFrom(c *gc.C, sources Sources) {
	var err error
	s.call(c, func() { s.topics, err = New(s.config(), sources) })
	c.Assert(err, jc.ErrorIsNil)
}

// waitIdle waits until no subscription is resolving and nothing is
// throttled, moving the clock on while anything is.
func (s *ScenarioSuite) waitIdle(c *gc.C) {
	timeout := time.After(testing.LongWait)
	for {
		s.settle(c)
		var busy bool
		s.call(c, func() {
			for _, r := range s.handlers.Report() {
				report := r.(map[string]any)
				busy = busy || report["pending"].(bool) || report["throttled"].(bool)
			}
			for _, r := range s.topics.Report() {
				busy = busy || r.(map[string]any)["throttled"].(bool)
			}
		})
		if !busy {
			return
		}
		s.clock.Advance(collection.DefaultThrottle)
		select {
		case <-timeout:
			c.Fatalf("handlers and topics did not settle")
		case <-time.After(time.Millisecond):
		}
	}
}

func pieceDoc(name, layer string) map[string]any {
	return map[string]any{
		"_id":           "piece_" + name,
		"name":          name,
		"sourceLayerId": layer,
		"outputLayerId": "pgm",
		"enable":        map[string]any{"start": 0},
		"lifespan":      "part-only",
	}
}

func (s *ScenarioSuite) TestUnrelatedPieceChangesBroadcastOnce(c *gc.C) {
	defer s.setupMocks(c).Finish()
	now := s.clock.Now().UnixMilli()
	s.link.MustAdd(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"studioId":          "studio0",
		"name":              "Evening news",
		"activationId":      "X",
		"rundownIdsInOrder": []any{"R1"},
		"currentPartInfo":   map[string]any{"partInstanceId": "pi1", "rundownId": "R1"},
	})
	s.link.MustAdd(c, livestatus.CollectionPartInstances, "pi1", map[string]any{
		"rundownId":            "R1",
		"segmentId":            "s1",
		"playlistActivationId": "X",
		"segmentPlayoutId":     "sp1",
		"part":                 map[string]any{"_id": "p1", "segmentId": "s1", "title": "One"},
		"timings":              map[string]any{"plannedStartedPlayback": now - 100},
	})
	for id, layer := range map[string]string{"a": "cam", "b": "vt"} {
		s.link.MustAdd(c, livestatus.CollectionPieceInstances, id, map[string]any{
			"rundownId":            "R1",
			"partInstanceId":       "pi1",
			"playlistActivationId": "X",
			"piece":                pieceDoc(id, layer),
		})
	}
	s.start(c)

	sub, frames := s.subscriber("conn-1")
	s.addSubscriber(c, ActivePiecesTopic, sub)
	c.Check(pieceNames(c, frames), jc.DeepEquals, []string{"a", "b"})

	var computed int
	s.call(c, func() {
		s.handlers.PieceInstances.Subscribe(func(*handlers.SelectedPieceInstances) { computed++ })
	})

	s.call(c, func() {
		s.link.MustChange(c, livestatus.CollectionPieceInstances, "a", map[string]any{"piece": pieceDoc("a2", "cam")})
		s.link.MustChange(c, livestatus.CollectionPieceInstances, "b", map[string]any{"piece": pieceDoc("b2", "vt")})
	})
	s.waitIdle(c)

	c.Check(computed, gc.Equals, 2)
	c.Check(pieceNames(c, frames), jc.DeepEquals, []string{"a2", "b2"})
	assertNoFrame(c, frames)
}

func (s *ScenarioSuite) TestSegmentsFollowPlaylistSwitchWithoutMixing(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.metrics.EXPECT().Skipped(gomock.Any()).AnyTimes()
	s.link.MustAdd(c, livestatus.CollectionRundownPlaylists, "P1", map[string]any{
		"studioId":          "studio0",
		"name":              "Evening news",
		"activationId":      "X",
		"rundownIdsInOrder": []any{"R1"},
	})
	s.link.MustAdd(c, livestatus.CollectionRundownPlaylists, "P2", map[string]any{
		"studioId":          "studio0",
		"name":              "Late news",
		"rundownIdsInOrder": []any{"R2"},
	})
	s.link.MustAdd(c, livestatus.CollectionSegments, "s1", map[string]any{"rundownId": "R1", "name": "Headlines", "_rank": 1})
	s.link.MustAdd(c, livestatus.CollectionSegments, "s2", map[string]any{"rundownId": "R2", "name": "Sport", "_rank": 1})
	s.start(c)

	sub, frames := s.subscriber("conn-1")
	s.addSubscriber(c, SegmentsTopic, sub)
	var status SegmentsStatus
	decodeFrame(c, frames, &status)
	c.Check(status.RundownPlaylistID, jc.DeepEquals, ptr("P1"))
	c.Check(status.Segments, gc.HasLen, 1)

	s.link.Hold()
	s.call(c, func() {
		s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P1", nil, "activationId")
		s.link.MustChange(c, livestatus.CollectionRundownPlaylists, "P2", map[string]any{"activationId": "Y"})
	})
	s.waitSegmentsSubscription(c, "R2")

	// The playlist has switched while the segments still belong to P1.
	var (
		playlist *livestatus.Playlist
		segments []*livestatus.Segment
	)
	s.call(c, func() {
		playlist, _ = s.handlers.Playlist.Data()
		segments, _ = s.handlers.Segments.Data()
	})
	c.Assert(playlist, gc.NotNil)
	c.Check(playlist.ID, gc.Equals, "P2")
	c.Assert(segments, gc.HasLen, 1)
	c.Check(segments[0].ID, gc.Equals, "s1")
	s.clock.Advance(DefaultThrottle)
	s.settle(c)
	assertNoFrame(c, frames)

	s.link.Resume()
	s.waitIdle(c)
	status = SegmentsStatus{}
	decodeFrame(c, frames, &status)
	c.Check(status.RundownPlaylistID, jc.DeepEquals, ptr("P2"))
	c.Assert(status.Segments, gc.HasLen, 1)
	c.Check(status.Segments[0].ID, gc.Equals, "s2")
	assertNoFrame(c, frames)
}

// waitSegmentsSubscription moves the clock on until the segments handler
// asks for the given rundown.
func (s *ScenarioSuite) waitSegmentsSubscription(c *gc.C, rundownID string) {
	timeout := time.After(testing.LongWait)
	for {
		s.settle(c)
		for _, call := range s.link.CallsFor(livestatus.PublicationSegments) {
			if ids, ok := call.Params[0].([]string); ok && len(ids) == 1 && ids[0] == rundownID {
				return
			}
		}
		s.clock.Advance(collection.DefaultThrottle)
		select {
		case <-timeout:
			c.Fatalf("segments were never requested for %q", rundownID)
		case <-time.After(time.Millisecond):
		}
	}
}

func pieceNames(c *gc.C, frames <-chan []byte) []string {
	var status ActivePiecesStatus
	decodeFrame(c, frames, &status)
	names := make([]string, len(status.ActivePieces))
	for i, p := range status.ActivePieces {
		names[i] = p.Name
	}
	return names
}
