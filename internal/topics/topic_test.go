// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package topics

import (
	"context"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	"go.uber.org/mock/gomock"
	gc "gopkg.in/check.v1"

	"github.com/juju/livestatus/core/livestatus"
	"github.com/juju/livestatus/internal/collection"
	"github.com/juju/livestatus/internal/eventloop"
	"github.com/juju/livestatus/internal/handlers"
)

// mirrors stand in for the handlers.
type mirrors struct {
	studio               *collection.Mirror[*livestatus.Studio]
	playlist             *collection.Mirror[*livestatus.Playlist]
	playlists            *collection.Mirror[[]*livestatus.Playlist]
	showStyleBase        *collection.Mirror[*livestatus.ShowStyleBase]
	segment              *collection.Mirror[*livestatus.Segment]
	segments             *collection.Mirror[[]*livestatus.Segment]
	parts                *collection.Mirror[[]*livestatus.Part]
	partInstances        *collection.Mirror[*handlers.SelectedPartInstances]
	pieceInstances       *collection.Mirror[*handlers.SelectedPieceInstances]
	adLibActions         *collection.Mirror[[]*livestatus.AdLibAction]
	adLibs               *collection.Mirror[[]*livestatus.AdLibPiece]
	globalAdLibActions   *collection.Mirror[[]*livestatus.AdLibAction]
	globalAdLibs         *collection.Mirror[[]*livestatus.AdLibPiece]
	buckets              *collection.Mirror[[]*livestatus.Bucket]
	bucketAdLibActions   *collection.Mirror[[]*livestatus.AdLibAction]
	bucketAdLibs         *collection.Mirror[[]*livestatus.AdLibPiece]
	pieceContentStatuses *collection.Mirror[[]*livestatus.PieceContentStatus]
}

func newMirrors() mirrors {
	return mirrors{
		studio:               collection.NewMirror[*livestatus.Studio]("studio"),
		playlist:             collection.NewMirror[*livestatus.Playlist]("playlist"),
		playlists:            collection.NewMirror[[]*livestatus.Playlist]("playlists"),
		showStyleBase:        collection.NewMirror[*livestatus.ShowStyleBase]("showStyleBase"),
		segment:              collection.NewMirror[*livestatus.Segment]("segment"),
		segments:             collection.NewMirror[[]*livestatus.Segment]("segments"),
		parts:                collection.NewMirror[[]*livestatus.Part]("parts"),
		partInstances:        collection.NewMirror[*handlers.SelectedPartInstances]("partInstances"),
		pieceInstances:       collection.NewMirror[*handlers.SelectedPieceInstances]("pieceInstances"),
		adLibActions:         collection.NewMirror[[]*livestatus.AdLibAction]("adLibActions"),
		adLibs:               collection.NewMirror[[]*livestatus.AdLibPiece]("adLibs"),
		globalAdLibActions:   collection.NewMirror[[]*livestatus.AdLibAction]("globalAdLibActions"),
		globalAdLibs:         collection.NewMirror[[]*livestatus.AdLibPiece]("globalAdLibs"),
		buckets:              collection.NewMirror[[]*livestatus.Bucket]("buckets"),
		bucketAdLibActions:   collection.NewMirror[[]*livestatus.AdLibAction]("bucketAdLibActions"),
		bucketAdLibs:         collection.NewMirror[[]*livestatus.AdLibPiece]("bucketAdLibs"),
		pieceContentStatuses: collection.NewMirror[[]*livestatus.PieceContentStatus]("pieceContentStatuses"),
	}
}

func (m mirrors) sources() Sources {
	return Sources{
		Studio:               m.studio,
		Playlist:             m.playlist,
		Playlists:            m.playlists,
		ShowStyleBase:        m.showStyleBase,
		Segment:              m.segment,
		Segments:             m.segments,
		Parts:                m.parts,
		PartInstances:        m.partInstances,
		PieceInstances:       m.pieceInstances,
		AdLibActions:         m.adLibActions,
		AdLibs:               m.adLibs,
		GlobalAdLibActions:   m.globalAdLibActions,
		GlobalAdLibs:         m.globalAdLibs,
		Buckets:              m.buckets,
		BucketAdLibActions:   m.bucketAdLibActions,
		BucketAdLibs:         m.bucketAdLibs,
		PieceContentStatuses: m.pieceContentStatuses,
	}
}

type fixture struct {
	clock   *testclock.Clock
	loop    *eventloop.Loop
	src     mirrors
	ctrl    *gomock.Controller
	metrics *MockMetrics
	topics  *Topics
}

type TopicSuite struct {
	fixture
}

var _ = gc.Suite(&TopicSuite{})

func (s *fixture) SetUpTest(c *gc.C) {
	s.clock = testclock.NewClock(time.UnixMilli(1_700_000_000_000))
	loop, err := eventloop.New(eventloop.Config{
		Clock:  s.clock,
		Logger: loggo.GetLogger("test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	s.loop = loop
	s.src = newMirrors()
	s.topics = nil
}

func (s *fixture) TearDownTest(c *gc.C) {
	if s.topics != nil {
		s.call(c, s.topics.Close)
	}
	workertest.CleanKill(c, s.loop)
}

func (s *fixture) setupMocks(c *gc.C) *gomock.Controller {
	s.ctrl = gomock.NewController(c)
	s.metrics = NewMockMetrics(s.ctrl)
	s.metrics.EXPECT().Broadcast(gomock.Any(), gomock.Any()).AnyTimes()
	return s.ctrl
}

func (s *fixture) config() Config {
	return Config{
		Scheduler: s.loop,
		Logger:    loggo.GetLogger("test"),
		Metrics:   s.metrics,
	}
}

func (s *fixture) newTopics(c *gc.C) {
	var err error
	s.call(c, func() {
		s.topics, err = New(s.config(), s.src.sources())
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *fixture) call(c *gc.C, fn func()) {
	err := s.loop.Call(context.Background(), fn)
	c.Assert(err, jc.ErrorIsNil)
}

// settle lets anything the last call posted run.
func (s *fixture) settle(c *gc.C) {
	for i := 0; i < 3; i++ {
		s.call(c, func() {})
	}
}

// subscriber returns a subscriber whose frames are delivered on the
// returned channel.
func (s *fixture) subscriber(id string) (*MockSubscriber, <-chan []byte) {
	sub := NewMockSubscriber(s.ctrl)
	frames := make(chan []byte, 100)
	sub.EXPECT().ID().Return(id).AnyTimes()
	sub.EXPECT().Send(gomock.Any()).DoAndReturn(func(frame []byte) error {
		frames <- frame
		return nil
	}).AnyTimes()
	return sub, frames
}

func (s *fixture) addSubscriber(c *gc.C, name string, sub Subscriber) {
	s.call(c, func() {
		t, err := s.topics.Get(name)
		c.Assert(err, jc.ErrorIsNil)
		t.AddSubscriber(sub)
	})
}

// firstStatus subscribes to the named topic and decodes the status it is
// sent into out.
func (s *fixture) firstStatus(c *gc.C, name string, out any) {
	sub, frames := s.subscriber("conn-1")
	s.addSubscriber(c, name, sub)
	decodeFrame(c, frames, out)
}

func decodeFrame(c *gc.C, frames <-chan []byte, out any) {
	select {
	case frame := <-frames:
		c.Assert(json.Unmarshal(frame, out), jc.ErrorIsNil)
	case <-time.After(testing.LongWait):
		c.Fatalf("timed out waiting for frame")
	}
}

func assertNoFrame(c *gc.C, frames <-chan []byte) {
	select {
	case frame := <-frames:
		c.Fatalf("unexpected frame %s", frame)
	case <-time.After(testing.ShortWait):
	}
}

func (s *TopicSuite) TestConfigValidate(c *gc.C) {
	config := s.config()
	config.Scheduler = nil
	c.Check(config.Validate(), gc.ErrorMatches, "nil Scheduler not valid")

	config = s.config()
	config.Logger = nil
	c.Check(config.Validate(), gc.ErrorMatches, "nil Logger not valid")

	config = s.config()
	config.Throttle = -time.Second
	c.Check(config.Validate(), gc.ErrorMatches, "negative Throttle not valid")
}

func (s *TopicSuite) TestSourcesValidate(c *gc.C) {
	sources := s.src.sources()
	c.Check(sources.Validate(), jc.ErrorIsNil)

	sources.PieceInstances = nil
	_, err := New(s.config(), sources)
	c.Check(err, jc.ErrorIs, errors.NotValid)
	c.Check(err, gc.ErrorMatches, "nil PieceInstances source not valid")
}

func (s *TopicSuite) TestGet(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)

	c.Check(s.topics.Names(), jc.DeepEquals, []string{
		ActivePiecesTopic, ActivePlaylistTopic, AdLibsTopic, BucketsTopic,
		PackagesTopic, SegmentsTopic, StudioTopic,
	})
	t, err := s.topics.Get(SegmentsTopic)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(t.Name(), gc.Equals, SegmentsTopic)

	_, err = s.topics.Get("unknown")
	c.Check(err, jc.ErrorIs, errors.NotFound)
	c.Check(err, gc.ErrorMatches, `topic "unknown" not found`)
}

func (s *TopicSuite) TestAddSubscriberSendsCurrentStatus(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)
	s.call(c, func() {
		s.src.studio.Notify(&livestatus.Studio{ID: "studio0", Name: "Studio"})
	})
	s.settle(c)

	var status map[string]any
	s.firstStatus(c, StudioTopic, &status)
	c.Check(status, jc.DeepEquals, map[string]any{
		"event":     "studio",
		"id":        "studio0",
		"name":      "Studio",
		"playlists": []any{},
	})
}

func studioName(c *gc.C, frames <-chan []byte) string {
	var status StudioStatus
	decodeFrame(c, frames, &status)
	return status.Name
}

func (s *TopicSuite) TestBroadcastsAreThrottled(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)
	rename := func(name string) {
		s.src.studio.Notify(&livestatus.Studio{ID: "studio0", Name: name})
	}
	s.call(c, func() { rename("One") })
	s.settle(c)
	sub, frames := s.subscriber("conn-1")
	s.addSubscriber(c, StudioTopic, sub)
	c.Check(studioName(c, frames), gc.Equals, "One")

	// Within the interval of the last broadcast: held back and merged.
	s.call(c, func() {
		rename("Two")
		rename("Three")
	})
	s.settle(c)
	assertNoFrame(c, frames)
	s.clock.Advance(DefaultThrottle)
	c.Check(studioName(c, frames), gc.Equals, "Three")
	s.settle(c)
	assertNoFrame(c, frames)

	// After a quiet period: sent straight away.
	s.clock.Advance(time.Second)
	s.call(c, func() { rename("Four") })
	c.Check(studioName(c, frames), gc.Equals, "Four")
}

func (s *TopicSuite) TestRemoveSubscriber(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)
	sub1, frames1 := s.subscriber("conn-1")
	sub2, frames2 := s.subscriber("conn-2")
	for _, name := range []string{StudioTopic, SegmentsTopic} {
		s.addSubscriber(c, name, sub1)
		s.addSubscriber(c, name, sub2)
	}
	for i := 0; i < 2; i++ {
		decodeFrame(c, frames1, &map[string]any{})
		decodeFrame(c, frames2, &map[string]any{})
	}

	s.call(c, func() {
		s.topics.RemoveSubscriber(sub1)
		for _, name := range []string{StudioTopic, SegmentsTopic} {
			t, err := s.topics.Get(name)
			c.Assert(err, jc.ErrorIsNil)
			c.Check(t.HasSubscriber(sub1), jc.IsFalse)
			c.Check(t.HasSubscriber(sub2), jc.IsTrue)
			c.Check(t.SubscriberCount(), gc.Equals, 1)
		}
		s.src.studio.Notify(&livestatus.Studio{ID: "studio0", Name: "Renamed"})
	})
	s.clock.Advance(time.Second)
	c.Check(studioName(c, frames2), gc.Equals, "Renamed")
	s.settle(c)
	assertNoFrame(c, frames1)
}

func (s *TopicSuite) TestSendFailureDoesNotStopBroadcast(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)

	broken := NewMockSubscriber(s.ctrl)
	broken.EXPECT().ID().Return("conn-1").AnyTimes()
	broken.EXPECT().Send(gomock.Any()).Return(errors.New("queue full")).Times(2)
	sub, frames := s.subscriber("conn-2")
	s.addSubscriber(c, StudioTopic, broken)
	s.addSubscriber(c, StudioTopic, sub)
	c.Check(studioName(c, frames), gc.Equals, "")

	s.clock.Advance(time.Second)
	s.call(c, func() {
		s.src.studio.Notify(&livestatus.Studio{ID: "studio0", Name: "Studio"})
	})
	c.Check(studioName(c, frames), gc.Equals, "Studio")
}

func (s *TopicSuite) TestReport(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)
	sub, _ := s.subscriber("conn-1")
	s.addSubscriber(c, PackagesTopic, sub)

	var report map[string]any
	s.call(c, func() { report = s.topics.Report() })
	c.Check(report, gc.HasLen, 7)
	c.Check(report[PackagesTopic], jc.DeepEquals, map[string]any{
		"subscribers": 1,
		"throttled":   false,
	})
}

func (s *TopicSuite) TestCloseStopsObserving(c *gc.C) {
	defer s.setupMocks(c).Finish()
	s.newTopics(c)
	c.Check(s.src.playlist.ObserverCount(), gc.Equals, 5)
	c.Check(s.src.pieceInstances.ObserverCount(), gc.Equals, 2)

	s.call(c, s.topics.Close)
	c.Check(s.src.playlist.ObserverCount(), gc.Equals, 0)
	c.Check(s.src.pieceInstances.ObserverCount(), gc.Equals, 0)
	c.Check(s.src.studio.ObserverCount(), gc.Equals, 0)
}
