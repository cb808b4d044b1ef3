// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package collection_test

import (
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/livestatus/internal/collection"
)

type MirrorSuite struct{}

var _ = gc.Suite(&MirrorSuite{})

type info struct {
	ID       string
	Rundowns []string
	Selected *selection
	Count    int
	hidden   string
}

type selection struct {
	Current string
	Next    string
}

func (s *MirrorSuite) TestSubscribeWithoutDataDoesNotCall(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ })
	c.Check(calls, gc.Equals, 0)

	_, ok := m.Data()
	c.Check(ok, jc.IsFalse)
}

func (s *MirrorSuite) TestSubscribeWithDataCallsImmediately(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	data := &info{ID: "a"}
	m.Notify(data)

	var got []*info
	m.Subscribe(func(v *info) { got = append(got, v) }, collection.Field("ID"))
	c.Assert(got, gc.HasLen, 1)
	c.Check(got[0], gc.Equals, data)
}

func (s *MirrorSuite) TestNoKeysAlwaysFires(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ })

	data := &info{ID: "a"}
	m.Notify(data)
	m.Notify(data)
	c.Check(calls, gc.Equals, 2)
}

func (s *MirrorSuite) TestIdempotentNotify(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ }, collection.Fields("ID", "Rundowns")...)

	data := &info{ID: "a", Rundowns: []string{"r1"}}
	m.Notify(data)
	m.Notify(data)
	c.Check(calls, gc.Equals, 1)
}

func (s *MirrorSuite) TestUnaffectedKeySuppressed(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var idCalls, countCalls int
	m.Subscribe(func(*info) { idCalls++ }, collection.Field("ID"))
	m.Subscribe(func(*info) { countCalls++ }, collection.Field("Count"))

	m.Notify(&info{ID: "a", Count: 1})
	m.Notify(&info{ID: "a", Count: 2})
	m.Notify(&info{ID: "b", Count: 2})

	c.Check(idCalls, gc.Equals, 2)
	c.Check(countCalls, gc.Equals, 2)
}

func (s *MirrorSuite) TestShallowSliceComparison(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ }, collection.Field("Rundowns"))

	rundowns := []string{"r1", "r2"}
	m.Notify(&info{Rundowns: rundowns})
	m.Notify(&info{Rundowns: rundowns})
	c.Check(calls, gc.Equals, 1)

	// Equal contents in a new slice count as a change.
	m.Notify(&info{Rundowns: []string{"r1", "r2"}})
	c.Check(calls, gc.Equals, 2)
}

func (s *MirrorSuite) TestDeepFieldComparison(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ }, collection.DeepField("Selected"))

	m.Notify(&info{Selected: &selection{Current: "p1"}})
	m.Notify(&info{Selected: &selection{Current: "p1"}})
	c.Check(calls, gc.Equals, 1)

	m.Notify(&info{Selected: &selection{Current: "p2"}})
	c.Check(calls, gc.Equals, 2)

	m.Notify(&info{})
	c.Check(calls, gc.Equals, 3)
}

func (s *MirrorSuite) TestNilValue(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var got []*info
	m.Subscribe(func(v *info) { got = append(got, v) }, collection.Field("ID"))

	m.Notify(nil)
	m.Notify(nil)
	m.Notify(&info{ID: "a"})
	m.Notify(nil)

	c.Assert(got, gc.HasLen, 3)
	c.Check(got[0], gc.IsNil)
	c.Check(got[1].ID, gc.Equals, "a")
	c.Check(got[2], gc.IsNil)
}

func (s *MirrorSuite) TestLastDataUpdatedWhenSkipped(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	m.Subscribe(func(*info) { calls++ }, collection.Field("ID"))

	m.Notify(&info{ID: "a"})
	m.Notify(&info{ID: "a", Count: 5})
	m.Notify(&info{ID: "a", Count: 6})
	c.Check(calls, gc.Equals, 1)

	data, ok := m.Data()
	c.Assert(ok, jc.IsTrue)
	c.Check(data.Count, gc.Equals, 6)
}

func (s *MirrorSuite) TestUnsubscribe(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var calls int
	unsubscribe := m.Subscribe(func(*info) { calls++ })
	c.Check(m.ObserverCount(), gc.Equals, 1)

	unsubscribe()
	unsubscribe()
	c.Check(m.ObserverCount(), gc.Equals, 0)

	m.Notify(&info{})
	c.Check(calls, gc.Equals, 0)
}

func (s *MirrorSuite) TestUnsubscribeDuringNotify(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	var second int
	var unsubscribeSecond func()
	m.Subscribe(func(*info) { unsubscribeSecond() })
	unsubscribeSecond = m.Subscribe(func(*info) { second++ })

	m.Notify(&info{})
	c.Check(second, gc.Equals, 0)
}

func (s *MirrorSuite) TestUnknownKeyPanics(c *gc.C) {
	m := collection.NewMirror[*info]("info")
	c.Check(func() {
		m.Subscribe(func(*info) {}, collection.Field("Missing"))
	}, gc.PanicMatches, `programming error: info: collection_test.info has no exported field "Missing"`)
	c.Check(func() {
		m.Subscribe(func(*info) {}, collection.Field("hidden"))
	}, gc.PanicMatches, `programming error: info: .* has no exported field "hidden"`)
}

func (s *MirrorSuite) TestKeysOnNonStructPanics(c *gc.C) {
	m := collection.NewMirror[[]string]("list")
	c.Check(func() {
		m.Subscribe(func([]string) {}, collection.Field("Len"))
	}, gc.PanicMatches, `programming error: list: keys given for non-struct \[\]string`)
}
