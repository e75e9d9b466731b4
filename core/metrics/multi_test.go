package metrics

import (
	"errors"
	"testing"

	"github.com/kilianp07/dutysched/core/model"
)

type recordSink struct {
	count int
}

func (r *recordSink) RecordTransition(model.TransitionEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordDashboard(DashboardEvent) error {
	r.count++
	return nil
}

type transitionsOnly struct{ err error }

func (t transitionsOnly) RecordTransition(model.TransitionEvent) error { return t.err }

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, transitionsOnly{})
	if err := m.RecordTransition(model.TransitionEvent{DutyID: "a"}); err != nil {
		t.Fatalf("record transition: %v", err)
	}
	if err := m.RecordDashboard(DashboardEvent{}); err != nil {
		t.Fatalf("record dashboard: %v", err)
	}
	if err := m.RecordDrops(DropEvent{Dropped: 1}); err != nil {
		t.Fatalf("record drops: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("records not forwarded: %d %d", s1.count, s2.count)
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	after := &recordSink{}
	m := NewMultiSink(transitionsOnly{err: boom}, after)
	if err := m.RecordTransition(model.TransitionEvent{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if after.count != 0 {
		t.Fatalf("sink after failing one should not be called")
	}
}

type closingSink struct {
	transitionsOnly
	closed bool
}

func (c *closingSink) Close() { c.closed = true }

func TestMultiSinkClose(t *testing.T) {
	c := &closingSink{}
	NewMultiSink(&recordSink{}, c).Close()
	if !c.closed {
		t.Fatal("closable sink not closed")
	}
}
