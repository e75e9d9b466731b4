package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

type fakeAdvancer struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (f *fakeAdvancer) Advance(_ context.Context, now time.Time) ([]model.TransitionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return []model.TransitionEvent{{DutyID: "a"}}, f.err
}

func (f *fakeAdvancer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestTickUsesClock(t *testing.T) {
	adv := &fakeAdvancer{}
	s := New(SchedulerConfig{}, adv, nil)
	fixed := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	n, err := s.Tick(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("tick: n=%d err=%v", n, err)
	}
	if !adv.calls[0].Equal(fixed) {
		t.Fatalf("expected %v got %v", fixed, adv.calls[0])
	}
	if s.Config.TickSeconds != 30 {
		t.Fatalf("expected default tick, got %d", s.Config.TickSeconds)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	adv := &fakeAdvancer{err: errors.New("boom")}
	s := New(SchedulerConfig{TickSeconds: 1}, adv, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if adv.count() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", adv.count())
	}
}

func TestGeneratePlan(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	w := func(s, e int) model.TimeWindow {
		return model.TimeWindow{Start: date.Add(time.Duration(s) * time.Hour), End: date.Add(time.Duration(e) * time.Hour)}
	}
	duties := []model.Duty{
		{ID: "b", VehicleID: "v1", DriverID: "d1", State: model.StateAssigned, Window: w(12, 14)},
		{ID: "a", VehicleID: "v1", DriverID: "d1", State: model.StateCompleted, Window: w(8, 10)},
		{ID: "c", VehicleID: "v2", DriverID: "d2", State: model.StateInProgress, Window: w(22, 26)},
		{ID: "x", VehicleID: "v2", State: model.StateCancelled, Window: w(9, 10)},
		{ID: "u", State: model.StateUnassigned, Window: w(9, 10)},
		{ID: "y", VehicleID: "v1", State: model.StateAssigned, Window: w(30, 31)},
	}
	plan, err := GeneratePlan(duties, date.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("expected 3 entries got %d: %+v", len(plan), plan)
	}
	if plan[0].DutyID != "a" || plan[0].Idle != 8*time.Hour {
		t.Fatalf("bad first entry %+v", plan[0])
	}
	if plan[1].DutyID != "b" || plan[1].Idle != 2*time.Hour {
		t.Fatalf("bad second entry %+v", plan[1])
	}
	if plan[2].DutyID != "c" || !plan[2].End.Equal(date.Add(24*time.Hour)) {
		t.Fatalf("expected c clipped to midnight, got %+v", plan[2])
	}
	if _, err := GeneratePlan(duties, time.Time{}); err == nil {
		t.Fatalf("expected error for zero date")
	}
}

func TestSchedulerConfigDefaults(t *testing.T) {
	var cfg SchedulerConfig
	cfg.SetDefaults()
	if cfg.TickSeconds != 30 || cfg.Interval() != 30*time.Second {
		t.Fatalf("bad defaults %#v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (SchedulerConfig{TickSeconds: -1}).Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
