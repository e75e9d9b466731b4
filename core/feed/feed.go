// Package feed publishes duty lifecycle transitions in commit order and serves
// consistent snapshots of the scheduling state.
package feed

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/report"
	"github.com/kilianp07/dutysched/internal/eventbus"
)

// ErrNoSource is returned by Snapshot when no Source is attached.
var ErrNoSource = errors.New("feed: no snapshot source attached")

// Snapshot is a consistent view of all duties and resources. Seq is the last
// transition committed before the view was taken.
type Snapshot struct {
	Taken    time.Time       `json:"taken"`
	Seq      uint64          `json:"seq"`
	Duties   []model.Duty    `json:"duties"`
	Drivers  []model.Driver  `json:"drivers"`
	Vehicles []model.Vehicle `json:"vehicles"`
	Routes   []model.Route   `json:"routes"`
}

// Source produces snapshots. The assignment engine is the production Source.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Feed stamps and fans out transition events.
type Feed struct {
	mu  sync.Mutex
	seq uint64
	bus *eventbus.Bus[model.TransitionEvent]

	srcMu sync.RWMutex
	src   Source
}

// New returns a feed with no subscribers.
func New() *Feed {
	return &Feed{bus: eventbus.New[model.TransitionEvent]()}
}

// Attach sets the snapshot source.
func (f *Feed) Attach(src Source) {
	f.srcMu.Lock()
	f.src = src
	f.srcMu.Unlock()
}

// Publish assigns the next sequence number to ev and delivers it. It never
// blocks on slow subscribers.
func (f *Feed) Publish(ev model.TransitionEvent) model.TransitionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	ev.Seq = f.seq
	f.bus.Publish(ev)
	return ev
}

// Seq returns the last sequence number handed out.
func (f *Feed) Seq() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

// Subscribe registers a subscriber holding at most buffer pending events.
func (f *Feed) Subscribe(buffer int) *Subscription {
	return &Subscription{bus: f.bus, sub: f.bus.Subscribe(buffer)}
}

// Snapshot returns the current state from the attached source.
func (f *Feed) Snapshot(ctx context.Context) (Snapshot, error) {
	f.srcMu.RLock()
	src := f.src
	f.srcMu.RUnlock()
	if src == nil {
		return Snapshot{}, ErrNoSource
	}
	return src.Snapshot(ctx)
}

// Summary returns dashboard counters for the current snapshot.
func (f *Feed) Summary(ctx context.Context) (report.Dashboard, error) {
	snap, err := f.Snapshot(ctx)
	if err != nil {
		return report.Dashboard{}, err
	}
	return report.Summarize(snap.Duties, snap.Vehicles), nil
}

// Close terminates every subscription.
func (f *Feed) Close() { f.bus.Close() }

// Subscription is an ordered stream of transition events.
type Subscription struct {
	bus  *eventbus.Bus[model.TransitionEvent]
	sub  *eventbus.Subscription[model.TransitionEvent]
	once sync.Once
}

// ErrClosed is returned by Next once the subscription is closed.
var ErrClosed = errors.New("feed: subscription closed")

// Next blocks until the next event, ctx is done or the subscription closes.
func (s *Subscription) Next(ctx context.Context) (model.TransitionEvent, error) {
	select {
	case ev, ok := <-s.sub.C():
		if !ok {
			return model.TransitionEvent{}, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return model.TransitionEvent{}, ctx.Err()
	}
}

// All yields events until ctx is done or the subscription closes. The
// sequence cannot be restarted.
func (s *Subscription) All(ctx context.Context) iter.Seq[model.TransitionEvent] {
	return func(yield func(model.TransitionEvent) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil || !yield(ev) {
				return
			}
		}
	}
}

// C exposes the raw delivery channel for select loops.
func (s *Subscription) C() <-chan model.TransitionEvent { return s.sub.C() }

// Dropped reports events lost because the subscriber fell behind.
func (s *Subscription) Dropped() uint64 { return s.sub.Dropped() }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.bus.Unsubscribe(s.sub) })
}
