package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/core/feed"
	coremetrics "github.com/kilianp07/dutysched/core/metrics"
	"github.com/kilianp07/dutysched/core/model"
)

type recordingSink struct {
	mu          sync.Mutex
	transitions []model.TransitionEvent
	dashboards  []coremetrics.DashboardEvent
}

func (s *recordingSink) RecordTransition(ev model.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, ev)
	return nil
}

func (s *recordingSink) RecordDashboard(ev coremetrics.DashboardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboards = append(s.dashboards, ev)
	return nil
}

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transitions), len(s.dashboards)
}

type staticSource struct{ snap feed.Snapshot }

func (s staticSource) Snapshot(context.Context) (feed.Snapshot, error) { return s.snap, nil }

func TestStartEventCollector(t *testing.T) {
	f := feed.New()
	f.Attach(staticSource{snap: feed.Snapshot{
		Duties:   []model.Duty{{ID: "a", State: model.StateInProgress}, {ID: "b", State: model.StateCompleted}},
		Vehicles: []model.Vehicle{{ID: "V1", CurrentDuty: "a"}, {ID: "V2"}},
	}})
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, f, sink, 10*time.Millisecond)

	f.Publish(model.TransitionEvent{DutyID: "a", Next: model.StateScheduled})
	f.Publish(model.TransitionEvent{DutyID: "a", Previous: model.StateScheduled, Next: model.StateAssigned})

	require.Eventually(t, func() bool {
		tr, db := sink.counts()
		return tr == 2 && db > 0
	}, 2*time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	assert.Equal(t, uint64(1), sink.transitions[0].Seq)
	assert.Equal(t, uint64(2), sink.transitions[1].Seq)
	assert.Equal(t, 2, sink.dashboards[0].Dashboard.Total)
	assert.Equal(t, 50.0, sink.dashboards[0].Dashboard.UtilizationRate)
	sink.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestStartEventCollector_StopsOnFeedClose(t *testing.T) {
	f := feed.New()
	done := StartEventCollector(context.Background(), f, coremetrics.NopSink{}, 0)
	f.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after feed close")
	}
}

func TestStartEventCollector_NilFeed(t *testing.T) {
	done := StartEventCollector(context.Background(), nil, coremetrics.NopSink{}, 0)
	_, open := <-done
	assert.False(t, open)
}
