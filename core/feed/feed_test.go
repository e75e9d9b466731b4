package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/core/model"
)

type staticSource struct{ snap Snapshot }

func (s staticSource) Snapshot(context.Context) (Snapshot, error) { return s.snap, nil }

func ev(id string, next model.DutyState) model.TransitionEvent {
	return model.TransitionEvent{DutyID: id, Next: next}
}

func TestPublishStampsIncreasingSeq(t *testing.T) {
	f := New()
	sub := f.Subscribe(8)
	defer sub.Close()

	first := f.Publish(ev("a", model.StateAssigned))
	second := f.Publish(ev("a", model.StateInProgress))
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(2), f.Seq())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestSubscriptionDropsOldestWhenFull(t *testing.T) {
	f := New()
	sub := f.Subscribe(2)
	defer sub.Close()
	for i := 0; i < 5; i++ {
		f.Publish(ev("a", model.StateAssigned))
	}
	assert.Equal(t, uint64(3), sub.Dropped())
	ctx := context.Background()
	got, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Seq)
}

func TestSubscriptionAllStopsOnClose(t *testing.T) {
	f := New()
	sub := f.Subscribe(8)
	f.Publish(ev("a", model.StateAssigned))
	f.Publish(ev("b", model.StateAssigned))

	var seen []string
	for e := range sub.All(context.Background()) {
		seen = append(seen, e.DutyID)
		if len(seen) == 2 {
			sub.Close()
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)

	_, err := sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	sub.Close()
}

func TestNextHonoursContext(t *testing.T) {
	f := New()
	sub := f.Subscribe(1)
	defer sub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSnapshotAndSummary(t *testing.T) {
	f := New()
	_, err := f.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)

	f.Attach(staticSource{snap: Snapshot{
		Seq:      7,
		Duties:   []model.Duty{{ID: "a", State: model.StateCompleted}, {ID: "b", State: model.StateUnassigned}},
		Vehicles: []model.Vehicle{{ID: "v1", CurrentDuty: "x"}, {ID: "v2"}},
	}})
	snap, err := f.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), snap.Seq)

	db, err := f.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, db.Total)
	assert.Equal(t, 1, db.Completed)
	assert.Equal(t, 1, db.Unassigned)
	assert.InDelta(t, 50.0, db.UtilizationRate, 1e-9)
}
