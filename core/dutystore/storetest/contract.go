// Package storetest holds behaviour tests shared by every duty Store
// implementation.
package storetest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/model"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func window(startH, endH int) model.TimeWindow {
	return model.TimeWindow{Start: day.Add(time.Duration(startH) * time.Hour), End: day.Add(time.Duration(endH) * time.Hour)}
}

// Run exercises stores produced by newStore, which must be empty.
func Run(t *testing.T, newStore func(t *testing.T) dutystore.Store) {
	t.Run("create", func(t *testing.T) {
		s := newStore(t)
		linked, err := s.Create(model.Duty{ID: "a", Kind: model.KindLinked, Window: window(8, 10), DriverID: "d1", VehicleID: "v1", RouteID: "r1"})
		require.NoError(t, err)
		assert.Equal(t, model.StateScheduled, linked.State)
		assert.False(t, linked.CreatedAt.IsZero())

		unlinked, err := s.Create(model.Duty{
			ID: "b", Kind: model.KindUnlinked, Window: window(14, 16), Priority: model.PriorityHigh,
			DriverID: "ignored",
			Location: model.LocationMeta{Location: "Warehouse A", Type: "delivery"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.StateUnassigned, unlinked.State)
		assert.Empty(t, unlinked.DriverID)

		got, err := s.Get("b")
		require.NoError(t, err)
		assert.Equal(t, "Warehouse A", got.Location.Location)
		assert.Equal(t, model.PriorityHigh, got.Priority)
		assert.True(t, got.Window.Start.Equal(day.Add(14*time.Hour)))

		_, err = s.Create(model.Duty{ID: "c", Kind: model.KindLinked, Window: window(10, 9), RouteID: "r1"})
		var iw *model.InvalidWindowError
		assert.ErrorAs(t, err, &iw)
		_, err = s.Create(model.Duty{ID: "c", Kind: model.KindLinked, Window: window(9, 10)})
		var mr *model.MissingRouteError
		assert.ErrorAs(t, err, &mr)
		_, err = s.Create(model.Duty{ID: "a", Kind: model.KindUnlinked, Window: window(9, 10)})
		assert.ErrorIs(t, err, model.ErrValidation)
		_, err = s.Get("c")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("transition", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(model.Duty{ID: "a", Kind: model.KindUnlinked, Window: window(8, 10)})
		require.NoError(t, err)
		at := day.Add(time.Hour)

		_, err = s.Transition("a", model.StateInProgress, at)
		var it *model.IllegalTransitionError
		require.ErrorAs(t, err, &it)
		assert.Equal(t, model.StateUnassigned, it.From)

		for _, to := range []model.DutyState{model.StateAssigned, model.StateInProgress, model.StateCompleted} {
			d, err := s.Transition("a", to, at)
			require.NoError(t, err)
			assert.Equal(t, to, d.State)
		}
		_, err = s.Transition("a", model.StateAssigned, at)
		assert.ErrorIs(t, err, model.ErrIllegalTransition)
		_, err = s.Transition("a", model.StateCancelled, at)
		assert.ErrorIs(t, err, model.ErrIllegalTransition)
		_, err = s.Transition("missing", model.StateCancelled, at)
		assert.ErrorIs(t, err, model.ErrNotFound)

		d, err := s.Get("a")
		require.NoError(t, err)
		assert.Equal(t, model.StateCompleted, d.State)
		assert.True(t, d.UpdatedAt.Equal(at))
	})

	t.Run("bind", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(model.Duty{ID: "a", Kind: model.KindUnlinked, Window: window(8, 10)})
		require.NoError(t, err)
		d, err := s.Bind("a", "d1", "v1", "r1", day)
		require.NoError(t, err)
		assert.Equal(t, "d1", d.DriverID)
		assert.Equal(t, "r1", d.RouteID)

		_, err = s.Transition("a", model.StateAssigned, day)
		require.NoError(t, err)
		_, err = s.Bind("a", "d2", "", "", day)
		var nu *model.DutyNotUnassignedError
		assert.ErrorAs(t, err, &nu)
		_, err = s.Bind("missing", "d2", "", "", day)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("list filters", func(t *testing.T) {
		s := newStore(t)
		seed := []model.Duty{
			{ID: "a", Kind: model.KindLinked, Window: window(8, 10), DriverID: "d1", VehicleID: "v1", RouteID: "r1"},
			{ID: "b", Kind: model.KindLinked, Window: window(12, 14), DriverID: "d2", VehicleID: "v1", RouteID: "r1"},
			{ID: "c", Kind: model.KindUnlinked, Window: window(9, 11)},
		}
		for _, d := range seed {
			_, err := s.Create(d)
			require.NoError(t, err)
		}
		_, err := s.Transition("a", model.StateAssigned, day)
		require.NoError(t, err)

		all, err := s.List(dutystore.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"a", "c", "b"}, ids(all))

		byState, _ := s.List(dutystore.Filter{States: []model.DutyState{model.StateAssigned}})
		assert.Equal(t, []string{"a"}, ids(byState))
		byVehicle, _ := s.List(dutystore.Filter{VehicleID: "v1"})
		assert.Equal(t, []string{"a", "b"}, ids(byVehicle))
		byDriver, _ := s.List(dutystore.Filter{DriverID: "d2"})
		assert.Equal(t, []string{"b"}, ids(byDriver))
		byKind, _ := s.List(dutystore.Filter{Kind: model.KindUnlinked})
		assert.Equal(t, []string{"c"}, ids(byKind))
		byRange, _ := s.List(dutystore.Filter{From: day.Add(10 * time.Hour), To: day.Add(12 * time.Hour)})
		assert.Equal(t, []string{"c"}, ids(byRange), "half-open range excludes touching windows")
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(model.Duty{ID: "a", Kind: model.KindUnlinked, Window: window(8, 10)})
		require.NoError(t, err)
		require.NoError(t, s.Delete("a"))
		_, err = s.Get("a")
		assert.ErrorIs(t, err, model.ErrNotFound)
		assert.ErrorIs(t, s.Delete("a"), model.ErrNotFound)
	})

	t.Run("restore", func(t *testing.T) {
		s := newStore(t)
		orig, err := s.Create(model.Duty{ID: "a", Kind: model.KindUnlinked, Window: window(8, 10), Priority: model.PriorityLow})
		require.NoError(t, err)
		_, err = s.Bind("a", "d1", "v1", "", day)
		require.NoError(t, err)
		_, err = s.Transition("a", model.StateAssigned, day)
		require.NoError(t, err)

		require.NoError(t, s.Restore(orig))
		got, err := s.Get("a")
		require.NoError(t, err)
		assert.Equal(t, model.StateUnassigned, got.State)
		assert.Empty(t, got.DriverID)
		assert.True(t, got.UpdatedAt.Equal(orig.UpdatedAt))

		assert.ErrorIs(t, s.Restore(model.Duty{ID: "ghost"}), model.ErrNotFound)
	})
}

func ids(ds []model.Duty) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.ID
	}
	return out
}
