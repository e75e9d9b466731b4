// Package registrytest holds behaviour tests shared by every Registry
// implementation.
package registrytest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func window(startH, endH int) model.TimeWindow {
	return model.TimeWindow{Start: day.Add(time.Duration(startH) * time.Hour), End: day.Add(time.Duration(endH) * time.Hour)}
}

// Run exercises reg, which must be empty, against the Registry contract.
func Run(t *testing.T, newRegistry func(t *testing.T) registry.Registry) {
	t.Run("register", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.RegisterDriver(model.Driver{ID: "d1", Name: "John Doe"}))
		require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: "v1", Identifier: "VH001"}))
		require.NoError(t, reg.RegisterRoute(model.Route{ID: "r1", Name: "City Center Loop", Stops: []string{"a", "b"}, ExpectedDuration: 45 * time.Minute}))

		var dup *model.DuplicateResourceError
		assert.ErrorAs(t, reg.RegisterDriver(model.Driver{ID: "d1", Name: "Again"}), &dup)
		assert.ErrorAs(t, reg.RegisterVehicle(model.Vehicle{ID: "d1"}), &dup, "driver and vehicle ids share a namespace")
		assert.ErrorAs(t, reg.RegisterRoute(model.Route{ID: "r1", Name: "x"}), &dup)

		d, err := reg.Driver("d1")
		require.NoError(t, err)
		assert.Equal(t, model.DriverAvailable, d.Status)
		assert.Equal(t, "John Doe", d.Name)
		v, err := reg.Vehicle("v1")
		require.NoError(t, err)
		assert.Equal(t, model.VehicleAvailable, v.Status)
		rt, err := reg.Route("r1")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, rt.Stops)
		assert.Equal(t, 45*time.Minute, rt.ExpectedDuration)

		_, err = reg.Driver("nope")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = reg.Vehicle("d1")
		assert.ErrorIs(t, err, model.ErrNotFound)
		_, err = reg.Route("nope")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("lists are sorted", func(t *testing.T) {
		reg := newRegistry(t)
		for _, id := range []string{"d3", "d1", "d2"} {
			require.NoError(t, reg.RegisterDriver(model.Driver{ID: id}))
		}
		for _, id := range []string{"v2", "v1"} {
			require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: id}))
		}
		ds, err := reg.Drivers()
		require.NoError(t, err)
		require.Len(t, ds, 3)
		assert.Equal(t, "d1", ds[0].ID)
		assert.Equal(t, "d3", ds[2].ID)
		vs, err := reg.Vehicles()
		require.NoError(t, err)
		require.Len(t, vs, 2)
		assert.Equal(t, "v1", vs[0].ID)
		rs, err := reg.Routes()
		require.NoError(t, err)
		assert.Empty(t, rs)
	})

	t.Run("availability and status", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.RegisterDriver(model.Driver{ID: "d1"}))
		require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: "v1"}))
		require.NoError(t, reg.SetAvailability("d1", window(6, 18)))
		d, err := reg.Driver("d1")
		require.NoError(t, err)
		assert.True(t, d.Availability.Start.Equal(day.Add(6*time.Hour)))
		require.NoError(t, reg.SetAvailability("d1", model.TimeWindow{}))
		d, _ = reg.Driver("d1")
		assert.True(t, d.Availability.IsZero())
		assert.ErrorIs(t, reg.SetAvailability("v1", window(5, 4)), model.ErrValidation)
		assert.ErrorIs(t, reg.SetAvailability("x", window(1, 2)), model.ErrNotFound)

		require.NoError(t, reg.SetVehicleStatus("v1", model.VehicleMaintenance))
		v, _ := reg.Vehicle("v1")
		assert.Equal(t, model.VehicleMaintenance, v.Status)
		require.NoError(t, reg.SetDriverStatus("d1", model.DriverOffDuty))
		assert.ErrorIs(t, reg.SetDriverStatus("v1", model.DriverOffDuty), model.ErrNotFound)
		assert.ErrorIs(t, reg.SetVehicleStatus("v1", "broken"), model.ErrValidation)
	})

	t.Run("reserve and release", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.RegisterDriver(model.Driver{ID: "d1"}))
		before, err := reg.Driver("d1")
		require.NoError(t, err)

		require.NoError(t, reg.Reserve("d1", "duty-a", window(8, 10)))
		require.NoError(t, reg.Reserve("d1", "duty-b", window(10, 12)))

		var ar *model.AlreadyReservedError
		err = reg.Reserve("d1", "duty-c", window(9, 11))
		require.ErrorAs(t, err, &ar)
		assert.Equal(t, "duty-a", ar.DutyID)
		assert.ErrorAs(t, reg.Reserve("d1", "duty-a", window(14, 15)), &ar)
		assert.ErrorIs(t, reg.Reserve("nope", "duty-a", window(8, 10)), model.ErrNotFound)

		d, _ := reg.Driver("d1")
		require.Len(t, d.Reservations, 2)
		assert.Equal(t, "duty-a", d.Reservations[0].DutyID)

		require.NoError(t, reg.Activate("d1", "duty-a"))
		d, _ = reg.Driver("d1")
		assert.Equal(t, "duty-a", d.CurrentDuty)
		assert.Equal(t, model.DriverOnDuty, d.Status)
		assert.ErrorAs(t, reg.Activate("d1", "duty-b"), &ar)

		require.NoError(t, reg.Release("d1", "duty-a"))
		require.NoError(t, reg.Release("d1", "duty-b"))
		after, err := reg.Driver("d1")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("vehicle activation", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: "v1", Identifier: "VH001"}))
		require.NoError(t, reg.Reserve("v1", "duty-a", window(8, 10)))
		require.NoError(t, reg.Activate("v1", "duty-a"))
		v, _ := reg.Vehicle("v1")
		assert.Equal(t, model.VehicleInUse, v.Status)
		require.NoError(t, reg.Release("v1", "duty-a"))
		v, _ = reg.Vehicle("v1")
		assert.Equal(t, model.VehicleAvailable, v.Status)
		assert.Empty(t, v.CurrentDuty)
		assert.Empty(t, v.Reservations)
	})

	t.Run("restore", func(t *testing.T) {
		reg := newRegistry(t)
		require.NoError(t, reg.RegisterDriver(model.Driver{ID: "d1", Name: "Ana"}))
		require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: "v1", Identifier: "VH001"}))
		d0, err := reg.Driver("d1")
		require.NoError(t, err)
		v0, err := reg.Vehicle("v1")
		require.NoError(t, err)

		require.NoError(t, reg.Reserve("d1", "duty-a", window(8, 10)))
		require.NoError(t, reg.Activate("d1", "duty-a"))
		require.NoError(t, reg.SetVehicleStatus("v1", model.VehicleMaintenance))

		require.NoError(t, reg.RestoreDriver(d0))
		require.NoError(t, reg.RestoreVehicle(v0))
		d1, _ := reg.Driver("d1")
		v1, _ := reg.Vehicle("v1")
		assert.Equal(t, d0, d1)
		assert.Equal(t, v0, v1)

		assert.ErrorIs(t, reg.RestoreDriver(model.Driver{ID: "ghost"}), model.ErrNotFound)
		assert.ErrorIs(t, reg.RestoreVehicle(model.Vehicle{ID: "d1"}), model.ErrNotFound)
	})
}
