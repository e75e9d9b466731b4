package sqlite_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/dutystore/storetest"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
	"github.com/kilianp07/dutysched/core/registry/registrytest"
	"github.com/kilianp07/dutysched/infra/sqlite"
)

func open(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "fleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRegistryContract(t *testing.T) {
	registrytest.Run(t, func(t *testing.T) registry.Registry { return open(t).Registry() })
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) dutystore.Store { return open(t).Store() })
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.db")
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	w := model.TimeWindow{Start: day.Add(8 * time.Hour), End: day.Add(10 * time.Hour)}

	db, err := sqlite.Open(path)
	require.NoError(t, err)
	reg := db.Registry()
	require.NoError(t, reg.RegisterVehicle(model.Vehicle{ID: "V1", Identifier: "VH001"}))
	require.NoError(t, reg.Reserve("V1", "duty-1", w))
	_, err = db.Store().Create(model.Duty{ID: "duty-1", Kind: model.KindLinked, Window: w, VehicleID: "V1", RouteID: "R1"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sqlite.Open(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	v, err := db.Registry().Vehicle("V1")
	require.NoError(t, err)
	require.Len(t, v.Reservations, 1)
	assert.True(t, v.Reservations[0].Window.Start.Equal(w.Start))
	assert.True(t, v.Availability.IsZero())

	d, err := db.Store().Get("duty-1")
	require.NoError(t, err)
	assert.Equal(t, model.StateScheduled, d.State)
	assert.Equal(t, "R1", d.RouteID)
}
