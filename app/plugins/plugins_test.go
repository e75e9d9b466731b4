package plugins

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/model"
)

func TestOpenBackend(t *testing.T) {
	for _, cfg := range []config.StorageConfig{
		{Backend: config.StorageMemory},
		{Backend: config.StorageSQLite, Path: filepath.Join(t.TempDir(), "fleet.db")},
	} {
		b, err := OpenBackend(cfg)
		require.NoError(t, err, cfg.Backend)
		require.NoError(t, b.Registry.RegisterDriver(model.Driver{ID: "D1", Name: "Alice"}))
		d, err := b.Registry.Driver("D1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", d.Name)
		require.NoError(t, b.Close())
	}
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, err := OpenBackend(config.StorageConfig{Backend: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory, sqlite")
}

func TestOpenBackend_BadPath(t *testing.T) {
	_, err := OpenBackend(config.StorageConfig{Backend: config.StorageSQLite, Path: filepath.Join(t.TempDir(), "missing", "dir", "fleet.db")})
	assert.Error(t, err)
}
