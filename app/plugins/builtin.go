package plugins

import (
	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/registry"
	"github.com/kilianp07/dutysched/infra/sqlite"
)

func init() {
	RegisterBackend(config.StorageMemory, func(config.StorageConfig) (Backend, error) {
		return Backend{Registry: registry.NewMemoryRegistry(), Duties: dutystore.NewMemoryStore()}, nil
	})
	RegisterBackend(config.StorageSQLite, func(cfg config.StorageConfig) (Backend, error) {
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return Backend{}, err
		}
		return Backend{Registry: db.Registry(), Duties: db.Store(), Close: db.Close}, nil
	})
}
