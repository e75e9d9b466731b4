package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/registry"
)

// Backend bundles the stores an engine runs on.
type Backend struct {
	Registry registry.Registry
	Duties   dutystore.Store
	// Close releases the backend. It may be nil.
	Close func() error
}

// BackendFactory opens a storage backend from configuration.
type BackendFactory func(cfg config.StorageConfig) (Backend, error)

var Backends = map[string]BackendFactory{}

func RegisterBackend(name string, f BackendFactory) { Backends[name] = f }

// OpenBackend opens the backend named by cfg.Backend.
func OpenBackend(cfg config.StorageConfig) (Backend, error) {
	f, ok := Backends[cfg.Backend]
	if !ok {
		names := make([]string, 0, len(Backends))
		for n := range Backends {
			names = append(names, n)
		}
		sort.Strings(names)
		return Backend{}, fmt.Errorf("unknown storage backend %q (known: %s)", cfg.Backend, strings.Join(names, ", "))
	}
	b, err := f(cfg)
	if err != nil {
		return Backend{}, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	if b.Close == nil {
		b.Close = func() error { return nil }
	}
	return b, nil
}
