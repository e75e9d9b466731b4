package config

import "fmt"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// StorageConfig selects where resources and duties live.
type StorageConfig struct {
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
}

func (c *StorageConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = StorageMemory
	}
	if c.Backend == StorageSQLite && c.Path == "" {
		c.Path = "dutysched.db"
	}
}

func (c StorageConfig) Validate() error {
	switch c.Backend {
	case StorageMemory:
		return nil
	case StorageSQLite:
		if c.Path == "" {
			return fmt.Errorf("path is required for sqlite")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
}
