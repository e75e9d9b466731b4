package journal

import (
	"errors"

	"github.com/kilianp07/dutysched/core/factory"
)

// Config selects the journal backend.
type Config struct {
	Enabled bool                 `json:"enabled" yaml:"enabled"`
	Store   factory.ModuleConfig `json:"store" yaml:"store"`
	// Buffer is the recorder's feed queue length.
	Buffer int `json:"buffer" yaml:"buffer"`
}

func (c *Config) SetDefaults() {
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
}

var stores = factory.NewRegistry[LogStore]()

// RegisterStore adds a backend factory identified by name.
func RegisterStore(name string, f factory.Factory[LogStore]) error {
	return stores.Register(name, f)
}

// NewLogStore creates the backend described by cfg.
func NewLogStore(cfg factory.ModuleConfig) (LogStore, error) {
	return stores.Create(cfg)
}

type fileConf struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func decodeFile(conf map[string]any) (fileConf, error) {
	var c fileConf
	if err := factory.Decode(conf, &c); err != nil {
		return c, err
	}
	if c.Path == "" {
		return c, errors.New("journal: path is required")
	}
	return c, nil
}

func init() {
	_ = RegisterStore("memory", func(map[string]any) (LogStore, error) {
		return NewMemoryStore(), nil
	})
	_ = RegisterStore("jsonl", func(conf map[string]any) (LogStore, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = RegisterStore("rotating", func(conf map[string]any) (LogStore, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		if c.MaxSizeMB <= 0 {
			c.MaxSizeMB = 10
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	_ = RegisterStore("sqlite", func(conf map[string]any) (LogStore, error) {
		c, err := decodeFile(conf)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}
