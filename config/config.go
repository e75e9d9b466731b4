package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/core/journal"
	"github.com/kilianp07/dutysched/core/metrics"
	"github.com/kilianp07/dutysched/core/scheduler"
	"github.com/kilianp07/dutysched/infra/mqtt"
)

// EnvPrefix marks environment overrides. K_HTTP__ADDR sets http.addr.
const EnvPrefix = "K_"

type Config struct {
	HTTP      HTTPConfig                `json:"http"`
	Engine    assign.Config             `json:"engine"`
	Storage   StorageConfig             `json:"storage"`
	Journal   journal.Config            `json:"journal"`
	Metrics   metrics.Config            `json:"metrics"`
	MQTT      mqtt.Config               `json:"mqtt"`
	Sentry    SentryConfig              `json:"sentry"`
	Scheduler scheduler.SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig             `json:"logging"`
}

// Load reads path (YAML or JSON) and applies environment overrides. An empty
// path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides; __ separates nested keys.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.HTTP.SetDefaults()
	c.Engine.SetDefaults()
	c.Storage.SetDefaults()
	c.Journal.SetDefaults()
	c.MQTT.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	wrap := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	wrap("http", c.HTTP.Validate())
	wrap("storage", c.Storage.Validate())
	wrap("mqtt", c.MQTT.Validate())
	wrap("scheduler", c.Scheduler.Validate())
	wrap("logging", c.Logging.Validate())
	if c.Metrics.SummaryIntervalSeconds < 0 {
		wrap("metrics", errors.New("summary_interval_seconds must not be negative"))
	}
	return errors.Join(errs...)
}
