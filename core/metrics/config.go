package metrics

import "github.com/kilianp07/dutysched/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// SummaryIntervalSeconds is how often dashboard summaries are recorded.
	// Zero disables them.
	SummaryIntervalSeconds int `json:"summary_interval_seconds" yaml:"summary_interval_seconds"`
}
