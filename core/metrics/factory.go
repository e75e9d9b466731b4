package metrics

import (
	"fmt"

	"github.com/kilianp07/dutysched/core/factory"
)

// sinks holds the constructors infra/metrics registers at init time.
var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to the metrics.sinks
// configuration list.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the sink types that can be configured.
func SinkTypes() []string { return sinks.Types() }

// NewMetricsSink builds the sink the engine records transitions to. No
// configured sink yields a NopSink and several yield a MultiSink in
// configuration order. If one entry fails, sinks already built are closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			closeSinks(built)
			return nil, fmt.Errorf("metrics sink %d (%s): %w", i, c.Type, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}

func closeSinks(ss []MetricsSink) {
	for _, s := range ss {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
