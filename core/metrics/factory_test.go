package metrics_test

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/dutysched/core/factory"
	metrics "github.com/kilianp07/dutysched/core/metrics"
	_ "github.com/kilianp07/dutysched/infra/metrics"
)

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil || s == nil {
		t.Fatalf("create nop: %v", err)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}

	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "statsd"}})
	if err == nil || !strings.Contains(err.Error(), "metrics sink 1 (statsd)") {
		t.Fatalf("expected error naming the failing entry, got %v", err)
	}
}

func TestSinkTypes(t *testing.T) {
	types := metrics.SinkTypes()
	for _, want := range []string{"influx", "nop", "prometheus"} {
		if !slices.Contains(types, want) {
			t.Fatalf("sink type %s not registered: %v", want, types)
		}
	}
}

func TestMetricsConfigDecode(t *testing.T) {
	data := `summary_interval_seconds: 15
sinks:
  - type: nop
  - type: nop
`
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if cfg.SummaryIntervalSeconds != 15 || len(cfg.Sinks) != 2 {
		t.Fatalf("bad config %+v", cfg)
	}

	var bad metrics.Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &bad); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewMetricsSink(bad.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
