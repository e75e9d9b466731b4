package metrics

import (
	"time"

	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/report"
)

// MetricsSink records duty lifecycle transitions.
type MetricsSink interface {
	RecordTransition(ev model.TransitionEvent) error
}

// DashboardEvent is a periodic summary of the fleet.
type DashboardEvent struct {
	Dashboard report.Dashboard
	Seq       uint64
	Time      time.Time
}

// DashboardRecorder records dashboard summaries.
type DashboardRecorder interface {
	RecordDashboard(ev DashboardEvent) error
}

// DropEvent reports events a subscriber lost because it fell behind.
type DropEvent struct {
	Subscriber string
	Dropped    uint64
	Time       time.Time
}

// DropRecorder records feed drops.
type DropRecorder interface {
	RecordDrops(ev DropEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(model.TransitionEvent) error { return nil }
func (NopSink) RecordDashboard(DashboardEvent) error         { return nil }
func (NopSink) RecordDrops(DropEvent) error                  { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTransition(ev model.TransitionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordDashboard forwards summaries to sinks that support them.
func (m *MultiSink) RecordDashboard(ev DashboardEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DashboardRecorder); ok {
			if err := rec.RecordDashboard(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordDrops forwards drop counts to sinks that support them.
func (m *MultiSink) RecordDrops(ev DropEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(DropRecorder); ok {
			if err := rec.RecordDrops(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes sinks holding connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
