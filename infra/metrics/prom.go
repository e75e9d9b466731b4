package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/dutysched/core/metrics"
	"github.com/kilianp07/dutysched/core/model"
)

// PromSink records duty transitions and fleet summaries in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	duties      *prometheus.GaugeVec
	utilization prometheus.Gauge
	drops       *prometheus.CounterVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The /metrics endpoint is served by the HTTP server.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duty_transitions_total",
		Help: "Duty lifecycle transitions by source and target state",
	}, []string{"from", "to", "kind"})
	duties := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_duties",
		Help: "Number of duties per dashboard bucket",
	}, []string{"bucket"})
	utilization := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_vehicle_utilization_percent",
		Help: "Share of vehicles currently running a duty",
	})
	drops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_dropped_total",
		Help: "Transition events dropped by slow feed subscribers",
	}, []string{"subscriber"})

	var err error
	if transitions, err = register(reg, transitions); err != nil {
		return nil, err
	}
	if duties, err = register(reg, duties); err != nil {
		return nil, err
	}
	if utilization, err = register(reg, utilization); err != nil {
		return nil, err
	}
	if drops, err = register(reg, drops); err != nil {
		return nil, err
	}
	return &PromSink{transitions: transitions, duties: duties, utilization: utilization, drops: drops}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTransition counts the transition. Creations are labelled from="new".
func (s *PromSink) RecordTransition(ev model.TransitionEvent) error {
	from := string(ev.Previous)
	if from == "" {
		from = "new"
	}
	s.transitions.WithLabelValues(from, string(ev.Next), string(ev.Kind)).Inc()
	return nil
}

// RecordDashboard updates the fleet gauges.
func (s *PromSink) RecordDashboard(ev coremetrics.DashboardEvent) error {
	d := ev.Dashboard
	s.duties.WithLabelValues("total").Set(float64(d.Total))
	s.duties.WithLabelValues("completed").Set(float64(d.Completed))
	s.duties.WithLabelValues("ongoing").Set(float64(d.Ongoing))
	s.duties.WithLabelValues("scheduled").Set(float64(d.Scheduled))
	s.duties.WithLabelValues("unassigned").Set(float64(d.Unassigned))
	s.duties.WithLabelValues("cancelled").Set(float64(d.Cancelled))
	s.utilization.Set(d.UtilizationRate)
	return nil
}

// RecordDrops adds newly dropped events for the subscriber.
func (s *PromSink) RecordDrops(ev coremetrics.DropEvent) error {
	if ev.Dropped > 0 {
		s.drops.WithLabelValues(ev.Subscriber).Add(float64(ev.Dropped))
	}
	return nil
}
