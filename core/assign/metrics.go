package assign

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal  *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
	lockWait       *prometheus.HistogramVec
)

func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec) {
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duty_requests_total",
			Help: "Assignment engine requests by operation and result",
		},
		[]string{"op", "result"},
	)
	conf := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duty_conflicts_total",
			Help: "Rejected assignments by conflict reason",
		},
		[]string{"reason"},
	)
	wait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duty_lock_wait_seconds",
			Help:    "Time spent acquiring resource and duty locks",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2, 5},
		},
		[]string{"op"},
	)
	return req, conf, wait
}

func init() {
	requestsTotal, conflictsTotal, lockWait = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requestsTotal, conflictsTotal, lockWait)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on reg if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	requestsTotal, conflictsTotal, lockWait = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
