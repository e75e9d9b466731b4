// Package status serves read-only views of the scheduling state: snapshots,
// dashboard counters, alerts, day plans and a websocket stream of transitions.
package status

import (
	"net/http"
	"time"

	"github.com/kilianp07/dutysched/api/httpapi"
	"github.com/kilianp07/dutysched/core/feed"
	"github.com/kilianp07/dutysched/core/logger"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/report"
	"github.com/kilianp07/dutysched/core/scheduler"
)

// Options tunes the status handlers. Zero values get defaults.
type Options struct {
	// AlertGrace is how late an assigned duty may start before it is
	// reported as delayed.
	AlertGrace time.Duration
	// StreamBuffer is the per-connection subscription buffer.
	StreamBuffer int
	Now          func() time.Time
	Log          logger.Logger
}

func (o *Options) setDefaults() {
	if o.AlertGrace <= 0 {
		o.AlertGrace = 15 * time.Minute
	}
	if o.StreamBuffer <= 0 {
		o.StreamBuffer = 64
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.Log == nil {
		o.Log = logger.NopLogger{}
	}
}

// Register mounts the status routes on mux.
func Register(mux *http.ServeMux, f *feed.Feed, opts Options) {
	opts.setDefaults()
	h := &handler{feed: f, opts: opts}
	mux.HandleFunc("GET /api/status/snapshot", h.snapshot)
	mux.HandleFunc("GET /api/status/summary", h.summary)
	mux.HandleFunc("GET /api/status/alerts", h.alerts)
	mux.HandleFunc("GET /api/status/plan", h.plan)
	mux.HandleFunc("GET /api/status/drivers", h.drivers)
	mux.HandleFunc("GET /api/status/utilization", h.utilization)
	mux.HandleFunc("GET /api/status/events", h.events)
}

type handler struct {
	feed *feed.Feed
	opts Options
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.feed.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, snap)
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	db, err := h.feed.Summary(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, db)
}

func (h *handler) alerts(w http.ResponseWriter, r *http.Request) {
	grace := h.opts.AlertGrace
	if s := r.URL.Query().Get("grace"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			httpapi.WriteError(w, &model.InvalidFieldError{Field: "grace", Reason: "expected a non-negative duration"})
			return
		}
		grace = d
	}
	snap, err := h.feed.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	alerts := report.Alerts(snap.Duties, snap.Vehicles, h.opts.Now(), grace)
	if alerts == nil {
		alerts = []report.Alert{}
	}
	httpapi.WriteJSON(w, http.StatusOK, alerts)
}

// plan answers the vehicle plan of ?date=YYYY-MM-DD, today by default.
func (h *handler) plan(w http.ResponseWriter, r *http.Request) {
	date := h.opts.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			httpapi.WriteError(w, &model.InvalidFieldError{Field: "date", Reason: "expected YYYY-MM-DD"})
			return
		}
		date = d
	}
	snap, err := h.feed.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	entries, err := scheduler.GeneratePlan(snap.Duties, date)
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []scheduler.PlanEntry{}
	}
	httpapi.WriteJSON(w, http.StatusOK, entries)
}

func (h *handler) drivers(w http.ResponseWriter, r *http.Request) {
	snap, err := h.feed.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, report.Drivers(snap.Duties, snap.Drivers))
}

// utilization measures ?from=&to=, the last 24 hours by default.
func (h *handler) utilization(w http.ResponseWriter, r *http.Request) {
	from, err := httpapi.QueryTime(r, "from")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	to, err := httpapi.QueryTime(r, "to")
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	if to.IsZero() {
		to = h.opts.Now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	snap, err := h.feed.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	u, err := report.VehicleUtilization(snap.Duties, snap.Vehicles, model.TimeWindow{Start: from, End: to})
	if err != nil {
		httpapi.WriteError(w, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, u)
}
