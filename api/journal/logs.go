// Package journal exposes the duty transition journal over HTTP.
package journal

import (
	"net/http"
	"strconv"

	"github.com/kilianp07/dutysched/api/httpapi"
	"github.com/kilianp07/dutysched/core/journal"
	"github.com/kilianp07/dutysched/core/model"
)

// NewLogHandler returns an HTTP handler serving journal records via
// GET /api/journal. Supported filters are duty_id, driver_id, vehicle_id,
// state, start, end (RFC 3339) and limit.
func NewLogHandler(store journal.LogStore) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			httpapi.WriteError(w, err)
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		httpapi.WriteJSON(w, http.StatusOK, records)
	})
}

func parseQuery(r *http.Request) (journal.Query, error) {
	v := r.URL.Query()
	q := journal.Query{
		DutyID:    v.Get("duty_id"),
		DriverID:  v.Get("driver_id"),
		VehicleID: v.Get("vehicle_id"),
	}
	if s := v.Get("state"); s != "" {
		st, ok := model.ParseState(s)
		if !ok {
			return q, &model.InvalidFieldError{Field: "state", Reason: "unknown state " + s}
		}
		q.State = st
	}
	var err error
	if q.Start, err = httpapi.QueryTime(r, "start"); err != nil {
		return q, err
	}
	if q.End, err = httpapi.QueryTime(r, "end"); err != nil {
		return q, err
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, &model.InvalidFieldError{Field: "limit", Reason: "expected a non-negative integer"}
		}
		q.Limit = n
	}
	return q, nil
}
