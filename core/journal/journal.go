// Package journal keeps a durable, queryable history of duty transitions.
//
// Backends append records in feed order. A Recorder subscribes to the status
// feed and appends every event it receives.
package journal

import (
	"context"
	"slices"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

// Record is one journaled transition.
type Record struct {
	model.TransitionEvent
	RecordedAt time.Time `json:"recorded_at"`
}

// Query filters records. Zero fields match everything. Start and End bound
// the transition time inclusively. Limit keeps the most recent records.
type Query struct {
	DutyID    string
	DriverID  string
	VehicleID string
	State     model.DutyState
	Start     time.Time
	End       time.Time
	Limit     int
}

// Match reports whether r passes every filter except Limit.
func (q Query) Match(r Record) bool {
	switch {
	case q.DutyID != "" && r.DutyID != q.DutyID:
		return false
	case q.DriverID != "" && r.DriverID != q.DriverID:
		return false
	case q.VehicleID != "" && r.VehicleID != q.VehicleID:
		return false
	case q.State != "" && r.Next != q.State:
		return false
	case !q.Start.IsZero() && r.At.Before(q.Start):
		return false
	case !q.End.IsZero() && r.At.After(q.End):
		return false
	}
	return true
}

// LogStore persists records and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// finish orders records by sequence and applies the limit.
func finish(recs []Record, limit int) []Record {
	slices.SortStableFunc(recs, func(a, b Record) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}
