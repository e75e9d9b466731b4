// Package dutystore persists duties and enforces their lifecycle.
package dutystore

import (
	"sort"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

// Filter selects duties. Zero fields match everything. From/To select duties
// whose window overlaps [From, To); either bound may be left open.
type Filter struct {
	States    []model.DutyState
	Kind      model.DutyKind
	DriverID  string
	VehicleID string
	From      time.Time
	To        time.Time
}

// Match reports whether d satisfies the filter.
func (f Filter) Match(d model.Duty) bool {
	if len(f.States) > 0 {
		ok := false
		for _, s := range f.States {
			if d.State == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Kind != "" && d.Kind != f.Kind {
		return false
	}
	if f.DriverID != "" && d.DriverID != f.DriverID {
		return false
	}
	if f.VehicleID != "" && d.VehicleID != f.VehicleID {
		return false
	}
	if !f.From.IsZero() && !d.Window.End.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.Window.Start.Before(f.To) {
		return false
	}
	return true
}

// Reader exposes read-only duty queries.
type Reader interface {
	Get(id string) (model.Duty, error)
	List(f Filter) ([]model.Duty, error)
}

// Store owns Duty records.
type Store interface {
	Reader
	// Create validates d, sets its initial lifecycle state and persists it.
	Create(d model.Duty) (model.Duty, error)
	// Transition moves the duty to state to, rejecting edges outside the
	// lifecycle with IllegalTransitionError.
	Transition(id string, to model.DutyState, at time.Time) (model.Duty, error)
	// Bind sets the resource references of a duty that is unassigned or
	// scheduled. Empty ids leave the current reference untouched.
	Bind(id, driverID, vehicleID, routeID string, at time.Time) (model.Duty, error)
	// Delete removes a duty. It only exists to undo a Create.
	Delete(id string) error
	// Restore overwrites an existing duty with a previously read copy. It
	// only exists to undo Transition and Bind.
	Restore(d model.Duty) error
}

// Prepare validates d and fills the fields Create is responsible for. at is
// used as creation time when d carries none.
func Prepare(d model.Duty, at time.Time) (model.Duty, error) {
	if d.ID == "" {
		return d, &model.InvalidFieldError{Field: "id", Reason: "required"}
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	d.State = d.InitialState()
	if d.State == model.StateUnassigned {
		d.DriverID, d.VehicleID = "", ""
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = at
	}
	d.UpdatedAt = d.CreatedAt
	return d, nil
}

// ApplyTransition checks the lifecycle edge and returns the updated duty.
func ApplyTransition(d model.Duty, to model.DutyState, at time.Time) (model.Duty, error) {
	if !model.CanTransition(d.State, to) {
		return d, &model.IllegalTransitionError{DutyID: d.ID, From: d.State, To: to}
	}
	d.State = to
	d.UpdatedAt = at
	return d, nil
}

// ApplyBind checks that d may receive resource references and sets them.
func ApplyBind(d model.Duty, driverID, vehicleID, routeID string, at time.Time) (model.Duty, error) {
	if d.State != model.StateUnassigned && d.State != model.StateScheduled {
		return d, &model.DutyNotUnassignedError{DutyID: d.ID, State: d.State}
	}
	if driverID != "" {
		d.DriverID = driverID
	}
	if vehicleID != "" {
		d.VehicleID = vehicleID
	}
	if routeID != "" {
		d.RouteID = routeID
	}
	d.UpdatedAt = at
	return d, nil
}

// SortDuties orders duties by window start then id.
func SortDuties(ds []model.Duty) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].Window.Start.Equal(ds[j].Window.Start) {
			return ds[i].Window.Start.Before(ds[j].Window.Start)
		}
		return ds[i].ID < ds[j].ID
	})
}
