// Package conflict decides whether a driver/vehicle pair can take a duty window.
// It is a pure function of the registry and duty store contents.
package conflict

import (
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

// Reason names why a candidate was rejected.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonOverlap     Reason = "overlap"
	ReasonUnavailable Reason = "unavailable"
	ReasonOffDuty     Reason = "off_duty"
	ReasonMaintenance Reason = "maintenance"
)

// Candidate is a proposed assignment. DutyID is excluded from the overlap
// search so a duty never conflicts with itself.
type Candidate struct {
	DutyID    string
	DriverID  string
	VehicleID string
	Window    model.TimeWindow
}

// Result reports the first conflict found, if any.
type Result struct {
	Conflict   bool
	Reason     Reason
	ResourceID string
	// DutyID is the conflicting duty for overlap results.
	DutyID string
}

// Err converts a conflicting result into an AssignmentConflictError.
func (r Result) Err() error {
	if !r.Conflict {
		return nil
	}
	return &model.AssignmentConflictError{ResourceID: r.ResourceID, DutyID: r.DutyID, Reason: string(r.Reason)}
}

// Check evaluates c. The driver is checked before the vehicle, status before
// availability before overlap. Unknown resources are reported as errors.
func Check(reg registry.Reader, duties dutystore.Reader, c Candidate) (Result, error) {
	if err := c.Window.Validate(); err != nil {
		return Result{}, err
	}
	if c.DriverID != "" {
		d, err := reg.Driver(c.DriverID)
		if err != nil {
			return Result{}, err
		}
		if d.Status == model.DriverOffDuty {
			return conflictOn(ReasonOffDuty, d.ID, ""), nil
		}
		if !fits(d.Availability, c.Window) {
			return conflictOn(ReasonUnavailable, d.ID, ""), nil
		}
		res, err := overlap(duties, dutystore.Filter{DriverID: d.ID}, d.ID, c)
		if err != nil || res.Conflict {
			return res, err
		}
	}
	if c.VehicleID != "" {
		v, err := reg.Vehicle(c.VehicleID)
		if err != nil {
			return Result{}, err
		}
		if v.Status == model.VehicleMaintenance {
			return conflictOn(ReasonMaintenance, v.ID, ""), nil
		}
		if !fits(v.Availability, c.Window) {
			return conflictOn(ReasonUnavailable, v.ID, ""), nil
		}
		res, err := overlap(duties, dutystore.Filter{VehicleID: v.ID}, v.ID, c)
		if err != nil || res.Conflict {
			return res, err
		}
	}
	return Result{}, nil
}

func fits(availability, w model.TimeWindow) bool {
	return availability.IsZero() || availability.Contains(w)
}

func overlap(duties dutystore.Reader, f dutystore.Filter, resourceID string, c Candidate) (Result, error) {
	f.States = model.ActiveStates
	f.From, f.To = c.Window.Start, c.Window.End
	ds, err := duties.List(f)
	if err != nil {
		return Result{}, err
	}
	// List is sorted by start, so the first hit is the earliest conflict.
	for _, d := range ds {
		if d.ID == c.DutyID {
			continue
		}
		if d.Window.Overlaps(c.Window) {
			return conflictOn(ReasonOverlap, resourceID, d.ID), nil
		}
	}
	return Result{}, nil
}

func conflictOn(r Reason, resourceID, dutyID string) Result {
	return Result{Conflict: true, Reason: r, ResourceID: resourceID, DutyID: dutyID}
}
