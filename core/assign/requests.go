package assign

import (
	"github.com/kilianp07/dutysched/core/model"
)

// LinkedDutyRequest creates a duty with its driver, vehicle and route.
type LinkedDutyRequest struct {
	DriverID  string           `json:"driver_id"`
	VehicleID string           `json:"vehicle_id"`
	RouteID   string           `json:"route_id"`
	Window    model.TimeWindow `json:"window"`
	Notes     string           `json:"notes,omitempty"`
}

// Validate checks the request shape without looking at any state.
func (r LinkedDutyRequest) Validate() error {
	if r.DriverID == "" {
		return &model.InvalidFieldError{Field: "driver_id", Reason: "required"}
	}
	if r.VehicleID == "" {
		return &model.InvalidFieldError{Field: "vehicle_id", Reason: "required"}
	}
	if r.RouteID == "" {
		return &model.MissingRouteError{}
	}
	return r.Window.Validate()
}

// UnlinkedDutyRequest creates a duty awaiting assignment.
type UnlinkedDutyRequest struct {
	Window   model.TimeWindow   `json:"window"`
	Priority model.Priority     `json:"priority,omitempty"`
	Location model.LocationMeta `json:"location,omitempty"`
	Notes    string             `json:"notes,omitempty"`
}

// Validate checks the request shape. An empty priority defaults to medium.
func (r UnlinkedDutyRequest) Validate() error {
	if err := r.Window.Validate(); err != nil {
		return err
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return &model.InvalidFieldError{Field: "priority", Reason: "unknown priority " + string(r.Priority)}
	}
	if !r.Location.Window.IsZero() {
		if err := r.Location.Window.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AssignRequest confirms resources for an unassigned or scheduled duty.
// Empty resource ids fall back to the ones proposed on a scheduled duty.
type AssignRequest struct {
	DutyID    string `json:"duty_id"`
	DriverID  string `json:"driver_id,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty"`
	RouteID   string `json:"route_id,omitempty"`
}

// Validate checks the request shape.
func (r AssignRequest) Validate() error {
	if r.DutyID == "" {
		return &model.InvalidFieldError{Field: "duty_id", Reason: "required"}
	}
	return nil
}
