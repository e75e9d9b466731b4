package model

import "time"

// DutyKind distinguishes duties created with their resources from those
// awaiting assignment.
type DutyKind string

const (
	KindLinked   DutyKind = "linked"
	KindUnlinked DutyKind = "unlinked"
)

// Valid reports whether k is a known duty kind.
func (k DutyKind) Valid() bool { return k == KindLinked || k == KindUnlinked }

// Priority ranks unlinked duties awaiting assignment.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities, high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// LocationMeta describes where and when an unlinked duty should happen.
type LocationMeta struct {
	Location string `json:"location,omitempty"`
	// Type is the kind of work, e.g. delivery, maintenance, inspection.
	Type   string     `json:"type,omitempty"`
	Window TimeWindow `json:"window,omitempty"`
}

// Duty is a unit of work bound to a time window.
type Duty struct {
	ID        string       `json:"id"`
	Kind      DutyKind     `json:"kind"`
	Window    TimeWindow   `json:"window"`
	DriverID  string       `json:"driver_id,omitempty"`
	VehicleID string       `json:"vehicle_id,omitempty"`
	RouteID   string       `json:"route_id,omitempty"`
	State     DutyState    `json:"state"`
	Priority  Priority     `json:"priority,omitempty"`
	Location  LocationMeta `json:"location,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Validate checks the creation constraints of a duty.
func (d Duty) Validate() error {
	if !d.Kind.Valid() {
		return &InvalidFieldError{Field: "kind", Reason: "unknown duty kind " + string(d.Kind)}
	}
	if err := d.Window.Validate(); err != nil {
		return err
	}
	if d.Kind == KindLinked && d.RouteID == "" {
		return &MissingRouteError{DutyID: d.ID}
	}
	if d.Priority != "" && !d.Priority.Valid() {
		return &InvalidFieldError{Field: "priority", Reason: "unknown priority " + string(d.Priority)}
	}
	return nil
}

// InitialState returns the state a new duty of this kind starts in.
func (d Duty) InitialState() DutyState {
	if d.Kind == KindLinked {
		return StateScheduled
	}
	return StateUnassigned
}

// Uses reports whether the duty references the resource as driver or vehicle.
func (d Duty) Uses(resourceID string) bool {
	return resourceID != "" && (d.DriverID == resourceID || d.VehicleID == resourceID)
}

// TransitionEvent records a lifecycle change of a duty. An empty Previous
// marks the creation of the duty.
type TransitionEvent struct {
	Seq       uint64    `json:"seq"`
	DutyID    string    `json:"duty_id"`
	Kind      DutyKind  `json:"kind"`
	Previous  DutyState `json:"previous,omitempty"`
	Next      DutyState `json:"next"`
	DriverID  string    `json:"driver_id,omitempty"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	At        time.Time `json:"at"`
}

// NewTransition builds the event describing d moving from prev to its
// current state.
func NewTransition(d Duty, prev DutyState, at time.Time) TransitionEvent {
	return TransitionEvent{
		DutyID:    d.ID,
		Kind:      d.Kind,
		Previous:  prev,
		Next:      d.State,
		DriverID:  d.DriverID,
		VehicleID: d.VehicleID,
		At:        at,
	}
}
