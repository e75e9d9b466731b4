package model

import (
	"sort"
	"time"
)

// DriverStatus describes whether a driver can take duties.
type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverOnDuty    DriverStatus = "on_duty"
	DriverOffDuty   DriverStatus = "off_duty"
)

// Valid reports whether s is a known driver status.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverAvailable, DriverOnDuty, DriverOffDuty:
		return true
	}
	return false
}

// VehicleStatus describes whether a vehicle can be used.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleInUse       VehicleStatus = "in_use"
	VehicleMaintenance VehicleStatus = "maintenance"
)

// Valid reports whether s is a known vehicle status.
func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleAvailable, VehicleInUse, VehicleMaintenance:
		return true
	}
	return false
}

// Reservation ties a resource to a duty for the duty's window.
type Reservation struct {
	DutyID string     `json:"duty_id"`
	Window TimeWindow `json:"window"`
}

// Driver is a person who can be assigned to duties.
type Driver struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Status DriverStatus `json:"status"`
	// Availability is optional; when set, assignments must fit inside it.
	Availability TimeWindow `json:"availability,omitempty"`
	// CurrentDuty is the duty in progress on this driver, if any.
	CurrentDuty  string        `json:"current_duty,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
}

// Validate checks mandatory fields.
func (d Driver) Validate() error {
	if d.ID == "" {
		return &InvalidFieldError{Field: "id", Reason: "required"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &InvalidFieldError{Field: "status", Reason: "unknown driver status " + string(d.Status)}
	}
	if !d.Availability.IsZero() {
		if err := d.Availability.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Vehicle is a fleet vehicle that can be assigned to duties.
type Vehicle struct {
	ID           string        `json:"id"`
	Identifier   string        `json:"identifier"`
	Status       VehicleStatus `json:"status"`
	Availability TimeWindow    `json:"availability,omitempty"`
	CurrentDuty  string        `json:"current_duty,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`
}

// Validate checks mandatory fields.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return &InvalidFieldError{Field: "id", Reason: "required"}
	}
	if v.Status != "" && !v.Status.Valid() {
		return &InvalidFieldError{Field: "status", Reason: "unknown vehicle status " + string(v.Status)}
	}
	if !v.Availability.IsZero() {
		if err := v.Availability.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Route is a named ordered sequence of stops. Duties reference routes by id.
type Route struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Type             string        `json:"type,omitempty"`
	Stops            []string      `json:"stops"`
	ExpectedDuration time.Duration `json:"expected_duration"`
	DistanceKM       float64       `json:"distance_km,omitempty"`
}

// Validate checks mandatory fields.
func (r Route) Validate() error {
	if r.ID == "" {
		return &InvalidFieldError{Field: "id", Reason: "required"}
	}
	if r.Name == "" {
		return &InvalidFieldError{Field: "name", Reason: "required"}
	}
	if r.ExpectedDuration < 0 {
		return &InvalidFieldError{Field: "expected_duration", Reason: "must not be negative"}
	}
	if r.DistanceKM < 0 {
		return &InvalidFieldError{Field: "distance_km", Reason: "must not be negative"}
	}
	return nil
}

// SortReservations orders reservations by window start then duty id.
func SortReservations(rs []Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Window.Start.Equal(rs[j].Window.Start) {
			return rs[i].Window.Start.Before(rs[j].Window.Start)
		}
		return rs[i].DutyID < rs[j].DutyID
	})
}
