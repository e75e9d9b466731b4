// Package registry tracks drivers, vehicles and routes together with their
// availability and reservations. Driver and vehicle ids share one namespace so
// that a resource id alone identifies what is being reserved.
package registry

import (
	"github.com/kilianp07/dutysched/core/model"
)

// Reader exposes read-only access to registered resources. Returned values are
// copies; mutating them has no effect on the registry.
type Reader interface {
	Driver(id string) (model.Driver, error)
	Vehicle(id string) (model.Vehicle, error)
	Route(id string) (model.Route, error)
	Drivers() ([]model.Driver, error)
	Vehicles() ([]model.Vehicle, error)
	Routes() ([]model.Route, error)
}

// Registry owns Driver, Vehicle and Route records. It never touches duties;
// keeping reservations consistent with duties is the caller's job.
type Registry interface {
	Reader

	RegisterDriver(d model.Driver) error
	RegisterVehicle(v model.Vehicle) error
	RegisterRoute(r model.Route) error

	// SetAvailability records when a driver or vehicle is free. A zero window
	// clears it. It does not check existing reservations.
	SetAvailability(id string, w model.TimeWindow) error
	SetDriverStatus(id string, s model.DriverStatus) error
	SetVehicleStatus(id string, s model.VehicleStatus) error

	// Reserve records that dutyID holds the resource for w. It fails with
	// AlreadyReservedError when dutyID already holds it or when w overlaps
	// another reservation.
	Reserve(id, dutyID string, w model.TimeWindow) error
	// Release drops the reservation of dutyID and clears the current duty
	// back-reference when it points to dutyID.
	Release(id, dutyID string) error
	// Activate marks dutyID as the duty currently running on the resource.
	Activate(id, dutyID string) error

	// RestoreDriver and RestoreVehicle overwrite an existing record with a
	// previously read copy. They are used to roll back partial mutations.
	RestoreDriver(d model.Driver) error
	RestoreVehicle(v model.Vehicle) error
}

// ReserveCheck validates a new reservation against existing ones.
func ReserveCheck(id, dutyID string, w model.TimeWindow, existing []model.Reservation) error {
	for _, r := range existing {
		if r.DutyID == dutyID || r.Window.Overlaps(w) {
			return &model.AlreadyReservedError{ResourceID: id, DutyID: r.DutyID}
		}
	}
	return nil
}
