package assign

import (
	"context"

	"github.com/kilianp07/dutysched/core/model"
)

// RegisterDriver adds a driver to the registry.
func (e *Engine) RegisterDriver(ctx context.Context, d model.Driver) error {
	const op = "register_driver"
	if err := d.Validate(); err != nil {
		return e.finish(op, err)
	}
	_, err := e.run(ctx, op, []string{d.ID}, nil, func(*txn) error {
		return e.reg.RegisterDriver(d)
	})
	return e.finish(op, err)
}

// RegisterVehicle adds a vehicle to the registry.
func (e *Engine) RegisterVehicle(ctx context.Context, v model.Vehicle) error {
	const op = "register_vehicle"
	if err := v.Validate(); err != nil {
		return e.finish(op, err)
	}
	_, err := e.run(ctx, op, []string{v.ID}, nil, func(*txn) error {
		return e.reg.RegisterVehicle(v)
	})
	return e.finish(op, err)
}

// RegisterRoute adds a route. Routes live in their own namespace and are
// never reserved, so only the commit gate is taken.
func (e *Engine) RegisterRoute(ctx context.Context, r model.Route) error {
	const op = "register_route"
	if err := r.Validate(); err != nil {
		return e.finish(op, err)
	}
	_, err := e.run(ctx, op, nil, nil, func(*txn) error {
		return e.reg.RegisterRoute(r)
	})
	return e.finish(op, err)
}

// SetAvailability records when a driver or vehicle is free. A zero window
// clears it. Existing reservations are kept even if they fall outside.
func (e *Engine) SetAvailability(ctx context.Context, id string, w model.TimeWindow) error {
	const op = "set_availability"
	if id == "" {
		return e.finish(op, &model.InvalidFieldError{Field: "id", Reason: "required"})
	}
	if !w.IsZero() {
		if err := w.Validate(); err != nil {
			return e.finish(op, err)
		}
	}
	_, err := e.run(ctx, op, []string{id}, nil, func(*txn) error {
		return e.reg.SetAvailability(id, w)
	})
	return e.finish(op, err)
}

// SetDriverStatus changes a driver's status. on_duty is driven by the duty
// lifecycle and cannot be set directly. No change is allowed while the
// driver runs a duty, and off_duty is refused while the driver holds
// reservations.
func (e *Engine) SetDriverStatus(ctx context.Context, id string, s model.DriverStatus) error {
	const op = "set_driver_status"
	if !s.Valid() {
		return e.finish(op, &model.InvalidFieldError{Field: "status", Reason: "unknown driver status " + string(s)})
	}
	if s == model.DriverOnDuty {
		return e.finish(op, &model.InvalidFieldError{Field: "status", Reason: "on_duty is set by starting a duty"})
	}
	_, err := e.run(ctx, op, []string{id}, nil, func(*txn) error {
		d, err := e.reg.Driver(id)
		if err != nil {
			return err
		}
		if d.CurrentDuty != "" {
			return &model.AssignmentConflictError{ResourceID: id, DutyID: d.CurrentDuty, Reason: "duty in progress"}
		}
		if s != model.DriverAvailable {
			if err := reserved(id, d.Reservations); err != nil {
				return err
			}
		}
		return e.reg.SetDriverStatus(id, s)
	})
	return e.finish(op, err)
}

// SetVehicleStatus changes a vehicle's status. in_use is driven by the duty
// lifecycle and cannot be set directly. No change is allowed while the
// vehicle runs a duty, and maintenance is refused while the vehicle holds
// reservations.
func (e *Engine) SetVehicleStatus(ctx context.Context, id string, s model.VehicleStatus) error {
	const op = "set_vehicle_status"
	if !s.Valid() {
		return e.finish(op, &model.InvalidFieldError{Field: "status", Reason: "unknown vehicle status " + string(s)})
	}
	if s == model.VehicleInUse {
		return e.finish(op, &model.InvalidFieldError{Field: "status", Reason: "in_use is set by starting a duty"})
	}
	_, err := e.run(ctx, op, []string{id}, nil, func(*txn) error {
		v, err := e.reg.Vehicle(id)
		if err != nil {
			return err
		}
		if v.CurrentDuty != "" {
			return &model.AssignmentConflictError{ResourceID: id, DutyID: v.CurrentDuty, Reason: "duty in progress"}
		}
		if s != model.VehicleAvailable {
			if err := reserved(id, v.Reservations); err != nil {
				return err
			}
		}
		return e.reg.SetVehicleStatus(id, s)
	})
	return e.finish(op, err)
}

// reserved refuses a status change on a resource that assigned duties still
// count on. Starting those duties would overwrite the status.
func reserved(id string, rs []model.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	return &model.AssignmentConflictError{ResourceID: id, DutyID: rs[0].DutyID, Reason: "reserved"}
}
