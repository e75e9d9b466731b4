package sqlite

import (
	"database/sql"
	"errors"

	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

const (
	kindDriver  = "driver"
	kindVehicle = "vehicle"
)

// Registry is a registry.Registry stored in SQLite.
type Registry struct {
	db *sql.DB
}

var _ registry.Registry = (*Registry)(nil)

// resource holds either a driver or a vehicle loaded for update.
type resource struct {
	driver  *model.Driver
	vehicle *model.Vehicle
}

func (r resource) reservations() *[]model.Reservation {
	if r.driver != nil {
		return &r.driver.Reservations
	}
	return &r.vehicle.Reservations
}

func (r resource) currentDuty() *string {
	if r.driver != nil {
		return &r.driver.CurrentDuty
	}
	return &r.vehicle.CurrentDuty
}

func loadResource(q queryer, id string) (resource, error) {
	var kind, doc string
	err := q.QueryRow(`SELECT kind, doc FROM resources WHERE id = ?`, id).Scan(&kind, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return resource{}, &model.ResourceNotFoundError{ID: id}
	}
	if err != nil {
		return resource{}, err
	}
	if kind == kindDriver {
		d, err := decode[model.Driver](doc)
		return resource{driver: &d}, err
	}
	v, err := decode[model.Vehicle](doc)
	return resource{vehicle: &v}, err
}

func saveResource(tx *sql.Tx, r resource) error {
	var (
		id  string
		doc string
		err error
	)
	if r.driver != nil {
		id = r.driver.ID
		doc, err = encode(r.driver)
	} else {
		id = r.vehicle.ID
		doc, err = encode(r.vehicle)
	}
	if err != nil {
		return err
	}
	_, err = tx.Exec(`UPDATE resources SET doc = ? WHERE id = ?`, doc, id)
	return err
}

func (s *Registry) update(id string, fn func(resource) error) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		r, err := loadResource(tx, id)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		return saveResource(tx, r)
	})
}

func (s *Registry) insert(id, kind string, v any) error {
	doc, err := encode(v)
	if err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM resources WHERE id = ?`, id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return &model.DuplicateResourceError{ID: id}
		}
		_, err := tx.Exec(`INSERT INTO resources (id, kind, doc) VALUES (?, ?, ?)`, id, kind, doc)
		return err
	})
}

func (s *Registry) RegisterDriver(d model.Driver) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Status == "" {
		d.Status = model.DriverAvailable
	}
	d.CurrentDuty = ""
	d.Reservations = nil
	return s.insert(d.ID, kindDriver, d)
}

func (s *Registry) RegisterVehicle(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}
	v.CurrentDuty = ""
	v.Reservations = nil
	return s.insert(v.ID, kindVehicle, v)
}

func (s *Registry) RegisterRoute(rt model.Route) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	doc, err := encode(rt)
	if err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM routes WHERE id = ?`, rt.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return &model.DuplicateResourceError{ID: rt.ID}
		}
		_, err := tx.Exec(`INSERT INTO routes (id, doc) VALUES (?, ?)`, rt.ID, doc)
		return err
	})
}

func (s *Registry) Driver(id string) (model.Driver, error) {
	r, err := loadResource(s.db, id)
	if err != nil {
		return model.Driver{}, err
	}
	if r.driver == nil {
		return model.Driver{}, &model.ResourceNotFoundError{ID: id}
	}
	return *r.driver, nil
}

func (s *Registry) Vehicle(id string) (model.Vehicle, error) {
	r, err := loadResource(s.db, id)
	if err != nil {
		return model.Vehicle{}, err
	}
	if r.vehicle == nil {
		return model.Vehicle{}, &model.ResourceNotFoundError{ID: id}
	}
	return *r.vehicle, nil
}

func (s *Registry) Route(id string) (model.Route, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM routes WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Route{}, &model.RouteNotFoundError{ID: id}
	}
	if err != nil {
		return model.Route{}, err
	}
	return decode[model.Route](doc)
}

func listDocs[T any](db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []T{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		v, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *Registry) Drivers() ([]model.Driver, error) {
	return listDocs[model.Driver](s.db, `SELECT doc FROM resources WHERE kind = ? ORDER BY id`, kindDriver)
}

func (s *Registry) Vehicles() ([]model.Vehicle, error) {
	return listDocs[model.Vehicle](s.db, `SELECT doc FROM resources WHERE kind = ? ORDER BY id`, kindVehicle)
}

func (s *Registry) Routes() ([]model.Route, error) {
	return listDocs[model.Route](s.db, `SELECT doc FROM routes ORDER BY id`)
}

func (s *Registry) SetAvailability(id string, w model.TimeWindow) error {
	if !w.IsZero() {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return s.update(id, func(r resource) error {
		if r.driver != nil {
			r.driver.Availability = w
		} else {
			r.vehicle.Availability = w
		}
		return nil
	})
}

func (s *Registry) SetDriverStatus(id string, st model.DriverStatus) error {
	if !st.Valid() {
		return &model.InvalidFieldError{Field: "status", Reason: "unknown driver status " + string(st)}
	}
	return s.update(id, func(r resource) error {
		if r.driver == nil {
			return &model.ResourceNotFoundError{ID: id}
		}
		r.driver.Status = st
		return nil
	})
}

func (s *Registry) SetVehicleStatus(id string, st model.VehicleStatus) error {
	if !st.Valid() {
		return &model.InvalidFieldError{Field: "status", Reason: "unknown vehicle status " + string(st)}
	}
	return s.update(id, func(r resource) error {
		if r.vehicle == nil {
			return &model.ResourceNotFoundError{ID: id}
		}
		r.vehicle.Status = st
		return nil
	})
}

func (s *Registry) Reserve(id, dutyID string, w model.TimeWindow) error {
	return s.update(id, func(r resource) error {
		rs := r.reservations()
		if err := registry.ReserveCheck(id, dutyID, w, *rs); err != nil {
			return err
		}
		*rs = append(*rs, model.Reservation{DutyID: dutyID, Window: w})
		model.SortReservations(*rs)
		return nil
	})
}

func (s *Registry) Release(id, dutyID string) error {
	return s.update(id, func(r resource) error {
		rs := r.reservations()
		kept := (*rs)[:0]
		for _, res := range *rs {
			if res.DutyID != dutyID {
				kept = append(kept, res)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		*rs = kept
		if cur := r.currentDuty(); *cur == dutyID {
			*cur = ""
			if r.driver != nil && r.driver.Status == model.DriverOnDuty {
				r.driver.Status = model.DriverAvailable
			}
			if r.vehicle != nil && r.vehicle.Status == model.VehicleInUse {
				r.vehicle.Status = model.VehicleAvailable
			}
		}
		return nil
	})
}

func (s *Registry) Activate(id, dutyID string) error {
	return s.update(id, func(r resource) error {
		cur := r.currentDuty()
		if *cur != "" && *cur != dutyID {
			return &model.AlreadyReservedError{ResourceID: id, DutyID: *cur}
		}
		*cur = dutyID
		if r.driver != nil {
			r.driver.Status = model.DriverOnDuty
		} else {
			r.vehicle.Status = model.VehicleInUse
		}
		return nil
	})
}

func (s *Registry) RestoreDriver(d model.Driver) error {
	return s.update(d.ID, func(r resource) error {
		if r.driver == nil {
			return &model.ResourceNotFoundError{ID: d.ID}
		}
		*r.driver = d
		return nil
	})
}

func (s *Registry) RestoreVehicle(v model.Vehicle) error {
	return s.update(v.ID, func(r resource) error {
		if r.vehicle == nil {
			return &model.ResourceNotFoundError{ID: v.ID}
		}
		*r.vehicle = v
		return nil
	})
}
