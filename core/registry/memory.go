package registry

import (
	"sort"
	"sync"

	"github.com/kilianp07/dutysched/core/model"
)

// MemoryRegistry is an in-memory Registry.
type MemoryRegistry struct {
	mu       sync.RWMutex
	drivers  map[string]model.Driver
	vehicles map[string]model.Vehicle
	routes   map[string]model.Route
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		drivers:  map[string]model.Driver{},
		vehicles: map[string]model.Vehicle{},
		routes:   map[string]model.Route{},
	}
}

func (r *MemoryRegistry) exists(id string) bool {
	_, d := r.drivers[id]
	_, v := r.vehicles[id]
	return d || v
}

// RegisterDriver adds a driver.
func (r *MemoryRegistry) RegisterDriver(d model.Driver) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exists(d.ID) {
		return &model.DuplicateResourceError{ID: d.ID}
	}
	if d.Status == "" {
		d.Status = model.DriverAvailable
	}
	d.CurrentDuty = ""
	d.Reservations = nil
	r.drivers[d.ID] = d
	return nil
}

// RegisterVehicle adds a vehicle.
func (r *MemoryRegistry) RegisterVehicle(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exists(v.ID) {
		return &model.DuplicateResourceError{ID: v.ID}
	}
	if v.Status == "" {
		v.Status = model.VehicleAvailable
	}
	v.CurrentDuty = ""
	v.Reservations = nil
	r.vehicles[v.ID] = v
	return nil
}

// RegisterRoute adds a route.
func (r *MemoryRegistry) RegisterRoute(rt model.Route) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[rt.ID]; ok {
		return &model.DuplicateResourceError{ID: rt.ID}
	}
	rt.Stops = append([]string(nil), rt.Stops...)
	r.routes[rt.ID] = rt
	return nil
}

// Driver returns a copy of the driver with the given id.
func (r *MemoryRegistry) Driver(id string) (model.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[id]
	if !ok {
		return model.Driver{}, &model.ResourceNotFoundError{ID: id}
	}
	return copyDriver(d), nil
}

// Vehicle returns a copy of the vehicle with the given id.
func (r *MemoryRegistry) Vehicle(id string) (model.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.vehicles[id]
	if !ok {
		return model.Vehicle{}, &model.ResourceNotFoundError{ID: id}
	}
	return copyVehicle(v), nil
}

// Route returns the route with the given id.
func (r *MemoryRegistry) Route(id string) (model.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.routes[id]
	if !ok {
		return model.Route{}, &model.RouteNotFoundError{ID: id}
	}
	rt.Stops = append([]string(nil), rt.Stops...)
	return rt, nil
}

// Drivers lists drivers by id.
func (r *MemoryRegistry) Drivers() ([]model.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		res = append(res, copyDriver(d))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Vehicles lists vehicles by id.
func (r *MemoryRegistry) Vehicles() ([]model.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Vehicle, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		res = append(res, copyVehicle(v))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Routes lists routes by id.
func (r *MemoryRegistry) Routes() ([]model.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.Route, 0, len(r.routes))
	for _, rt := range r.routes {
		rt.Stops = append([]string(nil), rt.Stops...)
		res = append(res, rt)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// SetAvailability implements Registry.
func (r *MemoryRegistry) SetAvailability(id string, w model.TimeWindow) error {
	if !w.IsZero() {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[id]; ok {
		d.Availability = w
		r.drivers[id] = d
		return nil
	}
	if v, ok := r.vehicles[id]; ok {
		v.Availability = w
		r.vehicles[id] = v
		return nil
	}
	return &model.ResourceNotFoundError{ID: id}
}

// SetDriverStatus overwrites a driver's status.
func (r *MemoryRegistry) SetDriverStatus(id string, s model.DriverStatus) error {
	if !s.Valid() {
		return &model.InvalidFieldError{Field: "status", Reason: "unknown driver status " + string(s)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[id]
	if !ok {
		return &model.ResourceNotFoundError{ID: id}
	}
	d.Status = s
	r.drivers[id] = d
	return nil
}

// SetVehicleStatus overwrites a vehicle's status.
func (r *MemoryRegistry) SetVehicleStatus(id string, s model.VehicleStatus) error {
	if !s.Valid() {
		return &model.InvalidFieldError{Field: "status", Reason: "unknown vehicle status " + string(s)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return &model.ResourceNotFoundError{ID: id}
	}
	v.Status = s
	r.vehicles[id] = v
	return nil
}

// Reserve implements Registry.
func (r *MemoryRegistry) Reserve(id, dutyID string, w model.TimeWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := model.Reservation{DutyID: dutyID, Window: w}
	if d, ok := r.drivers[id]; ok {
		if err := ReserveCheck(id, dutyID, w, d.Reservations); err != nil {
			return err
		}
		d.Reservations = append(append([]model.Reservation(nil), d.Reservations...), res)
		model.SortReservations(d.Reservations)
		r.drivers[id] = d
		return nil
	}
	if v, ok := r.vehicles[id]; ok {
		if err := ReserveCheck(id, dutyID, w, v.Reservations); err != nil {
			return err
		}
		v.Reservations = append(append([]model.Reservation(nil), v.Reservations...), res)
		model.SortReservations(v.Reservations)
		r.vehicles[id] = v
		return nil
	}
	return &model.ResourceNotFoundError{ID: id}
}

// Release implements Registry.
func (r *MemoryRegistry) Release(id, dutyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[id]; ok {
		d.Reservations = without(d.Reservations, dutyID)
		if d.CurrentDuty == dutyID {
			d.CurrentDuty = ""
			if d.Status == model.DriverOnDuty {
				d.Status = model.DriverAvailable
			}
		}
		r.drivers[id] = d
		return nil
	}
	if v, ok := r.vehicles[id]; ok {
		v.Reservations = without(v.Reservations, dutyID)
		if v.CurrentDuty == dutyID {
			v.CurrentDuty = ""
			if v.Status == model.VehicleInUse {
				v.Status = model.VehicleAvailable
			}
		}
		r.vehicles[id] = v
		return nil
	}
	return &model.ResourceNotFoundError{ID: id}
}

// Activate marks dutyID as the duty the resource is running.
func (r *MemoryRegistry) Activate(id, dutyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drivers[id]; ok {
		if d.CurrentDuty != "" && d.CurrentDuty != dutyID {
			return &model.AlreadyReservedError{ResourceID: id, DutyID: d.CurrentDuty}
		}
		d.CurrentDuty = dutyID
		d.Status = model.DriverOnDuty
		r.drivers[id] = d
		return nil
	}
	if v, ok := r.vehicles[id]; ok {
		if v.CurrentDuty != "" && v.CurrentDuty != dutyID {
			return &model.AlreadyReservedError{ResourceID: id, DutyID: v.CurrentDuty}
		}
		v.CurrentDuty = dutyID
		v.Status = model.VehicleInUse
		r.vehicles[id] = v
		return nil
	}
	return &model.ResourceNotFoundError{ID: id}
}

// RestoreDriver overwrites a driver with a previous copy.
func (r *MemoryRegistry) RestoreDriver(d model.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drivers[d.ID]; !ok {
		return &model.ResourceNotFoundError{ID: d.ID}
	}
	r.drivers[d.ID] = copyDriver(d)
	return nil
}

// RestoreVehicle overwrites a vehicle with a previous copy.
func (r *MemoryRegistry) RestoreVehicle(v model.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vehicles[v.ID]; !ok {
		return &model.ResourceNotFoundError{ID: v.ID}
	}
	r.vehicles[v.ID] = copyVehicle(v)
	return nil
}

func without(rs []model.Reservation, dutyID string) []model.Reservation {
	out := make([]model.Reservation, 0, len(rs))
	for _, r := range rs {
		if r.DutyID != dutyID {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func copyDriver(d model.Driver) model.Driver {
	d.Reservations = append([]model.Reservation(nil), d.Reservations...)
	return d
}

func copyVehicle(v model.Vehicle) model.Vehicle {
	v.Reservations = append([]model.Reservation(nil), v.Reservations...)
	return v
}
