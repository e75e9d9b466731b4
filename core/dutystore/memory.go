package dutystore

import (
	"sync"
	"time"

	"github.com/kilianp07/dutysched/core/model"
)

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	duties map[string]model.Duty
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{duties: map[string]model.Duty{}}
}

// Create stores a new duty in its initial state.
func (s *MemoryStore) Create(d model.Duty) (model.Duty, error) {
	d, err := Prepare(d, time.Now().UTC())
	if err != nil {
		return d, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duties[d.ID]; ok {
		return d, &model.InvalidFieldError{Field: "id", Reason: "duty " + d.ID + " already exists"}
	}
	s.duties[d.ID] = d
	return d, nil
}

// Get returns a copy of the duty with the given id.
func (s *MemoryStore) Get(id string) (model.Duty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.duties[id]
	if !ok {
		return model.Duty{}, &model.DutyNotFoundError{ID: id}
	}
	return d, nil
}

// List returns the duties matching f ordered by window start.
func (s *MemoryStore) List(f Filter) ([]model.Duty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Duty, 0, len(s.duties))
	for _, d := range s.duties {
		if f.Match(d) {
			res = append(res, d)
		}
	}
	SortDuties(res)
	return res, nil
}

// Transition moves a duty to state to if the lifecycle allows it.
func (s *MemoryStore) Transition(id string, to model.DutyState, at time.Time) (model.Duty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.duties[id]
	if !ok {
		return model.Duty{}, &model.DutyNotFoundError{ID: id}
	}
	d, err := ApplyTransition(d, to, at)
	if err != nil {
		return d, err
	}
	s.duties[id] = d
	return d, nil
}

// Bind sets the driver, vehicle and route of a duty.
func (s *MemoryStore) Bind(id, driverID, vehicleID, routeID string, at time.Time) (model.Duty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.duties[id]
	if !ok {
		return model.Duty{}, &model.DutyNotFoundError{ID: id}
	}
	d, err := ApplyBind(d, driverID, vehicleID, routeID, at)
	if err != nil {
		return d, err
	}
	s.duties[id] = d
	return d, nil
}

// Delete removes a duty.
func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duties[id]; !ok {
		return &model.DutyNotFoundError{ID: id}
	}
	delete(s.duties, id)
	return nil
}

// Restore overwrites a stored duty with a previous copy.
func (s *MemoryStore) Restore(d model.Duty) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.duties[d.ID]; !ok {
		return &model.DutyNotFoundError{ID: d.ID}
	}
	s.duties[d.ID] = d
	return nil
}
