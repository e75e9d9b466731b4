// Package assign is the sole mutator of the registry and duty store. Every
// operation locks the resources and duty it touches, checks conflicts, applies
// its changes all-or-nothing and publishes the resulting transitions.
package assign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/dutysched/core/conflict"
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/feed"
	"github.com/kilianp07/dutysched/core/logger"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

// DefaultLockTimeout bounds lock acquisition when Config leaves it unset.
const DefaultLockTimeout = 2 * time.Second

// refRetries is how often an operation re-reads a duty whose resource
// references changed between the unlocked read and lock acquisition.
const refRetries = 3

// Config tunes the engine.
type Config struct {
	LockTimeout time.Duration `json:"lock_timeout"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces the wall clock used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the duty id generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// Engine orchestrates duty creation, assignment and lifecycle.
type Engine struct {
	reg     registry.Registry
	duties  dutystore.Store
	feed    *feed.Feed
	log     logger.Logger
	locks   *lockManager
	timeout time.Duration
	now     func() time.Time
	newID   func() string

	// gate is held shared by commits and exclusively by snapshots.
	gate sync.RWMutex
}

// New wires an engine over the given stores and attaches it to f as the
// snapshot source. A nil feed gets a private one.
func New(reg registry.Registry, duties dutystore.Store, f *feed.Feed, cfg Config, opts ...Option) *Engine {
	cfg.SetDefaults()
	if f == nil {
		f = feed.New()
	}
	e := &Engine{
		reg:     reg,
		duties:  duties,
		feed:    f,
		log:     logger.NopLogger{},
		locks:   newLockManager(),
		timeout: cfg.LockTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	f.Attach(e)
	return e
}

// Feed returns the feed transitions are published on.
func (e *Engine) Feed() *feed.Feed { return e.feed }

// Resources gives read access to the registry. Reads wait for in-flight
// commits to finish.
func (e *Engine) Resources() registry.Reader { return gatedRegistry{e} }

// Duties gives read access to the duty store. Reads wait for in-flight
// commits to finish.
func (e *Engine) Duties() dutystore.Reader { return gatedDuties{e} }

var errRefsChanged = errors.New("duty resources changed while locking")

// txn collects the effects of one locked mutation.
type txn struct {
	e      *Engine
	at     time.Time
	undo   undoLog
	events []model.TransitionEvent
}

// run acquires the locks for resources and duties, executes fn under the
// shared commit gate and publishes the collected events on success. Any error
// from fn rolls back the steps fn recorded.
func (e *Engine) run(ctx context.Context, op string, resources, duties []string, fn func(tx *txn) error) ([]model.TransitionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := lockKeys(resources, duties)
	start := time.Now()
	release, err := e.locks.acquire(ctx, e.timeout, keys)
	lockWait.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer release()

	e.gate.RLock()
	defer e.gate.RUnlock()

	tx := &txn{e: e, at: e.now()}
	if err := fn(tx); err != nil {
		if rerr := tx.undo.rollback(); rerr != nil {
			e.log.Errorf("%s: rollback failed: %v", op, rerr)
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return nil, err
	}
	published := make([]model.TransitionEvent, 0, len(tx.events))
	for _, ev := range tx.events {
		ev = e.feed.Publish(ev)
		published = append(published, ev)
		e.log.Debugw("duty transition", map[string]any{
			"seq": ev.Seq, "duty_id": ev.DutyID, "from": string(ev.Previous), "to": string(ev.Next),
		})
	}
	return published, nil
}

// finish records the outcome of op.
func (e *Engine) finish(op string, err error) error {
	if err == nil {
		requestsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}
	cat := model.CategoryName(err)
	requestsTotal.WithLabelValues(op, cat).Inc()
	switch cat {
	case "internal":
		e.log.Errorf("%s: %v", op, err)
	case "timeout":
		e.log.Warnf("%s: %v", op, err)
	default:
		e.log.Debugf("%s rejected: %v", op, err)
	}
	return err
}

func (tx *txn) check(c conflict.Candidate) error {
	res, err := conflict.Check(tx.e.reg, tx.e.duties, c)
	if err != nil {
		return err
	}
	if res.Conflict {
		conflictsTotal.WithLabelValues(string(res.Reason)).Inc()
		return res.Err()
	}
	return nil
}

func (tx *txn) create(d model.Duty) (model.Duty, error) {
	d.CreatedAt = tx.at
	created, err := tx.e.duties.Create(d)
	if err != nil {
		return created, err
	}
	tx.undo.push(func() error { return tx.e.duties.Delete(created.ID) })
	tx.events = append(tx.events, model.NewTransition(created, "", tx.at))
	return created, nil
}

func (tx *txn) transition(d model.Duty, to model.DutyState) (model.Duty, error) {
	updated, err := tx.e.duties.Transition(d.ID, to, tx.at)
	if err != nil {
		return d, err
	}
	tx.undo.push(func() error { return tx.e.duties.Restore(d) })
	tx.events = append(tx.events, model.NewTransition(updated, d.State, tx.at))
	return updated, nil
}

func (tx *txn) bind(d model.Duty, driverID, vehicleID, routeID string) (model.Duty, error) {
	bound, err := tx.e.duties.Bind(d.ID, driverID, vehicleID, routeID, tx.at)
	if err != nil {
		return d, err
	}
	tx.undo.push(func() error { return tx.e.duties.Restore(d) })
	return bound, nil
}

// reserveAndAssign reserves both resources of d and moves it to assigned.
func (tx *txn) reserveAndAssign(d model.Duty) (model.Duty, error) {
	for _, id := range []string{d.DriverID, d.VehicleID} {
		if err := tx.e.reg.Reserve(id, d.ID, d.Window); err != nil {
			return d, err
		}
		tx.undo.push(func() error { return tx.e.reg.Release(id, d.ID) })
	}
	return tx.transition(d, model.StateAssigned)
}

// capture returns a step restoring the current record of a driver or vehicle.
func (tx *txn) capture(id string) (func() error, error) {
	if d, err := tx.e.reg.Driver(id); err == nil {
		return func() error { return tx.e.reg.RestoreDriver(d) }, nil
	}
	v, err := tx.e.reg.Vehicle(id)
	if err != nil {
		return nil, err
	}
	return func() error { return tx.e.reg.RestoreVehicle(v) }, nil
}

func (tx *txn) release(resourceID, dutyID string) error {
	restore, err := tx.capture(resourceID)
	if err != nil {
		return err
	}
	if err := tx.e.reg.Release(resourceID, dutyID); err != nil {
		return err
	}
	tx.undo.push(restore)
	return nil
}

func (tx *txn) activate(resourceID, dutyID string) error {
	restore, err := tx.capture(resourceID)
	if err != nil {
		return err
	}
	if err := tx.e.reg.Activate(resourceID, dutyID); err != nil {
		return err
	}
	tx.undo.push(restore)
	return nil
}

// CreateLinkedDuty creates a duty with its driver, vehicle and route and
// reserves both resources in one step. The returned duty is assigned.
func (e *Engine) CreateLinkedDuty(ctx context.Context, req LinkedDutyRequest) (model.Duty, error) {
	const op = "create_linked"
	if err := req.Validate(); err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	id := e.newID()
	var out model.Duty
	_, err := e.run(ctx, op, []string{req.DriverID, req.VehicleID}, []string{id}, func(tx *txn) error {
		if _, err := e.reg.Route(req.RouteID); err != nil {
			return err
		}
		if err := tx.check(conflict.Candidate{DutyID: id, DriverID: req.DriverID, VehicleID: req.VehicleID, Window: req.Window}); err != nil {
			return err
		}
		d, err := tx.create(model.Duty{
			ID:        id,
			Kind:      model.KindLinked,
			Window:    req.Window,
			DriverID:  req.DriverID,
			VehicleID: req.VehicleID,
			RouteID:   req.RouteID,
			Notes:     req.Notes,
		})
		if err != nil {
			return err
		}
		out, err = tx.reserveAndAssign(d)
		return err
	})
	if err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	e.log.Infof("linked duty %s assigned to driver %s vehicle %s", out.ID, out.DriverID, out.VehicleID)
	return out, e.finish(op, nil)
}

// ScheduleLinkedDuty records a linked duty with proposed resources but does
// not reserve them. The duty stays scheduled until AssignUnlinkedDuty
// confirms it.
func (e *Engine) ScheduleLinkedDuty(ctx context.Context, req LinkedDutyRequest) (model.Duty, error) {
	const op = "schedule_linked"
	if err := req.Validate(); err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	id := e.newID()
	var out model.Duty
	_, err := e.run(ctx, op, nil, []string{id}, func(tx *txn) error {
		if _, err := e.reg.Route(req.RouteID); err != nil {
			return err
		}
		if _, err := e.reg.Driver(req.DriverID); err != nil {
			return err
		}
		if _, err := e.reg.Vehicle(req.VehicleID); err != nil {
			return err
		}
		var err error
		out, err = tx.create(model.Duty{
			ID:        id,
			Kind:      model.KindLinked,
			Window:    req.Window,
			DriverID:  req.DriverID,
			VehicleID: req.VehicleID,
			RouteID:   req.RouteID,
			Notes:     req.Notes,
		})
		return err
	})
	if err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	return out, e.finish(op, nil)
}

// CreateUnlinkedDuty records a duty awaiting assignment. No resources are
// touched.
func (e *Engine) CreateUnlinkedDuty(ctx context.Context, req UnlinkedDutyRequest) (model.Duty, error) {
	const op = "create_unlinked"
	if err := req.Validate(); err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	id := e.newID()
	var out model.Duty
	_, err := e.run(ctx, op, nil, []string{id}, func(tx *txn) error {
		var err error
		out, err = tx.create(model.Duty{
			ID:       id,
			Kind:     model.KindUnlinked,
			Window:   req.Window,
			Priority: req.Priority,
			Location: req.Location,
			Notes:    req.Notes,
		})
		return err
	})
	if err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	return out, e.finish(op, nil)
}

func pick(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}

// AssignUnlinkedDuty confirms resources for an unassigned or scheduled duty
// and moves it to assigned.
func (e *Engine) AssignUnlinkedDuty(ctx context.Context, req AssignRequest) (model.Duty, error) {
	const op = "assign"
	if err := req.Validate(); err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	var out model.Duty
	var err error
	for attempt := 0; attempt < refRetries; attempt++ {
		out, err = e.assignOnce(ctx, op, req)
		if !errors.Is(err, errRefsChanged) {
			break
		}
	}
	if errors.Is(err, errRefsChanged) {
		err = &model.AssignmentConflictError{ResourceID: req.DriverID, DutyID: req.DutyID, Reason: "duty changed concurrently"}
	}
	if err != nil {
		return model.Duty{}, e.finish(op, err)
	}
	e.log.Infof("duty %s assigned to driver %s vehicle %s", out.ID, out.DriverID, out.VehicleID)
	return out, e.finish(op, nil)
}

func (e *Engine) assignOnce(ctx context.Context, op string, req AssignRequest) (model.Duty, error) {
	cur, err := e.duties.Get(req.DutyID)
	if err != nil {
		return model.Duty{}, err
	}
	if cur.State != model.StateUnassigned && cur.State != model.StateScheduled {
		return model.Duty{}, &model.DutyNotUnassignedError{DutyID: cur.ID, State: cur.State}
	}
	driverID, vehicleID := pick(req.DriverID, cur.DriverID), pick(req.VehicleID, cur.VehicleID)
	if driverID == "" {
		return model.Duty{}, &model.InvalidFieldError{Field: "driver_id", Reason: "required"}
	}
	if vehicleID == "" {
		return model.Duty{}, &model.InvalidFieldError{Field: "vehicle_id", Reason: "required"}
	}

	var out model.Duty
	_, err = e.run(ctx, op, []string{driverID, vehicleID}, []string{req.DutyID}, func(tx *txn) error {
		d, err := e.duties.Get(req.DutyID)
		if err != nil {
			return err
		}
		if d.State != model.StateUnassigned && d.State != model.StateScheduled {
			return &model.DutyNotUnassignedError{DutyID: d.ID, State: d.State}
		}
		if pick(req.DriverID, d.DriverID) != driverID || pick(req.VehicleID, d.VehicleID) != vehicleID {
			return errRefsChanged
		}
		routeID := pick(req.RouteID, d.RouteID)
		if d.Kind == model.KindLinked && routeID == "" {
			return &model.MissingRouteError{DutyID: d.ID}
		}
		if routeID != "" {
			if _, err := e.reg.Route(routeID); err != nil {
				return err
			}
		}
		if err := tx.check(conflict.Candidate{DutyID: d.ID, DriverID: driverID, VehicleID: vehicleID, Window: d.Window}); err != nil {
			return err
		}
		bound, err := tx.bind(d, driverID, vehicleID, routeID)
		if err != nil {
			return err
		}
		out, err = tx.reserveAndAssign(bound)
		return err
	})
	return out, err
}

// StartDuty moves an assigned duty to in_progress and marks its resources as
// running it.
func (e *Engine) StartDuty(ctx context.Context, id string) (model.Duty, error) {
	d, _, err := e.move(ctx, "start", id, model.StateInProgress)
	return d, err
}

// CompleteDuty finishes a running duty and releases its resources.
func (e *Engine) CompleteDuty(ctx context.Context, id string) (model.Duty, error) {
	d, _, err := e.move(ctx, "complete", id, model.StateCompleted)
	return d, err
}

// CancelDuty cancels a non-terminal duty, releasing any reserved resources.
func (e *Engine) CancelDuty(ctx context.Context, id string) (model.Duty, error) {
	d, _, err := e.move(ctx, "cancel", id, model.StateCancelled)
	return d, err
}

func (e *Engine) move(ctx context.Context, op, id string, to model.DutyState) (model.Duty, []model.TransitionEvent, error) {
	if id == "" {
		return model.Duty{}, nil, e.finish(op, &model.InvalidFieldError{Field: "duty_id", Reason: "required"})
	}
	var (
		out model.Duty
		evs []model.TransitionEvent
		err error
	)
	for attempt := 0; attempt < refRetries; attempt++ {
		out, evs, err = e.moveOnce(ctx, op, id, to)
		if !errors.Is(err, errRefsChanged) {
			break
		}
	}
	if errors.Is(err, errRefsChanged) {
		err = &model.AssignmentConflictError{DutyID: id, Reason: "duty changed concurrently"}
	}
	if err != nil {
		return model.Duty{}, nil, e.finish(op, err)
	}
	return out, evs, e.finish(op, nil)
}

func (e *Engine) moveOnce(ctx context.Context, op, id string, to model.DutyState) (model.Duty, []model.TransitionEvent, error) {
	cur, err := e.duties.Get(id)
	if err != nil {
		return model.Duty{}, nil, err
	}
	var out model.Duty
	evs, err := e.run(ctx, op, []string{cur.DriverID, cur.VehicleID}, []string{id}, func(tx *txn) error {
		d, err := e.duties.Get(id)
		if err != nil {
			return err
		}
		if d.DriverID != cur.DriverID || d.VehicleID != cur.VehicleID {
			return errRefsChanged
		}
		out, err = tx.transition(d, to)
		if err != nil {
			return err
		}
		switch {
		case to == model.StateInProgress:
			for _, rid := range []string{d.DriverID, d.VehicleID} {
				if err := tx.activate(rid, d.ID); err != nil {
					return err
				}
			}
		case to.IsTerminal() && d.State.IsActive():
			for _, rid := range []string{d.DriverID, d.VehicleID} {
				if err := tx.release(rid, d.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return out, evs, err
}

// Advance starts assigned duties whose window has begun and completes running
// duties whose window has ended. Completions run first so back-to-back duties
// on the same resources can start. It returns the transitions it made.
func (e *Engine) Advance(ctx context.Context, now time.Time) ([]model.TransitionEvent, error) {
	var (
		out  []model.TransitionEvent
		errs []error
	)
	step := func(op, id string, to model.DutyState) bool {
		_, evs, err := e.move(ctx, op, id, to)
		out = append(out, evs...)
		switch {
		case err == nil:
			return true
		case ctx.Err() != nil:
			errs = append(errs, err)
			return false
		case errors.Is(err, model.ErrIllegalTransition), errors.Is(err, model.ErrNotFound):
			// Changed by another caller since it was listed.
			return false
		default:
			errs = append(errs, fmt.Errorf("%s %s: %w", op, id, err))
			return false
		}
	}

	running, err := e.duties.List(dutystore.Filter{States: []model.DutyState{model.StateInProgress}})
	if err != nil {
		return nil, err
	}
	for _, d := range running {
		if ctx.Err() != nil {
			break
		}
		if !now.Before(d.Window.End) {
			step("complete", d.ID, model.StateCompleted)
		}
	}

	due, err := e.duties.List(dutystore.Filter{States: []model.DutyState{model.StateAssigned}, To: now.Add(time.Nanosecond)})
	if err != nil {
		return out, errors.Join(append(errs, err)...)
	}
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		if now.Before(d.Window.Start) {
			continue
		}
		if step("start", d.ID, model.StateInProgress) && !now.Before(d.Window.End) {
			step("complete", d.ID, model.StateCompleted)
		}
	}
	if ctx.Err() != nil && len(errs) == 0 {
		errs = append(errs, ctx.Err())
	}
	return out, errors.Join(errs...)
}

// Snapshot returns a consistent view of every duty and resource. No commit
// is in flight while it is taken.
func (e *Engine) Snapshot(ctx context.Context) (feed.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return feed.Snapshot{}, err
	}
	e.gate.Lock()
	defer e.gate.Unlock()

	duties, err := e.duties.List(dutystore.Filter{})
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("snapshot duties: %w", err)
	}
	drivers, err := e.reg.Drivers()
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("snapshot drivers: %w", err)
	}
	vehicles, err := e.reg.Vehicles()
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("snapshot vehicles: %w", err)
	}
	routes, err := e.reg.Routes()
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("snapshot routes: %w", err)
	}
	return feed.Snapshot{
		Taken:    e.now(),
		Seq:      e.feed.Seq(),
		Duties:   duties,
		Drivers:  drivers,
		Vehicles: vehicles,
		Routes:   routes,
	}, nil
}
