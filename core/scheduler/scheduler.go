package scheduler

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kilianp07/dutysched/core/logger"
	"github.com/kilianp07/dutysched/core/model"
)

// Advancer moves duties whose window boundaries have passed.
type Advancer interface {
	Advance(ctx context.Context, now time.Time) ([]model.TransitionEvent, error)
}

// Scheduler calls an Advancer on a fixed interval.
type Scheduler struct {
	Config SchedulerConfig
	adv    Advancer
	log    logger.Logger
	now    func() time.Time
}

// New returns a scheduler. A nil logger discards output.
func New(cfg SchedulerConfig, adv Advancer, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Scheduler{Config: cfg, adv: adv, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Tick advances duties once and returns the number of transitions made.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	evs, err := s.adv.Advance(ctx, s.now())
	if len(evs) > 0 {
		s.log.Infof("advanced %d duty transitions", len(evs))
	}
	return len(evs), err
}

// Run ticks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Errorf("advance error: %v", err)
			}
		}
	}
}

// PlanEntry is one duty on a vehicle's day plan.
type PlanEntry struct {
	VehicleID string          `json:"vehicle_id"`
	DutyID    string          `json:"duty_id"`
	DriverID  string          `json:"driver_id"`
	RouteID   string          `json:"route_id,omitempty"`
	State     model.DutyState `json:"state"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	// Idle is the free time on the vehicle since the previous entry, or
	// since midnight for the first one.
	Idle time.Duration `json:"idle"`
}

// GeneratePlan builds the plan of the UTC day containing date. Duties
// without a vehicle and cancelled duties are left out. Entries are ordered by
// vehicle then start.
func GeneratePlan(duties []model.Duty, date time.Time) ([]PlanEntry, error) {
	if date.IsZero() {
		return nil, errors.New("plan date required")
	}
	date = date.UTC()
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	day := model.TimeWindow{Start: dayStart, End: dayStart.Add(24 * time.Hour)}

	var entries []PlanEntry
	for _, d := range duties {
		if d.VehicleID == "" || d.State == model.StateCancelled || !d.Window.Overlaps(day) {
			continue
		}
		w := d.Window.Intersect(day)
		entries = append(entries, PlanEntry{
			VehicleID: d.VehicleID,
			DutyID:    d.ID,
			DriverID:  d.DriverID,
			RouteID:   d.RouteID,
			State:     d.State,
			Start:     w.Start,
			End:       w.End,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VehicleID != entries[j].VehicleID {
			return entries[i].VehicleID < entries[j].VehicleID
		}
		return entries[i].Start.Before(entries[j].Start)
	})
	var prevVehicle string
	var prevEnd time.Time
	for i := range entries {
		if entries[i].VehicleID != prevVehicle {
			prevVehicle, prevEnd = entries[i].VehicleID, dayStart
		}
		if gap := entries[i].Start.Sub(prevEnd); gap > 0 {
			entries[i].Idle = gap
		}
		if entries[i].End.After(prevEnd) {
			prevEnd = entries[i].End
		}
	}
	return entries, nil
}
