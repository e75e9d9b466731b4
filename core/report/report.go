// Package report derives operational summaries from a point-in-time view of
// duties and resources.
package report

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/dutysched/core/model"
)

// Dashboard counts duties per lifecycle bucket.
type Dashboard struct {
	Total      int `json:"total_duties"`
	Completed  int `json:"completed_duties"`
	Ongoing    int `json:"ongoing_duties"`
	Scheduled  int `json:"scheduled_duties"`
	Unassigned int `json:"unassigned_duties"`
	Cancelled  int `json:"cancelled_duties"`
	// UtilizationRate is the percentage of vehicles running a duty.
	UtilizationRate float64 `json:"utilization_rate"`
}

// Summarize builds the dashboard. Scheduled covers duties that are scheduled
// or assigned but not started.
func Summarize(duties []model.Duty, vehicles []model.Vehicle) Dashboard {
	var db Dashboard
	db.Total = len(duties)
	for _, d := range duties {
		switch d.State {
		case model.StateCompleted:
			db.Completed++
		case model.StateInProgress:
			db.Ongoing++
		case model.StateScheduled, model.StateAssigned:
			db.Scheduled++
		case model.StateUnassigned:
			db.Unassigned++
		case model.StateCancelled:
			db.Cancelled++
		}
	}
	if len(vehicles) > 0 {
		busy := 0
		for _, v := range vehicles {
			if v.CurrentDuty != "" {
				busy++
			}
		}
		db.UtilizationRate = percent(float64(busy), float64(len(vehicles)))
	}
	return db
}

// DriverStats is the performance line of one driver.
type DriverStats struct {
	DriverID    string  `json:"driver_id"`
	Name        string  `json:"name"`
	Completed   int     `json:"completed_duties"`
	Cancelled   int     `json:"cancelled_duties"`
	OnDutyHours float64 `json:"on_duty_hours"`
}

// Drivers returns one line per driver, ordered by id. On-duty hours sum the
// windows of completed duties.
func Drivers(duties []model.Duty, drivers []model.Driver) []DriverStats {
	idx := make(map[string]int, len(drivers))
	out := make([]DriverStats, len(drivers))
	for i, d := range drivers {
		idx[d.ID] = i
		out[i] = DriverStats{DriverID: d.ID, Name: d.Name}
	}
	for _, d := range duties {
		i, ok := idx[d.DriverID]
		if !ok {
			continue
		}
		switch d.State {
		case model.StateCompleted:
			out[i].Completed++
			out[i].OnDutyHours += d.Window.Duration().Hours()
		case model.StateCancelled:
			out[i].Cancelled++
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DriverID < out[b].DriverID })
	return out
}

// VehicleUsage is the share of a period a vehicle spent on duties.
type VehicleUsage struct {
	VehicleID  string  `json:"vehicle_id"`
	Identifier string  `json:"identifier"`
	UsedHours  float64 `json:"used_hours"`
	Percent    float64 `json:"utilization_percent"`
}

// Utilization is the per-vehicle usage over a period plus the fleet mean.
type Utilization struct {
	Period   model.TimeWindow `json:"period"`
	Vehicles []VehicleUsage   `json:"vehicles"`
	Average  float64          `json:"fleet_average_percent"`
}

// VehicleUtilization measures how much of period each vehicle was committed.
// Only assigned, in-progress and completed duties count.
func VehicleUtilization(duties []model.Duty, vehicles []model.Vehicle, period model.TimeWindow) (Utilization, error) {
	if err := period.Validate(); err != nil {
		return Utilization{}, err
	}
	u := Utilization{Period: period, Vehicles: make([]VehicleUsage, len(vehicles))}
	idx := make(map[string]int, len(vehicles))
	for i, v := range vehicles {
		idx[v.ID] = i
		u.Vehicles[i] = VehicleUsage{VehicleID: v.ID, Identifier: v.Identifier}
	}
	for _, d := range duties {
		if d.State != model.StateCompleted && !d.State.IsActive() {
			continue
		}
		i, ok := idx[d.VehicleID]
		if !ok {
			continue
		}
		u.Vehicles[i].UsedHours += d.Window.Intersect(period).Duration().Hours()
	}
	total := period.Duration().Hours()
	pcts := make([]float64, len(u.Vehicles))
	for i := range u.Vehicles {
		u.Vehicles[i].Percent = percent(u.Vehicles[i].UsedHours, total)
		pcts[i] = u.Vehicles[i].Percent
	}
	if len(pcts) > 0 {
		u.Average = stat.Mean(pcts, nil)
	}
	sort.Slice(u.Vehicles, func(a, b int) bool { return u.Vehicles[a].VehicleID < u.Vehicles[b].VehicleID })
	return u, nil
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}

// AlertKind classifies monitor alerts.
type AlertKind string

const (
	AlertMaintenance AlertKind = "maintenance"
	AlertDelayed     AlertKind = "delayed"
	AlertOverrun     AlertKind = "overrun"
)

// Alert is something an operator should look at.
type Alert struct {
	Kind       AlertKind     `json:"kind"`
	ResourceID string        `json:"resource_id,omitempty"`
	DutyID     string        `json:"duty_id,omitempty"`
	Late       time.Duration `json:"late,omitempty"`
}

// Alerts lists vehicles in maintenance, assigned duties that should have
// started more than grace ago and running duties past their end.
func Alerts(duties []model.Duty, vehicles []model.Vehicle, now time.Time, grace time.Duration) []Alert {
	var out []Alert
	for _, v := range vehicles {
		if v.Status == model.VehicleMaintenance {
			out = append(out, Alert{Kind: AlertMaintenance, ResourceID: v.ID})
		}
	}
	for _, d := range duties {
		switch d.State {
		case model.StateAssigned:
			if late := now.Sub(d.Window.Start); late > grace {
				out = append(out, Alert{Kind: AlertDelayed, DutyID: d.ID, ResourceID: d.VehicleID, Late: late})
			}
		case model.StateInProgress:
			if late := now.Sub(d.Window.End); late > 0 {
				out = append(out, Alert{Kind: AlertOverrun, DutyID: d.ID, ResourceID: d.VehicleID, Late: late})
			}
		}
	}
	return out
}
