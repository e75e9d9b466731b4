// Package fleetfile loads fleet manifests (drivers, vehicles, routes and
// duties) from YAML or JSON and provisions them through the engine.
package fleetfile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/core/model"
)

// Manifest is the on-disk description of a fleet.
type Manifest struct {
	Drivers  []Driver  `json:"drivers" yaml:"drivers"`
	Vehicles []Vehicle `json:"vehicles" yaml:"vehicles"`
	Routes   []Route   `json:"routes" yaml:"routes"`
	Duties   []Duty    `json:"duties" yaml:"duties"`
}

// Window is a manifest time window.
type Window struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

func (w *Window) model() model.TimeWindow {
	if w == nil {
		return model.TimeWindow{}
	}
	return model.TimeWindow{Start: w.Start, End: w.End}
}

type Driver struct {
	ID           string  `json:"id" yaml:"id"`
	Name         string  `json:"name" yaml:"name"`
	Status       string  `json:"status,omitempty" yaml:"status,omitempty"`
	Availability *Window `json:"availability,omitempty" yaml:"availability,omitempty"`
}

type Vehicle struct {
	ID           string  `json:"id" yaml:"id"`
	Identifier   string  `json:"identifier" yaml:"identifier"`
	Status       string  `json:"status,omitempty" yaml:"status,omitempty"`
	Availability *Window `json:"availability,omitempty" yaml:"availability,omitempty"`
}

// Route uses a Go duration string for ExpectedDuration, e.g. "1h30m".
type Route struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Type             string   `json:"type,omitempty" yaml:"type,omitempty"`
	Stops            []string `json:"stops" yaml:"stops"`
	ExpectedDuration string   `json:"expected_duration,omitempty" yaml:"expected_duration,omitempty"`
	DistanceKM       float64  `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`
}

// Duty kinds accepted in manifests. A proposal is a linked duty whose
// resources are not reserved yet.
const (
	DutyLinked   = "linked"
	DutyProposal = "proposal"
	DutyUnlinked = "unlinked"
)

type Duty struct {
	Kind      string `json:"kind" yaml:"kind"`
	DriverID  string `json:"driver_id,omitempty" yaml:"driver_id,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty" yaml:"vehicle_id,omitempty"`
	RouteID   string `json:"route_id,omitempty" yaml:"route_id,omitempty"`
	Window    Window `json:"window" yaml:"window"`
	Priority  string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Load reads a manifest, picking the format from the file extension.
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()
	return Decode(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// Decode reads a manifest in the given format (yaml, yml or json).
func Decode(r io.Reader, format string) (Manifest, error) {
	var m Manifest
	switch strings.ToLower(format) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && err != io.EOF {
			return m, fmt.Errorf("decode manifest: %w", err)
		}
	case "json":
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return m, fmt.Errorf("decode manifest: %w", err)
		}
	default:
		return m, fmt.Errorf("unsupported manifest format: %s", format)
	}
	return m, nil
}

// Provisioner is the part of the engine Apply needs.
type Provisioner interface {
	RegisterDriver(ctx context.Context, d model.Driver) error
	RegisterVehicle(ctx context.Context, v model.Vehicle) error
	RegisterRoute(ctx context.Context, r model.Route) error
	CreateLinkedDuty(ctx context.Context, req assign.LinkedDutyRequest) (model.Duty, error)
	ScheduleLinkedDuty(ctx context.Context, req assign.LinkedDutyRequest) (model.Duty, error)
	CreateUnlinkedDuty(ctx context.Context, req assign.UnlinkedDutyRequest) (model.Duty, error)
}

// Result counts what Apply provisioned.
type Result struct {
	Drivers  int          `json:"drivers"`
	Vehicles int          `json:"vehicles"`
	Routes   int          `json:"routes"`
	Duties   []model.Duty `json:"duties"`
}

// Apply registers resources first, then creates duties in manifest order. It
// stops at the first error; what was applied before stays applied.
func Apply(ctx context.Context, p Provisioner, m Manifest) (Result, error) {
	var res Result
	for i, d := range m.Drivers {
		err := p.RegisterDriver(ctx, model.Driver{
			ID: d.ID, Name: d.Name, Status: model.DriverStatus(d.Status), Availability: d.Availability.model(),
		})
		if err != nil {
			return res, fmt.Errorf("drivers[%d] %s: %w", i, d.ID, err)
		}
		res.Drivers++
	}
	for i, v := range m.Vehicles {
		err := p.RegisterVehicle(ctx, model.Vehicle{
			ID: v.ID, Identifier: v.Identifier, Status: model.VehicleStatus(v.Status), Availability: v.Availability.model(),
		})
		if err != nil {
			return res, fmt.Errorf("vehicles[%d] %s: %w", i, v.ID, err)
		}
		res.Vehicles++
	}
	for i, r := range m.Routes {
		rt, err := r.model()
		if err == nil {
			err = p.RegisterRoute(ctx, rt)
		}
		if err != nil {
			return res, fmt.Errorf("routes[%d] %s: %w", i, r.ID, err)
		}
		res.Routes++
	}
	for i, d := range m.Duties {
		created, err := d.create(ctx, p)
		if err != nil {
			return res, fmt.Errorf("duties[%d]: %w", i, err)
		}
		res.Duties = append(res.Duties, created)
	}
	return res, nil
}

func (r Route) model() (model.Route, error) {
	rt := model.Route{ID: r.ID, Name: r.Name, Type: r.Type, Stops: r.Stops, DistanceKM: r.DistanceKM}
	if r.ExpectedDuration != "" {
		d, err := time.ParseDuration(r.ExpectedDuration)
		if err != nil {
			return rt, &model.InvalidFieldError{Field: "expected_duration", Reason: err.Error()}
		}
		rt.ExpectedDuration = d
	}
	return rt, nil
}

func (d Duty) create(ctx context.Context, p Provisioner) (model.Duty, error) {
	w := d.Window.model()
	linked := assign.LinkedDutyRequest{DriverID: d.DriverID, VehicleID: d.VehicleID, RouteID: d.RouteID, Window: w, Notes: d.Notes}
	switch d.Kind {
	case DutyLinked:
		return p.CreateLinkedDuty(ctx, linked)
	case DutyProposal:
		return p.ScheduleLinkedDuty(ctx, linked)
	case DutyUnlinked:
		return p.CreateUnlinkedDuty(ctx, assign.UnlinkedDutyRequest{
			Window:   w,
			Priority: model.Priority(d.Priority),
			Location: model.LocationMeta{Location: d.Location, Type: d.Type},
			Notes:    d.Notes,
		})
	default:
		return model.Duty{}, &model.InvalidFieldError{Field: "kind", Reason: "unknown duty kind " + d.Kind}
	}
}
