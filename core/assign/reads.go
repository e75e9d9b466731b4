package assign

import (
	"github.com/kilianp07/dutysched/core/dutystore"
	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
)

// Reads below take the commit gate exclusively, like Snapshot, so a caller
// never observes a commit between its first write and its rollback or
// publish.

type gatedRegistry struct{ e *Engine }

func (g gatedRegistry) Driver(id string) (model.Driver, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Driver(id)
}

func (g gatedRegistry) Vehicle(id string) (model.Vehicle, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Vehicle(id)
}

func (g gatedRegistry) Route(id string) (model.Route, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Route(id)
}

func (g gatedRegistry) Drivers() ([]model.Driver, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Drivers()
}

func (g gatedRegistry) Vehicles() ([]model.Vehicle, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Vehicles()
}

func (g gatedRegistry) Routes() ([]model.Route, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.reg.Routes()
}

type gatedDuties struct{ e *Engine }

func (g gatedDuties) Get(id string) (model.Duty, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.duties.Get(id)
}

func (g gatedDuties) List(f dutystore.Filter) ([]model.Duty, error) {
	g.e.gate.Lock()
	defer g.e.gate.Unlock()
	return g.e.duties.List(f)
}

var (
	_ registry.Reader  = gatedRegistry{}
	_ dutystore.Reader = gatedDuties{}
)
