package registry_test

import (
	"testing"

	"github.com/kilianp07/dutysched/core/model"
	"github.com/kilianp07/dutysched/core/registry"
	"github.com/kilianp07/dutysched/core/registry/registrytest"
)

func TestMemoryRegistryContract(t *testing.T) {
	registrytest.Run(t, func(*testing.T) registry.Registry { return registry.NewMemoryRegistry() })
}

func TestMemoryRegistry_ReturnsCopies(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	if err := reg.RegisterRoute(model.Route{ID: "r1", Name: "Loop", Stops: []string{"a"}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	rt, _ := reg.Route("r1")
	rt.Stops[0] = "changed"
	again, _ := reg.Route("r1")
	if again.Stops[0] != "a" {
		t.Fatalf("registry state leaked through copy: %v", again.Stops)
	}
}
