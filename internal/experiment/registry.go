package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/herder"
	"github.com/san-kum/herdsim/internal/integrators"
	"github.com/san-kum/herdsim/internal/target"
)

// ControllerFactory builds the controller of one agent inside sim.
type ControllerFactory func(sim *Simulation, self *agent.Agent) agent.Controller

type Registry struct {
	herders     map[string]ControllerFactory
	targets     map[string]ControllerFactory
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		herders:     make(map[string]ControllerFactory),
		targets:     make(map[string]ControllerFactory),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.herders["basic"] = func(s *Simulation, self *agent.Agent) agent.Controller {
		return herder.NewBasic(self, s.World)
	}
	r.herders["polar"] = func(s *Simulation, self *agent.Agent) agent.Controller {
		return herder.NewPolar(self, s.World, s.Agents, s.Task.Monitor(), s.Gains, s.log)
	}

	r.targets["basic"] = func(s *Simulation, self *agent.Agent) agent.Controller {
		return target.NewBasic(self, s.World, s.Agents, s.Limits, s.rng)
	}
	r.targets["reactive"] = func(s *Simulation, self *agent.Agent) agent.Controller {
		return target.NewReactive(self, s.World, s.Agents, s.Limits, s.rng, s.Task)
	}

	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["semi_implicit"] = func() dynamo.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["verlet"] = func() dynamo.Integrator { return integrators.NewVerlet() }

	return r
}

func (r *Registry) GetHerder(name string) (ControllerFactory, error) {
	fn, ok := r.herders[name]
	if !ok {
		return nil, fmt.Errorf("unknown herder controller: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetTarget(name string) (ControllerFactory, error) {
	fn, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown target controller: %s", name)
	}
	return fn, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListHerders() []string { return sortedKeys(r.herders) }

func (r *Registry) ListTargets() []string { return sortedKeys(r.targets) }

func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
