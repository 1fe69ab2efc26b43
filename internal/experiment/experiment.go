// Package experiment assembles a runnable herding simulation from a config:
// the physics world, the agents and their controllers, and the task that
// sequences trials.
package experiment

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/geom"
	"github.com/san-kum/herdsim/internal/herder"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/metrics"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/target"
	"github.com/san-kum/herdsim/internal/task"
	"github.com/san-kum/herdsim/internal/world"
)

type Options struct {
	Indicator task.Indicator
	Log       *slog.Logger
	Registry  *Registry
}

// Simulation is one self-contained world. It is not safe for concurrent use;
// parallel sweeps build one Simulation per worker.
type Simulation struct {
	World  *world.World
	Agents *agent.Registry
	Task   *task.Task
	Gains  *herder.Gains
	Limits *target.Limits

	rng   *rand.Rand
	log   *slog.Logger
	order []*agent.Agent
	names []string
}

// Build creates the world and agents described by cfg. Controllers are
// subscribed to the task lifecycle in recording order: herders first.
func Build(cfg *config.Config, opts Options) (*Simulation, error) {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	log := logging.OrDiscard(opts.Log)

	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	newHerder, err := reg.GetHerder(cfg.Herder)
	if err != nil {
		return nil, err
	}
	newTarget, err := reg.GetTarget(cfg.Target)
	if err != nil {
		return nil, err
	}

	w := world.New(world.Config{
		Gravity:    cfg.World.Gravity,
		HalfExtent: cfg.World.HalfExtent,
		Drag:       cfg.World.Drag,
	}, integ)
	agents := agent.NewRegistry()

	for _, ac := range cfg.Scene {
		role, err := agent.ParseRole(ac.Role)
		if err != nil {
			return nil, fmt.Errorf("scene agent %s: %w", ac.Name, err)
		}
		initial := geom.Vec{X: ac.X, Y: world.DefaultRadius, Z: ac.Z}
		body := w.AddBody(world.Body{
			Name:      ac.Name,
			Group:     agent.GroupFor(role),
			Kinematic: role == agent.RoleHerder,
		}, initial)
		agents.Add(ac.Name, role, body, initial)
	}

	monitor := task.NewMonitor(agents, w, cfg.Threshold)
	s := &Simulation{
		World:  w,
		Agents: agents,
		Task:   task.New(monitor, opts.Indicator, log),
		Gains: &herder.Gains{
			Damping:   cfg.Gains.Damping,
			Stiffness: cfg.Gains.Stiffness,
			Offset:    cfg.Gains.Offset,
		},
		Limits: &target.Limits{MaxVelocity: cfg.MaxVelocity},
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		log:    log,
		order:  agents.Ordered(),
	}

	for _, a := range s.order {
		switch a.Role {
		case agent.RoleHerder:
			a.Controller = newHerder(s, a)
		case agent.RoleTarget:
			a.Controller = newTarget(s, a)
		}
		s.Task.Subscribe(a)
		s.names = append(s.names, a.Name)
	}

	log.Debug("simulation built",
		"herders", len(agents.ByRole(agent.RoleHerder)),
		"targets", len(agents.ByRole(agent.RoleTarget)),
		"integrator", cfg.Integrator)
	return s, nil
}

// Tick runs the controllers, steps the physics and re-evaluates containment.
func (s *Simulation) Tick(dt float64) error {
	for _, a := range s.order {
		a.Controller.Update(dt)
	}
	if err := s.World.Step(dt); err != nil {
		return err
	}
	s.Task.Monitor().Tick()
	return nil
}

// Names are the agent names in recording order.
func (s *Simulation) Names() []string { return s.names }

// Snapshot returns every agent's planar position in recording order.
func (s *Simulation) Snapshot() []storage.Point {
	out := make([]storage.Point, len(s.order))
	for i, a := range s.order {
		p := s.World.Position(a.Body)
		out[i] = storage.Point{X: p.X, Z: p.Z}
	}
	return out
}

// Sample is the monitor's latest view of the flock.
func (s *Simulation) Sample() metrics.Sample {
	m := s.Task.Monitor()
	return metrics.Sample{Time: s.World.Time(), Contained: m.Contained(), Spread: m.Spread()}
}

// Reseed restarts the random source shared by the target controllers.
func (s *Simulation) Reseed(seed int64) { s.rng.Seed(seed) }

// Close unsubscribes every agent from the task.
func (s *Simulation) Close() {
	for _, a := range s.order {
		s.Task.Unsubscribe(a)
	}
}
