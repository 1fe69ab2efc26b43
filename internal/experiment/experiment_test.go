package experiment

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/herder"
	"github.com/san-kum/herdsim/internal/world"
)

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry()

	if _, err := r.GetIntegrator("rk4"); err != nil {
		t.Errorf("rk4: %v", err)
	}
	if _, err := r.GetIntegrator("leapfrog"); err == nil {
		t.Error("expected error for unknown integrator")
	}
	if _, err := r.GetHerder("nope"); err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("expected unknown herder error, got %v", err)
	}
	if got := r.ListTargets(); len(got) != 2 || got[0] != "basic" || got[1] != "reactive" {
		t.Errorf("unexpected targets %v", got)
	}
	if got := r.ListIntegrators(); len(got) != 4 {
		t.Errorf("expected 4 integrators, got %v", got)
	}
}

func TestBuildDefaultScene(t *testing.T) {
	sim, err := Build(config.DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	names := sim.Names()
	want := []string{"HA0", "HA1", "TA0", "TA1", "TA2", "TA3"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected recording order %v, got %v", want, names)
	}
	if sim.Task.Len() != 6 {
		t.Errorf("expected 6 lifecycle listeners, got %d", sim.Task.Len())
	}

	for _, a := range sim.Agents.All() {
		if a.Initial.Y != world.DefaultRadius {
			t.Errorf("%s should start resting on the floor", a.Name)
		}
		if kin := sim.World.Body(a.Body).Kinematic; kin != (a.Role == agent.RoleHerder) {
			t.Errorf("%s kinematic=%v", a.Name, kin)
		}
		if _, ok := a.Controller.(*herder.Polar); ok != (a.Role == agent.RoleHerder) {
			t.Errorf("%s has controller %T", a.Name, a.Controller)
		}
	}
}

func TestBuildRejectsInvalidRole(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Scene = append(cfg.Scene, config.AgentConfig{Name: "DOG", Role: "dog"})

	_, err := Build(cfg, Options{})
	if !errors.Is(err, agent.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if !strings.Contains(err.Error(), "DOG") {
		t.Errorf("error should name the agent: %v", err)
	}
}

func TestTickRunsAFiniteTrial(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Seed = 3
	sim, err := Build(cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	sim.Task.Begin()
	for i := 0; i < 500; i++ {
		if err := sim.Tick(cfg.Dt); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	for i, p := range sim.Snapshot() {
		if math.IsNaN(p.X) || math.IsNaN(p.Z) || math.IsInf(p.X, 0) || math.IsInf(p.Z, 0) {
			t.Fatalf("agent %d has non-finite position %v", i, p)
		}
	}
	if s := sim.Sample(); s.Spread <= 0 {
		t.Errorf("expected a positive spread, got %f", s.Spread)
	}
}

func TestResetRestoresInitialPositions(t *testing.T) {
	sim, err := Build(config.DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	sim.Task.Begin()
	for i := 0; i < 50; i++ {
		if err := sim.Tick(0.02); err != nil {
			t.Fatal(err)
		}
	}
	sim.Task.End()

	for _, a := range sim.Agents.All() {
		if got := sim.World.Position(a.Body); got != a.Initial {
			t.Errorf("%s at %v after end, want %v", a.Name, got, a.Initial)
		}
	}
}

func TestReseedIsDeterministic(t *testing.T) {
	run := func() []float64 {
		cfg := config.DefaultConfig()
		cfg.Herder = "basic"
		sim, err := Build(cfg, Options{})
		if err != nil {
			t.Fatal(err)
		}
		defer sim.Close()
		sim.Reseed(11)
		sim.Task.Begin()
		for i := 0; i < 100; i++ {
			if err := sim.Tick(0.02); err != nil {
				t.Fatal(err)
			}
		}
		var out []float64
		for _, p := range sim.Snapshot() {
			out = append(out, p.X, p.Z)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs diverged at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBeginAssignsClosestHerders(t *testing.T) {
	sim, err := Build(config.DefaultConfig(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	sim.Task.Begin()
	for _, a := range sim.Agents.ByRole(agent.RoleTarget) {
		tr, ok := a.Controller.(agent.HerderTracker)
		if !ok {
			t.Fatalf("%s controller %T does not track herders", a.Name, a.Controller)
		}
		if _, ok := tr.ClosestHerder(); !ok {
			t.Errorf("%s has no closest herder before the first tick", a.Name)
		}
	}
}
