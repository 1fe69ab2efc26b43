// Package automation runs scripted scenarios: a YAML list of hand-picked
// gain settings, each run as its own batch of trials.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/sweep"
)

// Scenario defines a scripted sequence of trial batches
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep overrides the base configuration for one batch. Zero values
// keep the base setting.
type ScenarioStep struct {
	Name       string  `yaml:"name"`
	Herder     string  `yaml:"herder"`
	Target     string  `yaml:"target"`
	Integrator string  `yaml:"integrator"`
	MaxSpeed   float64 `yaml:"max_speed"`
	Stiffness  float64 `yaml:"stiffness"`
	Damping    float64 `yaml:"damping"`
	Offset     float64 `yaml:"offset"`
	Trials     int     `yaml:"trials"`
	Seed       int64   `yaml:"seed"`
	// Jitter displaces every scene agent uniformly within ±Jitter on X and Z.
	Jitter float64 `yaml:"jitter"`
}

// StepResult reports one finished batch.
type StepResult struct {
	Step    string
	SweepID string
	Trials  int
	Files   []string
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Apply returns a copy of base with the step's overrides.
func (s ScenarioStep) Apply(base *config.Config) *config.Config {
	c := *base
	c.Scene = append([]config.AgentConfig(nil), base.Scene...)
	if s.Herder != "" {
		c.Herder = s.Herder
	}
	if s.Target != "" {
		c.Target = s.Target
	}
	if s.Integrator != "" {
		c.Integrator = s.Integrator
	}
	if s.MaxSpeed != 0 {
		c.MaxVelocity = s.MaxSpeed
	}
	if s.Stiffness != 0 {
		c.Gains.Stiffness = s.Stiffness
	}
	if s.Damping != 0 {
		c.Gains.Damping = s.Damping
	}
	if s.Offset != 0 {
		c.Gains.Offset = s.Offset
	}
	if s.Trials != 0 {
		c.Sweep.Trials = s.Trials
	}
	if s.Seed != 0 {
		c.Seed = s.Seed
	}
	if s.Jitter > 0 {
		rng := rand.New(rand.NewSource(c.Seed))
		for i := range c.Scene {
			c.Scene[i].X += (rng.Float64() - 0.5) * 2 * s.Jitter
			c.Scene[i].Z += (rng.Float64() - 0.5) * 2 * s.Jitter
		}
	}
	return &c
}

// Runner executes scenarios against a base configuration.
type Runner struct {
	Base  *config.Config
	Store *storage.Store
	Index *storage.Index
	Log   *slog.Logger
}

// RunScenario executes all steps in order. It stops at the first failing
// step and returns the results gathered so far.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	log := logging.OrDiscard(r.Log).With("scenario", scenario.Name)
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		cfg := step.Apply(r.Base)
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("step %s: %w", name, err)
		}
		combo := sweep.FromGains(cfg.MaxVelocity, cfg.Gains)
		if err := combo.Validate(); err != nil {
			return results, fmt.Errorf("step %s: %w", name, err)
		}

		log.Info("running step", "step", name, "index", i+1, "of", len(scenario.Steps))
		sr := &sweep.Runner{Config: cfg, Store: r.Store, Index: r.Index, Log: log.With("step", name)}
		res, err := sr.RunQueue(ctx, sweep.NewQueue([]sweep.Combination{combo}), cfg.Sweep.Trials)
		if res != nil {
			results = append(results, StepResult{Step: name, SweepID: res.SweepID, Trials: res.Trials, Files: res.Files})
		}
		if err != nil {
			return results, fmt.Errorf("step %s: %w", name, err)
		}
	}
	return results, nil
}
