package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/herdsim/internal/dynamo"
)

const (
	DefaultDt          = 0.02
	DefaultMaxTime     = 120.0
	DefaultTrials      = 10
	DefaultPrecision   = 1000.0
	DefaultThreshold   = 0.72
	DefaultDamping     = 10.0
	DefaultStiffness   = 64.0
	DefaultOffset      = 0.35
	DefaultMaxVelocity = 0.20
	DefaultGravity     = 9.81
	DefaultHalfExtent  = 2.5
	DefaultOutputDir   = "results"
)

type Config struct {
	Integrator string  `yaml:"integrator" toml:"integrator"`
	Herder     string  `yaml:"herder" toml:"herder"`
	Target     string  `yaml:"target" toml:"target"`
	Dt         float64 `yaml:"dt" toml:"dt"`
	MaxTime    float64 `yaml:"max_time" toml:"max_time"`
	Seed       int64   `yaml:"seed" toml:"seed"`
	Workers    int     `yaml:"workers" toml:"workers"`
	OutputDir  string  `yaml:"output_dir" toml:"output_dir"`
	LogLevel   string  `yaml:"log_level" toml:"log_level"`
	Threshold  float64 `yaml:"containment_threshold" toml:"containment_threshold"`

	Gains       GainsConfig   `yaml:"gains" toml:"gains"`
	MaxVelocity float64       `yaml:"max_velocity" toml:"max_velocity"`
	World       WorldConfig   `yaml:"world" toml:"world"`
	Sweep       SweepConfig   `yaml:"sweep" toml:"sweep"`
	Scene       []AgentConfig `yaml:"scene" toml:"scene"`
}

// GainsConfig seeds the herder gains for single trials and the live view.
// Sweeps overwrite them per combination.
type GainsConfig struct {
	Damping   float64 `yaml:"damping" toml:"damping"`
	Stiffness float64 `yaml:"stiffness" toml:"stiffness"`
	Offset    float64 `yaml:"offset" toml:"offset"`
}

type WorldConfig struct {
	Gravity    float64 `yaml:"gravity" toml:"gravity"`
	HalfExtent float64 `yaml:"half_extent" toml:"half_extent"`
	Drag       float64 `yaml:"drag" toml:"drag"`
}

type RangeConfig struct {
	Start float64 `yaml:"start" toml:"start"`
	End   float64 `yaml:"end" toml:"end"`
	Step  float64 `yaml:"step" toml:"step"`
}

type SweepConfig struct {
	Speeds        []float64   `yaml:"speeds" toml:"speeds"`
	StiffnessRoot RangeConfig `yaml:"stiffness_root" toml:"stiffness_root"`
	DampingRatio  RangeConfig `yaml:"damping_ratio" toml:"damping_ratio"`
	Offset        RangeConfig `yaml:"offset" toml:"offset"`
	Trials        int         `yaml:"trials" toml:"trials"`
	Precision     float64     `yaml:"precision" toml:"precision"`
}

type AgentConfig struct {
	Name string  `yaml:"name" toml:"name"`
	Role string  `yaml:"role" toml:"role"`
	X    float64 `yaml:"x" toml:"x"`
	Z    float64 `yaml:"z" toml:"z"`
}

func DefaultScene() []AgentConfig {
	return []AgentConfig{
		{Name: "HA0", Role: "herder", X: 0, Z: -1.5},
		{Name: "HA1", Role: "herder", X: 0, Z: 1.5},
		{Name: "TA0", Role: "target", X: 0.8, Z: 0.4},
		{Name: "TA1", Role: "target", X: -0.8, Z: 0.4},
		{Name: "TA2", Role: "target", X: 0.4, Z: -0.8},
		{Name: "TA3", Role: "target", X: -0.4, Z: -0.8},
	}
}

func DefaultSweep() SweepConfig {
	return SweepConfig{
		Speeds:        []float64{0.12, 0.20, 0.28},
		StiffnessRoot: RangeConfig{Start: 2.5, End: 10, Step: 0.25},
		DampingRatio:  RangeConfig{Start: 0.5, End: 2, Step: 0.05},
		Offset:        RangeConfig{Start: 0.3, End: 0.4, Step: 0.05},
		Trials:        DefaultTrials,
		Precision:     DefaultPrecision,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Integrator: "semi_implicit",
		Herder:     "polar",
		Target:     "reactive",
		Dt:         DefaultDt,
		MaxTime:    DefaultMaxTime,
		Workers:    1,
		OutputDir:  DefaultOutputDir,
		LogLevel:   "info",
		Threshold:  DefaultThreshold,
		Gains: GainsConfig{
			Damping:   DefaultDamping,
			Stiffness: DefaultStiffness,
			Offset:    DefaultOffset,
		},
		MaxVelocity: DefaultMaxVelocity,
		World: WorldConfig{
			Gravity:    DefaultGravity,
			HalfExtent: DefaultHalfExtent,
		},
		Sweep: DefaultSweep(),
		Scene: DefaultScene(),
	}
}

// Load reads a YAML or TOML file (by extension) over the defaults and then
// applies HERDSIM_* environment overrides.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a file over base, so keys missing from the file keep the
// base values, and then applies the environment overrides. base is modified.
func LoadOver(path string, base *Config) (*Config, error) {
	if err := decodeFile(path, base); err != nil {
		return nil, err
	}
	ApplyEnv(base)
	return base, nil
}

func decodeFile(path string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return err
		}
		return f.Close()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from HERDSIM_LOG_LEVEL, HERDSIM_OUTPUT_DIR,
// HERDSIM_WORKERS and HERDSIM_SEED. Unparseable numbers are ignored.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("HERDSIM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HERDSIM_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("HERDSIM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("HERDSIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
}

// MaxSamples is the number of samples after the first in a full trial.
func (c *Config) MaxSamples() int {
	return int(float64(int(c.MaxTime)) / c.Dt)
}

func (c *Config) Validate() error {
	var errs []error
	positive := []struct {
		name string
		v    float64
	}{
		{"dt", c.Dt},
		{"max_time", c.MaxTime},
		{"containment_threshold", c.Threshold},
		{"max_velocity", c.MaxVelocity},
		{"world.half_extent", c.World.HalfExtent},
		{"sweep.precision", c.Sweep.Precision},
	}
	for _, p := range positive {
		if err := dynamo.CheckFinite(p.name, p.v); err != nil {
			errs = append(errs, err)
		} else if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %v", dynamo.ErrParameterBounds, p.name, p.v))
		}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"gains.damping", c.Gains.Damping},
		{"gains.stiffness", c.Gains.Stiffness},
		{"gains.offset", c.Gains.Offset},
		{"world.gravity", c.World.Gravity},
		{"world.drag", c.World.Drag},
	} {
		if err := dynamo.CheckFinite(f.name, f.v); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%w: workers must be at least 1, got %d", dynamo.ErrParameterBounds, c.Workers))
	}
	if c.Sweep.Trials < 1 {
		errs = append(errs, fmt.Errorf("%w: sweep.trials must be at least 1, got %d", dynamo.ErrParameterBounds, c.Sweep.Trials))
	}
	if len(c.Sweep.Speeds) == 0 {
		errs = append(errs, errors.New("sweep.speeds must not be empty"))
	}
	for name, r := range map[string]RangeConfig{
		"sweep.stiffness_root": c.Sweep.StiffnessRoot,
		"sweep.damping_ratio":  c.Sweep.DampingRatio,
		"sweep.offset":         c.Sweep.Offset,
	} {
		if r.Step <= 0 || r.End < r.Start {
			errs = append(errs, fmt.Errorf("%s: need step > 0 and end >= start, got %+v", name, r))
		}
	}

	seen := make(map[string]bool, len(c.Scene))
	for i, a := range c.Scene {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("scene[%d]: name is required", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("scene[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true
	}
	return errors.Join(errs...)
}
