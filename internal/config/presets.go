package config

import "sort"

// Presets are named starting points. "paper" is the full published sweep,
// "quick" a small grid for smoke runs and "single" one combination.
var Presets = map[string]func() *Config{
	"paper": DefaultConfig,
	"quick": func() *Config {
		cfg := DefaultConfig()
		cfg.MaxTime = 20
		cfg.Sweep = SweepConfig{
			Speeds:        []float64{0.20},
			StiffnessRoot: RangeConfig{Start: 6, End: 8, Step: 1},
			DampingRatio:  RangeConfig{Start: 0.5, End: 1, Step: 0.5},
			Offset:        RangeConfig{Start: 0.35, End: 0.35, Step: 0.05},
			Trials:        2,
			Precision:     DefaultPrecision,
		}
		return cfg
	},
	"single": func() *Config {
		cfg := DefaultConfig()
		cfg.Sweep = SweepConfig{
			Speeds:        []float64{DefaultMaxVelocity},
			StiffnessRoot: RangeConfig{Start: 8, End: 8, Step: 1},
			DampingRatio:  RangeConfig{Start: 0.625, End: 0.625, Step: 0.05},
			Offset:        RangeConfig{Start: DefaultOffset, End: DefaultOffset, Step: 0.05},
			Trials:        1,
			Precision:     DefaultPrecision,
		}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
