// Package metrics reduces the samples of a trial to scalar scores.
package metrics

import (
	"gonum.org/v1/gonum/stat"
)

// Sample is what the monitor knows about the flock at one recorded tick.
type Sample struct {
	Time      float64
	Contained bool
	Spread    float64
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Set observes every sample with each of its metrics.
type Set []Metric

// Default returns the metrics stored in the trial index.
func Default() Set {
	return Set{NewContainedFraction(), NewTimeToContainment(), NewMeanSpread()}
}

func (s Set) Observe(sample Sample) {
	for _, m := range s {
		m.Observe(sample)
	}
}

func (s Set) Reset() {
	for _, m := range s {
		m.Reset()
	}
}

// Values maps metric names to their current values.
func (s Set) Values() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, m := range s {
		out[m.Name()] = m.Value()
	}
	return out
}

// MeanSpread is the average largest target distance from the centroid.
type MeanSpread struct {
	name    string
	spreads []float64
}

func NewMeanSpread() *MeanSpread {
	return &MeanSpread{name: "mean_spread"}
}

func (m *MeanSpread) Name() string { return m.name }

func (m *MeanSpread) Observe(s Sample) {
	m.spreads = append(m.spreads, s.Spread)
}

func (m *MeanSpread) Value() float64 {
	if len(m.spreads) == 0 {
		return 0
	}
	return stat.Mean(m.spreads, nil)
}

// StdDev is the standard deviation of the observed spreads.
func (m *MeanSpread) StdDev() float64 {
	if len(m.spreads) < 2 {
		return 0
	}
	return stat.StdDev(m.spreads, nil)
}

func (m *MeanSpread) Reset() { m.spreads = m.spreads[:0] }
