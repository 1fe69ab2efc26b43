package task

import (
	"math"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/geom"
)

const DefaultContainmentThreshold = 0.72

// Indicator shows whether the flock is contained.
type Indicator interface {
	SetContained(contained bool)
}

// NopIndicator discards containment updates, for headless runs.
type NopIndicator struct{}

func (NopIndicator) SetContained(bool) {}

// PositionReader is the part of the physics world the monitor needs.
type PositionReader interface {
	Position(b agent.BodyID) geom.Vec
}

// Monitor evaluates containment: every target within threshold of the
// targets' planar centroid. With no targets the flock counts as contained.
type Monitor struct {
	agents    *agent.Registry
	phys      PositionReader
	threshold float64
	indicator Indicator

	running   bool
	centroid  geom.Vec
	spread    float64
	contained bool
	scratch   []geom.Vec
}

func NewMonitor(agents *agent.Registry, phys PositionReader, threshold float64) *Monitor {
	if threshold <= 0 {
		threshold = DefaultContainmentThreshold
	}
	return &Monitor{
		agents:    agents,
		phys:      phys,
		threshold: threshold,
		indicator: NopIndicator{},
	}
}

func (m *Monitor) SetIndicator(ind Indicator) {
	if ind == nil {
		ind = NopIndicator{}
	}
	m.indicator = ind
}

// Evaluate recomputes the centroid and containment from current positions
// and pushes the result to the indicator.
func (m *Monitor) Evaluate() bool {
	targets := m.agents.ByRole(agent.RoleTarget)
	m.scratch = m.scratch[:0]
	for _, t := range targets {
		m.scratch = append(m.scratch, m.phys.Position(t.Body))
	}

	m.centroid = geom.Centroid(m.scratch)
	m.spread = 0
	for _, p := range m.scratch {
		m.spread = math.Max(m.spread, geom.PlanarDistance(m.centroid, p))
	}
	m.contained = m.spread <= m.threshold

	m.indicator.SetContained(m.contained)
	return m.contained
}

// Start marks the monitor running and evaluates immediately.
func (m *Monitor) Start() {
	m.running = true
	m.Evaluate()
}

func (m *Monitor) Stop() { m.running = false }

// Tick evaluates when running. Callers invoke it once per physics step.
func (m *Monitor) Tick() {
	if m.running {
		m.Evaluate()
	}
}

func (m *Monitor) Running() bool { return m.running }

func (m *Monitor) Centroid() geom.Vec { return m.centroid }

func (m *Monitor) Contained() bool { return m.contained }

// Spread is the largest target distance from the centroid at the last
// evaluation.
func (m *Monitor) Spread() float64 { return m.spread }

func (m *Monitor) Threshold() float64 { return m.threshold }
