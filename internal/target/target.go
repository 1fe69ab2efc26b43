// Package target implements the controllers of the agents being herded.
package target

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/geom"
)

const (
	RepelDistance      = 0.6
	RepelFactor        = 500.0
	MaxRepelForce      = 36.0
	MaxRandomForce     = 12.0
	DefaultMaxVelocity = 0.20
)

// Limits is shared by all targets of a simulation. MaxVelocity is read on
// Reset.
type Limits struct {
	MaxVelocity float64
}

func DefaultLimits() *Limits {
	return &Limits{MaxVelocity: DefaultMaxVelocity}
}

// Basic flees from herders inside RepelDistance and otherwise wanders with a
// bounded random force that accumulates tick over tick.
type Basic struct {
	self   *agent.Agent
	phys   agent.Physics
	agents *agent.Registry
	limits *Limits
	rng    *rand.Rand

	maxVelocity float64
	herders     []*agent.Agent
	residual    geom.Vec
	force       geom.Vec
	active      bool
}

func NewBasic(self *agent.Agent, phys agent.Physics, agents *agent.Registry, limits *Limits, rng *rand.Rand) *Basic {
	if limits == nil {
		limits = DefaultLimits()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(int64(self.ID)))
	}
	return &Basic{
		self:        self,
		phys:        phys,
		agents:      agents,
		limits:      limits,
		rng:         rng,
		maxVelocity: limits.MaxVelocity,
	}
}

func (b *Basic) Activate() { b.active = true }

func (b *Basic) Deactivate() { b.active = false }

func (b *Basic) Active() bool { return b.active }

func (b *Basic) Reset() {
	b.residual = geom.Vec{}
	b.force = geom.Vec{}
	b.maxVelocity = b.limits.MaxVelocity
	b.phys.SetVelocity(b.self.Body, geom.Vec{})
	b.phys.SetPosition(b.self.Body, b.self.Initial)

	b.herders = b.agents.ByRole(agent.RoleHerder)
	b.phys.IgnoreCollision(agent.GroupTarget, agent.GroupHerder, true)
}

func (b *Basic) Update(dt float64) {
	if !b.active {
		return
	}
	b.step(dt)
}

// Force is the force applied on the last tick, before scaling by dt.
func (b *Basic) Force() geom.Vec { return b.force }

// Residual is the wander force carried into the next tick.
func (b *Basic) Residual() geom.Vec { return b.residual }

func (b *Basic) MaxVelocity() float64 { return b.maxVelocity }

func (b *Basic) step(dt float64) {
	pos := b.phys.Position(b.self.Body)

	var repel geom.Vec
	threatened := false
	for _, h := range b.herders {
		away := geom.Planar(r3.Sub(pos, b.phys.Position(h.Body)))
		d := r3.Norm(away)
		if d >= RepelDistance || d == 0 {
			continue
		}
		repel = r3.Add(repel, r3.Scale(RepelFactor*(RepelDistance/d), geom.Unit(away)))
		threatened = true
	}

	if threatened {
		b.residual = geom.Vec{}
		b.apply(geom.ClampMagnitude(repel, MaxRepelForce), dt)
	} else {
		b.residual = geom.ClampMagnitude(r3.Add(b.residual, b.wander()), MaxRandomForce)
		b.apply(b.residual, dt)
	}

	v := geom.ClampMagnitude(b.phys.Velocity(b.self.Body), b.maxVelocity)
	b.phys.SetVelocity(b.self.Body, v)
}

func (b *Basic) apply(f geom.Vec, dt float64) {
	b.force = f
	b.phys.AddForce(b.self.Body, r3.Scale(dt, f))
}

func (b *Basic) wander() geom.Vec {
	return geom.Vec{X: b.rng.Float64() - 0.5, Z: b.rng.Float64() - 0.5}
}

// Reactive tracks the closest herder every tick so herders can split the
// flock among themselves, and ends the trial early if it leaves the field.
type Reactive struct {
	*Basic
	term agent.Terminator

	closest    agent.ID
	hasClosest bool
}

func NewReactive(self *agent.Agent, phys agent.Physics, agents *agent.Registry, limits *Limits, rng *rand.Rand, term agent.Terminator) *Reactive {
	return &Reactive{
		Basic: NewBasic(self, phys, agents, limits, rng),
		term:  term,
	}
}

// Reset restores the body and picks the closest herder right away, so
// herders see their assigned targets on the first tick of a trial.
func (r *Reactive) Reset() {
	r.Basic.Reset()
	r.trackClosest()
}

func (r *Reactive) ClosestHerder() (agent.ID, bool) {
	return r.closest, r.hasClosest
}

func (r *Reactive) Update(dt float64) {
	if !r.active {
		return
	}
	r.trackClosest()
	r.step(dt)

	if y := r.phys.Position(r.self.Body).Y; y < 0 && r.term != nil {
		r.term.RequestEndEarly(fmt.Sprintf("%s left the field (y=%.3f)", r.self.Name, y))
	}
}

func (r *Reactive) trackClosest() {
	pos := r.phys.Position(r.self.Body)
	best := math.Inf(1)
	r.hasClosest = false
	for _, h := range r.herders {
		if d := geom.PlanarDistance(pos, r.phys.Position(h.Body)); d < best {
			best = d
			r.closest = h.ID
			r.hasClosest = true
		}
	}
}
