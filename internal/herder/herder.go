// Package herder implements the controllers that move herding agents.
//
// The polar controller runs a second-order spring-damper in a polar frame
// centered on the targets' centroid, independently for the radius and the
// angle, and writes the resulting position to its body kinematically.
package herder

import (
	"context"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/geom"
	"github.com/san-kum/herdsim/internal/logging"
)

const (
	DefaultDamping   = 10.0
	DefaultStiffness = 64.0
	DefaultOffset    = 0.35
)

// Gains is shared by every polar herder of a simulation. Controllers copy it
// on Reset, so changes take effect from the next trial.
type Gains struct {
	Damping   float64
	Stiffness float64
	Offset    float64
}

func DefaultGains() *Gains {
	return &Gains{Damping: DefaultDamping, Stiffness: DefaultStiffness, Offset: DefaultOffset}
}

// Basic holds the herder still at its initial position. It is the variant
// used when a human drives the herder.
type Basic struct {
	self   *agent.Agent
	phys   agent.Physics
	active bool
}

func NewBasic(self *agent.Agent, phys agent.Physics) *Basic {
	return &Basic{self: self, phys: phys}
}

func (b *Basic) Activate() { b.active = true }

func (b *Basic) Deactivate() { b.active = false }

func (b *Basic) Active() bool { return b.active }

func (b *Basic) Reset() {
	b.phys.SetPosition(b.self.Body, b.self.Initial)
	b.phys.SetVelocity(b.self.Body, geom.Vec{})
}

func (b *Basic) Update(dt float64) {}

// Polar is the closed-form herding controller.
type Polar struct {
	self     *agent.Agent
	phys     agent.Physics
	agents   *agent.Registry
	centroid agent.CentroidSource
	gains    *Gains
	log      *slog.Logger

	damping, stiffness, offset float64

	r, dr         float64
	theta, dtheta float64
	warm          bool
	active        bool
}

func NewPolar(self *agent.Agent, phys agent.Physics, agents *agent.Registry, centroid agent.CentroidSource, gains *Gains, log *slog.Logger) *Polar {
	if gains == nil {
		gains = DefaultGains()
	}
	log = logging.OrDiscard(log)
	p := &Polar{
		self:     self,
		phys:     phys,
		agents:   agents,
		centroid: centroid,
		gains:    gains,
		log:      log.With("agent", self.Name),
	}
	p.loadGains()
	return p
}

func (p *Polar) Activate() { p.active = true }

func (p *Polar) Deactivate() { p.active = false }

func (p *Polar) Active() bool { return p.active }

// Reset zeroes the polar state, reloads the shared gains and puts the body
// back at its initial position.
func (p *Polar) Reset() {
	p.clear()
	p.loadGains()
	p.phys.SetPosition(p.self.Body, p.self.Initial)
	p.phys.SetVelocity(p.self.Body, geom.Vec{})
}

func (p *Polar) clear() {
	p.r, p.dr = 0, 0
	p.theta, p.dtheta = 0, 0
	p.warm = false
}

func (p *Polar) loadGains() {
	p.damping = p.gains.Damping
	p.stiffness = p.gains.Stiffness
	p.offset = p.gains.Offset
}

// State returns radius, radial velocity, angle and angular velocity.
func (p *Polar) State() dynamo.State {
	return dynamo.State{p.r, p.dr, p.theta, p.dtheta}
}

// Update advances the control law by dt and moves the body.
func (p *Polar) Update(dt float64) {
	if !p.active {
		return
	}

	center := geom.Planar(p.centroid.Centroid())
	pos := p.phys.Position(p.self.Body)
	rel := r3.Sub(geom.Planar(pos), center)

	if !p.warm {
		p.r, p.theta = geom.Polar(rel)
		p.dr, p.dtheta = 0, 0
		p.warm = true
	}

	goal, ok := p.SelectTargetPosition(center)
	if !ok {
		return
	}
	goalRel := r3.Sub(geom.Planar(goal), center)

	rGoal := r3.Norm(goalRel)
	thetaGoal := p.theta + geom.SignedAngle(rel, goalRel)

	p.r, p.dr = p.integrate(p.r, p.dr, rGoal, dt)
	p.theta, p.dtheta = p.integrate(p.theta, p.dtheta, thetaGoal, dt)

	if !p.State().IsValid() {
		p.log.Debug("polar state diverged, resetting",
			"r", p.r, "theta", p.theta,
			"stiffness", p.stiffness, "damping", p.damping)
		p.clear()
		return
	}

	p.phys.SetPosition(p.self.Body, geom.FromPolar(center, p.r, p.theta, pos.Y))
	p.log.Log(context.Background(), logging.LevelTrace, "polar step",
		"r", p.r, "dr", p.dr,
		"theta", p.theta, "dtheta", p.dtheta)
}

// integrate takes one semi-implicit Euler step of x'' = -b·x' - ε·(x - goal).
func (p *Polar) integrate(x, v, goal, dt float64) (float64, float64) {
	acc := -p.damping*v - p.stiffness*(x-goal)
	v += acc * dt
	x += v * dt
	return x, v
}

// SelectTargetPosition picks the point this herder steers toward. Among the
// targets whose closest herder is this one, it takes the target whose
// projected next position lies farthest from center; without such a target
// it takes the one projected nearest to this herder. The point returned sits
// offset beyond the chosen target, radially away from center. It reports
// false when there are no targets.
func (p *Polar) SelectTargetPosition(center geom.Vec) (geom.Vec, bool) {
	targets := p.agents.ByRole(agent.RoleTarget)
	if len(targets) == 0 {
		return geom.Vec{}, false
	}
	center = geom.Planar(center)
	self := geom.Planar(p.phys.Position(p.self.Body))

	var farthest, nearest *agent.Agent
	maxDist, minDist := math.Inf(-1), math.Inf(1)

	for _, t := range targets {
		projected := geom.Planar(r3.Add(p.phys.Position(t.Body), p.phys.Velocity(t.Body)))

		if p.assigned(t) {
			if d := geom.PlanarDistance(projected, center); d > maxDist {
				maxDist = d
				farthest = t
			}
			continue
		}
		if d := geom.PlanarDistance(projected, self); d < minDist {
			minDist = d
			nearest = t
		}
	}

	chosen := farthest
	if chosen == nil {
		chosen = nearest
	}
	if chosen == nil {
		return geom.Vec{}, false
	}

	tp := geom.Planar(p.phys.Position(chosen.Body))
	dir := geom.Unit(r3.Sub(tp, center))
	return r3.Add(tp, r3.Scale(p.offset, dir)), true
}

func (p *Polar) assigned(t *agent.Agent) bool {
	tracker, ok := t.Controller.(agent.HerderTracker)
	if !ok {
		return false
	}
	id, ok := tracker.ClosestHerder()
	return ok && id == p.self.ID
}
