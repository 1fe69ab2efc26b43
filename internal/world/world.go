// Package world is a small point-mass physics world for running herding
// trials without a game engine. Bodies live on a square playfield; inside it
// they rest on the floor, outside it gravity pulls them below y = 0.
package world

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/herdsim/internal/agent"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/geom"
)

const (
	DefaultGravity    = 9.81
	DefaultHalfExtent = 2.5
	DefaultRadius     = 0.05
)

type Config struct {
	Gravity    float64
	HalfExtent float64
	Drag       float64
}

func DefaultConfig() Config {
	return Config{Gravity: DefaultGravity, HalfExtent: DefaultHalfExtent}
}

type Body struct {
	Name      string
	Group     agent.Group
	Mass      float64
	Radius    float64
	Kinematic bool

	pos, vel, force geom.Vec
}

type World struct {
	cfg    Config
	integ  dynamo.Integrator
	bodies []*Body
	ignore map[[2]agent.Group]bool
	steps  int
	time   float64
}

func New(cfg Config, integ dynamo.Integrator) *World {
	return &World{
		cfg:    cfg,
		integ:  integ,
		ignore: make(map[[2]agent.Group]bool),
	}
}

// AddBody registers b at position p and returns its handle.
func (w *World) AddBody(b Body, p geom.Vec) agent.BodyID {
	if b.Mass <= 0 {
		b.Mass = 1
	}
	if b.Radius <= 0 {
		b.Radius = DefaultRadius
	}
	b.pos = p
	w.bodies = append(w.bodies, &b)
	return agent.BodyID(len(w.bodies) - 1)
}

func (w *World) Body(id agent.BodyID) *Body { return w.bodies[id] }

func (w *World) Len() int { return len(w.bodies) }

func (w *World) Time() float64 { return w.time }

func (w *World) Position(id agent.BodyID) geom.Vec { return w.bodies[id].pos }

func (w *World) SetPosition(id agent.BodyID, p geom.Vec) { w.bodies[id].pos = p }

func (w *World) Velocity(id agent.BodyID) geom.Vec { return w.bodies[id].vel }

func (w *World) SetVelocity(id agent.BodyID, v geom.Vec) { w.bodies[id].vel = v }

// AddForce accumulates f until the next Step.
func (w *World) AddForce(id agent.BodyID, f geom.Vec) {
	b := w.bodies[id]
	b.force = r3.Add(b.force, f)
}

func (w *World) IgnoreCollision(a, b agent.Group, ignore bool) {
	w.ignore[groupPair(a, b)] = ignore
}

func (w *World) Ignored(a, b agent.Group) bool {
	return w.ignore[groupPair(a, b)]
}

func groupPair(a, b agent.Group) [2]agent.Group {
	if a > b {
		a, b = b, a
	}
	return [2]agent.Group{a, b}
}

// OnField reports whether p is above the playfield.
func (w *World) OnField(p geom.Vec) bool {
	h := w.cfg.HalfExtent
	return p.X >= -h && p.X <= h && p.Z >= -h && p.Z <= h
}

// Step integrates every dynamic body by dt, resolves overlaps and clears the
// accumulated forces.
func (w *World) Step(dt float64) error {
	for i, b := range w.bodies {
		if b.Kinematic {
			b.force = geom.Vec{}
			continue
		}

		onField := w.OnField(b.pos)
		acc := r3.Scale(1/b.Mass, b.force)
		acc = r3.Sub(acc, r3.Scale(w.cfg.Drag, b.vel))
		if !onField {
			acc.Y -= w.cfg.Gravity
		}

		x := dynamo.State{b.pos.X, b.pos.Y, b.pos.Z, b.vel.X, b.vel.Y, b.vel.Z}
		next := w.integ.Step(pointMass{}, x, dynamo.Control{acc.X, acc.Y, acc.Z}, w.time, dt)
		if len(next) != (pointMass{}).StateDim() {
			return &dynamo.SimulationError{
				Step:    w.steps,
				Time:    w.time,
				Body:    b.Name,
				State:   next,
				Wrapped: fmt.Errorf("body %d: integrator returned %d values: %w", i, len(next), dynamo.ErrDimensionMismatch),
			}
		}
		if !next.IsValid() {
			return &dynamo.SimulationError{
				Step:    w.steps,
				Time:    w.time,
				Body:    b.Name,
				State:   next,
				Wrapped: fmt.Errorf("body %d: %w", i, dynamo.ErrInvalidState),
			}
		}

		b.pos = geom.Vec{X: next[0], Y: next[1], Z: next[2]}
		b.vel = geom.Vec{X: next[3], Y: next[4], Z: next[5]}
		b.force = geom.Vec{}

		if onField && w.OnField(b.pos) && b.pos.Y < b.Radius {
			b.pos.Y = b.Radius
			if b.vel.Y < 0 {
				b.vel.Y = 0
			}
		}
	}

	w.resolveOverlaps()
	w.steps++
	w.time += dt
	return nil
}

func (w *World) resolveOverlaps() {
	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			a, b := w.bodies[i], w.bodies[j]
			if a.Kinematic && b.Kinematic {
				continue
			}
			if w.Ignored(a.Group, b.Group) {
				continue
			}
			w.separate(a, b)
		}
	}
}

func (w *World) separate(a, b *Body) {
	delta := geom.Planar(r3.Sub(b.pos, a.pos))
	d := r3.Norm(delta)
	overlap := a.Radius + b.Radius - d
	if overlap <= 0 || d == 0 {
		return
	}
	n := r3.Scale(1/d, delta)

	shareA, shareB := 0.5, 0.5
	switch {
	case a.Kinematic:
		shareA, shareB = 0, 1
	case b.Kinematic:
		shareA, shareB = 1, 0
	}
	a.pos = r3.Sub(a.pos, r3.Scale(overlap*shareA, n))
	b.pos = r3.Add(b.pos, r3.Scale(overlap*shareB, n))

	// cancel the approaching component of the relative velocity
	closing := r3.Dot(r3.Sub(b.vel, a.vel), n)
	if closing < 0 {
		a.vel = r3.Add(a.vel, r3.Scale(closing*shareA, n))
		b.vel = r3.Sub(b.vel, r3.Scale(closing*shareB, n))
	}
}

// pointMass is x' = v, v' = u.
type pointMass struct{}

func (pointMass) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[3], x[4], x[5], u[0], u[1], u[2]}
}

func (pointMass) StateDim() int { return 6 }
func (pointMass) ControlDim() int { return 3 }
