// Package agent defines the herding participants and the interfaces their
// controllers use to reach the physics world and each other.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/herdsim/internal/geom"
)

// ErrInvalidRole is returned by ParseRole for anything other than a herder or
// target role name.
var ErrInvalidRole = errors.New("agent: invalid role")

type Role int

const (
	RoleHerder Role = iota
	RoleTarget
)

func (r Role) String() string {
	switch r {
	case RoleHerder:
		return "herder"
	case RoleTarget:
		return "target"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ParseRole accepts "herder"/"ha" and "target"/"ta", case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "herder", "ha", "herding agent":
		return RoleHerder, nil
	case "target", "ta", "target agent":
		return RoleTarget, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// ID is the agent's index in its Registry.
type ID int

// BodyID is a handle into the physics collaborator.
type BodyID int

// Group is a collision group; pairs of groups can be told not to collide.
type Group int

const (
	GroupDefault Group = iota
	GroupHerder
	GroupTarget
)

// GroupFor returns the collision group agents of the given role live in.
func GroupFor(r Role) Group {
	if r == RoleHerder {
		return GroupHerder
	}
	return GroupTarget
}

// Physics is the world as seen by controllers.
type Physics interface {
	Position(b BodyID) geom.Vec
	SetPosition(b BodyID, p geom.Vec)
	Velocity(b BodyID) geom.Vec
	SetVelocity(b BodyID, v geom.Vec)
	AddForce(b BodyID, f geom.Vec)
	IgnoreCollision(a, b Group, ignore bool)
}

// Controller drives one agent. Activate, Reset and Deactivate follow the task
// lifecycle; Update runs once per tick while the simulation steps.
type Controller interface {
	Activate()
	Reset()
	Deactivate()
	Update(dt float64)
	Active() bool
}

// HerderTracker is implemented by target controllers that know which herder
// is closest to them.
type HerderTracker interface {
	ClosestHerder() (ID, bool)
}

// CentroidSource exposes the latest planar centroid of the targets.
type CentroidSource interface {
	Centroid() geom.Vec
}

// Terminator accepts requests to end the running trial early.
type Terminator interface {
	RequestEndEarly(reason string)
}

type Agent struct {
	ID         ID
	Name       string
	Role       Role
	Body       BodyID
	Group      Group
	Initial    geom.Vec
	Controller Controller
}

func (a *Agent) String() string {
	return fmt.Sprintf("%s(%s#%d)", a.Name, a.Role, a.ID)
}

// OnBegin, OnReset and OnEnd forward lifecycle signals to the controller.
func (a *Agent) OnBegin() {
	if a.Controller != nil {
		a.Controller.Activate()
	}
}

func (a *Agent) OnReset() {
	if a.Controller != nil {
		a.Controller.Reset()
	}
}

func (a *Agent) OnEnd() {
	if a.Controller != nil {
		a.Controller.Deactivate()
	}
}
