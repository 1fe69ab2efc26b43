package agent

import "github.com/san-kum/herdsim/internal/geom"

// Registry owns every agent of one simulation. Agents are addressed by ID,
// which is their insertion index.
type Registry struct {
	agents []*Agent
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(name string, role Role, body BodyID, initial geom.Vec) *Agent {
	a := &Agent{
		ID:      ID(len(r.agents)),
		Name:    name,
		Role:    role,
		Body:    body,
		Group:   GroupFor(role),
		Initial: initial,
	}
	r.agents = append(r.agents, a)
	return a
}

func (r *Registry) Get(id ID) (*Agent, bool) {
	if id < 0 || int(id) >= len(r.agents) {
		return nil, false
	}
	return r.agents[id], true
}

func (r *Registry) Len() int { return len(r.agents) }

// All returns the agents in insertion order. The slice is a copy.
func (r *Registry) All() []*Agent {
	out := make([]*Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// ByRole returns a snapshot of the agents with the given role, in insertion
// order.
func (r *Registry) ByRole(role Role) []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Role == role {
			out = append(out, a)
		}
	}
	return out
}

// Ordered returns herders followed by targets, the column order used when
// recording positions.
func (r *Registry) Ordered() []*Agent {
	return append(r.ByRole(RoleHerder), r.ByRole(RoleTarget)...)
}
