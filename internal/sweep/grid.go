// Package sweep runs repeated herding trials over a grid of target speeds
// and herder gains, recording every tick to storage.
package sweep

import (
	"errors"
	"math"
	"sync"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/dynamo"
)

// Range is an inclusive arithmetic sequence. Values are generated by repeated
// addition and rounded to 1/Precision before each comparison with End.
type Range struct {
	Start, End, Step float64
}

func round(v, precision float64) float64 {
	return math.Round(v*precision) / precision
}

// Values enumerates the range. A non-positive step yields only Start.
func (r Range) Values(precision float64) []float64 {
	if precision <= 0 {
		precision = config.DefaultPrecision
	}
	start := round(r.Start, precision)
	if r.Step <= 0 {
		return []float64{start}
	}
	end := round(r.End, precision)
	var out []float64
	for v := start; v <= end; v = round(v+r.Step, precision) {
		out = append(out, v)
	}
	return out
}

// Combination is one point of the parameter grid.
type Combination struct {
	Index         int
	MaxSpeed      float64
	StiffnessRoot float64
	DampingRatio  float64
	Offset        float64
}

// Stiffness is the square of the stiffness root.
func (c Combination) Stiffness() float64 {
	return c.StiffnessRoot * c.StiffnessRoot
}

// Damping gives the requested damping ratio for Stiffness.
func (c Combination) Damping() float64 {
	return c.DampingRatio * 2 * math.Sqrt(c.Stiffness())
}

// Validate reports a wrapped dynamo.ErrNonFinite for any non-finite
// parameter, derived ones included.
func (c Combination) Validate() error {
	return errors.Join(
		dynamo.CheckFinite("target max speed", c.MaxSpeed),
		dynamo.CheckFinite("stiffness", c.Stiffness()),
		dynamo.CheckFinite("damping ratio", c.DampingRatio),
		dynamo.CheckFinite("damping", c.Damping()),
		dynamo.CheckFinite("offset", c.Offset),
	)
}

// FromGains is the combination whose derived gains equal the given ones.
func FromGains(maxSpeed float64, g config.GainsConfig) Combination {
	root := math.Sqrt(g.Stiffness)
	ratio := 0.0
	if root > 0 {
		ratio = g.Damping / (2 * root)
	}
	return Combination{
		MaxSpeed:      maxSpeed,
		StiffnessRoot: root,
		DampingRatio:  ratio,
		Offset:        g.Offset,
	}
}

type Grid struct {
	Speeds        []float64
	StiffnessRoot Range
	DampingRatio  Range
	Offset        Range
	Trials        int
	Precision     float64
}

func GridFromConfig(c config.SweepConfig) Grid {
	conv := func(r config.RangeConfig) Range { return Range{Start: r.Start, End: r.End, Step: r.Step} }
	return Grid{
		Speeds:        c.Speeds,
		StiffnessRoot: conv(c.StiffnessRoot),
		DampingRatio:  conv(c.DampingRatio),
		Offset:        conv(c.Offset),
		Trials:        c.Trials,
		Precision:     c.Precision,
	}
}

// Combinations is the Cartesian product, speed outermost and offset
// innermost.
func (g Grid) Combinations() []Combination {
	roots := g.StiffnessRoot.Values(g.Precision)
	ratios := g.DampingRatio.Values(g.Precision)
	offsets := g.Offset.Values(g.Precision)

	out := make([]Combination, 0, len(g.Speeds)*len(roots)*len(ratios)*len(offsets))
	for _, s := range g.Speeds {
		for _, j := range roots {
			for _, ratio := range ratios {
				for _, off := range offsets {
					out = append(out, Combination{
						Index:         len(out),
						MaxSpeed:      s,
						StiffnessRoot: j,
						DampingRatio:  ratio,
						Offset:        off,
					})
				}
			}
		}
	}
	return out
}

// Total is the number of trials the grid produces.
func (g Grid) Total() int {
	return len(g.Speeds) *
		len(g.StiffnessRoot.Values(g.Precision)) *
		len(g.DampingRatio.Values(g.Precision)) *
		len(g.Offset.Values(g.Precision)) *
		g.Trials
}

// Source hands out combinations to harnesses.
type Source interface {
	Next() (Combination, bool)
}

// Queue is a Source safe for use by several workers.
type Queue struct {
	mu     sync.Mutex
	combos []Combination
	next   int
}

func NewQueue(combos []Combination) *Queue {
	return &Queue{combos: combos}
}

func (q *Queue) Next() (Combination, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.combos) {
		return Combination{}, false
	}
	c := q.combos[q.next]
	q.next++
	return c, true
}

func (q *Queue) Len() int { return len(q.combos) }

// Remaining is the number of combinations not yet handed out.
func (q *Queue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.combos) - q.next
}
