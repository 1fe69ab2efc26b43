// Package optim ranks swept parameter combinations by their recorded trials.
package optim

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/herdsim/internal/storage"
)

// Objective names what Rank optimizes.
type Objective string

const (
	// MaxContained prefers the largest mean contained fraction.
	MaxContained Objective = "contained"
	// MinTimeToContain prefers the fastest mean containment; trials that
	// never contained count as the full trial time.
	MinTimeToContain Objective = "time"
	// MinSpread prefers the tightest mean flock.
	MinSpread Objective = "spread"
)

func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case MaxContained, MinTimeToContain, MinSpread:
		return o, nil
	}
	return "", fmt.Errorf("unknown objective: %s (want contained, time or spread)", s)
}

// Score aggregates the trials of one combination.
type Score struct {
	Params            storage.Params
	Trials            int
	EarlyEnds         int
	ContainedFraction float64
	TimeToContainment float64
	MeanSpread        float64
	// Value is the objective, oriented so that larger is better.
	Value float64
}

type comboKey struct {
	speed, stiffness, ratio, offset float64
}

func keyOf(p storage.Params) comboKey {
	r := func(v float64) float64 { return math.Round(v*1e4) / 1e4 }
	return comboKey{r(p.TargetMaxSpeed), r(p.Stiffness), r(p.DampingRatio), r(p.Offset)}
}

// Rank groups rows by combination and orders the groups best first. Ties keep
// the order in which combinations first appear.
func Rank(rows []storage.Summary, obj Objective) []Score {
	type group struct {
		params              storage.Params
		contained, ttc, spr []float64
		early               int
	}
	var (
		order  []comboKey
		groups = make(map[comboKey]*group)
	)
	for _, r := range rows {
		k := keyOf(r.Params)
		g, ok := groups[k]
		if !ok {
			g = &group{params: r.Params}
			groups[k] = g
			order = append(order, k)
		}
		ttc := r.TimeToContainment
		if ttc < 0 {
			ttc = r.Params.TrialMaxTime
		}
		g.contained = append(g.contained, r.ContainedFraction)
		g.ttc = append(g.ttc, ttc)
		g.spr = append(g.spr, r.MeanSpread)
		if r.EndedEarly {
			g.early++
		}
	}

	scores := make([]Score, 0, len(order))
	for _, k := range order {
		g := groups[k]
		s := Score{
			Params:            g.params,
			Trials:            len(g.contained),
			EarlyEnds:         g.early,
			ContainedFraction: stat.Mean(g.contained, nil),
			TimeToContainment: stat.Mean(g.ttc, nil),
			MeanSpread:        stat.Mean(g.spr, nil),
		}
		s.Params.TrialNum = 0
		switch obj {
		case MinTimeToContain:
			s.Value = -s.TimeToContainment
		case MinSpread:
			s.Value = -s.MeanSpread
		default:
			s.Value = s.ContainedFraction
		}
		scores = append(scores, s)
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Value > scores[j].Value })
	return scores
}

// Best is the top-ranked combination.
func Best(rows []storage.Summary, obj Objective) (Score, bool) {
	scores := Rank(rows, obj)
	if len(scores) == 0 {
		return Score{}, false
	}
	return scores[0], true
}
