package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/herdsim/internal/storage"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow,
	asciigraph.Magenta, asciigraph.Cyan, asciigraph.Orange, asciigraph.White,
}

// PlotOptions selects what PlotTrial draws.
type PlotOptions struct {
	// Agents limits the plot to these names; empty means every agent.
	Agents []string
	// Axis is "x" or "z".
	Axis   string
	Height int
	Width  int
}

func (o PlotOptions) size() (int, int) {
	h, w := o.Height, o.Width
	if h <= 0 {
		h = 12
	}
	if w <= 0 {
		w = 80
	}
	return h, w
}

// PlotTrial draws one coordinate of each selected agent over time, followed
// by the containment series.
func PlotTrial(tr *storage.Trial, opts PlotOptions) (string, error) {
	if len(tr.Records) == 0 {
		return "", fmt.Errorf("trial has no samples")
	}
	axis := strings.ToLower(opts.Axis)
	if axis == "" {
		axis = "x"
	}
	if axis != "x" && axis != "z" {
		return "", fmt.Errorf("unknown axis %q", opts.Axis)
	}

	want := make(map[string]bool, len(opts.Agents))
	for _, a := range opts.Agents {
		want[a] = true
	}

	var (
		series [][]float64
		names  []string
	)
	for i, name := range tr.Names {
		if len(want) > 0 && !want[name] {
			continue
		}
		s := make([]float64, len(tr.Records))
		for j, r := range tr.Records {
			if axis == "x" {
				s[j] = r.Positions[i].X
			} else {
				s[j] = r.Positions[i].Z
			}
		}
		series = append(series, s)
		names = append(names, name)
	}
	if len(series) == 0 {
		return "", fmt.Errorf("no agents match %v", opts.Agents)
	}

	h, w := opts.size()
	colors := make([]asciigraph.AnsiColor, len(series))
	var legend strings.Builder
	for i := range series {
		colors[i] = seriesColors[i%len(seriesColors)]
		fmt.Fprintf(&legend, "%s%s%s ", colors[i], names[i], asciigraph.Default)
	}

	first := tr.Records[0]
	var b strings.Builder
	b.WriteString(asciigraph.PlotMany(series,
		asciigraph.Height(h),
		asciigraph.Width(w),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(fmt.Sprintf("%s position, trial %d (k=%.1f ζ=%.3f)", axis, first.TrialNum, first.Stiffness, first.DampingRatio)),
	))
	b.WriteString("\n" + legend.String() + "\n\n")

	contained := make([]float64, len(tr.Records))
	for j, r := range tr.Records {
		if r.Contained {
			contained[j] = 1
		}
	}
	b.WriteString(asciigraph.Plot(contained,
		asciigraph.Height(2),
		asciigraph.Width(w),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Precision(0),
		asciigraph.Caption("contained"),
	))
	b.WriteString("\n")
	return b.String(), nil
}

// PlotSummaries draws the contained fraction of each indexed trial in
// insertion order.
func PlotSummaries(rows []storage.Summary, height, width int) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("no trials to plot")
	}
	if height <= 0 {
		height = 10
	}
	if width <= 0 {
		width = 80
	}
	frac := make([]float64, len(rows))
	for i, r := range rows {
		frac[i] = r.ContainedFraction
	}
	return asciigraph.Plot(frac,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(1),
		asciigraph.Caption(fmt.Sprintf("contained fraction over %d trials", len(rows))),
	), nil
}
