package viz

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/herdsim/internal/storage"
)

// Figure size in inches.
const (
	figureWidth  = 8.0
	figureHeight = 8.0
)

func limitedTicker(maxLabels int, labelFmt string) plot.Ticker {
	if maxLabels < 2 {
		maxLabels = 2
	}
	return plot.TickerFunc(func(min, max float64) []plot.Tick {
		if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
			return nil
		}
		if min == max {
			return []plot.Tick{{Value: min, Label: fmt.Sprintf(labelFmt, min)}}
		}
		step := (max - min) / float64(maxLabels-1)
		ticks := make([]plot.Tick, 0, maxLabels)
		for i := 0; i < maxLabels; i++ {
			v := min + float64(i)*step
			ticks = append(ticks, plot.Tick{Value: v, Label: fmt.Sprintf(labelFmt, v)})
		}
		return ticks
	})
}

func stylePlot(p *plot.Plot) {
	p.Title.TextStyle.Font.Size = vg.Points(18)
	p.Title.Padding = vg.Points(10)
	p.X.Label.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.TextStyle.Font.Size = vg.Points(14)
	p.X.Tick.Label.Font.Size = vg.Points(11)
	p.Y.Tick.Label.Font.Size = vg.Points(11)
	p.X.Tick.Marker = limitedTicker(9, "%.1f")
	p.Y.Tick.Marker = limitedTicker(9, "%.1f")
	p.Add(plotter.NewGrid())
}

// TrajectoryPlot draws every agent's path on the X/Z plane. Start points are
// marked with a ring and the playfield edge, when halfExtent > 0, is outlined.
func TrajectoryPlot(tr *storage.Trial, halfExtent float64) (*plot.Plot, error) {
	if len(tr.Records) == 0 {
		return nil, fmt.Errorf("trial has no samples")
	}
	first := tr.Records[0]

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trial %d  k=%.1f  ζ=%.3f  offset=%.2f", first.TrialNum, first.Stiffness, first.DampingRatio, first.Offset)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"
	stylePlot(p)

	if halfExtent > 0 {
		h := halfExtent
		bounds, err := plotter.NewLine(plotter.XYs{{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h}, {X: -h, Y: -h}})
		if err != nil {
			return nil, err
		}
		bounds.LineStyle.Width = vg.Points(1)
		bounds.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(bounds)
	}

	for i, name := range tr.Names {
		pts := make(plotter.XYs, len(tr.Records))
		for j, r := range tr.Records {
			pts[j].X = r.Positions[i].X
			pts[j].Y = r.Positions[i].Z
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)

		start, err := plotter.NewScatter(pts[:1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		start.GlyphStyle.Color = plotutil.Color(i)
		start.GlyphStyle.Shape = draw.RingGlyph{}
		start.GlyphStyle.Radius = vg.Points(4)

		p.Add(line, start)
		p.Legend.Add(name, line)
	}
	p.Legend.Top = true
	return p, nil
}

// ContainmentPlot scatters each indexed trial's contained fraction against
// the herder stiffness.
func ContainmentPlot(rows []storage.Summary) (*plot.Plot, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no trials to plot")
	}
	pts := make(plotter.XYs, len(rows))
	for i, r := range rows {
		pts[i].X = r.Stiffness
		pts[i].Y = r.ContainedFraction
	}

	p := plot.New()
	p.Title.Text = "Containment by stiffness"
	p.X.Label.Text = "stiffness"
	p.Y.Label.Text = "contained fraction"
	stylePlot(p)
	p.Y.Min, p.Y.Max = 0, 1

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = plotutil.Color(0)
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	return p, nil
}

// WritePNG renders p at 300 DPI.
func WritePNG(w io.Writer, p *plot.Plot, widthIn, heightIn float64) error {
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(300),
	)
	p.Draw(draw.New(c))

	bw := bufio.NewWriter(w)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}

// SavePNG writes p to filename, creating parent directories.
func SavePNG(p *plot.Plot, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()
	return WritePNG(f, p, figureWidth, figureHeight)
}
