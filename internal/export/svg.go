// Package export writes recorded trials in formats other tools can open.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/herdsim/internal/storage"
)

var (
	herderStroke = "#3c78d8"
	targetStroke = "#f1c232"
)

// IsHerder reports whether a recorded agent name belongs to a herder.
func IsHerder(name string) bool { return strings.HasPrefix(name, "HA") }

// TrialToSVG draws the playfield, every agent's path and its final position.
// World X maps right and Z maps up; the view spans ±halfExtent plus a margin.
func TrialToSVG(w io.Writer, tr *storage.Trial, halfExtent float64, size int) error {
	if len(tr.Records) < 2 {
		return fmt.Errorf("trial needs at least 2 samples, has %d", len(tr.Records))
	}
	if halfExtent <= 0 || size <= 0 {
		return fmt.Errorf("invalid view: halfExtent=%v size=%d", halfExtent, size)
	}

	span := halfExtent * 1.2
	scale := float64(size) / (2 * span)
	project := func(x, z float64) (float64, float64) {
		return (x + span) * scale, (span - z) * scale
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, size, size, size, size))

	x0, y0 := project(-halfExtent, halfExtent)
	sb.WriteString(fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#12210f" stroke="#6aa84f"/>
`, x0, y0, 2*halfExtent*scale, 2*halfExtent*scale))

	last := tr.Records[len(tr.Records)-1]
	for i, name := range tr.Names {
		stroke := targetStroke
		if IsHerder(name) {
			stroke = herderStroke
		}
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" stroke-opacity="0.7" d="M`, stroke))
		for j, r := range tr.Records {
			x, y := project(r.Positions[i].X, r.Positions[i].Z)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")

		x, y := project(last.Positions[i].X, last.Positions[i].Z)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"><title>%s</title></circle>
`, x, y, stroke, name))
	}

	sb.WriteString("</svg>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
