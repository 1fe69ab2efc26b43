package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

type mark struct {
	r     rune
	style lipgloss.Style
}

// Canvas is a braille pixel grid. Each cell holds 2x4 sub-pixels; cells can
// also carry a styled glyph drawn over the dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
	marks         map[[2]int]mark
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
		marks:  make(map[[2]int]mark),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set sets a pixel at (x, y) in sub-pixel coordinates. The canvas size in
// sub-pixels is (Width*2) x (Height*4).
func (c *Canvas) Set(x, y int) {
	col, row, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Unset(x, y int) {
	col, row, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.Grid[row][col] &= ^rune(pixelMap[y%4][x%2])
	if c.Grid[row][col] < blank {
		c.Grid[row][col] = blank
	}
}

func (c *Canvas) cell(x, y int) (col, row int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = x/2, y/4
	if col >= c.Width || row >= c.Height {
		return 0, 0, false
	}
	return col, row, true
}

// Mark draws glyph r in the cell containing sub-pixel (x, y).
func (c *Canvas) Mark(x, y int, r rune, style lipgloss.Style) {
	col, row, ok := c.cell(x, y)
	if !ok {
		return
	}
	c.marks[[2]int{row, col}] = mark{r: r, style: style}
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	clear(c.marks)
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawCircle outlines a circle with the midpoint algorithm.
func (c *Canvas) DrawCircle(cx, cy, r int) {
	x, y := r, 0
	d := 1 - r
	for x >= y {
		for _, p := range [8][2]int{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			c.Set(cx+p[0], cy+p[1])
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for i, row := range c.Grid {
		for j, r := range row {
			if m, ok := c.marks[[2]int{i, j}]; ok {
				b.WriteString(m.style.Render(string(m.r)))
				continue
			}
			b.WriteRune(r)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Field maps planar world coordinates onto a canvas. +X points right and +Z
// points up; the square [-HalfExtent, HalfExtent]² fills the shorter side.
type Field struct {
	HalfExtent float64
	W, H       int
}

func NewField(c *Canvas, halfExtent float64) Field {
	return Field{HalfExtent: halfExtent, W: c.Width * 2, H: c.Height * 4}
}

// Scale is sub-pixels per world unit along X. Braille dots are roughly twice
// as tall as wide, so Z uses half of it.
func (f Field) Scale() float64 {
	return math.Min(float64(f.W), float64(f.H)*2) / (2 * f.HalfExtent)
}

func (f Field) Project(x, z float64) (int, int) {
	s := f.Scale()
	px := float64(f.W)/2 + x*s
	py := float64(f.H)/2 - z*s/2
	return int(math.Round(px)), int(math.Round(py))
}

// DrawBounds outlines the playfield.
func (f Field) DrawBounds(c *Canvas) {
	h := f.HalfExtent
	x0, y0 := f.Project(-h, h)
	x1, y1 := f.Project(h, -h)
	c.DrawLine(x0, y0, x1, y0)
	c.DrawLine(x1, y0, x1, y1)
	c.DrawLine(x1, y1, x0, y1)
	c.DrawLine(x0, y1, x0, y0)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
