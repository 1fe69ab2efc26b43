package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSignedAngle(t *testing.T) {
	tests := []struct {
		name     string
		from, to Vec
		expected float64
	}{
		{"same direction", Vec{Z: 1}, Vec{Z: 2}, 0},
		{"quarter toward x", Vec{Z: 1}, Vec{X: 1}, math.Pi / 2},
		{"quarter away from x", Vec{X: 1}, Vec{Z: 1}, -math.Pi / 2},
		{"ignores height", Vec{Y: 5, Z: 1}, Vec{X: 1, Y: -3}, math.Pi / 2},
		{"opposite", Vec{Z: 1}, Vec{Z: -1}, math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SignedAngle(tt.from, tt.to)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %.6f, got %.6f", tt.expected, got)
			}
		})
	}
}

func TestPolarRoundTrip(t *testing.T) {
	center := Vec{X: 1, Z: -2}
	p := Vec{X: 3.5, Y: 0.25, Z: 0.5}

	r, theta := Polar(r3.Sub(p, center))
	back := FromPolar(center, r, theta, p.Y)

	if r3.Norm(r3.Sub(back, p)) > 1e-12 {
		t.Errorf("round trip mismatch: %v vs %v", back, p)
	}
}

func TestSignedAngleMatchesPolarDifference(t *testing.T) {
	a := Vec{X: -0.3, Z: 0.8}
	b := Vec{X: 0.6, Z: 0.1}

	_, ta := Polar(a)
	_, tb := Polar(b)

	if math.Abs((ta+SignedAngle(a, b))-tb) > 1e-12 {
		t.Errorf("θa + signed angle should land on θb")
	}
}

func TestClampMagnitude(t *testing.T) {
	v := ClampMagnitude(Vec{X: 30, Z: 40}, 10)
	if math.Abs(r3.Norm(v)-10) > 1e-12 {
		t.Errorf("expected length 10, got %f", r3.Norm(v))
	}

	small := Vec{X: 1}
	if ClampMagnitude(small, 10) != small {
		t.Error("short vectors must be returned unchanged")
	}
}

func TestUnitZero(t *testing.T) {
	if Unit(Vec{}) != (Vec{}) {
		t.Error("unit of zero vector should be zero")
	}
}

func TestCentroid(t *testing.T) {
	c := Centroid([]Vec{{X: 1, Y: 9}, {X: -1}, {Z: 3}, {Z: -3}})
	if c != (Vec{}) {
		t.Errorf("expected origin, got %v", c)
	}
	if Centroid(nil) != (Vec{}) {
		t.Error("empty centroid should be origin")
	}
}
