// Package geom holds the planar vector helpers shared by the agent
// controllers. Positions are r3 vectors with Y as the vertical axis; task math
// works in the XZ plane.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type Vec = r3.Vec

// Planar drops the vertical component.
func Planar(v Vec) Vec {
	return Vec{X: v.X, Z: v.Z}
}

func PlanarDistance(a, b Vec) float64 {
	return r3.Norm(Planar(r3.Sub(a, b)))
}

// Unit returns v scaled to length one, or the zero vector when v has no length.
func Unit(v Vec) Vec {
	n := r3.Norm(v)
	if n == 0 {
		return Vec{}
	}
	return r3.Scale(1/n, v)
}

func ClampMagnitude(v Vec, max float64) Vec {
	n := r3.Norm(v)
	if n <= max || n == 0 {
		return v
	}
	return r3.Scale(max/n, v)
}

// SignedAngle returns the planar angle in radians that rotates from onto to,
// positive when turning from +Z toward +X. The result is in (-π, π].
func SignedAngle(from, to Vec) float64 {
	cross := from.Z*to.X - from.X*to.Z
	dot := from.X*to.X + from.Z*to.Z
	return math.Atan2(cross, dot)
}

// Polar returns the radius and angle of v in the XZ plane, with the angle
// measured from +Z toward +X so that x = r·sin θ and z = r·cos θ.
func Polar(v Vec) (r, theta float64) {
	return math.Hypot(v.X, v.Z), math.Atan2(v.X, v.Z)
}

// FromPolar is the inverse of Polar around center, keeping y as the height.
func FromPolar(center Vec, r, theta, y float64) Vec {
	return Vec{
		X: math.Sin(theta)*r + center.X,
		Y: y,
		Z: math.Cos(theta)*r + center.Z,
	}
}

// Centroid is the planar mean of points; the origin when points is empty.
func Centroid(points []Vec) Vec {
	if len(points) == 0 {
		return Vec{}
	}
	var sum Vec
	for _, p := range points {
		sum = r3.Add(sum, Planar(p))
	}
	return r3.Scale(1/float64(len(points)), sum)
}

func IsFinite(v Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
