package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LegacySphere returns the sphere formula the lattice sampler has always
// shipped with:
//
//	f(x,y,z) = (x-n/2)² + (y-n/2)² + (z-n/2)² - (n/2)²
//
// The centre and radius are in lattice units (n/2 with integer division)
// while the sampler passes world coordinates in [0,1). Over the sampled
// domain the field is therefore strongly positive everywhere, about n²/2,
// and has no zero crossing. Use [Sphere] for a surface that actually exists.
func LegacySphere(n int) Field {
	half := n / 2
	h32 := float32(half)
	r2 := float64(half) * float64(half)
	return Func(func(x, y, z float64) float64 {
		// Differences in float32, squares and sum in float64.
		dx := float64(float32(x) - h32)
		dy := float64(float32(y) - h32)
		dz := float64(float32(z) - h32)
		return dx*dx + dy*dy + dz*dz - r2
	})
}

type sphere struct {
	center r3.Vec
	radius float64
}

// Sphere returns the signed distance field of a sphere in world units.
func Sphere(center r3.Vec, radius float64) Field {
	if radius <= 0 {
		panic("sphere radius must be positive")
	}
	return sphere{center: center, radius: radius}
}

func (s sphere) Evaluate(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.center)) - s.radius
}

type torus struct {
	center       r3.Vec
	major, minor float64
}

// Torus returns a torus around the Z axis passing through center. major is
// the distance from center to the tube's centre line, minor the tube radius.
func Torus(center r3.Vec, major, minor float64) Field {
	if minor <= 0 || major <= minor {
		panic("torus radii must satisfy 0 < minor < major")
	}
	return torus{center: center, major: major, minor: minor}
}

func (t torus) Evaluate(p r3.Vec) float64 {
	p = r3.Sub(p, t.center)
	qx := math.Hypot(p.X, p.Y) - t.major
	return math.Hypot(qx, p.Z) - t.minor
}

type gyroid struct {
	k     float64
	level float64
}

// Gyroid returns the triply periodic gyroid surface with the given period,
// offset so that its zero level set sits at level. The result is an
// approximation of a distance; scale it with care.
func Gyroid(period, level float64) Field {
	if period <= 0 {
		panic("gyroid period must be positive")
	}
	return gyroid{k: 2 * math.Pi / period, level: level}
}

func (g gyroid) Evaluate(p r3.Vec) float64 {
	sx, cx := math.Sincos(g.k * p.X)
	sy, cy := math.Sincos(g.k * p.Y)
	sz, cz := math.Sincos(g.k * p.Z)
	return sx*cy + sy*cz + sz*cx - g.level
}
