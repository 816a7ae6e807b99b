package field

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Gradient estimates the gradient of f at p by central differences with step h.
func Gradient(f Field, p r3.Vec, h float64) r3.Vec {
	dx := r3.Vec{X: h}
	dy := r3.Vec{Y: h}
	dz := r3.Vec{Z: h}
	inv := 1 / (2 * h)
	return r3.Vec{
		X: (f.Evaluate(r3.Add(p, dx)) - f.Evaluate(r3.Sub(p, dx))) * inv,
		Y: (f.Evaluate(r3.Add(p, dy)) - f.Evaluate(r3.Sub(p, dy))) * inv,
		Z: (f.Evaluate(r3.Add(p, dz)) - f.Evaluate(r3.Sub(p, dz))) * inv,
	}
}

// Normal returns the unit gradient of f at p, the outward surface normal
// on the zero level set. ok is false when the gradient vanishes and no
// direction exists. NaN gradients are not detected and yield a NaN normal.
func Normal(f Field, p r3.Vec, h float64) (n r3.Vec, ok bool) {
	g := Gradient(f, p, h)
	norm := r3.Norm(g)
	if norm == 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/norm, g), true
}
