// Package field defines the scalar fields sampled onto the lattice and
// the finite difference gradients used to shade the extracted surface.
//
// A field is negative inside the modeled shape, positive outside, and its
// zero level set is the surface.
package field

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Field is the interface to a scalar field over 3D space.
type Field interface {
	// Evaluate returns the field value at p. Evaluate must be pure:
	// the same p always yields the same value.
	Evaluate(p r3.Vec) float64
}

// Func adapts an ordinary function to the Field interface.
type Func func(x, y, z float64) float64

// Evaluate calls f(p.X, p.Y, p.Z).
func (f Func) Evaluate(p r3.Vec) float64 { return f(p.X, p.Y, p.Z) }

type translate struct {
	f      Field
	offset r3.Vec
}

// Translate moves a field by offset.
func Translate(f Field, offset r3.Vec) Field {
	if f == nil {
		panic("nil Field argument")
	}
	return translate{f: f, offset: offset}
}

func (t translate) Evaluate(p r3.Vec) float64 {
	return t.f.Evaluate(r3.Sub(p, t.offset))
}
