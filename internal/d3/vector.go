package d3

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fields are evaluated in float64 on gonum's r3 while mesh data is stored
// as float32 ms3 vectors, the layout a vertex buffer expects. These helpers
// move values between the two.

// Elem returns a vector with all components set to f.
func Elem(f float64) r3.Vec {
	return r3.Vec{X: f, Y: f, Z: f}
}

// ToMS3 narrows a float64 vector to float32.
func ToMS3(v r3.Vec) ms3.Vec {
	return ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

// FromMS3 widens a float32 vector to float64.
func FromMS3(v ms3.Vec) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func EqualWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}

// IsFinite reports whether no component of v is NaN or infinite.
func IsFinite(v ms3.Vec) bool {
	return !(math32.IsNaN(v.X) || math32.IsInf(v.X, 0) ||
		math32.IsNaN(v.Y) || math32.IsInf(v.Y, 0) ||
		math32.IsNaN(v.Z) || math32.IsInf(v.Z, 0))
}

// EqualWithin32 reports whether every component of a and b differs by at
// most tol.
func EqualWithin32(a, b ms3.Vec, tol float32) bool {
	return math32.Abs(a.X-b.X) <= tol &&
		math32.Abs(a.Y-b.Y) <= tol &&
		math32.Abs(a.Z-b.Z) <= tol
}
