package d3

import (
	"math"
	"testing"

	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestConversions(t *testing.T) {
	v := r3.Vec{X: 0.5, Y: -0.25, Z: 128}
	got := FromMS3(ToMS3(v))
	if got != v {
		t.Errorf("exactly representable vector changed in round trip: got %v, want %v", got, v)
	}
	if !EqualWithin(FromMS3(ToMS3(Elem(0.1))), Elem(0.1), 1e-7) {
		t.Error("float32 narrowing out of tolerance")
	}
}

func TestIsFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(-1))
	for _, test := range []struct {
		v    ms3.Vec
		want bool
	}{
		{ms3.Vec{}, true},
		{ms3.Vec{X: 1, Y: 2, Z: 3}, true},
		{ms3.Vec{X: nan}, false},
		{ms3.Vec{Y: inf}, false},
		{ms3.Vec{Z: nan}, false},
	} {
		if got := IsFinite(test.v); got != test.want {
			t.Errorf("IsFinite(%v) = %v, want %v", test.v, got, test.want)
		}
	}
}

func TestEqualWithin32(t *testing.T) {
	a := ms3.Vec{X: 1, Y: 5, Z: -1}
	for _, test := range []struct {
		b    ms3.Vec
		tol  float32
		want bool
	}{
		{a, 0, true},
		{ms3.Vec{X: 1.01, Y: 5, Z: -1}, 0.05, true},
		{ms3.Vec{X: 1, Y: 5, Z: -1.1}, 0.05, false},
		{ms3.Vec{X: -1, Y: -5, Z: 1}, 0.05, false},
		{ms3.Vec{X: float32(math.NaN()), Y: 5, Z: -1}, 1, false},
	} {
		if got := EqualWithin32(a, test.b, test.tol); got != test.want {
			t.Errorf("EqualWithin32(%v, %v, %g) = %v, want %v", a, test.b, test.tol, got, test.want)
		}
	}
}
