package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type union []Field

// Union returns the union of fields, the pointwise minimum.
func Union(fields ...Field) Field {
	mustNonNil(fields)
	return union(fields)
}

func (u union) Evaluate(p r3.Vec) float64 {
	d := u[0].Evaluate(p)
	for _, f := range u[1:] {
		d = math.Min(d, f.Evaluate(p))
	}
	return d
}

type intersection []Field

// Intersection returns the intersection of fields, the pointwise maximum.
func Intersection(fields ...Field) Field {
	mustNonNil(fields)
	return intersection(fields)
}

func (s intersection) Evaluate(p r3.Vec) float64 {
	d := s[0].Evaluate(p)
	for _, f := range s[1:] {
		d = math.Max(d, f.Evaluate(p))
	}
	return d
}

type difference struct {
	a, b Field
}

// Difference returns a with b carved out of it.
func Difference(a, b Field) Field {
	mustNonNil([]Field{a, b})
	return difference{a: a, b: b}
}

func (d difference) Evaluate(p r3.Vec) float64 {
	return math.Max(d.a.Evaluate(p), -d.b.Evaluate(p))
}

func mustNonNil(fields []Field) {
	if len(fields) == 0 {
		panic("no Field arguments")
	}
	for _, f := range fields {
		if f == nil {
			panic("nil Field argument")
		}
	}
}
