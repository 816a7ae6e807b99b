// Package grid holds the dense volumetric buffer the scalar field is
// sampled into.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxDim bounds the lattice side so the sample count fits comfortably in memory
// and in an int on 32 bit platforms.
const MaxDim = 1 << 10

// Grid is an n×n×n lattice of float32 samples. Lattice point (i,j,k) sits at
// world coordinate (i/n, j/n, k/n). Samples are stored with k varying fastest.
type Grid struct {
	n    int
	data []float32
}

// New allocates a zeroed lattice of side n. A cell needs two samples per axis
// so n must be at least 2.
func New(n int) (*Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("lattice side must be 2 or larger, got %d", n)
	} else if n > MaxDim {
		return nil, fmt.Errorf("lattice side %d exceeds maximum of %d", n, MaxDim)
	}
	return &Grid{
		n:    n,
		data: make([]float32, n*n*n),
	}, nil
}

// Dim returns the lattice side n.
func (g *Grid) Dim() int { return g.n }

// Len returns the number of samples, n³.
func (g *Grid) Len() int { return len(g.data) }

// Cells returns the number of cells in the lattice, (n-1)³.
func (g *Grid) Cells() int {
	c := g.n - 1
	return c * c * c
}

// Index returns the position of sample (i,j,k) in the flat buffer.
func (g *Grid) Index(i, j, k int) int {
	if uint(i) >= uint(g.n) || uint(j) >= uint(g.n) || uint(k) >= uint(g.n) {
		panic(fmt.Sprintf("lattice index (%d,%d,%d) out of range [0,%d)", i, j, k, g.n))
	}
	return (i*g.n+j)*g.n + k
}

// At returns the sample at lattice point (i,j,k).
func (g *Grid) At(i, j, k int) float32 { return g.data[g.Index(i, j, k)] }

// Set stores v at lattice point (i,j,k).
func (g *Grid) Set(i, j, k int, v float32) { g.data[g.Index(i, j, k)] = v }

// Values returns the underlying sample buffer. It must not be modified.
func (g *Grid) Values() []float32 { return g.data }

// World returns the world coordinate of lattice point (i,j,k). The division
// is done in float32 like the rest of the geometry pipeline, then widened.
func (g *Grid) World(i, j, k int) r3.Vec {
	n := float32(g.n)
	return r3.Vec{
		X: float64(float32(i) / n),
		Y: float64(float32(j) / n),
		Z: float64(float32(k) / n),
	}
}

// Spacing returns the world distance between neighbouring lattice points.
func (g *Grid) Spacing() float64 { return 1 / float64(g.n) }

// Equal reports whether both lattices have the same side and bit-identical samples.
// Unlike ==, NaN samples with the same bits compare equal.
func (g *Grid) Equal(other *Grid) bool {
	if g.n != other.n {
		return false
	}
	for i, v := range g.data {
		if math.Float32bits(v) != math.Float32bits(other.data[i]) {
			return false
		}
	}
	return true
}

// Range returns the smallest and largest finite samples and how many samples
// are NaN or infinite. ok is false when no sample is finite.
func (g *Grid) Range() (min, max float32, nonFinite int, ok bool) {
	min, max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range g.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			nonFinite++
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, nonFinite, ok
}

// Axis selects one of the three lattice axes.
type Axis int

const (
	AxisI Axis = iota
	AxisJ
	AxisK
)

func (a Axis) String() string {
	switch a {
	case AxisI:
		return "i"
	case AxisJ:
		return "j"
	case AxisK:
		return "k"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// ParseAxis parses "i", "j" or "k". "x", "y" and "z" are accepted as aliases.
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "i", "x":
		return AxisI, nil
	case "j", "y":
		return AxisJ, nil
	case "k", "z":
		return AxisK, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Plane is a copy of one axis-aligned slice of a Grid.
// Row r, column c holds the sample at the two remaining axes in order.
type Plane struct {
	Axis   Axis
	Index  int
	N      int
	Values []float32
}

// At returns the sample at row r and column c.
func (p Plane) At(r, c int) float32 { return p.Values[r*p.N+c] }

var errPlaneIndex = errors.New("plane index out of range")

// Plane copies the slice of samples whose axis coordinate equals index.
func (g *Grid) Plane(axis Axis, index int) (Plane, error) {
	if index < 0 || index >= g.n {
		return Plane{}, fmt.Errorf("%w: %d not in [0,%d)", errPlaneIndex, index, g.n)
	}
	p := Plane{Axis: axis, Index: index, N: g.n, Values: make([]float32, g.n*g.n)}
	for r := 0; r < g.n; r++ {
		for c := 0; c < g.n; c++ {
			var v float32
			switch axis {
			case AxisI:
				v = g.At(index, r, c)
			case AxisJ:
				v = g.At(r, index, c)
			case AxisK:
				v = g.At(r, c, index)
			default:
				return Plane{}, fmt.Errorf("invalid axis %v", axis)
			}
			p.Values[r*g.n+c] = v
		}
	}
	return p, nil
}
