// Package march extracts the zero isosurface of a sampled scalar field as a
// triangle mesh using marching cubes over every cell of the lattice.
package march

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/grid"
	"github.com/soypat/isomesh/internal/d3"
	"github.com/soypat/isomesh/mesh"
	"golang.org/x/sync/errgroup"
)

// Mode selects what Extract does with each cell.
type Mode int

const (
	// ModeMarchingCubes triangulates every cell the surface passes through.
	ModeMarchingCubes Mode = iota
	// ModeLegacy re-evaluates the field at every cell and emits no geometry,
	// matching what earlier releases produced. The mesh stays empty.
	ModeLegacy
)

func (m Mode) String() string {
	switch m {
	case ModeMarchingCubes:
		return "marching-cubes"
	case ModeLegacy:
		return "legacy"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "marching-cubes", "mc", "":
		return ModeMarchingCubes, nil
	case "legacy":
		return ModeLegacy, nil
	}
	return 0, fmt.Errorf("unknown extraction mode %q", s)
}

// Extractor walks the cells of a sampled lattice and appends the isosurface
// triangles to a mesh. The zero value is a sequential marching cubes extractor.
type Extractor struct {
	Mode Mode
	// Workers bounds how many i slabs are processed concurrently.
	// Values <= 1 process the lattice on the calling goroutine.
	// Output is identical for any value.
	Workers int
	// GradientStep is the finite difference step used to compute vertex
	// normals from the field. Zero selects half the lattice spacing.
	GradientStep float64
}

// Stats summarises an extraction.
type Stats struct {
	// CellsVisited is always (n-1)³ for a completed extraction.
	CellsVisited int
	// CellsStraddling counts cells with corners on both sides of the surface.
	CellsStraddling int
	// Triangles excludes zero-area triangles, which are never emitted.
	Triangles int
	// PerSlab holds the triangle count of each i slab, in order.
	PerSlab []int
	// Drift counts cells whose re-evaluated origin sample did not match the
	// buffer bit for bit. Only ModeLegacy re-evaluates; a non-zero value
	// means the field is not pure or the buffer was sampled from another field.
	Drift int
}

// slab is the output of one i slab of cells. Slabs are concatenated in order
// so parallel extraction produces the same mesh as a sequential one.
type slab struct {
	vertices   []ms3.Vec
	normals    []ms3.Vec
	visited    int
	straddling int
	drift      int
}

// Extract runs the extractor over every cell of g and appends the resulting
// triangles to dst. f must be the field g was sampled from; it is used for
// vertex normals and, in ModeLegacy, is re-evaluated per cell.
//
// Each triangle's three vertices and normals are appended contiguously.
// Cells are emitted in (i,j,k) order whatever the worker count.
// NaN samples and gradients propagate into the mesh rather than failing.
func (ex Extractor) Extract(ctx context.Context, g *grid.Grid, f field.Field, dst *mesh.Mesh) (Stats, error) {
	switch {
	case g == nil:
		return Stats{}, errors.New("nil grid")
	case f == nil:
		return Stats{}, errors.New("nil field")
	case dst == nil:
		return Stats{}, errors.New("nil destination mesh")
	case ex.Mode != ModeMarchingCubes && ex.Mode != ModeLegacy:
		return Stats{}, fmt.Errorf("invalid extraction mode %v", ex.Mode)
	case ex.GradientStep < 0 || math.IsNaN(ex.GradientStep):
		return Stats{}, fmt.Errorf("invalid gradient step %g", ex.GradientStep)
	}
	h := ex.GradientStep
	if h == 0 {
		h = 0.5 * g.Spacing()
	}
	nslabs := g.Dim() - 1
	slabs := make([]slab, nslabs)
	run := func(i int) {
		if ex.Mode == ModeLegacy {
			slabs[i] = legacySlab(g, f, i)
		} else {
			slabs[i] = marchSlab(g, f, i, h)
		}
	}
	if ex.Workers <= 1 {
		for i := range slabs {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
			run(i)
		}
	} else {
		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(ex.Workers)
		for i := range slabs {
			i := i
			group.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				run(i)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return Stats{}, err
		}
	}

	stats := Stats{PerSlab: make([]int, nslabs)}
	nv := 0
	for _, s := range slabs {
		nv += len(s.vertices)
	}
	dst.Grow(nv)
	for i, s := range slabs {
		dst.Vertices = append(dst.Vertices, s.vertices...)
		dst.Normals = append(dst.Normals, s.normals...)
		stats.CellsVisited += s.visited
		stats.CellsStraddling += s.straddling
		stats.Drift += s.drift
		stats.PerSlab[i] = len(s.vertices) / 3
		stats.Triangles += stats.PerSlab[i]
	}
	return stats, nil
}

// legacySlab visits the cells of slab i the way earlier releases did:
// the field is evaluated at each cell origin and nothing is emitted.
func legacySlab(g *grid.Grid, f field.Field, i int) (s slab) {
	n := g.Dim()
	for j := 0; j < n-1; j++ {
		for k := 0; k < n-1; k++ {
			v := float32(f.Evaluate(g.World(i, j, k)))
			if math.Float32bits(v) != math.Float32bits(g.At(i, j, k)) {
				s.drift++
			}
			s.visited++
		}
	}
	return s
}

// marchSlab triangulates the cells of slab i.
func marchSlab(g *grid.Grid, f field.Field, i int, h float64) (s slab) {
	n := g.Dim()
	var (
		p   [8]ms3.Vec
		v   [8]float32
		tri [marchingCubesMaxTriangles]ms3.Triangle
	)
	for j := 0; j < n-1; j++ {
		for k := 0; k < n-1; k++ {
			s.visited++
			for c, off := range mcCornerOffsets {
				ci, cj, ck := i+off[0], j+off[1], k+off[2]
				p[c] = d3.ToMS3(g.World(ci, cj, ck))
				v[c] = g.At(ci, cj, ck)
			}
			nt := mcToTriangles(tri[:], p, v, 0)
			if nt == 0 {
				continue
			}
			s.straddling++
			for _, t := range tri[:nt] {
				if degenerate(t) {
					continue
				}
				face := ms3.Unit(t.Normal())
				for _, vert := range t {
					s.vertices = append(s.vertices, vert)
					s.normals = append(s.normals, vertexNormal(f, vert, h, face))
				}
			}
		}
	}
	return s
}

// degenerateTol is the extent below which an emitted triangle has no area.
// Samples within rounding of the isolevel pull the crossings on their edges
// onto the corner itself.
const degenerateTol = 1e-12

// degenerate reports whether t has finite vertices and no area.
// Non-finite triangles are kept so NaN samples reach the mesh.
func degenerate(t ms3.Triangle) bool {
	if !d3.IsFinite(t[0]) || !d3.IsFinite(t[1]) || !d3.IsFinite(t[2]) {
		return false
	}
	return t.IsDegenerate(degenerateTol) || !d3.IsFinite(ms3.Unit(t.Normal()))
}

// vertexNormal returns the unit field gradient at vert, or the triangle's
// face normal where the gradient vanishes.
func vertexNormal(f field.Field, vert ms3.Vec, h float64, face ms3.Vec) ms3.Vec {
	n, ok := field.Normal(f, d3.FromMS3(vert), h)
	if !ok {
		return face
	}
	return d3.ToMS3(n)
}

// marchingCubesMaxTriangles is the largest number of triangles a single
// cell configuration produces.
const marchingCubesMaxTriangles = 5

// mcCornerOffsets are the lattice offsets of the 8 cell corners. Bit c of a
// cell configuration refers to corner c.
var mcCornerOffsets = [8][3]int{
	{0, 0, 0},
	{1, 0, 0},
	{1, 1, 0},
	{0, 1, 0},
	{0, 0, 1},
	{1, 0, 1},
	{1, 1, 1},
	{0, 1, 1},
}

// mcPairTable holds the corners joined by each of the 12 cell edges.
var mcPairTable = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// mcConfig returns the 8 bit corner configuration of a cell: bit c is set
// when corner c is inside the surface (value below x). NaN is never inside.
func mcConfig(v [8]float32, x float32) (index int) {
	for c := 0; c < 8; c++ {
		if v[c] < x {
			index |= 1 << c
		}
	}
	return index
}

// mcToTriangles writes the triangles of a cell with corner positions p and
// corner values v at isolevel x to dst and returns how many were written.
// dst must have room for marchingCubesMaxTriangles triangles. Triangles are
// wound counter-clockwise when seen from the outside of the surface.
func mcToTriangles(dst []ms3.Triangle, p [8]ms3.Vec, v [8]float32, x float32) int {
	index := mcConfig(v, x)
	edges := mcEdgeTable[index]
	if edges == 0 {
		return 0
	}
	var points [12]ms3.Vec
	for e := 0; e < 12; e++ {
		if edges&(1<<e) != 0 {
			a, b := mcPairTable[e][0], mcPairTable[e][1]
			points[e] = mcInterpolate(p[a], p[b], v[a], v[b], x)
		}
	}
	table := mcTriangleTable[index]
	n := len(table) / 3
	for t := 0; t < n; t++ {
		i := 3 * t
		// The table lists vertices clockwise seen from outside; reverse them.
		dst[t] = ms3.Triangle{points[table[i+2]], points[table[i+1]], points[table[i]]}
	}
	return n
}

// mcInterpolate returns the point between p1 and p2 where the linearly
// interpolated value equals x.
func mcInterpolate(p1, p2 ms3.Vec, v1, v2, x float32) ms3.Vec {
	const epsilon = 1e-12
	closeToV1 := math32.Abs(x-v1) < epsilon
	closeToV2 := math32.Abs(x-v2) < epsilon
	if closeToV1 && !closeToV2 {
		return p1
	}
	if closeToV2 && !closeToV1 {
		return p2
	}
	var t float32
	if closeToV1 && closeToV2 {
		t = 0.5
	} else {
		t = (x - v1) / (v2 - v1)
	}
	return ms3.Add(p1, ms3.Scale(t, ms3.Sub(p2, p1)))
}
