// Package mesh holds the triangle geometry produced by isosurface extraction
// in the layout a graphics device consumes: a vertex buffer and a parallel
// normal buffer, three consecutive entries per triangle.
package mesh

import (
	"errors"
	"fmt"

	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/isomesh/internal/d3"
)

var (
	// ErrEmpty is returned by operations that need at least one triangle.
	ErrEmpty = errors.New("empty mesh")
	// ErrMismatch is returned when vertex and normal counts differ.
	ErrMismatch = errors.New("vertex and normal count mismatch")
	// ErrPartialTriangle is returned when the vertex count is not a multiple of 3.
	ErrPartialTriangle = errors.New("vertex count not a multiple of 3")
)

// Mesh is a triangle list with per-vertex normals. Vertices[v] pairs with
// Normals[v] and triangle t is made of vertices 3t, 3t+1 and 3t+2.
// Meant to be bound as vertex attribute 0 (positions) and 1 (normals).
type Mesh struct {
	Vertices []ms3.Vec
	Normals  []ms3.Vec
}

// Append adds one triangle and the normals of its three vertices.
func (m *Mesh) Append(t ms3.Triangle, normals [3]ms3.Vec) {
	m.Vertices = append(m.Vertices, t[0], t[1], t[2])
	m.Normals = append(m.Normals, normals[0], normals[1], normals[2])
}

// Grow ensures space for another n vertices without reallocation.
func (m *Mesh) Grow(n int) {
	if free := cap(m.Vertices) - len(m.Vertices); free < n {
		v := make([]ms3.Vec, len(m.Vertices), len(m.Vertices)+n)
		copy(v, m.Vertices)
		m.Vertices = v
	}
	if free := cap(m.Normals) - len(m.Normals); free < n {
		nrm := make([]ms3.Vec, len(m.Normals), len(m.Normals)+n)
		copy(nrm, m.Normals)
		m.Normals = nrm
	}
}

// Reset empties the mesh, keeping allocated memory.
func (m *Mesh) Reset() {
	m.Vertices = m.Vertices[:0]
	m.Normals = m.Normals[:0]
}

// TriangleCount returns len(Vertices)/3.
func (m *Mesh) TriangleCount() int { return len(m.Vertices) / 3 }

// Triangle returns the i'th triangle.
func (m *Mesh) Triangle(i int) ms3.Triangle {
	return ms3.Triangle{m.Vertices[3*i], m.Vertices[3*i+1], m.Vertices[3*i+2]}
}

// Triangles returns a copy of the mesh's triangles, without normals.
func (m *Mesh) Triangles() []ms3.Triangle {
	tris := make([]ms3.Triangle, m.TriangleCount())
	for i := range tris {
		tris[i] = m.Triangle(i)
	}
	return tris
}

// Validate checks the invariants of the vertex and normal buffers.
// An empty mesh is valid.
func (m *Mesh) Validate() error {
	if len(m.Vertices) != len(m.Normals) {
		return fmt.Errorf("%w: %d vertices, %d normals", ErrMismatch, len(m.Vertices), len(m.Normals))
	}
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("%w: %d vertices", ErrPartialTriangle, len(m.Vertices))
	}
	return nil
}

// NonFinite counts vertices and normals with NaN or infinite components.
func (m *Mesh) NonFinite() (vertices, normals int) {
	for _, v := range m.Vertices {
		if !d3.IsFinite(v) {
			vertices++
		}
	}
	for _, n := range m.Normals {
		if !d3.IsFinite(n) {
			normals++
		}
	}
	return vertices, normals
}

// Bounds returns the axis aligned box containing every finite vertex.
// ok is false when there is no finite vertex.
func (m *Mesh) Bounds() (bb ms3.Box, ok bool) {
	for _, v := range m.Vertices {
		if !d3.IsFinite(v) {
			continue
		}
		if !ok {
			bb = ms3.Box{Min: v, Max: v}
			ok = true
			continue
		}
		bb.Min = ms3.MinElem(bb.Min, v)
		bb.Max = ms3.MaxElem(bb.Max, v)
	}
	return bb, ok
}
