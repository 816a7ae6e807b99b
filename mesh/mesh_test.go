package mesh

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/isomesh/internal/d3"
)

var (
	up    = ms3.Vec{Z: 1}
	unitT = ms3.Triangle{{X: 0}, {X: 1}, {Y: 1}}
)

func tetrahedron() *Mesh {
	var m Mesh
	a, b, c, d := ms3.Vec{}, ms3.Vec{X: 1}, ms3.Vec{Y: 1}, ms3.Vec{Z: 1}
	for _, t := range []ms3.Triangle{{a, c, b}, {a, b, d}, {a, d, c}, {b, c, d}} {
		n := ms3.Unit(t.Normal())
		m.Append(t, [3]ms3.Vec{n, n, n})
	}
	return &m
}

func TestAppendAndTriangles(t *testing.T) {
	var m Mesh
	m.Append(unitT, [3]ms3.Vec{up, up, up})
	m.Append(unitT, [3]ms3.Vec{up, up, up})
	if m.TriangleCount() != 2 || len(m.Normals) != 6 {
		t.Fatalf("unexpected counts: %d triangles, %d normals", m.TriangleCount(), len(m.Normals))
	}
	if m.Triangle(1) != unitT {
		t.Errorf("got triangle %v", m.Triangle(1))
	}
	if len(m.Triangles()) != 2 {
		t.Error("Triangles length mismatch")
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
	m.Reset()
	if m.TriangleCount() != 0 || len(m.Normals) != 0 {
		t.Error("Reset did not empty mesh")
	}
}

func TestGrow(t *testing.T) {
	var m Mesh
	m.Append(unitT, [3]ms3.Vec{up, up, up})
	m.Grow(30)
	if cap(m.Vertices)-len(m.Vertices) < 30 || cap(m.Normals)-len(m.Normals) < 30 {
		t.Error("Grow did not reserve capacity")
	}
	if m.Triangle(0) != unitT || m.Normals[2] != up {
		t.Error("Grow lost data")
	}
}

func TestValidate(t *testing.T) {
	var empty Mesh
	if err := empty.Validate(); err != nil {
		t.Errorf("empty mesh must be valid: %v", err)
	}
	m := Mesh{Vertices: make([]ms3.Vec, 3), Normals: make([]ms3.Vec, 2)}
	if err := m.Validate(); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected ErrMismatch, got %v", err)
	}
	m = Mesh{Vertices: make([]ms3.Vec, 4), Normals: make([]ms3.Vec, 4)}
	if err := m.Validate(); !errors.Is(err, ErrPartialTriangle) {
		t.Errorf("expected ErrPartialTriangle, got %v", err)
	}
}

func TestNonFiniteAndBounds(t *testing.T) {
	m := tetrahedron()
	bb, ok := m.Bounds()
	if !ok || bb.Min != (ms3.Vec{}) || bb.Max != (ms3.Vec{X: 1, Y: 1, Z: 1}) {
		t.Errorf("unexpected bounds %+v (ok=%v)", bb, ok)
	}
	nan := float32(math.NaN())
	m.Append(ms3.Triangle{{X: nan}, {X: 5}, {X: 6}}, [3]ms3.Vec{{Y: nan}, up, up})
	nv, nn := m.NonFinite()
	if nv != 1 || nn != 1 {
		t.Errorf("expected one non-finite vertex and normal, got %d, %d", nv, nn)
	}
	bb, _ = m.Bounds()
	if bb.Max.X != 6 {
		t.Errorf("finite vertices must still extend bounds, got %v", bb.Max)
	}
	var empty Mesh
	if _, ok := empty.Bounds(); ok {
		t.Error("empty mesh has no bounds")
	}
}

func TestSTLWriteReadback(t *testing.T) {
	input := tetrahedron()
	var b bytes.Buffer
	n, err := WriteBinarySTL(&b, input)
	if err != nil {
		t.Fatal(err)
	}
	if want := stlHeaderSize + stlTriangleSize*input.TriangleCount(); n != want || b.Len() != want {
		t.Fatalf("wrote %d bytes (buffer %d), want %d", n, b.Len(), want)
	}
	output, err := ReadBinarySTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	if output.TriangleCount() != input.TriangleCount() {
		t.Fatal("length of triangles written/read not equal")
	}
	for i := range input.Vertices {
		if output.Vertices[i] != input.Vertices[i] {
			t.Errorf("vertex %d: got %v, want %v", i, output.Vertices[i], input.Vertices[i])
		}
		if !d3.EqualWithin32(output.Normals[i], input.Normals[i], 1e-6) {
			t.Errorf("normal %d: got %v, want %v", i, output.Normals[i], input.Normals[i])
		}
	}
}

func TestSTLErrors(t *testing.T) {
	var b bytes.Buffer
	if _, err := WriteBinarySTL(&b, &Mesh{}); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
	bad := Mesh{Vertices: make([]ms3.Vec, 3)}
	if _, err := WriteBinarySTL(&b, &bad); !errors.Is(err, ErrMismatch) {
		t.Errorf("expected ErrMismatch, got %v", err)
	}
	if _, err := ReadBinarySTL(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Error("expected short header error")
	}
	if _, err := ReadBinarySTL(bytes.NewReader(make([]byte, stlHeaderSize))); err == nil {
		t.Error("expected zero triangle error")
	}
	// Header promises a triangle that never arrives.
	var hdr [stlHeaderSize]byte
	stlHeader{Count: 1}.put(hdr[:])
	if _, err := ReadBinarySTL(bytes.NewReader(hdr[:])); err == nil {
		t.Error("expected truncated body error")
	}
}

func TestSTLFlippedNormal(t *testing.T) {
	var b bytes.Buffer
	if _, err := WriteBinarySTL(&b, tetrahedron()); err != nil {
		t.Fatal(err)
	}
	raw := b.Bytes()
	// Rotate the first facet's stored normal so it no longer matches its winding.
	put3F32(raw[stlHeaderSize:], [3]float32{1, 0, 0})
	m, err := ReadBinarySTL(bytes.NewReader(raw))
	if !errors.Is(err, ErrNormalMismatch) {
		t.Fatalf("expected ErrNormalMismatch, got %v", err)
	}
	if m == nil || m.TriangleCount() != 4 {
		t.Error("mesh must still be returned on normal mismatch")
	}
}

func TestSTLDegenerateFacet(t *testing.T) {
	var m Mesh
	p := ms3.Vec{X: 0.2, Y: 0.35, Z: 0.4}
	m.Append(ms3.Triangle{p, p, p}, [3]ms3.Vec{up, up, up})
	var b bytes.Buffer
	if _, err := WriteBinarySTL(&b, &m); err != nil {
		t.Fatal(err)
	}
	_, err := ReadBinarySTL(&b)
	if !errors.Is(err, ErrDegenerate) {
		t.Fatalf("expected ErrDegenerate, got %v", err)
	}
	if errors.Is(err, ErrNormalMismatch) {
		t.Error("degenerate facet must not be reported as a normal mismatch")
	}
}

func TestSTLHugeTriangleCount(t *testing.T) {
	var b bytes.Buffer
	if _, err := WriteBinarySTL(&b, tetrahedron()); err != nil {
		t.Fatal(err)
	}
	// Keep the header and a single facet, then claim the maximum count.
	raw := b.Bytes()[:stlHeaderSize+stlTriangleSize]
	stlHeader{Count: math.MaxUint32}.put(raw)
	m, err := ReadBinarySTL(bytes.NewReader(raw))
	if err == nil {
		t.Fatal("expected error for a body shorter than the header count")
	}
	if m != nil {
		t.Error("no mesh must be returned for a truncated body")
	}
}

func TestCreateSTL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tetra.stl")
	if err := CreateSTL(path, tetrahedron()); err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	m, err := ReadBinarySTL(fp)
	if err != nil {
		t.Fatal(err)
	}
	if m.TriangleCount() != 4 {
		t.Errorf("got %d triangles", m.TriangleCount())
	}
}
