package model

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/internal/d3"
	"github.com/soypat/isomesh/march"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Resolution != 256 || cfg.Workers != 1 || cfg.Mode != march.ModeMarchingCubes {
		t.Errorf("unexpected default config %+v", cfg)
	}
	if got := cfg.Field.Evaluate(d3.Elem(0.5)); got != 32384.75 {
		t.Errorf("default field at lattice centre = %g, want 32384.75", got)
	}
}

func TestLegacyFieldBuildsEmptyMesh(t *testing.T) {
	for _, mode := range []march.Mode{march.ModeMarchingCubes, march.ModeLegacy} {
		var buf bytes.Buffer
		m, err := New(Config{
			Resolution: 32,
			Mode:       mode,
			Workers:    4,
			Logger:     log.New(&buf),
		})
		if err != nil {
			t.Fatal(err)
		}
		if m.Grid().Dim() != 32 {
			t.Errorf("grid dim %d", m.Grid().Dim())
		}
		if len(m.Mesh().Vertices) != 0 || len(m.Mesh().Normals) != 0 {
			t.Errorf("%v: legacy sphere produced geometry", mode)
		}
		if m.Stats().CellsVisited != 31*31*31 {
			t.Errorf("%v: visited %d cells", mode, m.Stats().CellsVisited)
		}
		out := buf.String()
		if !strings.Contains(out, "Vertices size is") || !strings.Contains(out, "Normals size is") {
			t.Errorf("%v: sizes not logged:\n%s", mode, out)
		}
	}
}

func TestSphereBuildsMesh(t *testing.T) {
	m, err := New(Config{
		Resolution: 24,
		Field:      field.Sphere(d3.Elem(0.5), 0.3),
		Workers:    2,
	})
	if err != nil {
		t.Fatal(err)
	}
	msh := m.Mesh()
	if err := msh.Validate(); err != nil {
		t.Fatal(err)
	}
	if msh.TriangleCount() == 0 || msh.TriangleCount() != m.Stats().Triangles {
		t.Fatalf("got %d triangles, stats report %d", msh.TriangleCount(), m.Stats().Triangles)
	}
	bb, ok := msh.Bounds()
	if !ok {
		t.Fatal("no bounds")
	}
	if bb.Min.X < 0.15 || bb.Max.X > 0.85 {
		t.Errorf("bounds %+v exceed the sphere", bb)
	}
}

func TestBuildDeterministic(t *testing.T) {
	cfg := Config{Resolution: 20, Field: field.Torus(d3.Elem(0.5), 0.3, 0.1), Workers: 1}
	a, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Workers = 8
	b, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Grid().Equal(b.Grid()) {
		t.Error("field buffers differ between sequential and parallel builds")
	}
	va, vb := a.Mesh().Vertices, b.Mesh().Vertices
	if len(va) != len(vb) {
		t.Fatalf("vertex counts differ: %d vs %d", len(va), len(vb))
	}
	for i := range va {
		if va[i] != vb[i] {
			t.Fatalf("vertex %d differs", i)
		}
	}
}

func TestNewErrors(t *testing.T) {
	for _, cfg := range []Config{
		{Resolution: 1},
		{Resolution: -3},
		{Resolution: 8, Workers: -1},
		{Resolution: 8, Mode: march.Mode(9)},
	} {
		if _, err := New(cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewContext(ctx, Config{Resolution: 8})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
