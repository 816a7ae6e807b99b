package grid

import (
	"context"
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNew(t *testing.T) {
	for _, n := range []int{-1, 0, 1, MaxDim + 1} {
		if _, err := New(n); err == nil {
			t.Errorf("expected error for side %d", n)
		}
	}
	g, err := New(3)
	if err != nil {
		t.Fatal(err)
	}
	if g.Dim() != 3 || g.Len() != 27 || g.Cells() != 8 {
		t.Errorf("unexpected sizes dim=%d len=%d cells=%d", g.Dim(), g.Len(), g.Cells())
	}
}

func TestIndexing(t *testing.T) {
	g, _ := New(4)
	g.Set(1, 2, 3, 42)
	if got := g.Values()[(1*4+2)*4+3]; got != 42 {
		t.Errorf("k must vary fastest, got %g at expected index", got)
	}
	if g.At(1, 2, 3) != 42 {
		t.Error("At did not return value written by Set")
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic on out of range index")
		}
	}()
	g.At(4, 0, 0)
}

func TestWorld(t *testing.T) {
	g, _ := New(256)
	if got := g.World(128, 128, 128); got != d3.Elem(0.5) {
		t.Errorf("centre maps to %v", got)
	}
	if got := g.World(0, 255, 64); got != (r3.Vec{X: 0, Y: 255. / 256, Z: 0.25}) {
		t.Errorf("unexpected world coordinate %v", got)
	}
	g, _ = New(3)
	if got, want := g.World(1, 0, 0).X, float64(float32(1)/float32(3)); got != want {
		t.Errorf("world coordinates must be float32 divisions: got %v, want %v", got, want)
	}
}

func TestSampleGridMapping(t *testing.T) {
	if testing.Short() {
		t.Skip("samples 16M lattice points")
	}
	const n = 256
	g, err := New(n)
	if err != nil {
		t.Fatal(err)
	}
	err = Sample(context.Background(), g, field.LegacySphere(n), runtime.NumCPU())
	if err != nil {
		t.Fatal(err)
	}
	// f(0.5,0.5,0.5) = 3*(0.5-128)² - 128², exactly representable.
	if got := g.At(128, 128, 128); got != 32384.75 {
		t.Errorf("buffer[128][128][128] = %v, want 32384.75", got)
	}
	if got := g.At(0, 0, 0); got != 32768 {
		t.Errorf("buffer[0][0][0] = %v, want 32768", got)
	}
	min, _, nonFinite, ok := g.Range()
	if !ok || nonFinite != 0 || min <= 0 {
		t.Errorf("legacy sphere must be positive everywhere: min=%g nonFinite=%d", min, nonFinite)
	}
}

func TestSampleDeterminism(t *testing.T) {
	const n = 33
	f := field.Union(field.Sphere(d3.Elem(0.5), 0.3), field.Gyroid(0.3, 0.1))
	var grids []*Grid
	for _, workers := range []int{0, 1, 2, 7, 64} {
		g, _ := New(n)
		if err := Sample(context.Background(), g, f, workers); err != nil {
			t.Fatal(err)
		}
		grids = append(grids, g)
	}
	for i, g := range grids[1:] {
		if !g.Equal(grids[0]) {
			t.Errorf("run %d differs from sequential run", i+1)
		}
	}
	// Re-sampling in place is idempotent.
	g := grids[0]
	if err := Sample(context.Background(), g, f, 1); err != nil {
		t.Fatal(err)
	}
	if !g.Equal(grids[1]) {
		t.Error("re-sampling changed buffer")
	}
}

func TestSampleValues(t *testing.T) {
	const n = 8
	g, _ := New(n)
	f := field.Func(func(x, y, z float64) float64 { return x + 2*y + 4*z })
	if err := Sample(context.Background(), g, f, 3); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				want := float32(float64(i)/n + 2*float64(j)/n + 4*float64(k)/n)
				if got := g.At(i, j, k); got != want {
					t.Fatalf("(%d,%d,%d): got %g, want %g", i, j, k, got, want)
				}
			}
		}
	}
}

func TestSampleNaNPropagates(t *testing.T) {
	g, _ := New(4)
	f := field.Func(func(x, y, z float64) float64 {
		if x == 0.5 {
			return math.NaN()
		}
		return 1
	})
	if err := Sample(context.Background(), g, f, 1); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(g.At(2, 1, 1))) {
		t.Error("NaN sample not stored")
	}
	_, _, nonFinite, ok := g.Range()
	if !ok || nonFinite != 16 {
		t.Errorf("expected 16 non-finite samples, got %d", nonFinite)
	}
}

func TestSampleErrors(t *testing.T) {
	g, _ := New(4)
	if err := Sample(context.Background(), g, nil, 1); err == nil {
		t.Error("expected nil field error")
	}
	if err := Sample(context.Background(), nil, field.Sphere(r3.Vec{}, 1), 1); err == nil {
		t.Error("expected nil grid error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, workers := range []int{1, 4} {
		err := Sample(ctx, g, field.Sphere(r3.Vec{}, 1), workers)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}

func TestPlane(t *testing.T) {
	const n = 5
	g, _ := New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				g.Set(i, j, k, float32(100*i+10*j+k))
			}
		}
	}
	for _, test := range []struct {
		axis Axis
		r, c int
		want float32
	}{
		{AxisI, 3, 4, 234},
		{AxisJ, 3, 4, 324},
		{AxisK, 3, 4, 342},
	} {
		p, err := g.Plane(test.axis, 2)
		if err != nil {
			t.Fatal(err)
		}
		if got := p.At(test.r, test.c); got != test.want {
			t.Errorf("axis %v: got %g, want %g", test.axis, got, test.want)
		}
	}
	if _, err := g.Plane(AxisK, n); !errors.Is(err, errPlaneIndex) {
		t.Errorf("expected plane index error, got %v", err)
	}
	if _, err := ParseAxis("w"); err == nil {
		t.Error("expected error parsing bad axis")
	}
	if a, _ := ParseAxis("z"); a != AxisK {
		t.Errorf("z should alias k, got %v", a)
	}
}
