package preview

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/soypat/isomesh/grid"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// planeGrid adapts a lattice plane to plotter.GridXYZ. Columns and rows are
// placed at world coordinates.
type planeGrid struct {
	plane    grid.Plane
	min, max float64
}

func newPlaneGrid(p grid.Plane) *planeGrid {
	pg := &planeGrid{plane: p, min: math.Inf(1), max: math.Inf(-1)}
	for _, v := range p.Values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		pg.min = math.Min(pg.min, f)
		pg.max = math.Max(pg.max, f)
	}
	switch {
	case pg.min > pg.max:
		// Nothing finite. Any range will do, every cell is drawn as NaN.
		pg.min, pg.max = 0, 1
	case pg.min == pg.max:
		pg.min, pg.max = pg.min-0.5, pg.max+0.5
	}
	return pg
}

func (pg *planeGrid) Dims() (c, r int) { return pg.plane.N, pg.plane.N }

func (pg *planeGrid) Z(c, r int) float64 {
	v := float64(pg.plane.At(r, c))
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func (pg *planeGrid) X(c int) float64 { return float64(c) / float64(pg.plane.N) }
func (pg *planeGrid) Y(r int) float64 { return float64(r) / float64(pg.plane.N) }
func (pg *planeGrid) Min() float64    { return pg.min }
func (pg *planeGrid) Max() float64    { return pg.max }

// SlicePlot builds a heatmap plot of one lattice plane of g. Non-finite
// samples are drawn black.
func SlicePlot(g *grid.Grid, axis grid.Axis, index int) (*plot.Plot, error) {
	if g == nil {
		return nil, errors.New("nil grid")
	}
	plane, err := g.Plane(axis, index)
	if err != nil {
		return nil, err
	}
	pg := newPlaneGrid(plane)
	heat := plotter.NewHeatMap(pg, palette.Heat(64, 1))
	heat.NaN = color.Black

	p := plot.New()
	p.Title.Text = fmt.Sprintf("field at %v=%d (range %.4g to %.4g)", axis, index, pg.min, pg.max)
	row, col := planeAxes(axis)
	p.X.Label.Text = col
	p.Y.Label.Text = row
	p.Add(heat)
	return p, nil
}

// planeAxes names the row and column axes of a plane normal to axis.
func planeAxes(axis grid.Axis) (row, col string) {
	switch axis {
	case grid.AxisI:
		return "y", "z"
	case grid.AxisJ:
		return "x", "z"
	default:
		return "x", "y"
	}
}

// WriteSlicePNG writes a size×size point PNG heatmap of one lattice plane to w.
func WriteSlicePNG(w io.Writer, g *grid.Grid, axis grid.Axis, index int, size vg.Length) error {
	p, err := SlicePlot(g, axis, index)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(size, size, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveSlicePNG saves a heatmap of one lattice plane to a PNG file.
func SaveSlicePNG(path string, g *grid.Grid, axis grid.Axis, index int, size vg.Length) error {
	p, err := SlicePlot(g, axis, index)
	if err != nil {
		return err
	}
	return p.Save(size, size, path)
}
