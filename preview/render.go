// Package preview draws images of model output: shaded renders of a mesh and
// heatmaps of lattice slices of the sampled field.
package preview

import (
	"errors"
	"image"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/isomesh/internal/d3"
	"github.com/soypat/isomesh/mesh"
)

// ErrNothingToDraw is returned when a mesh has no finite triangle.
var ErrNothingToDraw = errors.New("mesh has no finite triangles to draw")

// View describes the camera used to render a mesh. The mesh is first
// scaled to fit the cube [-1,1]³ centred at the origin.
type View struct {
	Eye, LookAt, Up ms3.Vec
	// Fovy is the vertical field of view in degrees.
	Fovy      float64
	Near, Far float64
	// Supersample renders at this many times the output size and downsamples
	// for antialiasing. Values below 1 are treated as 1.
	Supersample int
}

// DefaultView looks at the origin from an oblique corner.
func DefaultView() View {
	return View{
		Eye:         ms3.Vec{X: 3, Y: 2.5, Z: 3.5},
		LookAt:      ms3.Vec{},
		Up:          ms3.Vec{Y: 1},
		Fovy:        30,
		Near:        1,
		Far:         20,
		Supersample: 2,
	}
}

var (
	objectColor     = fauxgl.HexColor("#468966")
	backgroundColor = fauxgl.HexColor("#FFF8E3")
)

// Render draws m as seen from view into a width×height image using Phong
// shading with the mesh's own vertex normals. Triangles with non-finite
// vertices or normals are skipped.
func Render(m *mesh.Mesh, width, height int, view View) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("image dimensions must be positive")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	triangles := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	var lo, hi ms3.Vec
	for i := 0; i < len(m.Vertices); i += 3 {
		var v [3]fauxgl.Vertex
		finite := true
		for j := range v {
			p, n := m.Vertices[i+j], m.Normals[i+j]
			if !d3.IsFinite(p) || !d3.IsFinite(n) {
				finite = false
				break
			}
			v[j] = fauxgl.Vertex{Position: fauxVec(p), Normal: fauxVec(n)}
		}
		if !finite {
			continue
		}
		if len(triangles) == 0 {
			lo, hi = m.Vertices[i], m.Vertices[i]
		}
		for j := 0; j < 3; j++ {
			lo = ms3.MinElem(lo, m.Vertices[i+j])
			hi = ms3.MaxElem(hi, m.Vertices[i+j])
		}
		triangles = append(triangles, fauxgl.NewTriangle(v[0], v[1], v[2]))
	}
	if len(triangles) == 0 || lo == hi {
		// A single point cannot be scaled to fit the view.
		return nil, ErrNothingToDraw
	}
	fmesh := fauxgl.NewTriangleMesh(triangles)
	fmesh.BiUnitCube()

	scale := view.Supersample
	if scale < 1 {
		scale = 1
	}
	var (
		eye    = fauxVec(view.Eye)
		center = fauxVec(view.LookAt)
		up     = fauxVec(view.Up)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	ctx := fauxgl.NewContext(width*scale, height*scale)
	ctx.ClearColorBufferWith(backgroundColor)
	aspect := float64(width) / float64(height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(view.Fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = objectColor
	ctx.Shader = shader
	ctx.DrawMesh(fmesh)

	img := ctx.Image()
	if scale > 1 {
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}
	return img, nil
}

// RenderPNG renders m with the default view and writes it to a PNG file.
func RenderPNG(path string, m *mesh.Mesh, width, height int) error {
	img, err := Render(m, width, height, DefaultView())
	if err != nil {
		return err
	}
	return fauxgl.SavePNG(path, img)
}

func fauxVec(v ms3.Vec) fauxgl.Vector {
	return fauxgl.V(float64(v.X), float64(v.Y), float64(v.Z))
}
