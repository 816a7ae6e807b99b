package mesh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/isomesh/internal/d3"
)

// ErrNormalMismatch is returned alongside the decoded mesh by ReadBinarySTL
// when a stored facet normal disagrees with the one computed from its
// vertices. Fine meshes with tiny triangles may trigger it legitimately.
var ErrNormalMismatch = errors.New("stored facet normal does not match vertex winding")

// ErrDegenerate is returned by ReadBinarySTL for a facet with no area.
var ErrDegenerate = errors.New("STL triangle is degenerate")

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
	// stlMaxPrealloc bounds the triangles reserved up front from the header
	// count, which the body may not honour.
	stlMaxPrealloc = 1 << 16
)

// CreateSTL writes the mesh to a binary STL file at path.
func CreateSTL(path string, m *Mesh) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	_, err = WriteBinarySTL(fp, m)
	if err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// WriteBinarySTL writes the mesh triangles to w in binary STL format and
// returns the number of bytes written. Facet normals are computed from the
// vertex winding. Empty meshes are rejected since STL has no use for them.
func WriteBinarySTL(w io.Writer, m *Mesh) (int, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	nt := int64(m.TriangleCount()) // int64 cast so that next line works correctly on 32bit machines.
	if nt == 0 {
		return 0, ErrEmpty
	} else if nt > math.MaxUint32 {
		return 0, errors.New("amount of triangles in model exceeds STL design limits")
	}
	header := stlHeader{Count: uint32(nt)}

	var buf [stlHeaderSize]byte
	header.put(buf[:])
	n, err := w.Write(buf[:])
	if err != nil {
		return n, err
	} else if n != len(buf) {
		return n, io.ErrShortWrite
	}
	var d stlTriangle
	for i := 0; i < int(nt); i++ {
		triangle := m.Triangle(i)
		norm := ms3.Unit(triangle.Normal())
		if !d3.IsFinite(norm) {
			norm = ms3.Vec{} // Degenerate facet, let readers recompute it.
		}
		d.Normal = arrayFromVec(norm)
		d.Vertex1 = arrayFromVec(triangle[0])
		d.Vertex2 = arrayFromVec(triangle[1])
		d.Vertex3 = arrayFromVec(triangle[2])
		d.put(buf[:])
		ngot, err := w.Write(buf[:stlTriangleSize])
		n += ngot
		if err != nil {
			return n, err
		} else if ngot != stlTriangleSize {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// ReadBinarySTL decodes a binary STL stream. Each vertex receives its
// facet's stored normal. A non-nil error wrapping ErrNormalMismatch is
// returned together with a complete mesh.
func ReadBinarySTL(r io.Reader) (_ *Mesh, readErr error) {
	var hbuf [stlHeaderSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, fmt.Errorf("STL header read failed: %w", err)
	}
	var header stlHeader
	header.get(hbuf[:])
	if header.Count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf            [stlTriangleSize]byte
		d              stlTriangle
		i              int
		normMismatches int
		m              Mesh
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrNormalMismatch) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, header.Count, readErr)
		}
	}()
	m.Grow(3 * int(min(header.Count, stlMaxPrealloc)))
	for i = 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if !errors.Is(err, ErrNormalMismatch) {
				return nil, err
			}
			normMismatches++
		}
		nrm := vecFromArray(d.Normal)
		m.Append(d.Triangle(), [3]ms3.Vec{nrm, nrm, nrm})
	}
	if normMismatches > 0 {
		return &m, fmt.Errorf("%w (%d of %d triangles)", ErrNormalMismatch, normMismatches, header.Count)
	}
	return &m, nil
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

func (h stlHeader) put(b []byte) {
	_ = b[83] // early bounds check
	binary.LittleEndian.PutUint32(b[80:], h.Count)
}

func (h *stlHeader) get(b []byte) {
	_ = b[83] // early bounds check
	h.Count = binary.LittleEndian.Uint32(b[80:])
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0) // Zero out attributes.
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func (t stlTriangle) validate() error {
	const epsilon = 1e-12
	const normTol = 5e-2
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	calcNormal := t.normalFromVertices()
	if t.Triangle().IsDegenerate(epsilon) || !d3.IsFinite(calcNormal) {
		return ErrDegenerate
	}
	gotNormal := vecFromArray(t.Normal)
	calcNormalNeg := ms3.Scale(-1, calcNormal)
	if !d3.EqualWithin32(calcNormal, gotNormal, normTol) && !d3.EqualWithin32(calcNormalNeg, gotNormal, normTol) {
		return ErrNormalMismatch
	}
	return nil
}

func arrayFromVec(v ms3.Vec) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

func vecFromArray(f [3]float32) ms3.Vec {
	return ms3.Vec{X: f[0], Y: f[1], Z: f[2]}
}

// normalFromVertices computes the facet normal the same way WriteBinarySTL does.
func (t stlTriangle) normalFromVertices() ms3.Vec {
	return ms3.Unit(t.Triangle().Normal())
}

func (t stlTriangle) Triangle() ms3.Triangle {
	return ms3.Triangle{vecFromArray(t.Vertex1), vecFromArray(t.Vertex2), vecFromArray(t.Vertex3)}
}
