package field

import (
	"github.com/deadsy/sdfx/sdf"
	"gonum.org/v1/gonum/spatial/r3"
)

type sdfxField struct {
	s sdf.SDF3
}

// FromSDFX evaluates a github.com/deadsy/sdfx SDF3 as a Field, giving access
// to sdfx's primitive and CSG library. Its bounding box is ignored: the
// lattice always spans [0,1)³.
func FromSDFX(s sdf.SDF3) Field {
	if s == nil {
		panic("nil SDF3 argument")
	}
	return sdfxField{s: s}
}

func (f sdfxField) Evaluate(p r3.Vec) float64 {
	return f.s.Evaluate(sdf.V3{X: p.X, Y: p.Y, Z: p.Z})
}
