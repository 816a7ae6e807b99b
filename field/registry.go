package field

import (
	"errors"
	"fmt"
	"sort"

	"github.com/deadsy/sdfx/sdf"
	"github.com/soypat/isomesh/internal/d3"
)

// ErrUnknown is returned by Lookup for names it does not know.
var ErrUnknown = errors.New("unknown field")

// Named fields available to configuration files and the command line.
// Every constructor receives the lattice resolution n.
var registry = map[string]func(n int) (Field, error){
	"legacy-sphere": func(n int) (Field, error) { return LegacySphere(n), nil },
	"sphere": func(int) (Field, error) {
		return Sphere(d3.Elem(0.5), 0.4), nil
	},
	"torus": func(int) (Field, error) {
		return Torus(d3.Elem(0.5), 0.3, 0.1), nil
	},
	"gyroid": func(int) (Field, error) {
		// Clip the periodic surface to a ball so it closes inside the lattice.
		return Intersection(Gyroid(0.25, 0.3), Sphere(d3.Elem(0.5), 0.45)), nil
	},
	"sdfx-sphere": func(int) (Field, error) {
		s, err := sdf.Sphere3D(0.4)
		if err != nil {
			return nil, err
		}
		return Translate(FromSDFX(s), d3.Elem(0.5)), nil
	},
	"sdfx-box": func(int) (Field, error) {
		s, err := sdf.Box3D(sdf.V3{X: 0.6, Y: 0.6, Z: 0.6}, 0.05)
		if err != nil {
			return nil, err
		}
		return Translate(FromSDFX(s), d3.Elem(0.5)), nil
	},
}

// Lookup returns the named field for a lattice of resolution n.
func Lookup(name string, n int) (Field, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q, want one of %v", ErrUnknown, name, Names())
	}
	f, err := ctor(n)
	if err != nil {
		return nil, fmt.Errorf("building field %q: %w", name, err)
	}
	return f, nil
}

// Names returns the sorted names accepted by Lookup.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
