package grid

import (
	"context"
	"errors"

	"github.com/soypat/isomesh/field"
	"golang.org/x/sync/errgroup"
)

// Sample evaluates f at every lattice point of g and stores the results,
// overwriting all previous samples. Sampling is deterministic: the same field
// always yields a bit-identical buffer whatever the worker count.
//
// With workers <= 1 the lattice is swept in (i,j,k) order on the calling
// goroutine. Otherwise each i slab is evaluated on its own goroutine with at
// most workers running at once; slabs never overlap so no locking is needed.
// Cancelling ctx stops sampling between slabs and returns ctx.Err().
//
// Field values are stored as-is, NaN and infinities included.
func Sample(ctx context.Context, g *Grid, f field.Field, workers int) error {
	if g == nil {
		return errors.New("nil grid")
	} else if f == nil {
		return errors.New("nil field")
	}
	if workers <= 1 {
		for i := 0; i < g.n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			g.sampleSlab(f, i)
		}
		return nil
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i := 0; i < g.n; i++ {
		i := i
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			g.sampleSlab(f, i)
			return nil
		})
	}
	return group.Wait()
}

// sampleSlab fills the samples with first index i.
func (g *Grid) sampleSlab(f field.Field, i int) {
	n := g.n
	slab := g.data[i*n*n : (i+1)*n*n]
	for j := 0; j < n; j++ {
		for k := 0; k < n; k++ {
			slab[j*n+k] = float32(f.Evaluate(g.World(i, j, k)))
		}
	}
}
