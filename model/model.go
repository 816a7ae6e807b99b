// Package model builds the renderable geometry of a scalar field: it samples
// the field over an N×N×N lattice and extracts the isosurface mesh from the
// samples. A Model is built once and is read-only afterwards.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/grid"
	"github.com/soypat/isomesh/march"
	"github.com/soypat/isomesh/mesh"
)

// DefaultResolution is the lattice size used when Config.Resolution is zero.
const DefaultResolution = 256

// Config configures a Model.
type Config struct {
	// Resolution is the number of samples along each axis. Zero selects
	// DefaultResolution.
	Resolution int
	// Field is sampled over the lattice. Nil selects the legacy sphere of
	// the configured resolution.
	Field   field.Field
	Mode    march.Mode
	Workers int
	// Logger receives stage timings and geometry sizes. Nil discards them.
	Logger *log.Logger
}

// DefaultConfig returns the configuration the model has always been built with:
// a 256³ lattice of the legacy sphere field, extracted sequentially.
func DefaultConfig() Config {
	return Config{
		Resolution: DefaultResolution,
		Field:      field.LegacySphere(DefaultResolution),
		Mode:       march.ModeMarchingCubes,
		Workers:    1,
	}
}

// Model holds the sampled field buffer and the mesh extracted from it.
type Model struct {
	grid  *grid.Grid
	mesh  mesh.Mesh
	stats march.Stats
}

// New builds a model. See NewContext.
func New(cfg Config) (*Model, error) {
	return NewContext(context.Background(), cfg)
}

// NewContext samples cfg.Field over the lattice and extracts its isosurface.
// Cancelling ctx aborts the build between lattice slabs.
func NewContext(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.Resolution == 0 {
		cfg.Resolution = DefaultResolution
	}
	if cfg.Field == nil {
		cfg.Field = field.LegacySphere(cfg.Resolution)
	}
	switch {
	case cfg.Resolution < 2:
		return nil, fmt.Errorf("resolution must be at least 2, got %d", cfg.Resolution)
	case cfg.Workers < 0:
		return nil, errors.New("negative worker count")
	case cfg.Mode != march.ModeMarchingCubes && cfg.Mode != march.ModeLegacy:
		return nil, fmt.Errorf("invalid extraction mode %v", cfg.Mode)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	g, err := grid.New(cfg.Resolution)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err = grid.Sample(ctx, g, cfg.Field, cfg.Workers); err != nil {
		return nil, fmt.Errorf("sampling field: %w", err)
	}
	logger.Debug("sampled field", "n", cfg.Resolution, "samples", g.Len(), "elapsed", time.Since(start))
	if lo, hi, nonFinite, ok := g.Range(); ok {
		logger.Debug("field range", "min", lo, "max", hi)
		if nonFinite > 0 {
			logger.Warn("field produced non-finite samples", "count", nonFinite)
		}
	} else {
		logger.Warn("field produced no finite samples")
	}

	m := &Model{grid: g}
	start = time.Now()
	ex := march.Extractor{Mode: cfg.Mode, Workers: cfg.Workers}
	m.stats, err = ex.Extract(ctx, g, cfg.Field, &m.mesh)
	if err != nil {
		return nil, fmt.Errorf("extracting surface: %w", err)
	}
	logger.Debug("extracted surface", "mode", cfg.Mode, "cells", m.stats.CellsVisited, "elapsed", time.Since(start))
	logger.Info("Vertices size is", "count", len(m.mesh.Vertices))
	logger.Info("Normals size is", "count", len(m.mesh.Normals))

	if m.stats.Drift > 0 {
		logger.Warn("field is not deterministic", "drifting_cells", m.stats.Drift)
	}
	if cfg.Mode == march.ModeMarchingCubes && m.stats.Triangles == 0 {
		logger.Warn("field has no zero crossing inside the lattice, mesh is empty")
	}
	if nv, nn := m.mesh.NonFinite(); nv > 0 || nn > 0 {
		logger.Warn("mesh contains non-finite values", "vertices", nv, "normals", nn)
	}
	return m, nil
}

// Grid returns the sampled field buffer. It must not be modified.
func (m *Model) Grid() *grid.Grid { return m.grid }

// Mesh returns the extracted geometry. It must not be modified.
func (m *Model) Mesh() *mesh.Mesh { return &m.mesh }

// Stats returns the extraction statistics.
func (m *Model) Stats() march.Stats { return m.stats }
