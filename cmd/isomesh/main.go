package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/guptarohit/asciigraph"
	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/grid"
	"github.com/soypat/isomesh/internal/config"
	"github.com/soypat/isomesh/mesh"
	"github.com/soypat/isomesh/model"
	"github.com/soypat/isomesh/preview"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"
)

var (
	title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dim   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// options holds the global flags shared by every command.
type options struct {
	configFile string
	resolution int
	field      string
	mode       string
	workers    int
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:          "isomesh",
		Short:        "sample a scalar field on a lattice and extract its isosurface",
		SilenceUsage: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "config file path (yaml or toml)")
	pf.IntVarP(&opts.resolution, "resolution", "n", config.DefaultResolution, "lattice samples per axis")
	pf.StringVar(&opts.field, "field", config.DefaultField, "field to sample: "+strings.Join(field.Names(), ", "))
	pf.StringVar(&opts.mode, "mode", config.DefaultMode, "extraction mode: marching-cubes or legacy")
	pf.IntVarP(&opts.workers, "workers", "j", config.DefaultWorkers, "lattice slabs processed concurrently")
	pf.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")

	var stlPath string
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "build the mesh and write it as binary STL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.Output.STL = stlPath
			}
			return runBuild(cmd, cfg)
		},
	}
	buildCmd.Flags().StringVarP(&stlPath, "output", "o", "isomesh.stl", "output STL file")

	var (
		pngPath       string
		width, height int
	)
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "render the mesh to a PNG image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Output.PNG = pngPath
			}
			if flags.Changed("width") {
				cfg.Output.Width = width
			}
			if flags.Changed("height") {
				cfg.Output.Height = height
			}
			return runPreview(cmd, cfg)
		},
	}
	previewCmd.Flags().StringVarP(&pngPath, "output", "o", "isomesh.png", "output PNG file")
	previewCmd.Flags().IntVar(&width, "width", config.DefaultWidth, "image width in pixels")
	previewCmd.Flags().IntVar(&height, "height", config.DefaultHeight, "image height in pixels")

	var (
		slicePath string
		axis      string
		index     int
	)
	sliceCmd := &cobra.Command{
		Use:   "slice",
		Short: "plot one lattice plane of the sampled field as a heatmap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("output") {
				cfg.Slice.PNG = slicePath
			}
			if flags.Changed("axis") {
				cfg.Slice.Axis = axis
			}
			if flags.Changed("index") {
				cfg.Slice.Index = index
			}
			return runSlice(cmd, cfg)
		},
	}
	sliceCmd.Flags().StringVarP(&slicePath, "output", "o", "slice.png", "output PNG file")
	sliceCmd.Flags().StringVar(&axis, "axis", "k", "axis normal to the plane: i, j or k")
	sliceCmd.Flags().IntVar(&index, "index", -1, "plane index, negative for the middle plane")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "print mesh statistics and the triangle count of every slab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return runStats(cmd, cfg)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a config file holding the current settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(buildCmd, previewCmd, sliceCmd, statsCmd, initCmd)
	return rootCmd
}

// loadConfig reads the config file, if any, and applies the global flags the
// user set explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		var err error
		cfg, err = config.Load(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("resolution") {
		cfg.Resolution = opts.resolution
	}
	if flags.Changed("field") {
		cfg.Field = opts.field
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) (*log.Logger, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "isomesh",
		Level:           lvl,
	})
	// Short run id on every line.
	return logger.With("run", uuid.NewString()[:8]), nil
}

func buildModel(cmd *cobra.Command, cfg *config.Config) (*model.Model, *log.Logger, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, nil, err
	}
	mc, err := cfg.ModelConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("building model", "field", cfg.Field, "n", cfg.Resolution, "mode", mc.Mode, "workers", cfg.Workers)
	m, err := model.NewContext(cmd.Context(), mc)
	if err != nil {
		return nil, nil, err
	}
	return m, logger, nil
}

func runBuild(cmd *cobra.Command, cfg *config.Config) error {
	m, logger, err := buildModel(cmd, cfg)
	if err != nil {
		return err
	}
	msh := m.Mesh()
	if msh.TriangleCount() == 0 {
		logger.Warn("mesh is empty, no STL written")
		fmt.Fprintf(cmd.OutOrStdout(), "vertices=0 normals=0\n")
		return nil
	}
	if err := mesh.CreateSTL(cfg.Output.STL, msh); err != nil {
		return err
	}
	logger.Info("wrote STL", "path", cfg.Output.STL, "triangles", msh.TriangleCount())
	fmt.Fprintf(cmd.OutOrStdout(), "vertices=%d normals=%d stl=%s\n", len(msh.Vertices), len(msh.Normals), cfg.Output.STL)
	return nil
}

func runPreview(cmd *cobra.Command, cfg *config.Config) error {
	m, logger, err := buildModel(cmd, cfg)
	if err != nil {
		return err
	}
	err = preview.RenderPNG(cfg.Output.PNG, m.Mesh(), cfg.Output.Width, cfg.Output.Height)
	if errors.Is(err, preview.ErrNothingToDraw) {
		return fmt.Errorf("%w: try a field with a surface inside the unit cube, for example --field sphere", err)
	} else if err != nil {
		return err
	}
	logger.Info("wrote preview", "path", cfg.Output.PNG)
	return nil
}

func runSlice(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return err
	}
	f, err := field.Lookup(cfg.Field, cfg.Resolution)
	if err != nil {
		return err
	}
	axis, err := grid.ParseAxis(cfg.Slice.Axis)
	if err != nil {
		return err
	}
	g, err := grid.New(cfg.Resolution)
	if err != nil {
		return err
	}
	// Only the buffer is plotted so extraction is skipped.
	if err := grid.Sample(cmd.Context(), g, f, cfg.Workers); err != nil {
		return err
	}
	index := cfg.SliceIndex()
	if err := preview.SaveSlicePNG(cfg.Slice.PNG, g, axis, index, 6*vg.Inch); err != nil {
		return err
	}
	logger.Info("wrote slice", "path", cfg.Slice.PNG, "axis", axis, "index", index)
	return nil
}

func runStats(cmd *cobra.Command, cfg *config.Config) error {
	m, _, err := buildModel(cmd, cfg)
	if err != nil {
		return err
	}
	stats := m.Stats()
	msh := m.Mesh()
	fmt.Fprintln(cmd.OutOrStdout(), title.Render("isomesh stats"))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "field\t%s\n", cfg.Field)
	fmt.Fprintf(w, "resolution\t%d\n", cfg.Resolution)
	fmt.Fprintf(w, "mode\t%s\n", cfg.Mode)
	fmt.Fprintf(w, "cells visited\t%d\n", stats.CellsVisited)
	fmt.Fprintf(w, "cells straddling\t%d\n", stats.CellsStraddling)
	fmt.Fprintf(w, "triangles\t%d\n", stats.Triangles)
	fmt.Fprintf(w, "vertices\t%d\n", len(msh.Vertices))
	fmt.Fprintf(w, "normals\t%d\n", len(msh.Normals))
	if lo, hi, nonFinite, ok := m.Grid().Range(); ok {
		fmt.Fprintf(w, "field range\t[%g, %g]\n", lo, hi)
		fmt.Fprintf(w, "non-finite samples\t%d\n", nonFinite)
	}
	if bb, ok := msh.Bounds(); ok {
		fmt.Fprintf(w, "bounds\t%v to %v\n", bb.Min, bb.Max)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(stats.PerSlab) < 2 || stats.Triangles == 0 {
		return nil
	}
	data := make([]float64, len(stats.PerSlab))
	for i, c := range stats.PerSlab {
		data[i] = float64(c)
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("triangles per slab"),
	)
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	fmt.Fprintln(cmd.OutOrStdout(), dim.Render(fmt.Sprintf("%d slabs along i, peak %d triangles", len(data), maxInt(stats.PerSlab))))
	return nil
}

func maxInt(s []int) int {
	m := 0
	for _, v := range s {
		if v > m {
			m = v
		}
	}
	return m
}
