package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/isomesh/field"
	"github.com/soypat/isomesh/grid"
	"github.com/soypat/isomesh/march"
	"github.com/soypat/isomesh/model"
	"gopkg.in/yaml.v3"
)

const (
	DefaultResolution = model.DefaultResolution
	DefaultField      = "legacy-sphere"
	DefaultMode       = "marching-cubes"
	DefaultWorkers    = 1
	DefaultLogLevel   = "info"
	DefaultWidth      = 1024
	DefaultHeight     = 1024
)

// ErrUnknownFormat is returned for config files whose extension is not
// .yaml, .yml or .toml.
var ErrUnknownFormat = errors.New("unknown config file format")

// Config holds the settings of a build as read from a config file.
type Config struct {
	Resolution int          `yaml:"resolution" toml:"resolution"`
	Field      string       `yaml:"field" toml:"field"`
	Mode       string       `yaml:"mode" toml:"mode"`
	Workers    int          `yaml:"workers" toml:"workers"`
	LogLevel   string       `yaml:"log_level" toml:"log_level"`
	Output     OutputConfig `yaml:"output" toml:"output"`
	Slice      SliceConfig  `yaml:"slice" toml:"slice"`
}

// OutputConfig names the files written by the build and preview commands.
type OutputConfig struct {
	STL    string `yaml:"stl" toml:"stl"`
	PNG    string `yaml:"png" toml:"png"`
	Width  int    `yaml:"width" toml:"width"`
	Height int    `yaml:"height" toml:"height"`
}

// SliceConfig selects the lattice plane rendered by the slice command.
// A negative index selects the middle plane.
type SliceConfig struct {
	Axis  string `yaml:"axis" toml:"axis"`
	Index int    `yaml:"index" toml:"index"`
	PNG   string `yaml:"png" toml:"png"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Resolution: DefaultResolution,
		Field:      DefaultField,
		Mode:       DefaultMode,
		Workers:    DefaultWorkers,
		LogLevel:   DefaultLogLevel,
		Output: OutputConfig{
			STL:    "isomesh.stl",
			PNG:    "isomesh.png",
			Width:  DefaultWidth,
			Height: DefaultHeight,
		},
		Slice: SliceConfig{
			Axis:  "k",
			Index: -1,
			PNG:   "slice.png",
		},
	}
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Load reads a YAML or TOML config file, chosen by extension. Fields absent
// from the file keep their default values. Unknown keys are an error.
func Load(path string) (*Config, error) {
	ft, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	switch ft {
	case formatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	case formatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Save writes cfg to path as YAML or TOML, chosen by extension.
func Save(path string, cfg *Config) error {
	ft, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	if ft == formatTOML {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every value without building anything.
func (c *Config) Validate() error {
	if c.Resolution < 2 || c.Resolution > grid.MaxDim {
		return fmt.Errorf("resolution must be in [2, %d], got %d", grid.MaxDim, c.Resolution)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := field.Lookup(c.Field, c.Resolution); err != nil {
		return err
	}
	if _, err := march.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("invalid output image size %dx%d", c.Output.Width, c.Output.Height)
	}
	axis, err := grid.ParseAxis(c.Slice.Axis)
	if err != nil {
		return err
	}
	if c.Slice.Index >= c.Resolution {
		return fmt.Errorf("slice index %d out of range for %v axis of resolution %d", c.Slice.Index, axis, c.Resolution)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}

// SliceIndex returns the slice plane index, resolving a negative index to
// the middle of the lattice.
func (c *Config) SliceIndex() int {
	if c.Slice.Index < 0 {
		return c.Resolution / 2
	}
	return c.Slice.Index
}

// ModelConfig validates c and converts it into the configuration of a model.
func (c *Config) ModelConfig(logger *log.Logger) (model.Config, error) {
	if err := c.Validate(); err != nil {
		return model.Config{}, err
	}
	f, err := field.Lookup(c.Field, c.Resolution)
	if err != nil {
		return model.Config{}, err
	}
	mode, err := march.ParseMode(c.Mode)
	if err != nil {
		return model.Config{}, err
	}
	return model.Config{
		Resolution: c.Resolution,
		Field:      f,
		Mode:       mode,
		Workers:    c.Workers,
		Logger:     logger,
	}, nil
}
