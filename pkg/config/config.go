// Package config provides configuration loading and management for rockdissolution.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/logging"
)

// Pairing values for RegionSet.Pairing.
const (
	// PairFirst compares every mask against the first two volumes
	PairFirst = "first"
	// PairSequential compares mask i against volumes i and i+1
	PairSequential = "sequential"
)

// RegionSet is a series of region-of-interest masks, one file per index.
type RegionSet struct {
	// Name labels the set in logs, e.g. "fast"
	Name string `yaml:"name" toml:"name"`

	// Pattern is a printf pattern with one integer verb, expanded for 1..Count
	Pattern string `yaml:"pattern" toml:"pattern"`

	// Count is the number of mask files; 0 means number_of_time_steps
	Count int `yaml:"count" toml:"count"`

	// Prefix names outputs as {prefix}_{n}
	Prefix string `yaml:"prefix" toml:"prefix"`

	// Pairing selects which volume pair each mask is compared against
	Pairing string `yaml:"pairing" toml:"pairing"`

	// DType is the element type of raw masks; empty means input.dtype
	DType string `yaml:"dtype,omitempty" toml:"dtype,omitempty"`
}

// Config represents the application configuration
type Config struct {
	// Analysis parameters
	Analysis struct {
		// PoreLabel is the label of pore space
		PoreLabel int32 `yaml:"pore_label" toml:"pore_label"`

		// OuterLayerLabel is the label of the sample's outer layer
		OuterLayerLabel int32 `yaml:"outer_layer_label" toml:"outer_layer_label"`

		// DilationRadius is the half-width of the cube the pore is grown by
		DilationRadius int `yaml:"dilation_radius" toml:"dilation_radius"`

		// NumberOfTimeSteps is the length of the volume series
		NumberOfTimeSteps int `yaml:"number_of_time_steps" toml:"number_of_time_steps"`

		// SkipIfOutputExists skips units whose output is already stored
		SkipIfOutputExists bool `yaml:"skip_if_output_exists" toml:"skip_if_output_exists"`

		// DistanceMethod is "exact" or "kdtree"
		DistanceMethod string `yaml:"distance_method" toml:"distance_method"`

		// IncludeInterior bins dissolved voxels inside a region at distance 0
		IncludeInterior bool `yaml:"include_interior" toml:"include_interior"`
	} `yaml:"analysis" toml:"analysis"`

	// Input volumes
	Input struct {
		// ImagePattern is a printf pattern expanded for steps 1..n
		ImagePattern string `yaml:"image_pattern" toml:"image_pattern"`

		// VolumeShape is "z,y,x"; required for raw inputs only
		VolumeShape string `yaml:"volume_shape" toml:"volume_shape"`

		// DType is the element type of raw inputs
		DType string `yaml:"dtype" toml:"dtype"`
	} `yaml:"input" toml:"input"`

	// Regions lists the mask series for proximity binning
	Regions []RegionSet `yaml:"regions" toml:"regions"`

	// Processing parameters
	Processing struct {
		// NumCores bounds concurrent units and per-pass goroutines
		NumCores int `yaml:"num_cores" toml:"num_cores"`
	} `yaml:"processing" toml:"processing"`

	// Output parameters
	Output struct {
		// Dir receives every output
		Dir string `yaml:"dir" toml:"dir"`

		// Formats lists the sinks to write: xlsx, csv, sqlite
		Formats []string `yaml:"formats" toml:"formats"`

		// Workbook is the dissolution report file name
		Workbook string `yaml:"workbook" toml:"workbook"`

		// Database is the SQLite file name
		Database string `yaml:"database" toml:"database"`

		// Plots renders a chart per proximity table
		Plots bool `yaml:"plots" toml:"plots"`

		// QCSlices saves mid-depth slices of distance maps and dissolved masks
		QCSlices bool `yaml:"qc_slices" toml:"qc_slices"`

		// QCStacks saves every z slice of the same volumes under qc/{unit}/
		QCStacks bool `yaml:"qc_stacks" toml:"qc_stacks"`
	} `yaml:"output" toml:"output"`

	// FlowField pre-processing parameters
	FlowField struct {
		// LegacyZAverage reproduces the unshifted z-face average
		LegacyZAverage bool `yaml:"legacy_z_average" toml:"legacy_z_average"`

		// FastQuantile thresholds the fast-flow mask
		FastQuantile float64 `yaml:"fast_quantile" toml:"fast_quantile"`

		// SlowQuantile thresholds the slow-flow mask
		SlowQuantile float64 `yaml:"slow_quantile" toml:"slow_quantile"`
	} `yaml:"flowfield" toml:"flowfield"`

	Logging logging.Config `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.PoreLabel = 2
	cfg.Analysis.OuterLayerLabel = 1
	cfg.Analysis.DilationRadius = 1
	cfg.Analysis.NumberOfTimeSteps = 10
	cfg.Analysis.SkipIfOutputExists = true
	cfg.Analysis.DistanceMethod = "exact"

	cfg.Input.ImagePattern = "image%d.tif"
	cfg.Input.DType = "uint8"

	cfg.Regions = []RegionSet{
		{Name: "fast", Pattern: "fastflowdistmap%d.tif", Prefix: "VoxelNumber_fast_channel", Pairing: PairFirst},
		{Name: "slow", Pattern: "slowregionsdistmap%d.tif", Prefix: "VoxelNumber_slow_regions", Pairing: PairFirst},
	}

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Dir = "."
	cfg.Output.Formats = []string{"xlsx"}
	cfg.Output.Workbook = "VoxelNumber_and_FacesToPore.xlsx"
	cfg.Output.Database = "rockdissolution.db"

	cfg.FlowField.FastQuantile = 0.9
	cfg.FlowField.SlowQuantile = 0.1

	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 28

	return cfg
}

// isTOML reports whether path selects the TOML encoding.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by extension.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Shape parses Input.VolumeShape. An empty value yields the zero Shape.
func (c *Config) Shape() (models.Shape, error) {
	if strings.TrimSpace(c.Input.VolumeShape) == "" {
		return models.Shape{}, nil
	}
	return ParseShape(c.Input.VolumeShape)
}

// ParseShape parses a "z,y,x" triple of positive extents.
func ParseShape(s string) (models.Shape, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return models.Shape{}, fmt.Errorf("%w: volume shape %q is not z,y,x", ErrInvalid, s)
	}
	var dims [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return models.Shape{}, fmt.Errorf("%w: volume shape %q has a bad extent %q", ErrInvalid, s, p)
		}
		dims[i] = n
	}
	return models.NewShape(dims[0], dims[1], dims[2]), nil
}

// RegionDType returns the raw element type of the masks of r.
func (c *Config) RegionDType(r RegionSet) string {
	if r.DType != "" {
		return r.DType
	}
	return c.Input.DType
}

// RegionCount returns the number of mask files of r.
func (c *Config) RegionCount(r RegionSet) int {
	if r.Count > 0 {
		return r.Count
	}
	return c.Analysis.NumberOfTimeSteps
}
