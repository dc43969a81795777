package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockdissolution/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int32(2), cfg.Analysis.PoreLabel)
	assert.Equal(t, int32(1), cfg.Analysis.OuterLayerLabel)
	assert.Equal(t, 1, cfg.Analysis.DilationRadius)
	assert.Equal(t, 10, cfg.Analysis.NumberOfTimeSteps)
	assert.True(t, cfg.Analysis.SkipIfOutputExists)
	assert.Len(t, cfg.Regions, 2)
	assert.Equal(t, 10, cfg.RegionCount(cfg.Regions[0]))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Analysis, cfg.Analysis)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
analysis:
  pore_label: 0
  outer_layer_label: 9
  dilation_radius: 2
  number_of_time_steps: 3
input:
  image_pattern: "step_%02d.raw"
  volume_shape: "4, 5, 6"
  dtype: uint16
regions:
  - name: pore
    pattern: "pore_%d.raw"
    count: 2
    prefix: VoxelNumber_pore
    pairing: sequential
output:
  formats: [csv, sqlite]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int32(0), cfg.Analysis.PoreLabel)
	assert.Equal(t, int32(9), cfg.Analysis.OuterLayerLabel)
	assert.Equal(t, 2, cfg.Analysis.DilationRadius)
	// Unset keys keep their defaults
	assert.Equal(t, "exact", cfg.Analysis.DistanceMethod)
	assert.Equal(t, []string{"csv", "sqlite"}, cfg.Output.Formats)
	require.Len(t, cfg.Regions, 1)
	assert.Equal(t, PairSequential, cfg.Regions[0].Pairing)
	assert.Equal(t, 2, cfg.RegionCount(cfg.Regions[0]))

	shape, err := cfg.Shape()
	require.NoError(t, err)
	assert.Equal(t, models.NewShape(4, 5, 6), shape)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", name)
			cfg := DefaultConfig()
			cfg.Analysis.DilationRadius = 3
			cfg.Input.VolumeShape = "10,20,30"
			cfg.Output.Formats = []string{"xlsx", "csv"}
			cfg.FlowField.LegacyZAverage = true
			cfg.Logging.Verbose = true
			require.NoError(t, SaveConfig(cfg, path))

			got, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Analysis, got.Analysis)
			assert.Equal(t, cfg.Input, got.Input)
			assert.Equal(t, cfg.Output, got.Output)
			assert.Equal(t, cfg.FlowField, got.FlowField)
			assert.Equal(t, cfg.Logging, got.Logging)
			assert.Equal(t, cfg.Regions, got.Regions)
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analysis\npore_label = "), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"same reserved labels", func(c *Config) { c.Analysis.OuterLayerLabel = c.Analysis.PoreLabel }, models.ErrInvalidLabel},
		{"negative pore", func(c *Config) { c.Analysis.PoreLabel = -1 }, models.ErrInvalidLabel},
		{"negative radius", func(c *Config) { c.Analysis.DilationRadius = -1 }, ErrInvalid},
		{"no steps", func(c *Config) { c.Analysis.NumberOfTimeSteps = 0 }, ErrInvalid},
		{"bad method", func(c *Config) { c.Analysis.DistanceMethod = "chamfer" }, ErrInvalid},
		{"bad shape", func(c *Config) { c.Input.VolumeShape = "1,2" }, ErrInvalid},
		{"zero extent", func(c *Config) { c.Input.VolumeShape = "1,0,2" }, ErrInvalid},
		{"duplicate prefix", func(c *Config) { c.Regions[1].Prefix = c.Regions[0].Prefix }, ErrInvalid},
		{"bad pairing", func(c *Config) { c.Regions[0].Pairing = "random" }, ErrInvalid},
		{"no formats", func(c *Config) { c.Output.Formats = nil }, ErrInvalid},
		{"quantile", func(c *Config) { c.FlowField.FastQuantile = 1.5 }, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}
