package config

import (
	"errors"
	"fmt"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/distance"
	"rockdissolution/pkg/report"
	"rockdissolution/pkg/volume"
)

// ErrInvalid indicates a configuration value out of range.
var ErrInvalid = errors.New("config: invalid value")

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	a := c.Analysis
	if err := models.ValidateReserved(a.PoreLabel, a.OuterLayerLabel); err != nil {
		errs = append(errs, err)
	}
	if a.DilationRadius < 0 {
		bad("dilation_radius must be >= 0, got %d", a.DilationRadius)
	}
	if a.NumberOfTimeSteps < 1 {
		bad("number_of_time_steps must be >= 1, got %d", a.NumberOfTimeSteps)
	}
	switch distance.Method(a.DistanceMethod) {
	case distance.MethodExact, distance.MethodKDTree:
	default:
		bad("distance_method %q", a.DistanceMethod)
	}

	if c.Input.ImagePattern == "" {
		bad("image_pattern is empty")
	}
	if _, err := c.Shape(); err != nil {
		errs = append(errs, err)
	}
	if _, err := volume.DType(c.Input.DType).Size(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for i, r := range c.Regions {
		if r.Pattern == "" {
			bad("regions[%d] has no pattern", i)
		}
		if r.Prefix == "" {
			bad("regions[%d] has no prefix", i)
		} else if seen[r.Prefix] {
			bad("regions[%d] prefix %q is not unique", i, r.Prefix)
		}
		seen[r.Prefix] = true
		if r.Count < 0 {
			bad("regions[%d] count must be >= 0, got %d", i, r.Count)
		}
		if r.DType != "" {
			if _, err := volume.DType(r.DType).Size(); err != nil {
				errs = append(errs, err)
			}
		}
		switch r.Pairing {
		case PairFirst, PairSequential, "":
		default:
			bad("regions[%d] pairing %q", i, r.Pairing)
		}
	}

	if c.Processing.NumCores < 0 {
		bad("num_cores must be >= 0, got %d", c.Processing.NumCores)
	}

	if len(c.Output.Formats) == 0 {
		bad("no output formats")
	}
	for _, f := range c.Output.Formats {
		if _, err := report.ParseFormat(f); err != nil {
			errs = append(errs, err)
		}
	}

	for _, q := range []float64{c.FlowField.FastQuantile, c.FlowField.SlowQuantile} {
		if q < 0 || q > 1 {
			bad("flow-field quantile %g outside [0, 1]", q)
		}
	}

	return errors.Join(errs...)
}
