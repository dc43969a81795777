// Package proximity bins dissolved voxels by their distance to a region of
// interest such as fast-flow channels, slow-flow regions or the pore space.
package proximity

import (
	"fmt"
	"math"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
	"rockdissolution/pkg/distance"
	"rockdissolution/pkg/labels"
)

// Options tunes BinByDistance.
type Options struct {
	// Method is the distance transform algorithm; empty means exact
	Method distance.Method

	// Workers bounds goroutines per pass; <= 0 means all CPUs
	Workers int

	// IncludeInterior keeps dissolved voxels lying inside the region mask
	// (distance 0) in bin 0. By default only voxels at a nonzero distance
	// are binned.
	IncludeInterior bool
}

// BinByDistance computes the distance map of region and histograms, per
// label of before (pore and outer-layer excluded), the voxels that went from
// that label to the pore label between before and after, keyed by their
// distance rounded to the nearest integer.
func BinByDistance(region *models.Mask, before, after *models.LabelVolume, poreLabel, outerLayerLabel int32, opts Options) (*Histogram, error) {
	if err := models.CheckShapes(region.Shape, before.Shape, after.Shape); err != nil {
		return nil, fmt.Errorf("proximity: %w", err)
	}
	if err := models.ValidateReserved(poreLabel, outerLayerLabel); err != nil {
		return nil, fmt.Errorf("proximity: %w", err)
	}

	dist, err := distance.Transform(region, opts.Method, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("proximity: %w", err)
	}
	return BinDistances(dist, before, after, poreLabel, outerLayerLabel, opts)
}

// BinDistances is BinByDistance for a precomputed distance map.
func BinDistances(dist *models.Field, before, after *models.LabelVolume, poreLabel, outerLayerLabel int32, opts Options) (*Histogram, error) {
	if err := models.CheckShapes(dist.Shape, before.Shape, after.Shape); err != nil {
		return nil, fmt.Errorf("proximity: %w", err)
	}
	if err := models.ValidateReserved(poreLabel, outerLayerLabel); err != nil {
		return nil, fmt.Errorf("proximity: %w", err)
	}

	interest := labels.Exclude(labels.DiscoverLabels(before), poreLabel, outerLayerLabel)
	if len(interest) == 0 {
		return NewHistogram(), nil
	}
	slot := make(map[int32]int, len(interest))
	for i, l := range interest {
		slot[l] = i
	}

	perLabel := make([]*LabelHistogram, len(interest))
	for i, l := range interest {
		perLabel[i] = NewLabelHistogram(l)
	}

	var partials [][]*LabelHistogram
	results := make(chan []*LabelHistogram)
	done := make(chan struct{})
	go func() {
		for p := range results {
			partials = append(partials, p)
		}
		close(done)
	}()

	parallel.For(len(before.Data), opts.Workers, func(start, end int) {
		local := make([]*LabelHistogram, len(interest))
		for i, l := range interest {
			local[i] = NewLabelHistogram(l)
		}
		for i := start; i < end; i++ {
			if after.Data[i] != poreLabel {
				continue
			}
			s, ok := slot[before.Data[i]]
			if !ok {
				continue
			}
			d := dist.Data[i]
			if math.IsInf(d, 1) {
				continue
			}
			if d == 0 && !opts.IncludeInterior {
				continue
			}
			local[s].Add(int64(math.Round(d)), 1)
		}
		results <- local
	})
	close(results)
	<-done

	for _, p := range partials {
		for i, h := range p {
			perLabel[i].AddAll(h)
		}
	}
	return Merge(perLabel...), nil
}
