// Package faces counts face-adjacent voxel pairs between labelled phases.
//
// A face is shared by two voxels one step apart along exactly one axis
// (6-connectivity). For a label L the reported count aggregates every face
// L shares with a lower-numbered label X, 2 <= X < L, after the pore phase
// has been dilated and merged into the grid. When the pore label is the
// smallest mineral-range label this is the pore contact area of L; the
// lower-numbered pairing is kept as-is for other numberings.
package faces

import (
	"fmt"
	"sort"
	"sync"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
	"rockdissolution/pkg/morphology"
)

// MinPartnerLabel is the smallest label counted as a face partner.
// Labels 0 and 1 (background and outer layer in the usual numbering)
// never contribute.
const MinPartnerLabel = 2

// Table maps a label to its face count.
type Table map[int32]int64

// Get returns the face count of label, zero when absent.
func (t Table) Get(label int32) int64 {
	return t[label]
}

// Labels returns the labels present in the table, ascending.
func (t Table) Labels() []int32 {
	out := make([]int32, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Total returns the sum over all labels.
func (t Table) Total() int64 {
	var n int64
	for _, c := range t {
		n += c
	}
	return n
}

// Counter counts faces with a fixed degree of parallelism.
type Counter struct {
	// Workers bounds the goroutines used per pass; <= 0 means all CPUs
	Workers int
}

// CountFaces is Counter{}.Count.
func CountFaces(v *models.LabelVolume, labelsOfInterest []int32, poreLabel, outerLayerLabel int32, dilationRadius int) (Table, error) {
	return Counter{}.Count(v, labelsOfInterest, poreLabel, outerLayerLabel, dilationRadius)
}

// Count dilates the pore phase of v by a cube of side 2*dilationRadius+1,
// merges the dilated region into the pore label and then counts, for every
// label of interest other than the pore and outer-layer labels, the faces it
// shares with labels in [MinPartnerLabel, L).
//
// Every eligible label gets an entry, zero if it has no such faces.
func (c Counter) Count(v *models.LabelVolume, labelsOfInterest []int32, poreLabel, outerLayerLabel int32, dilationRadius int) (Table, error) {
	if err := models.ValidateReserved(poreLabel, outerLayerLabel); err != nil {
		return nil, fmt.Errorf("faces: %w", err)
	}
	if dilationRadius < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRadius, dilationRadius)
	}

	work, err := morphology.DilateLabel(v, poreLabel, dilationRadius, c.Workers)
	if err != nil {
		return nil, fmt.Errorf("faces: dilate pore phase: %w", err)
	}

	elig := newEligibility(labelsOfInterest, poreLabel, outerLayerLabel)
	table := make(Table, len(elig.labels))
	for _, l := range elig.labels {
		table[l] = 0
	}
	if len(elig.labels) == 0 {
		return table, nil
	}

	counts := c.countAdjacent(work, elig)
	for _, l := range elig.labels {
		table[l] = counts[elig.slot(l)]
	}
	return table, nil
}

// countAdjacent makes one pass over all voxels, looking at the +z, +y and +x
// neighbour of each, and credits every unordered pair {lo, hi} with
// MinPartnerLabel <= lo < hi to hi when hi is eligible. Each face is visited
// once, which covers both shift directions of the per-axis comparison.
// Slabs of z are counted in parallel into private accumulators.
func (c Counter) countAdjacent(v *models.LabelVolume, elig *eligibility) []int64 {
	s := v.Shape
	data := v.Data
	plane := s.Height * s.Width

	slots := len(elig.labels)
	var (
		mu       sync.Mutex
		partials [][]int64
	)

	parallel.For(s.Depth, c.Workers, func(zStart, zEnd int) {
		local := make([]int64, slots)
		for z := zStart; z < zEnd; z++ {
			for y := 0; y < s.Height; y++ {
				row := z*plane + y*s.Width
				for x := 0; x < s.Width; x++ {
					idx := row + x
					a := data[idx]
					if x+1 < s.Width {
						elig.credit(local, a, data[idx+1])
					}
					if y+1 < s.Height {
						elig.credit(local, a, data[idx+s.Width])
					}
					if z+1 < s.Depth {
						elig.credit(local, a, data[idx+plane])
					}
				}
			}
		}
		mu.Lock()
		partials = append(partials, local)
		mu.Unlock()
	})

	total := make([]int64, slots)
	for _, p := range partials {
		for i, n := range p {
			total[i] += n
		}
	}
	return total
}
