// Package labels discovers the phase labels present in a volume and counts
// their voxel populations.
package labels

import (
	"sort"

	"rockdissolution/internal/models"
)

// Populations maps a label to its voxel count in one volume.
type Populations map[int32]int64

// Labels returns the labels with a population entry, ascending.
func (p Populations) Labels() []int32 {
	out := make([]int32, 0, len(p))
	for l := range p {
		out = append(out, l)
	}
	sortLabels(out)
	return out
}

// Get returns the population of label, zero when absent.
func (p Populations) Get(label int32) int64 {
	return p[label]
}

// Total returns the sum of all populations.
func (p Populations) Total() int64 {
	var n int64
	for _, c := range p {
		n += c
	}
	return n
}

// VoxelPopulations counts the voxels of every distinct label in one pass.
// Labels in the usual small range are counted in a dense histogram and only
// spill into the map for large or negative values.
func VoxelPopulations(v *models.LabelVolume) Populations {
	const denseLimit = 1 << 16

	dense := make([]int64, denseLimit)
	sparse := make(map[int32]int64)
	for _, l := range v.Data {
		if l >= 0 && l < denseLimit {
			dense[l]++
		} else {
			sparse[l]++
		}
	}

	pops := make(Populations, len(sparse)+8)
	for l, c := range dense {
		if c > 0 {
			pops[int32(l)] = c
		}
	}
	for l, c := range sparse {
		pops[l] = c
	}
	return pops
}

// DiscoverLabels returns the distinct labels of v in ascending order.
func DiscoverLabels(v *models.LabelVolume) []int32 {
	return VoxelPopulations(v).Labels()
}

// Exclude returns labels without any of the reserved values, preserving order.
func Exclude(labels []int32, reserved ...int32) []int32 {
	out := make([]int32, 0, len(labels))
outer:
	for _, l := range labels {
		for _, r := range reserved {
			if l == r {
				continue outer
			}
		}
		out = append(out, l)
	}
	return out
}

func sortLabels(ls []int32) {
	sort.Slice(ls, func(i, j int) bool { return ls[i] < ls[j] })
}
