package faces

import (
	"fmt"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/morphology"
)

// Axis directions used by DirectionalCounts.
const (
	Forward  = 0 // label at the lower coordinate, partner one step above
	Backward = 1 // label at the higher coordinate, partner one step below
)

// DirectionalCounts returns the number of faces between label and partner
// split by axis (0=z, 1=y, 2=x) and direction. Counting from label's side in
// one direction equals counting from partner's side in the other:
//
//	DirectionalCounts(v, a, b)[axis][Forward] == DirectionalCounts(v, b, a)[axis][Backward]
func DirectionalCounts(v *models.LabelVolume, label, partner int32) [3][2]int64 {
	var out [3][2]int64
	s := v.Shape
	for axis := 0; axis < 3; axis++ {
		stride := s.Stride(axis)
		for z := 0; z < s.Depth; z++ {
			for y := 0; y < s.Height; y++ {
				for x := 0; x < s.Width; x++ {
					c := [3]int{z, y, x}
					if c[axis]+1 >= s.Extent(axis) {
						continue
					}
					idx := s.Index(z, y, x)
					lower, upper := v.Data[idx], v.Data[idx+stride]
					if lower == label && upper == partner {
						out[axis][Forward]++
					}
					if upper == label && lower == partner {
						out[axis][Backward]++
					}
				}
			}
		}
	}
	return out
}

// CountFacesBruteForce is a direct, unoptimised rendering of the face count:
// for every eligible label L and every partner 2 <= X < L it sums all six
// directional comparisons voxel by voxel. It exists as a reference for
// checking Counter.Count on small volumes.
func CountFacesBruteForce(v *models.LabelVolume, labelsOfInterest []int32, poreLabel, outerLayerLabel int32, dilationRadius int) (Table, error) {
	if err := models.ValidateReserved(poreLabel, outerLayerLabel); err != nil {
		return nil, fmt.Errorf("faces: %w", err)
	}
	work, err := morphology.DilateLabel(v, poreLabel, dilationRadius, 1)
	if err != nil {
		return nil, err
	}

	table := make(Table)
	for _, l := range labelsOfInterest {
		if l == poreLabel || l == outerLayerLabel || l < 0 {
			continue
		}
		table[l] = 0
		for x := int32(MinPartnerLabel); x < l; x++ {
			d := DirectionalCounts(work, l, x)
			for axis := 0; axis < 3; axis++ {
				table[l] += d[axis][Forward] + d[axis][Backward]
			}
		}
	}
	return table, nil
}
