// Package morphology implements the binary morphology used before face
// counting: dilation by a solid cube and merging of the dilated region into
// a label volume.
package morphology

import (
	"fmt"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
)

// DilateCube dilates m by a solid cube of side 2*radius+1 centred on each
// voxel. Voxels outside the grid are treated as background, so the result
// is clipped at the volume border. radius 0 returns a copy of m.
//
// The cube is the product of three 1-D segments, so the dilation is done
// as three separable passes (x, y, z). Each pass is a linear scan per line
// that tracks the nearest member on either side, so the cost is
// O(voxels) per axis whatever the radius.
func DilateCube(m *models.Mask, radius, workers int) (*models.Mask, error) {
	if radius < 0 {
		return nil, fmt.Errorf("morphology: dilation radius %d must be non-negative", radius)
	}

	out := &models.Mask{Data: make([]bool, len(m.Data)), Shape: m.Shape}
	copy(out.Data, m.Data)
	if radius == 0 {
		return out, nil
	}

	scratch := make([]bool, len(m.Data))
	for _, axis := range []int{2, 1, 0} {
		dilateAxis(out.Data, scratch, m.Shape, axis, radius, workers)
		out.Data, scratch = scratch, out.Data
	}
	return out, nil
}

// dilateAxis writes into dst the 1-D dilation of src along axis.
func dilateAxis(src, dst []bool, shape models.Shape, axis, radius, workers int) {
	n := shape.Extent(axis)
	stride := shape.Stride(axis)

	// Enumerate line starts: every voxel whose coordinate along axis is 0.
	lines := shape.Len() / n
	lineStart := func(i int) int {
		switch axis {
		case 2:
			return i * shape.Width
		case 1:
			plane := shape.Height * shape.Width
			z, x := i/shape.Width, i%shape.Width
			return z*plane + x
		default:
			return i
		}
	}

	parallel.For(lines, workers, func(start, end int) {
		for li := start; li < end; li++ {
			base := lineStart(li)

			// Forward: distance since the last member.
			last := -radius - 1
			for k := 0; k < n; k++ {
				idx := base + k*stride
				if src[idx] {
					last = k
				}
				dst[idx] = k-last <= radius
			}

			// Backward: distance to the next member.
			next := n + radius
			for k := n - 1; k >= 0; k-- {
				idx := base + k*stride
				if src[idx] {
					next = k
				}
				if next-k <= radius {
					dst[idx] = true
				}
			}
		}
	})
}

// MergeIntoLabel returns a copy of v with every voxel of m overwritten by label.
func MergeIntoLabel(v *models.LabelVolume, m *models.Mask, label int32) (*models.LabelVolume, error) {
	if err := models.CheckShapes(v.Shape, m.Shape); err != nil {
		return nil, fmt.Errorf("morphology: merge mask into %s: %w", v.Source, err)
	}
	out := v.Clone()
	for i, in := range m.Data {
		if in {
			out.Data[i] = label
		}
	}
	return out, nil
}

// DilateLabel grows the region carrying label by a cube of the given radius
// and returns the label volume with the grown region merged in. This is the
// pore pre-merge applied before face counting.
func DilateLabel(v *models.LabelVolume, label int32, radius, workers int) (*models.LabelVolume, error) {
	if radius == 0 {
		return v, nil
	}
	dilated, err := DilateCube(v.Equals(label), radius, workers)
	if err != nil {
		return nil, err
	}
	return MergeIntoLabel(v, dilated, label)
}
