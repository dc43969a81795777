// Package distance computes Euclidean distance maps over voxel masks.
//
// Every voxel outside the mask receives the Euclidean distance, in voxel
// units, to the nearest mask voxel; mask voxels receive 0. When the mask is
// empty every voxel is +Inf.
package distance

import (
	"fmt"
	"math"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
)

// Method selects the distance transform algorithm.
type Method string

const (
	// MethodExact is the separable lower-envelope transform, O(voxels).
	MethodExact Method = "exact"
	// MethodKDTree queries a kd-tree of mask voxels for every background
	// voxel. Cheaper than MethodExact only for very sparse masks.
	MethodKDTree Method = "kdtree"
)

// Transform computes the distance map of m with the given method.
func Transform(m *models.Mask, method Method, workers int) (*models.Field, error) {
	switch method {
	case MethodExact, "":
		return Exact(m, workers), nil
	case MethodKDTree:
		return KDTree(m, workers), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// Exact computes the exact Euclidean distance transform with three
// separable passes of the 1-D squared distance transform of Felzenszwalb and
// Huttenlocher, one per axis.
func Exact(m *models.Mask, workers int) *models.Field {
	s := m.Shape
	f := models.NewField(s)
	inf := math.Inf(1)
	for i, in := range m.Data {
		if !in {
			f.Data[i] = inf
		}
	}

	for _, axis := range []int{2, 1, 0} {
		squaredAxis(f.Data, s, axis, workers)
	}

	for i, d := range f.Data {
		f.Data[i] = math.Sqrt(d)
	}
	return f
}

// squaredAxis replaces each line of data along axis with its 1-D squared
// distance transform.
func squaredAxis(data []float64, s models.Shape, axis, workers int) {
	n := s.Extent(axis)
	stride := s.Stride(axis)
	lines := s.Len() / n

	parallel.For(lines, workers, func(start, end int) {
		line := make([]float64, n)
		out := make([]float64, n)
		env := newEnvelope(n)
		for li := start; li < end; li++ {
			base := lineStart(s, axis, li)
			for k := 0; k < n; k++ {
				line[k] = data[base+k*stride]
			}
			env.transform(line, out)
			for k := 0; k < n; k++ {
				data[base+k*stride] = out[k]
			}
		}
	})
}

// lineStart returns the flat index of the first voxel of line li along axis.
func lineStart(s models.Shape, axis, li int) int {
	switch axis {
	case 2:
		return li * s.Width
	case 1:
		z, x := li/s.Width, li%s.Width
		return z*s.Height*s.Width + x
	default:
		return li
	}
}

// envelope holds the scratch space of the lower envelope of parabolas.
type envelope struct {
	v []int     // parabola apex positions
	z []float64 // boundaries between parabolas
}

func newEnvelope(n int) *envelope {
	return &envelope{v: make([]int, n), z: make([]float64, n+1)}
}

// transform computes out[q] = min_p (q-p)^2 + f[p]. Infinite samples never
// enter the envelope, so an all-infinite line stays infinite.
func (e *envelope) transform(f, out []float64) {
	n := len(f)
	k := -1
	for q := 0; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		s := math.Inf(-1)
		for k >= 0 {
			p := e.v[k]
			s = ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*(q-p))
			if s > e.z[k] {
				break
			}
			k--
		}
		if k < 0 {
			s = math.Inf(-1)
		}
		k++
		e.v[k] = q
		e.z[k] = s
		e.z[k+1] = math.Inf(1)
	}

	if k < 0 {
		for q := range out {
			out[q] = math.Inf(1)
		}
		return
	}

	j := 0
	for q := 0; q < n; q++ {
		for e.z[j+1] < float64(q) {
			j++
		}
		d := q - e.v[j]
		out[q] = float64(d*d) + f[e.v[j]]
	}
}
