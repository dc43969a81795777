package distance

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
)

// voxel is a voxel centre in (z, y, x) order.
type voxel [3]float64

// Compare implements the kdtree.Comparable interface
func (p voxel) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(voxel)
	return p[d] - q[d]
}

// Dims returns the number of dimensions for the KD-tree
func (p voxel) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two voxels
func (p voxel) Distance(c kdtree.Comparable) float64 {
	q := c.(voxel)
	dz := p[0] - q[0]
	dy := p[1] - q[1]
	dx := p[2] - q[2]
	return dz*dz + dy*dy + dx*dx
}

// voxels is a collection of voxel that satisfies kdtree.Interface
type voxels []voxel

func (p voxels) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxels) Len() int                              { return len(p) }
func (p voxels) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p voxels) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(voxelPlane{voxels: p, Dim: d}, kdtree.MedianOfRandoms(voxelPlane{voxels: p, Dim: d}, 100))
}

// voxelPlane implements sort.Interface and kdtree.SortSlicer for voxels
type voxelPlane struct {
	voxels
	kdtree.Dim
}

func (p voxelPlane) Less(i, j int) bool {
	return p.voxels[i][p.Dim] < p.voxels[j][p.Dim]
}

func (p voxelPlane) Slice(start, end int) kdtree.SortSlicer {
	return voxelPlane{voxels: p.voxels[start:end], Dim: p.Dim}
}

func (p voxelPlane) Swap(i, j int) {
	p.voxels[i], p.voxels[j] = p.voxels[j], p.voxels[i]
}

// KDTree computes the distance map by building a kd-tree over the mask
// voxels and querying the nearest one for every background voxel.
func KDTree(m *models.Mask, workers int) *models.Field {
	s := m.Shape
	f := models.NewField(s)

	var pts voxels
	for i, in := range m.Data {
		if in {
			z, y, x := s.Coord(i)
			pts = append(pts, voxel{float64(z), float64(y), float64(x)})
		}
	}
	if len(pts) == 0 {
		inf := math.Inf(1)
		for i := range f.Data {
			f.Data[i] = inf
		}
		return f
	}

	tree := kdtree.New(pts, false)
	parallel.For(len(m.Data), workers, func(start, end int) {
		for i := start; i < end; i++ {
			if m.Data[i] {
				continue
			}
			z, y, x := s.Coord(i)
			_, d2 := tree.Nearest(voxel{float64(z), float64(y), float64(x)})
			f.Data[i] = math.Sqrt(d2)
		}
	})
	return f
}
