// Package flowfield turns staggered face velocities from a pore-scale flow
// simulation into a cell-centred speed field, and thresholds that field into
// fast-flow and slow-flow region masks.
//
// Velocity components live on cell faces: ux has shape (z, y, x+1), uy has
// shape (z, y+1, x) and uz has shape (z+1, y, x) for a cell grid of shape
// (z, y, x).
package flowfield

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"rockdissolution/internal/models"
	"rockdissolution/internal/parallel"
	"rockdissolution/pkg/logging"
)

// ErrNoFlow indicates a speed field without any moving voxel.
var ErrNoFlow = errors.New("flowfield: no nonzero speeds")

// Options tunes Average.
type Options struct {
	// LegacyZAverage averages every z face with the first z face instead of
	// the next one. It reproduces fields produced by older tooling.
	LegacyZAverage bool

	Workers int
}

// FaceShapes returns the expected shapes of ux, uy and uz for a cell grid.
func FaceShapes(cells models.Shape) (ux, uy, uz models.Shape) {
	ux = models.NewShape(cells.Depth, cells.Height, cells.Width+1)
	uy = models.NewShape(cells.Depth, cells.Height+1, cells.Width)
	uz = models.NewShape(cells.Depth+1, cells.Height, cells.Width)
	return
}

// Average computes the speed at every cell centre as the magnitude of the
// mean of each component's two bounding faces.
func Average(ux, uy, uz []float32, cells models.Shape, opts Options) (*models.Field, error) {
	sx, sy, sz := FaceShapes(cells)
	for _, c := range []struct {
		name string
		n    int
		s    models.Shape
	}{{"ux", len(ux), sx}, {"uy", len(uy), sy}, {"uz", len(uz), sz}} {
		if c.n != c.s.Len() {
			return nil, fmt.Errorf("%w: %s has %d values, want %d for %s",
				models.ErrShapeMismatch, c.name, c.n, c.s.Len(), c.s)
		}
	}
	if opts.LegacyZAverage {
		logging.Warningf("flow field: averaging z faces against the first face (legacy mode)")
	} else {
		logging.Warningf("flow field: averaging each cell's own z faces; results differ from the unshifted z average (set legacy_z_average to reproduce it)")
	}

	out := models.NewField(cells)
	parallel.For(cells.Depth, opts.Workers, func(z0, z1 int) {
		for z := z0; z < z1; z++ {
			zNext := z + 1
			if opts.LegacyZAverage {
				zNext = 0
			}
			for y := 0; y < cells.Height; y++ {
				for x := 0; x < cells.Width; x++ {
					vx := (float64(ux[sx.Index(z, y, x)]) + float64(ux[sx.Index(z, y, x+1)])) / 2
					vy := (float64(uy[sy.Index(z, y, x)]) + float64(uy[sy.Index(z, y+1, x)])) / 2
					vz := (float64(uz[sz.Index(z, y, x)]) + float64(uz[sz.Index(zNext, y, x)])) / 2
					out.Data[cells.Index(z, y, x)] = math.Sqrt(vx*vx + vy*vy + vz*vz)
				}
			}
		}
	})
	return out, nil
}

// Threshold returns the empirical p-quantile of the nonzero values of f.
func Threshold(f *models.Field, p float64) (float64, error) {
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("flowfield: quantile %g outside [0, 1]", p)
	}
	var speeds []float64
	for _, v := range f.Data {
		if v > 0 && !math.IsInf(v, 0) {
			speeds = append(speeds, v)
		}
	}
	if len(speeds) == 0 {
		return 0, ErrNoFlow
	}
	sort.Float64s(speeds)
	return stat.Quantile(p, stat.Empirical, speeds, nil), nil
}

// RegionMask selects moving voxels at or above (fast) or at or below (slow)
// the p-quantile of the nonzero speeds.
func RegionMask(f *models.Field, p float64, above bool) (*models.Mask, error) {
	thr, err := Threshold(f, p)
	if err != nil {
		return nil, err
	}
	m := models.NewMask(f.Shape)
	for i, v := range f.Data {
		if v <= 0 {
			continue
		}
		if above {
			m.Data[i] = v >= thr
		} else {
			m.Data[i] = v <= thr
		}
	}
	logging.Debugf("flow field: quantile %g threshold %g selects %s voxels",
		p, thr, logging.Count(int64(m.Count())))
	return m, nil
}
