package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockdissolution/internal/models"
)

func bruteDistance(m *models.Mask) *models.Field {
	s := m.Shape
	f := models.NewField(s)
	for i := range m.Data {
		best := math.Inf(1)
		z, y, x := s.Coord(i)
		for j, in := range m.Data {
			if !in {
				continue
			}
			zz, yy, xx := s.Coord(j)
			d := float64((z-zz)*(z-zz) + (y-yy)*(y-yy) + (x-xx)*(x-xx))
			if d < best {
				best = d
			}
		}
		f.Data[i] = math.Sqrt(best)
	}
	return f
}

func randomMask(seed int64, shape models.Shape, density float64) *models.Mask {
	rng := rand.New(rand.NewSource(seed))
	m := models.NewMask(shape)
	for i := range m.Data {
		m.Data[i] = rng.Float64() < density
	}
	return m
}

func assertFieldsClose(t *testing.T, want, got *models.Field, msg string) {
	t.Helper()
	require.Equal(t, len(want.Data), len(got.Data))
	for i := range want.Data {
		if math.IsInf(want.Data[i], 1) {
			assert.True(t, math.IsInf(got.Data[i], 1), "%s: voxel %d", msg, i)
			continue
		}
		assert.InDelta(t, want.Data[i], got.Data[i], 1e-9, "%s: voxel %d", msg, i)
	}
}

func TestExactMatchesBruteForce(t *testing.T) {
	shapes := []models.Shape{
		models.NewShape(5, 6, 7),
		models.NewShape(1, 1, 9),
		models.NewShape(8, 3, 1),
	}
	for _, shape := range shapes {
		for seed := int64(1); seed <= 3; seed++ {
			m := randomMask(seed, shape, 0.08)
			assertFieldsClose(t, bruteDistance(m), Exact(m, 2), shape.String())
		}
	}
}

func TestKDTreeMatchesExact(t *testing.T) {
	m := randomMask(9, models.NewShape(6, 6, 6), 0.03)
	m.Data[0] = true
	assertFieldsClose(t, Exact(m, 1), KDTree(m, 3), "kdtree")
}

func TestMaskVoxelsAreZero(t *testing.T) {
	m := randomMask(3, models.NewShape(4, 4, 4), 0.3)
	f := Exact(m, 1)
	for i, in := range m.Data {
		if in {
			assert.Zero(t, f.Data[i])
		} else {
			assert.GreaterOrEqual(t, f.Data[i], 1.0)
		}
	}
}

func TestSingleVoxelDistances(t *testing.T) {
	shape := models.NewShape(3, 3, 3)
	m := models.NewMask(shape)
	m.Data[shape.Index(0, 0, 0)] = true

	f := Exact(m, 1)
	assert.InDelta(t, 1.0, f.Data[shape.Index(0, 0, 1)], 1e-12)
	assert.InDelta(t, math.Sqrt(2), f.Data[shape.Index(0, 1, 1)], 1e-12)
	assert.InDelta(t, math.Sqrt(12), f.Data[shape.Index(2, 2, 2)], 1e-12)
}

func TestEmptyMaskIsInfinite(t *testing.T) {
	m := models.NewMask(models.NewShape(2, 3, 4))
	for _, method := range []Method{MethodExact, MethodKDTree} {
		f, err := Transform(m, method, 1)
		require.NoError(t, err)
		for _, d := range f.Data {
			assert.True(t, math.IsInf(d, 1))
		}
	}
}

func TestUnknownMethod(t *testing.T) {
	_, err := Transform(models.NewMask(models.NewShape(1, 1, 1)), "fft", 1)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func BenchmarkExact(b *testing.B) {
	m := randomMask(1, models.NewShape(64, 64, 64), 0.01)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Exact(m, 0)
	}
}
