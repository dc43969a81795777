package labels

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockdissolution/internal/models"
)

func randomVolume(seed int64, shape models.Shape, maxLabel int32) *models.LabelVolume {
	rng := rand.New(rand.NewSource(seed))
	v := models.NewLabelVolume(shape)
	for i := range v.Data {
		v.Data[i] = rng.Int31n(maxLabel + 1)
	}
	return v
}

func TestVoxelPopulationsSumsToVoxelCount(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		v := randomVolume(seed, models.NewShape(7, 5, 9), 6)
		pops := VoxelPopulations(v)
		assert.Equal(t, int64(v.Shape.Len()), pops.Total(), "seed %d", seed)
	}
}

func TestVoxelPopulationsLargeAndNegativeLabels(t *testing.T) {
	v := models.NewLabelVolume(models.NewShape(1, 1, 5))
	copy(v.Data, []int32{70000, 70000, -1, 3, 3})

	pops := VoxelPopulations(v)
	assert.Equal(t, int64(2), pops.Get(70000))
	assert.Equal(t, int64(1), pops.Get(-1))
	assert.Equal(t, int64(2), pops.Get(3))
	assert.Equal(t, int64(0), pops.Get(4))
	assert.Equal(t, []int32{-1, 3, 70000}, pops.Labels())
}

func TestDiscoverLabelsSorted(t *testing.T) {
	v := models.NewLabelVolume(models.NewShape(2, 2, 2))
	copy(v.Data, []int32{5, 2, 2, 1, 9, 5, 1, 2})

	require.Equal(t, []int32{1, 2, 5, 9}, DiscoverLabels(v))
}

func TestExclude(t *testing.T) {
	assert.Equal(t, []int32{3, 4}, Exclude([]int32{1, 2, 3, 4}, 2, 1))
	assert.Empty(t, Exclude([]int32{1, 2}, 1, 2))
}
