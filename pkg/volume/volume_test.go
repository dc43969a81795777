package volume

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rockdissolution/internal/models"
)

func sampleVolume() *models.LabelVolume {
	v := models.NewLabelVolume(models.NewShape(2, 3, 4))
	for i := range v.Data {
		v.Data[i] = int32(i % 5)
	}
	return v
}

func TestRawRoundTrip(t *testing.T) {
	dir := t.TempDir()
	v := sampleVolume()

	for _, name := range []string{"labels.raw", "labels.raw.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, SaveLabels(path, v))

			got, err := Load(path, Options{Shape: v.Shape, DType: Int32})
			require.NoError(t, err)
			assert.Equal(t, v.Shape, got.Shape)
			assert.Equal(t, v.Data, got.Data)
			assert.Equal(t, path, got.Source)
		})
	}
}

func TestLoadSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.raw")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0644))

	_, err := Load(path, Options{Shape: models.NewShape(2, 2, 2), DType: Uint16})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.ErrorIs(t, err, models.ErrIOFailure)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.raw"), Options{Shape: models.NewShape(1, 1, 1), DType: Uint8})
	assert.ErrorIs(t, err, models.ErrIOFailure)
}

func TestLoadNeedsShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.raw")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0644))

	_, err := Load(path, Options{DType: Uint8})
	assert.ErrorIs(t, err, models.ErrIOFailure)
}

func TestLoadUnknownDType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.raw")
	require.NoError(t, os.WriteFile(path, []byte{1, 2}, 0644))

	_, err := Load(path, Options{Shape: models.NewShape(1, 1, 2), DType: "complex64"})
	assert.ErrorIs(t, err, ErrUnknownDType)
}

func TestLoadFloatLabels(t *testing.T) {
	dir := t.TempDir()
	shape := models.NewShape(1, 1, 3)

	f := models.NewField(shape)
	f.Data = []float64{0, 2, 7}
	path := filepath.Join(dir, "ok.raw")
	require.NoError(t, SaveFloat32(path, f))

	v, err := Load(path, Options{Shape: shape, DType: Float32})
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 7}, v.Data)

	f.Data[1] = 2.5
	path = filepath.Join(dir, "bad.raw")
	require.NoError(t, SaveFloat32(path, f))

	_, err = Load(path, Options{Shape: shape, DType: Float32})
	assert.ErrorIs(t, err, ErrNotInteger)
}

func TestLoadMaskNonzero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mask.raw")
	require.NoError(t, os.WriteFile(path, []byte{0, 3, 0, 255}, 0644))

	m, err := LoadMask(path, Options{Shape: models.NewShape(1, 2, 2), DType: Uint8})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false, true}, m.Data)

	saved := filepath.Join(t.TempDir(), "copy.raw")
	require.NoError(t, SaveMask(saved, m))
	again, err := LoadMask(saved, Options{Shape: m.Shape, DType: Uint8})
	require.NoError(t, err)
	assert.Equal(t, m.Data, again.Data)
}

func TestReadFloat32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ux.raw.zst")
	f := models.NewField(models.NewShape(1, 1, 4))
	f.Data = []float64{0.5, -1, 2, 0}
	require.NoError(t, SaveFloat32(path, f))

	got, err := ReadFloat32(path, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 2, 0}, got)

	_, err = ReadFloat32(path, 5)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func writeGraySlice(t *testing.T, path string, w, h int, fill func(x, y int) uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Pix[y*img.Stride+x] = fill(x, y)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadSliceDirectory(t *testing.T) {
	dir := t.TempDir()
	// Names sort differently lexically and numerically
	for _, z := range []int{10, 2, 1} {
		z := z
		writeGraySlice(t, filepath.Join(dir, fmt.Sprintf("slice_%d.png", z)), 3, 2, func(x, y int) uint8 {
			return uint8(z)
		})
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	v, err := Load(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.NewShape(3, 2, 3), v.Shape)
	assert.Equal(t, int32(1), v.At(0, 1, 2))
	assert.Equal(t, int32(2), v.At(1, 0, 0))
	assert.Equal(t, int32(10), v.At(2, 1, 1))
}

func TestLoadSliceDirectoryErrors(t *testing.T) {
	empty := t.TempDir()
	_, err := Load(empty, Options{})
	assert.ErrorIs(t, err, ErrNoSlices)

	dir := t.TempDir()
	writeGraySlice(t, filepath.Join(dir, "s1.png"), 3, 2, func(x, y int) uint8 { return 1 })
	writeGraySlice(t, filepath.Join(dir, "s2.png"), 4, 2, func(x, y int) uint8 { return 1 })
	_, err = Load(dir, Options{})
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	_, err = Load(filepath.Join(dir, "s1.png"), Options{Shape: models.NewShape(2, 2, 3)})
	assert.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestLoadSingleImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	writeGraySlice(t, path, 2, 2, func(x, y int) uint8 { return uint8(x + 2*y) })

	v, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, models.NewShape(1, 2, 2), v.Shape)
	assert.Equal(t, []int32{0, 1, 2, 3}, v.Data)

	m, err := LoadMask(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Count())
}

func TestSeries(t *testing.T) {
	dir := t.TempDir()
	v := sampleVolume()
	for i := 1; i <= 3; i++ {
		require.NoError(t, SaveLabels(filepath.Join(dir, fmt.Sprintf("step_%d.raw", i)), v))
	}

	s := NewSeries(filepath.Join(dir, "step_%d.raw"), 3, Options{Shape: v.Shape, DType: Int32})
	require.Equal(t, 3, s.Len())

	got, err := s.Load(2)
	require.NoError(t, err)
	assert.Equal(t, v.Data, got.Data)

	_, err = s.Load(3)
	assert.Error(t, err)
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"slice_001.png", 1},
		{"/data/run2/slice_10.tif", 10},
		{"noDigits.png", 0},
	}
	for _, tt := range tests {
		if got := extractNumber(tt.name); got != tt.want {
			t.Errorf("extractNumber(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
