package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rockdissolution/internal/models"
	"rockdissolution/pkg/config"
	"rockdissolution/pkg/logging"
	"rockdissolution/pkg/report"
	"rockdissolution/pkg/volume"
)

var fixtureShape = models.NewShape(3, 4, 4)

// writeFixture writes three time steps and two region masks. Step 1 is a
// pore plane at z=0 over label 3; voxel (1,1,1) dissolves by step 2 and
// (1,1,2) by step 3. Both masks mark voxel (1,1,3).
func writeFixture(t *testing.T, dir string) {
	t.Helper()
	v := models.NewLabelVolume(fixtureShape)
	for i := range v.Data {
		z, _, _ := fixtureShape.Coord(i)
		v.Data[i] = 3
		if z == 0 {
			v.Data[i] = 2
		}
	}
	require.NoError(t, volume.SaveLabels(filepath.Join(dir, "image1.raw"), v))
	v.Set(1, 1, 1, 2)
	require.NoError(t, volume.SaveLabels(filepath.Join(dir, "image2.raw"), v))
	v.Set(1, 1, 2, 2)
	require.NoError(t, volume.SaveLabels(filepath.Join(dir, "image3.raw"), v))

	m := models.NewMask(fixtureShape)
	m.Data[fixtureShape.Index(1, 1, 3)] = true
	for _, name := range []string{"fast_1.raw", "fast_2.raw"} {
		require.NoError(t, volume.SaveMask(filepath.Join(dir, name), m))
	}
}

func fixtureConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Analysis.DilationRadius = 0
	cfg.Analysis.NumberOfTimeSteps = 3
	cfg.Input.ImagePattern = filepath.Join(dir, "image%d.raw")
	cfg.Input.VolumeShape = "3,4,4"
	cfg.Input.DType = "int32"
	cfg.Regions = []config.RegionSet{{
		Name:    "fast",
		Pattern: filepath.Join(dir, "fast_%d.raw"),
		Count:   2,
		Prefix:  "VoxelNumber_fast_channel",
		Pairing: config.PairFirst,
		DType:   "uint8",
	}}
	cfg.Processing.NumCores = 2
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Formats = []string{"csv", "sqlite", "xlsx"}
	return cfg
}

func quiet(t *testing.T) {
	logging.SetLogMode(logging.ErrorMode)
	t.Cleanup(func() { logging.SetLogMode(logging.InfoMode) })
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesEveryUnit(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := fixtureConfig(dir)
	cfg.Output.Plots = true
	cfg.Output.QCSlices = true
	cfg.Output.QCStacks = true

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	results, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, 4, results.Count(StatusDone), results.Summary())
	for i, name := range []string{"Image1_Image2", "Image2_Image3", "VoxelNumber_fast_channel_1", "VoxelNumber_fast_channel_2"} {
		assert.Equal(t, name, results[i].Name)
	}

	out := cfg.Output.Dir
	assert.Equal(t,
		"Phase,Voxel Count (Image A),Voxel Count (Image B),Face Count (Image A),Face Count (Image B),Dissolved Voxels\n"+
			"2,16,17,0,0,-1\n"+
			"3,32,31,16,20,1\n",
		readFile(t, filepath.Join(out, "csv", KindDissolution, "Image1_Image2.csv")))

	// Both masks use the first pair: the dissolved voxel is 2 voxels from the mask
	for _, name := range []string{"VoxelNumber_fast_channel_1", "VoxelNumber_fast_channel_2"} {
		assert.Equal(t, "Unique Value,Count_Label_3\n2,1\n",
			readFile(t, filepath.Join(out, "csv", KindProximity, name+".csv")))
	}
	assert.Contains(t, readFile(t, filepath.Join(out, "csv", KindProximity, "VoxelNumber_fast_channel_1_Summary.csv")),
		"3,1,200,2")

	rows, err := report.ReadSheet(filepath.Join(out, cfg.Output.Workbook), "Image2_Image3")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"3", "31", "30", "20", "23", "1"}, rows[2])

	rows, err = report.ReadSheet(filepath.Join(out, "VoxelNumber_fast_channel_1.xlsx"), report.CombinedSheet)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Unique Value", "Count_Label_3"}, {"2", "1"}}, rows)

	db, err := report.OpenSQLite(filepath.Join(out, cfg.Output.Database))
	require.NoError(t, err)
	defer db.Close()
	tbl, err := db.ReadTable("Image1_Image2")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 32, 31, 16, 20, 1}, tbl.Row(1))

	for _, name := range []string{
		"plots/VoxelNumber_fast_channel_1.png",
		"qc/VoxelNumber_fast_channel_1_distance.png",
		"qc/Image1_Image2_dissolved.png",
		"qc/Image1_Image2_dissolved/slice_z_000.png",
		"qc/Image1_Image2_dissolved/slice_z_002.png",
		"qc/VoxelNumber_fast_channel_2_distance/slice_z_001.png",
	} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}

func TestRunSkipsExistingOutputs(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := fixtureConfig(dir)

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	first, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, first.Count(StatusDone))

	again, err := NewRunner(cfg)
	require.NoError(t, err)
	second, err := again.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, second.Count(StatusSkipped), second.Summary())

	// Without the flag everything is recomputed
	cfg.Analysis.SkipIfOutputExists = false
	third, err := NewRunner(cfg)
	require.NoError(t, err)
	results, err := third.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, results.Count(StatusDone))
}

func TestRunIsolatesFailures(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := fixtureConfig(dir)
	cfg.Regions = append(cfg.Regions,
		config.RegionSet{Name: "missing", Pattern: filepath.Join(dir, "absent_%d.raw"), Count: 1,
			Prefix: "VoxelNumber_missing", DType: "uint8"},
		config.RegionSet{Name: "late", Pattern: filepath.Join(dir, "fast_%d.raw"), Count: 3,
			Prefix: "VoxelNumber_late", Pairing: config.PairSequential, DType: "uint8"},
	)

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	results, err := r.Run(context.Background())
	require.NoError(t, err)

	failed := results.Failed()
	require.Len(t, failed, 2, results.Summary())

	missing, ok := results.Get("VoxelNumber_missing_1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, missing.Status)
	assert.ErrorIs(t, missing.Err, models.ErrIOFailure)

	late, ok := results.Get("VoxelNumber_late_3")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, late.Status)

	// Sequential pairing compares mask 2 with steps 2 and 3
	second, ok := results.Get("VoxelNumber_late_2")
	require.True(t, ok)
	assert.Equal(t, StatusDone, second.Status)
	assert.Equal(t, "Unique Value,Count_Label_3\n1,1\n",
		readFile(t, filepath.Join(cfg.Output.Dir, "csv", KindProximity, "VoxelNumber_late_2.csv")))

	assert.Equal(t, 6, results.Count(StatusDone))
	assert.Zero(t, r.cache.size(), "every step released after the run")
}

func TestRunReleasesSharedVolumes(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)
	cfg := fixtureConfig(dir)
	cfg.Regions[0].Pairing = config.PairSequential
	cfg.Output.Formats = []string{"csv"}

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	units := r.proximityUnits(nil)
	require.Len(t, units, 2)
	// mask 1 uses steps 1-2, mask 2 uses steps 2-3
	assert.Equal(t, 3, r.cache.size())

	units[0].release()
	assert.Equal(t, 2, r.cache.size(), "step 1 dropped, step 2 still claimed")
	units[1].release()
	assert.Zero(t, r.cache.size())

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, results.Count(StatusDone), results.Summary())
	assert.Zero(t, r.cache.size())
}

func TestVolumeCacheSharesUntilReleased(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	series := volume.NewSeries(filepath.Join(dir, "image%d.raw"), 3,
		volume.Options{Shape: fixtureShape, DType: volume.Int32})
	c := newVolumeCache(series)

	c.retain(0)
	c.retain(0)
	a, err := c.get(0)
	require.NoError(t, err)
	b, err := c.get(0)
	require.NoError(t, err)
	assert.Same(t, a, b)

	c.release(0)
	assert.Equal(t, 1, c.size())
	c.release(0)
	assert.Zero(t, c.size())

	// Unclaimed steps load fresh and are not kept
	x, err := c.get(1)
	require.NoError(t, err)
	y, err := c.get(1)
	require.NoError(t, err)
	assert.NotSame(t, x, y)
	assert.Zero(t, c.size())
	c.release(5)
}

func TestRunWritesSheetsInStepOrder(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)
	v, err := volume.Load(filepath.Join(dir, "image3.raw"), volume.Options{Shape: fixtureShape, DType: volume.Int32})
	require.NoError(t, err)
	for i := 4; i <= 12; i++ {
		require.NoError(t, volume.SaveLabels(filepath.Join(dir, fmt.Sprintf("image%d.raw", i)), v))
	}

	cfg := fixtureConfig(dir)
	cfg.Analysis.NumberOfTimeSteps = 12
	cfg.Regions = nil
	cfg.Processing.NumCores = 8
	cfg.Output.Formats = []string{"xlsx"}

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 11, results.Count(StatusDone), results.Summary())

	var want []string
	for i := 1; i <= 11; i++ {
		want = append(want, fmt.Sprintf("Image%d_Image%d", i, i+1))
	}
	f, err := excelize.OpenFile(filepath.Join(cfg.Output.Dir, cfg.Output.Workbook))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, want, f.GetSheetList())
}

func writePNG(t *testing.T, path string, w, h int, label uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = label
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRunShapeMismatch(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "image1.png"), 4, 4, 3)
	writePNG(t, filepath.Join(dir, "image2.png"), 4, 4, 3)
	writePNG(t, filepath.Join(dir, "image3.png"), 5, 4, 3)

	cfg := fixtureConfig(dir)
	cfg.Input.VolumeShape = ""
	cfg.Input.ImagePattern = filepath.Join(dir, "image%d.png")
	cfg.Regions = nil

	r, err := NewRunner(cfg)
	require.NoError(t, err)
	results, err := r.Run(context.Background())
	require.NoError(t, err)

	ok, _ := results.Get("Image1_Image2")
	assert.Equal(t, StatusDone, ok.Status)
	bad, _ := results.Get("Image2_Image3")
	assert.Equal(t, StatusFailed, bad.Status)
	assert.ErrorIs(t, bad.Err, models.ErrShapeMismatch)
}

func TestRunCancelled(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	writeFixture(t, dir)

	r, err := NewRunner(fixtureConfig(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, res := range results {
		assert.Equal(t, StatusFailed, res.Status)
		assert.True(t, errors.Is(res.Err, context.Canceled), res.String())
	}
	assert.Zero(t, r.cache.size())
}

func TestNewRunnerRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Analysis.DilationRadius = -2
	_, err := NewRunner(cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestPairFor(t *testing.T) {
	assert.Equal(t, 1, pairFor(config.RegionSet{Pairing: config.PairFirst}, 4))
	assert.Equal(t, 1, pairFor(config.RegionSet{}, 4))
	assert.Equal(t, 4, pairFor(config.RegionSet{Pairing: config.PairSequential}, 4))
}
