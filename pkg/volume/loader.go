package volume

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"rockdissolution/internal/models"
)

// Load decodes a labelled volume from path.
func Load(path string, opts Options) (*models.LabelVolume, error) {
	var (
		v   *models.LabelVolume
		err error
	)
	if isImageInput(path) {
		v, err = loadImages(path)
	} else {
		v, err = loadRawLabels(path, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", models.ErrIOFailure, path, err)
	}
	if opts.Shape.Valid() {
		if err := models.CheckShapes(opts.Shape, v.Shape); err != nil {
			return nil, fmt.Errorf("volume: %s: %w", path, err)
		}
	}
	v.Source = path
	return v, nil
}

// LoadMask decodes a region mask from path; any nonzero voxel is a member.
func LoadMask(path string, opts Options) (*models.Mask, error) {
	if isImageInput(path) {
		v, err := Load(path, opts)
		if err != nil {
			return nil, err
		}
		m := models.NewMask(v.Shape)
		for i, l := range v.Data {
			m.Data[i] = l != 0
		}
		return m, nil
	}

	if !opts.Shape.Valid() {
		return nil, fmt.Errorf("%w: load %s: raw input needs a volume shape", models.ErrIOFailure, path)
	}
	raw, err := readRawBytes(path)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", models.ErrIOFailure, path, err)
	}
	m := models.NewMask(opts.Shape)
	err = eachRaw(raw, opts.DType, opts.Shape.Len(), func(i int, v float64) {
		m.Data[i] = v != 0 && !math.IsNaN(v)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", models.ErrIOFailure, path, err)
	}
	return m, nil
}

func loadRawLabels(path string, opts Options) (*models.LabelVolume, error) {
	if !opts.Shape.Valid() {
		return nil, fmt.Errorf("raw input needs a volume shape")
	}
	raw, err := readRawBytes(path)
	if err != nil {
		return nil, err
	}

	v := models.NewLabelVolume(opts.Shape)
	bad := -1
	err = eachRaw(raw, opts.DType, opts.Shape.Len(), func(i int, x float64) {
		if x != math.Trunc(x) && bad < 0 {
			bad = i
		}
		v.Data[i] = int32(x)
	})
	if err != nil {
		return nil, err
	}
	if bad >= 0 {
		return nil, fmt.Errorf("%w at voxel %d", ErrNotInteger, bad)
	}
	return v, nil
}

// isImageInput reports whether path is a slice directory or a 2D image.
func isImageInput(path string) bool {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return true
	}
	return isImageFile(path)
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tif", ".tiff", ".png":
		return true
	}
	return false
}

// loadImages reads a slice directory, a multi-page TIFF stack or a single
// 2D image. Every page of every file becomes one z slice, in file order.
func loadImages(path string) (*models.LabelVolume, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var files []string
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && isImageFile(e.Name()) {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		if len(files) == 0 {
			return nil, ErrNoSlices
		}
		// Sort by the number in the file name to keep z order
		sort.SliceStable(files, func(i, j int) bool {
			return extractNumber(files[i]) < extractNumber(files[j])
		})
	} else {
		files = []string{path}
	}

	var (
		data          []int32
		width, height int
		depth         int
	)
	for _, name := range files {
		pages, err := decodePages(name)
		if err != nil {
			return nil, err
		}
		for p, img := range pages {
			s := sliceFromImage(img, depth, filepath.Base(name))
			if depth == 0 {
				width, height = s.Width, s.Height
				data = make([]int32, 0, len(files)*len(pages)*width*height)
			}
			if s.Width != width || s.Height != height {
				return nil, fmt.Errorf("%w: %s page %d is %dx%d, expected %dx%d", models.ErrShapeMismatch,
					s.Filename, p, s.Height, s.Width, height, width)
			}
			data = append(data, s.Labels...)
			depth++
		}
	}
	return &models.LabelVolume{Data: data, Shape: models.NewShape(depth, height, width)}, nil
}

// decodePages decodes every page of a TIFF, or the single image of any other
// file.
func decodePages(path string) ([]image.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		pages, err := decodeTIFFPages(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		return pages, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return []image.Image{img}, nil
}

// sliceFromImage converts one 2D image into a labelled slice.
func sliceFromImage(img image.Image, index int, filename string) *models.Slice {
	b := img.Bounds()
	s := &models.Slice{
		Labels:   make([]int32, b.Dx()*b.Dy()),
		Width:    b.Dx(),
		Height:   b.Dy(),
		Index:    index,
		Filename: filename,
	}
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			s.Labels[y*s.Width+x] = pixelLabel(img, b.Min.X+x, b.Min.Y+y)
		}
	}
	return s
}

// pixelLabel returns the integer label stored at a pixel.
func pixelLabel(img image.Image, x, y int) int32 {
	switch im := img.(type) {
	case *image.Gray:
		return int32(im.GrayAt(x, y).Y)
	case *image.Gray16:
		return int32(im.Gray16At(x, y).Y)
	case *image.Paletted:
		return int32(im.ColorIndexAt(x, y))
	default:
		return int32(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
	}
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
