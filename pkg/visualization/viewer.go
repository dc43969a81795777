// Package visualization renders axis-aligned slices of voxel fields to
// grayscale images for quality control.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"rockdissolution/internal/models"
)

// Viewer maps a scalar field onto 16-bit gray. Values are scaled linearly
// from the window [lo, hi] to [0, 65535]; +Inf renders white.
type Viewer struct {
	field *models.Field

	lo, hi float64
}

// NewViewer creates a viewer whose window spans the finite values of f.
func NewViewer(f *models.Field) *Viewer {
	v := &Viewer{field: f}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range f.Data {
		if math.IsInf(x, 0) || math.IsNaN(x) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo > hi {
		lo, hi = 0, 1
	}
	v.SetWindow(lo, hi)
	return v
}

// SetWindow fixes the value range mapped onto black..white.
func (v *Viewer) SetWindow(lo, hi float64) {
	if hi <= lo {
		hi = lo + 1
	}
	v.lo, v.hi = lo, hi
}

// Window returns the current value range.
func (v *Viewer) Window() (lo, hi float64) {
	return v.lo, v.hi
}

func (v *Viewer) gray(x float64) color.Gray16 {
	if math.IsNaN(x) {
		return color.Gray16{}
	}
	t := (x - v.lo) / (v.hi - v.lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice along the given axis: "z" gives an
// x-by-y image, "y" gives x-by-z and "x" gives z-by-y.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	s := v.field.Shape

	var img *image.Gray16
	switch strings.ToLower(axis) {
	case "x":
		if position >= s.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, s.Width)
		}
		img = image.NewGray16(image.Rect(0, 0, s.Depth, s.Height))
		for y := 0; y < s.Height; y++ {
			for z := 0; z < s.Depth; z++ {
				img.SetGray16(z, y, v.gray(v.field.Data[s.Index(z, y, position)]))
			}
		}

	case "y":
		if position >= s.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, s.Height)
		}
		img = image.NewGray16(image.Rect(0, 0, s.Width, s.Depth))
		for z := 0; z < s.Depth; z++ {
			for x := 0; x < s.Width; x++ {
				img.SetGray16(x, z, v.gray(v.field.Data[s.Index(z, position, x)]))
			}
		}

	case "z":
		if position >= s.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, s.Depth)
		}
		img = image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
		for y := 0; y < s.Height; y++ {
			for x := 0; x < s.Width; x++ {
				img.SetGray16(x, y, v.gray(v.field.Data[s.Index(position, y, x)]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice writes img as PNG, JPEG or TIFF depending on the file extension.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format: %s", filename)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

// SaveSliceSequence saves every slice along axis as slice_{axis}_{pos}{ext}.
func (v *Viewer) SaveSliceSequence(axis, outputDir, ext string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	s := v.field.Shape
	var maxPos int
	switch strings.ToLower(axis) {
	case "x":
		maxPos = s.Width
	case "y":
		maxPos = s.Height
	case "z":
		maxPos = s.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d%s", axis, pos, ext))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveMidSlice saves the middle z slice of f to filename.
func SaveMidSlice(f *models.Field, filename string) error {
	v := NewViewer(f)
	img, err := v.ExtractSlice("z", f.Shape.Depth/2)
	if err != nil {
		return err
	}
	return v.SaveSlice(img, filename)
}
