// Package models holds the voxel data types shared by the analysis packages.
//
// All volumes are stored as flat slices in row-major (z, y, x) order, so the
// voxel at (z, y, x) lives at index z*Height*Width + y*Width + x.
package models

import "fmt"

// Shape is the (z, y, x) extent of a volume in voxels.
type Shape struct {
	Depth  int // z
	Height int // y
	Width  int // x
}

// NewShape builds a Shape from a (z, y, x) triple.
func NewShape(z, y, x int) Shape {
	return Shape{Depth: z, Height: y, Width: x}
}

// Len returns the number of voxels in the shape.
func (s Shape) Len() int {
	return s.Depth * s.Height * s.Width
}

// Index returns the flat offset of voxel (z, y, x).
func (s Shape) Index(z, y, x int) int {
	return (z*s.Height+y)*s.Width + x
}

// Coord is the inverse of Index.
func (s Shape) Coord(idx int) (z, y, x int) {
	plane := s.Height * s.Width
	z = idx / plane
	rem := idx - z*plane
	y = rem / s.Width
	x = rem - y*s.Width
	return z, y, x
}

// Valid reports whether every extent is positive.
func (s Shape) Valid() bool {
	return s.Depth > 0 && s.Height > 0 && s.Width > 0
}

// Stride returns the flat distance between neighbours along axis
// 0 (z), 1 (y) or 2 (x).
func (s Shape) Stride(axis int) int {
	switch axis {
	case 0:
		return s.Height * s.Width
	case 1:
		return s.Width
	case 2:
		return 1
	default:
		panic("illegal axis")
	}
}

// Extent returns the number of voxels along axis 0 (z), 1 (y) or 2 (x).
func (s Shape) Extent(axis int) int {
	switch axis {
	case 0:
		return s.Depth
	case 1:
		return s.Height
	case 2:
		return s.Width
	default:
		panic("illegal axis")
	}
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Depth, s.Height, s.Width)
}

// CheckShapes returns ErrShapeMismatch unless every shape equals the first.
func CheckShapes(shapes ...Shape) error {
	for i := 1; i < len(shapes); i++ {
		if shapes[i] != shapes[0] {
			return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, shapes[0], shapes[i])
		}
	}
	return nil
}

// LabelVolume is a 3D grid of integer phase labels for one time step.
// It is treated as immutable once loaded.
type LabelVolume struct {
	// Data holds one label per voxel in row-major (z, y, x) order
	Data []int32

	Shape Shape

	// Source identifies where the volume was loaded from, for log messages
	Source string
}

// NewLabelVolume allocates a zeroed volume of the given shape.
func NewLabelVolume(shape Shape) *LabelVolume {
	return &LabelVolume{
		Data:  make([]int32, shape.Len()),
		Shape: shape,
	}
}

// At returns the label at (z, y, x).
func (v *LabelVolume) At(z, y, x int) int32 {
	return v.Data[v.Shape.Index(z, y, x)]
}

// Set assigns the label at (z, y, x).
func (v *LabelVolume) Set(z, y, x int, label int32) {
	v.Data[v.Shape.Index(z, y, x)] = label
}

// Clone returns a deep copy of the volume.
func (v *LabelVolume) Clone() *LabelVolume {
	data := make([]int32, len(v.Data))
	copy(data, v.Data)
	return &LabelVolume{Data: data, Shape: v.Shape, Source: v.Source}
}

// Equals builds a mask of the voxels carrying label.
func (v *LabelVolume) Equals(label int32) *Mask {
	m := NewMask(v.Shape)
	for i, l := range v.Data {
		m.Data[i] = l == label
	}
	return m
}

// Mask is a binary membership grid of the same layout as LabelVolume.
type Mask struct {
	Data  []bool
	Shape Shape
}

// NewMask allocates an empty mask.
func NewMask(shape Shape) *Mask {
	return &Mask{
		Data:  make([]bool, shape.Len()),
		Shape: shape,
	}
}

// Count returns the number of member voxels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Data {
		if b {
			n++
		}
	}
	return n
}

// Field is a scalar value per voxel, e.g. a distance map or a velocity magnitude.
type Field struct {
	Data  []float64
	Shape Shape
}

// NewField allocates a zeroed field.
func NewField(shape Shape) *Field {
	return &Field{
		Data:  make([]float64, shape.Len()),
		Shape: shape,
	}
}

// LabelsAsField converts a label volume to a field, used for QC slice export.
func LabelsAsField(v *LabelVolume) *Field {
	f := NewField(v.Shape)
	for i, l := range v.Data {
		f.Data[i] = float64(l)
	}
	return f
}

// MaskAsField converts a mask to a 0/1 field.
func MaskAsField(m *Mask) *Field {
	f := NewField(m.Shape)
	for i, b := range m.Data {
		if b {
			f.Data[i] = 1
		}
	}
	return f
}
