package models

// Slice is a single 2D labelled image of a slice stack, as read from disk
// before it is assembled into a LabelVolume.
type Slice struct {
	// Labels holds Width*Height labels in row-major (y, x) order
	Labels []int32

	Width  int
	Height int

	// Index is the position of this slice along z
	Index int

	// Filename is the original filename of the slice
	Filename string
}
