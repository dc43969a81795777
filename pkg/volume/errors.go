package volume

import "errors"

var (
	// ErrUnknownDType indicates an unsupported raw element type.
	ErrUnknownDType = errors.New("volume: unknown element type")
	// ErrSizeMismatch indicates raw data whose length does not fit the shape.
	ErrSizeMismatch = errors.New("volume: size mismatch")
	// ErrNoSlices indicates a slice directory without readable images.
	ErrNoSlices = errors.New("volume: no slice images found")
	// ErrNotInteger indicates a non-integral value in a label volume.
	ErrNotInteger = errors.New("volume: non-integer label")
	// ErrBadTIFF indicates a TIFF whose page directories cannot be walked.
	ErrBadTIFF = errors.New("volume: malformed TIFF")
)
