// Package volume decodes labelled volumes and binary masks from disk.
//
// Supported inputs, chosen by path:
//   - raw little-endian voxel dumps (.raw, .bin, .dat), optionally zstd
//     compressed (.zst suffix), whose shape comes from the caller
//   - a directory of 2D slice images (.tif, .tiff, .png) sorted by the
//     number in their file names, one slice per z
//   - a single 2D image file, read as a volume of depth 1
package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"rockdissolution/internal/models"
)

// DType is the on-disk element type of a raw volume.
type DType string

const (
	Uint8   DType = "uint8"
	Uint16  DType = "uint16"
	Int32   DType = "int32"
	Float32 DType = "float32"
)

// Size returns the element size in bytes.
func (d DType) Size() (int, error) {
	switch d {
	case Uint8:
		return 1, nil
	case Uint16:
		return 2, nil
	case Int32, Float32:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDType, d)
	}
}

// Options describes how to decode a raw input. Image inputs carry their own
// dimensions; Shape is then only checked when set.
type Options struct {
	Shape models.Shape
	DType DType
}

// readRawBytes reads a raw file, transparently decompressing a .zst suffix.
func readRawBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.EqualFold(filepath.Ext(path), ".zst") {
		return io.ReadAll(f)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// eachRaw decodes raw bytes element by element, checking the element count
// against n, and hands every value to fn.
func eachRaw(raw []byte, dtype DType, n int, fn func(i int, v float64)) error {
	size, err := dtype.Size()
	if err != nil {
		return err
	}
	if len(raw) != n*size {
		return fmt.Errorf("%w: data size %d bytes does not match %d elements of %s",
			ErrSizeMismatch, len(raw), n, dtype)
	}

	le := binary.LittleEndian
	switch dtype {
	case Uint8:
		for i := 0; i < n; i++ {
			fn(i, float64(raw[i]))
		}
	case Uint16:
		for i := 0; i < n; i++ {
			fn(i, float64(le.Uint16(raw[2*i:])))
		}
	case Int32:
		for i := 0; i < n; i++ {
			fn(i, float64(int32(le.Uint32(raw[4*i:]))))
		}
	case Float32:
		for i := 0; i < n; i++ {
			fn(i, float64(math.Float32frombits(le.Uint32(raw[4*i:]))))
		}
	}
	return nil
}

// ReadFloat32 reads n little-endian float32 values, e.g. a staggered
// velocity component.
func ReadFloat32(path string, n int) ([]float32, error) {
	raw, err := readRawBytes(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrIOFailure, path, err)
	}
	if len(raw) != 4*n {
		return nil, fmt.Errorf("%w: %s: data size %d bytes does not match %d float32 values",
			ErrSizeMismatch, path, len(raw), n)
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}

// SaveFloat32 writes a field as little-endian float32 values. A .zst suffix
// compresses the output.
func SaveFloat32(path string, f *models.Field) error {
	var buf bytes.Buffer
	buf.Grow(4 * len(f.Data))
	var word [4]byte
	for _, v := range f.Data {
		binary.LittleEndian.PutUint32(word[:], math.Float32bits(float32(v)))
		buf.Write(word[:])
	}
	return writeRaw(path, buf.Bytes())
}

// SaveMask writes a mask as one uint8 (0 or 1) per voxel.
func SaveMask(path string, m *models.Mask) error {
	raw := make([]byte, len(m.Data))
	for i, in := range m.Data {
		if in {
			raw[i] = 1
		}
	}
	return writeRaw(path, raw)
}

// SaveLabels writes a label volume as little-endian int32 values.
func SaveLabels(path string, v *models.LabelVolume) error {
	raw := make([]byte, 4*len(v.Data))
	for i, l := range v.Data {
		binary.LittleEndian.PutUint32(raw[4*i:], uint32(l))
	}
	return writeRaw(path, raw)
}

func writeRaw(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("%w: zstd encoder: %v", models.ErrIOFailure, err)
		}
		raw = enc.EncodeAll(raw, nil)
		enc.Close()
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIOFailure, err)
	}
	return nil
}
