package volume

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	"golang.org/x/image/tiff"
)

// maxPages bounds the IFD walk so a corrupt next-offset loop cannot spin.
const maxPages = 1 << 16

// tiffPageOffsets follows the IFD chain of a classic TIFF and returns the
// offset of every page in file order.
func tiffPageOffsets(data []byte) ([]uint32, binary.ByteOrder, error) {
	if len(data) < 8 {
		return nil, nil, fmt.Errorf("%w: short header", ErrBadTIFF)
	}
	var order binary.ByteOrder
	switch string(data[:4]) {
	case "II*\x00":
		order = binary.LittleEndian
	case "MM\x00*":
		order = binary.BigEndian
	default:
		return nil, nil, fmt.Errorf("%w: not a classic TIFF header", ErrBadTIFF)
	}

	var offsets []uint32
	seen := make(map[uint32]bool)
	for off := order.Uint32(data[4:8]); off != 0; {
		if seen[off] || len(offsets) >= maxPages {
			return nil, nil, fmt.Errorf("%w: IFD chain loops at offset %d", ErrBadTIFF, off)
		}
		seen[off] = true
		if int64(off)+2 > int64(len(data)) {
			return nil, nil, fmt.Errorf("%w: IFD offset %d past end of file", ErrBadTIFF, off)
		}
		entries := int64(order.Uint16(data[off:]))
		next := int64(off) + 2 + entries*12
		if next+4 > int64(len(data)) {
			return nil, nil, fmt.Errorf("%w: IFD at %d truncated", ErrBadTIFF, off)
		}
		offsets = append(offsets, off)
		off = order.Uint32(data[next:])
	}
	if len(offsets) == 0 {
		return nil, nil, fmt.Errorf("%w: no image directories", ErrBadTIFF)
	}
	return offsets, order, nil
}

// decodeTIFFPages decodes every page of a TIFF stack. tiff.Decode only reads
// the page the header points at, so the header offset is repointed at each
// IFD in turn.
func decodeTIFFPages(data []byte) ([]image.Image, error) {
	offsets, order, err := tiffPageOffsets(data)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	pages := make([]image.Image, 0, len(offsets))
	for i, off := range offsets {
		order.PutUint32(buf[4:8], off)
		img, err := tiff.Decode(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
