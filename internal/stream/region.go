package stream

import "encoding/binary"

// Region is an immutable, bounds-checked view of a byte range inside a
// larger image. It remembers its absolute position so errors can report
// file offsets.
type Region struct {
	data []byte
	base int
}

// NewRegion returns a region covering all of data, based at offset 0.
func NewRegion(data []byte) Region {
	return Region{data: data}
}

// Len returns the length of the region in bytes.
func (g Region) Len() int {
	return len(g.data)
}

// Base returns the absolute offset of the region's first byte.
func (g Region) Base() int {
	return g.base
}

// Sub returns the sub-range [offset, offset+length) of g.
func (g Region) Sub(offset, length int) (Region, error) {
	if offset < 0 || length < 0 {
		return Region{}, ErrNegativeOffset
	}
	if offset > len(g.data) || length > len(g.data)-offset {
		return Region{}, ErrUnexpectedEOF
	}
	return Region{data: g.data[offset : offset+length], base: g.base + offset}, nil
}

// From returns the sub-range starting at offset and running to the end.
func (g Region) From(offset int) (Region, error) {
	if offset < 0 {
		return Region{}, ErrNegativeOffset
	}
	if offset > len(g.data) {
		return Region{}, ErrUnexpectedEOF
	}
	return g.Sub(offset, len(g.data)-offset)
}

func (g Region) check(offset, n int) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	if offset > len(g.data) || n > len(g.data)-offset {
		return ErrUnexpectedEOF
	}
	return nil
}

// U8At reads the byte at offset.
func (g Region) U8At(offset int) (uint8, error) {
	if err := g.check(offset, 1); err != nil {
		return 0, err
	}
	return g.data[offset], nil
}

// U16At reads a little-endian 16-bit value at offset.
func (g Region) U16At(offset int) (uint16, error) {
	if err := g.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(g.data[offset:]), nil
}

// U32At reads a little-endian 32-bit value at offset.
func (g Region) U32At(offset int) (uint32, error) {
	if err := g.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(g.data[offset:]), nil
}

// U64At reads a little-endian 64-bit value at offset.
func (g Region) U64At(offset int) (uint64, error) {
	if err := g.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(g.data[offset:]), nil
}

// IndexAt reads a 1, 2 or 4 byte unsigned value at offset and widens it.
func (g Region) IndexAt(offset, width int) (uint32, error) {
	switch width {
	case 1:
		v, err := g.U8At(offset)
		return uint32(v), err
	case 2:
		v, err := g.U16At(offset)
		return uint32(v), err
	case 4:
		return g.U32At(offset)
	default:
		return 0, ErrInvalidWidth
	}
}

// Bytes returns a reference to length bytes at offset without copying.
func (g Region) Bytes(offset, length int) ([]byte, error) {
	if err := g.check(offset, length); err != nil {
		return nil, err
	}
	return g.data[offset : offset+length], nil
}

// Data returns the whole region.
func (g Region) Data() []byte {
	return g.data
}

// Reader returns a sequential reader positioned at the start of the region.
func (g Region) Reader() *Reader {
	return NewReader(g.data)
}
