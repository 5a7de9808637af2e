// Package stream provides bounds-checked binary reading over an in-memory
// image: a sequential Reader and a random-access Region.
package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

var (
	ErrUnexpectedEOF  = errors.New("stream: unexpected end of data")
	ErrNegativeOffset = errors.New("stream: negative offset")
	ErrInvalidWidth   = errors.New("stream: index width must be 2 or 4")
	ErrBadCompressed  = errors.New("stream: invalid compressed integer")
)

// Reader reads little-endian values sequentially from a byte slice. A
// fixed-width read that fails leaves the position unchanged.
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) Offset() int { return r.offset }

// SetOffset moves the read position. A position past the end is accepted
// and makes the next read fail.
func (r *Reader) SetOffset(offset int) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	r.offset = offset
	return nil
}

func (r *Reader) Remaining() int {
	return max(len(r.data)-r.offset, 0)
}

// take returns the next n bytes without copying and advances past them.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, ErrUnexpectedEOF
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Align rounds the position up to a multiple of n.
func (r *Reader) Align(n int) {
	if n > 1 {
		r.offset = (r.offset + n - 1) / n * n
	}
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// The signed and floating-point reads reinterpret the unsigned bits.

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadBytesRef returns the next n bytes without copying. The slice aliases
// the image data.
func (r *Reader) ReadBytesRef(n int) ([]byte, error) {
	return r.take(n)
}

// ReadCString reads up to and past a NUL byte.
func (r *Reader) ReadCString() (string, error) {
	n := bytes.IndexByte(r.data[min(r.offset, len(r.data)):], 0)
	if n < 0 {
		return "", ErrUnexpectedEOF
	}
	s := string(r.data[r.offset : r.offset+n])
	r.offset += n + 1
	return s, nil
}

// ReadFixedString reads an n-byte field and drops its NUL padding.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(b, "\x00")), nil
}

// ReadIndex reads a 2- or 4-byte heap or table index and widens it.
func (r *Reader) ReadIndex(width int) (uint32, error) {
	switch width {
	case 2:
		v, err := r.ReadU16()
		return uint32(v), err
	case 4:
		return r.ReadU32()
	default:
		return 0, ErrInvalidWidth
	}
}

// ReadCompressedUint reads an ECMA-335 compressed unsigned integer: one byte
// for values up to 0x7F, two bytes with a 10 prefix up to 0x3FFF, four bytes
// with a 110 prefix up to 0x1FFFFFFF.
func (r *Reader) ReadCompressedUint() (uint32, error) {
	b0, err := r.ReadU8()
	if err != nil {
		return 0, err
	}

	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	case b0&0xE0 == 0xC0:
		rest, err := r.ReadBytesRef(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	default:
		r.offset--
		return 0, ErrBadCompressed
	}
}

// ReadLengthPrefix reads the self-describing length that precedes blob and
// user-string heap entries. The top bits of the first byte select a 1, 2 or
// 4 byte encoding.
func (r *Reader) ReadLengthPrefix() (uint32, error) {
	b0, err := r.ReadU8()
	if err != nil {
		return 0, err
	}

	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	default:
		rest, err := r.ReadBytesRef(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
}

// PeekU8 returns the next byte without consuming it.
func (r *Reader) PeekU8() (uint8, error) {
	if r.Remaining() == 0 {
		return 0, ErrUnexpectedEOF
	}
	return r.data[r.offset], nil
}

// Data returns the whole underlying slice, including bytes already read.
func (r *Reader) Data() []byte { return r.data }

// RemainingData returns the unread bytes, or nil at the end.
func (r *Reader) RemainingData() []byte {
	if r.Remaining() == 0 {
		return nil
	}
	return r.data[r.offset:]
}
