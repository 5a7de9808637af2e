// Package signature decodes the blob-heap encodings of types and members:
// compressed integers, the element-type grammar, and method, field,
// property, local-variable and method-spec signatures.
package signature

import (
	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

// MaxCompressed is the largest value a compressed unsigned integer holds.
const MaxCompressed = 0x1FFFFFFF

// DecodeCompressed reads a compressed unsigned integer from the start of b
// and returns it with the number of bytes consumed. A lone 0xFF byte is the
// null marker of serialized strings and decodes to -1.
func DecodeCompressed(b []byte) (v int32, n int, err error) {
	if len(b) == 0 {
		return 0, 0, clierrors.Bounds(clierrors.PhaseSignature, clierrors.NoOffset, "compressed integer truncated")
	}

	b0 := b[0]
	switch {
	case b0 == 0xFF:
		return -1, 1, nil
	case b0&0x80 == 0:
		return int32(b0), 1, nil
	case b0&0xC0 == 0x80:
		if len(b) < 2 {
			return 0, 0, clierrors.Bounds(clierrors.PhaseSignature, clierrors.NoOffset, "compressed integer truncated")
		}
		return int32(b0&0x3F)<<8 | int32(b[1]), 2, nil
	case b0&0xE0 == 0xC0:
		if len(b) < 4 {
			return 0, 0, clierrors.Bounds(clierrors.PhaseSignature, clierrors.NoOffset, "compressed integer truncated")
		}
		return int32(b0&0x1F)<<24 | int32(b[1])<<16 | int32(b[2])<<8 | int32(b[3]), 4, nil
	}
	return 0, 0, clierrors.Format(clierrors.PhaseSignature, clierrors.NoOffset, "invalid compressed integer lead byte 0x%02x", b0)
}

// EncodeCompressed encodes v in the shortest compressed form.
func EncodeCompressed(v uint32) ([]byte, error) {
	switch {
	case v <= 0x7F:
		return []byte{byte(v)}, nil
	case v <= 0x3FFF:
		return []byte{byte(v>>8) | 0x80, byte(v)}, nil
	case v <= MaxCompressed:
		return []byte{byte(v>>24) | 0xC0, byte(v >> 16), byte(v >> 8), byte(v)}, nil
	}
	return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "0x%x is too large to compress", v)
}

// DecodeCompressedSigned reads a compressed signed integer: the value is
// rotated left by one so the sign bit lands in bit 0, then compressed.
func DecodeCompressedSigned(b []byte) (int32, int, error) {
	if len(b) > 0 && b[0] == 0xFF {
		return 0, 0, clierrors.Format(clierrors.PhaseSignature, clierrors.NoOffset, "invalid compressed integer lead byte 0xff")
	}
	u, n, err := DecodeCompressed(b)
	if err != nil {
		return 0, 0, err
	}

	var bits uint
	switch n {
	case 1:
		bits = 6
	case 2:
		bits = 13
	default:
		bits = 28
	}
	v := u >> 1
	if u&1 != 0 {
		v -= 1 << bits
	}
	return v, n, nil
}

// EncodeCompressedSigned is the inverse of DecodeCompressedSigned.
func EncodeCompressedSigned(v int32) ([]byte, error) {
	var bits uint
	switch {
	case v >= -(1<<6) && v < 1<<6:
		bits = 6
	case v >= -(1<<13) && v < 1<<13:
		bits = 13
	case v >= -(1<<28) && v < 1<<28:
		bits = 28
	default:
		return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "%d is out of compressed range", v)
	}
	mask := uint32(1)<<(bits+1) - 1
	u := (uint32(v) << 1) & mask
	if v < 0 {
		u |= 1
	}

	// The width carries the sign extent, so it follows the range, not u.
	switch bits {
	case 6:
		return []byte{byte(u)}, nil
	case 13:
		return []byte{byte(u>>8) | 0x80, byte(u)}, nil
	}
	return []byte{byte(u>>24) | 0xC0, byte(u >> 16), byte(u >> 8), byte(u)}, nil
}

// DecodeTypeDefOrRef reads a TypeDefOrRefOrSpecEncoded token: a compressed
// integer whose two low bits select TypeDef, TypeRef or TypeSpec.
func DecodeTypeDefOrRef(b []byte) (metadata.Token, int, error) {
	v, n, err := DecodeCompressed(b)
	if err != nil {
		return 0, 0, err
	}
	if v < 0 {
		return 0, 0, clierrors.Format(clierrors.PhaseSignature, clierrors.NoOffset, "invalid type token encoding 0xff")
	}
	tok, err := metadata.DecodeCoded(metadata.TypeDefOrRef, uint32(v))
	if err != nil {
		return 0, 0, clierrors.Format(clierrors.PhaseSignature, clierrors.NoOffset, "invalid type token encoding 0x%x", v)
	}
	return tok, n, nil
}

// EncodeTypeDefOrRef is the inverse of DecodeTypeDefOrRef.
func EncodeTypeDefOrRef(tok metadata.Token) ([]byte, error) {
	v, err := metadata.EncodeCoded(metadata.TypeDefOrRef, tok)
	if err != nil {
		return nil, err
	}
	return EncodeCompressed(v)
}
