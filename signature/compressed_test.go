package signature

import (
	"bytes"
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

func TestCompressedRoundTrip(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0x00, []byte{0x00}},
		{0x03, []byte{0x03}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x80}},
		{0x2E57, []byte{0xAE, 0x57}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x00, 0x40, 0x00}},
		{0x1FFFFFFF, []byte{0xDF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		enc, err := EncodeCompressed(tt.v)
		if err != nil {
			t.Errorf("EncodeCompressed(0x%x) failed: %v", tt.v, err)
			continue
		}
		if !bytes.Equal(enc, tt.want) {
			t.Errorf("EncodeCompressed(0x%x) = %x, want %x", tt.v, enc, tt.want)
		}
		got, n, err := DecodeCompressed(append(enc, 0x55))
		if err != nil || uint32(got) != tt.v || n != len(tt.want) {
			t.Errorf("DecodeCompressed(%x) = 0x%x, %d, %v", enc, got, n, err)
		}
	}

	if _, err := EncodeCompressed(MaxCompressed + 1); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("EncodeCompressed(too large) err = %v", err)
	}
}

func TestCompressedNullMarker(t *testing.T) {
	v, n, err := DecodeCompressed([]byte{0xFF, 0x01, 0x02})
	if err != nil || v != -1 || n != 1 {
		t.Errorf("DecodeCompressed(0xFF) = %d, %d, %v; want -1, 1", v, n, err)
	}
}

func TestCompressedErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, clierrors.ErrBounds},
		{"short two-byte", []byte{0x80}, clierrors.ErrBounds},
		{"short four-byte", []byte{0xC0, 0x00, 0x00}, clierrors.ErrBounds},
		{"bad lead", []byte{0xE0, 0, 0, 0}, clierrors.ErrFormat},
	}
	for _, tt := range tests {
		if _, _, err := DecodeCompressed(tt.in); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestCompressedSigned(t *testing.T) {
	tests := []struct {
		v    int32
		want []byte
	}{
		{3, []byte{0x06}},
		{-3, []byte{0x7B}},
		{64, []byte{0x80, 0x80}},
		{-64, []byte{0x01}},
		{8192, []byte{0xC0, 0x00, 0x40, 0x00}},
		{-8192, []byte{0x80, 0x01}},
		{268435455, []byte{0xDF, 0xFF, 0xFF, 0xFE}},
		{-268435456, []byte{0xC0, 0x00, 0x00, 0x01}},
	}
	for _, tt := range tests {
		enc, err := EncodeCompressedSigned(tt.v)
		if err != nil || !bytes.Equal(enc, tt.want) {
			t.Errorf("EncodeCompressedSigned(%d) = %x, %v; want %x", tt.v, enc, err, tt.want)
			continue
		}
		got, n, err := DecodeCompressedSigned(enc)
		if err != nil || got != tt.v || n != len(enc) {
			t.Errorf("DecodeCompressedSigned(%x) = %d, %d, %v", enc, got, n, err)
		}
	}

	if _, err := EncodeCompressedSigned(1 << 28); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("EncodeCompressedSigned(out of range) err = %v", err)
	}
	if _, _, err := DecodeCompressedSigned([]byte{0xFF}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("DecodeCompressedSigned(0xFF) err = %v", err)
	}
}

func TestTypeDefOrRefEncoding(t *testing.T) {
	tok, n, err := DecodeTypeDefOrRef([]byte{0x49})
	if err != nil || n != 1 || tok != metadata.MakeToken(metadata.TableTypeRef, 0x12) {
		t.Errorf("DecodeTypeDefOrRef(0x49) = %v, %d, %v", tok, n, err)
	}

	enc, err := EncodeTypeDefOrRef(metadata.MakeToken(metadata.TableTypeSpec, 0x100))
	if err != nil {
		t.Fatalf("EncodeTypeDefOrRef failed: %v", err)
	}
	back, _, err := DecodeTypeDefOrRef(enc)
	if err != nil || back != metadata.MakeToken(metadata.TableTypeSpec, 0x100) {
		t.Errorf("round trip = %v, %v", back, err)
	}

	if _, _, err := DecodeTypeDefOrRef([]byte{0x03}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("tag 3: err = %v", err)
	}
	if _, _, err := DecodeTypeDefOrRef([]byte{0xFF}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("0xFF: err = %v", err)
	}
}
