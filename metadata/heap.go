package metadata

import (
	"bytes"
	"encoding/binary"
	"iter"

	"golang.org/x/text/encoding/unicode"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
)

// StringIndex is an offset into the #Strings heap.
type StringIndex uint32

// BlobIndex is an offset into the #Blob heap.
type BlobIndex uint32

// GUIDIndex is a 1-based index into the #GUID heap.
type GUIDIndex uint32

// StringHeap holds NUL-terminated UTF-8 identifiers.
type StringHeap struct {
	region stream.Region
	width  int
}

// IndexSize returns the width of an index into the heap.
func (h *StringHeap) IndexSize() int { return h.width }

// Len returns the heap size in bytes.
func (h *StringHeap) Len() int { return h.region.Len() }

// Get returns the string starting at idx.
func (h *StringHeap) Get(idx StringIndex) (string, error) {
	if idx == 0 && h.region.Len() == 0 {
		return "", nil
	}
	data := h.region.Data()
	if int(idx) >= len(data) {
		return "", clierrors.Bounds(clierrors.PhaseHeap, int64(h.region.Base()),
			"string index 0x%x beyond #Strings (%d bytes)", uint32(idx), len(data))
	}
	end := bytes.IndexByte(data[idx:], 0)
	if end < 0 {
		return "", clierrors.Format(clierrors.PhaseHeap, int64(h.region.Base())+int64(idx),
			"unterminated string at 0x%x", uint32(idx))
	}
	return string(data[idx : int(idx)+end]), nil
}

// All yields every string in the heap with its index, skipping the empty
// string at index 0.
func (h *StringHeap) All() iter.Seq2[StringIndex, string] {
	return func(yield func(StringIndex, string) bool) {
		data := h.region.Data()
		for i := 1; i < len(data); {
			end := bytes.IndexByte(data[i:], 0)
			if end < 0 {
				return
			}
			if end > 0 && !yield(StringIndex(i), string(data[i:i+end])) {
				return
			}
			i += end + 1
		}
	}
}

// BlobHeap holds length-prefixed binary values such as signatures.
type BlobHeap struct {
	region stream.Region
	width  int
}

// IndexSize returns the width of an index into the heap.
func (h *BlobHeap) IndexSize() int { return h.width }

// Len returns the heap size in bytes.
func (h *BlobHeap) Len() int { return h.region.Len() }

// Get returns the blob at idx without copying.
func (h *BlobHeap) Get(idx BlobIndex) ([]byte, error) {
	if idx == 0 && h.region.Len() == 0 {
		return nil, nil
	}
	return readPrefixed(h.region, uint32(idx), "blob")
}

func readPrefixed(g stream.Region, idx uint32, what string) ([]byte, error) {
	base := int64(g.Base())
	if int(idx) >= g.Len() {
		return nil, clierrors.Bounds(clierrors.PhaseHeap, base,
			"%s index 0x%x beyond heap (%d bytes)", what, idx, g.Len())
	}
	r := g.Reader()
	_ = r.SetOffset(int(idx))
	n, err := r.ReadLengthPrefix()
	if err != nil {
		return nil, clierrors.Bounds(clierrors.PhaseHeap, base+int64(idx), "%s length at 0x%x truncated", what, idx)
	}
	data, err := r.ReadBytesRef(int(n))
	if err != nil {
		return nil, clierrors.Bounds(clierrors.PhaseHeap, base+int64(idx),
			"%s at 0x%x of %d bytes exceeds heap", what, idx, n)
	}
	return data, nil
}

// GUIDHeap holds 16-byte GUIDs addressed by 1-based index.
type GUIDHeap struct {
	region stream.Region
	width  int
}

// IndexSize returns the width of an index into the heap.
func (h *GUIDHeap) IndexSize() int { return h.width }

// Count returns the number of GUIDs in the heap.
func (h *GUIDHeap) Count() int { return h.region.Len() / 16 }

// Get returns GUID idx. Index 0 is the nil GUID.
func (h *GUIDHeap) Get(idx GUIDIndex) ([16]byte, error) {
	var g [16]byte
	if idx == 0 {
		return g, nil
	}
	b, err := h.region.Bytes(int(idx-1)*16, 16)
	if err != nil {
		return g, clierrors.Bounds(clierrors.PhaseHeap, int64(h.region.Base()),
			"guid index %d beyond #GUID (%d entries)", uint32(idx), h.Count())
	}
	copy(g[:], b)
	return g, nil
}

// UserStringHeap holds the string literals referenced by ldstr.
type UserStringHeap struct {
	region stream.Region
}

// IndexSize returns 4: user strings are only referenced by tokens.
func (h *UserStringHeap) IndexSize() int { return 4 }

// Len returns the heap size in bytes.
func (h *UserStringHeap) Len() int { return h.region.Len() }

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Get decodes the UTF-16LE string at idx. The trailing flag byte of
// odd-length entries is dropped. Unpaired surrogates decode to U+FFFD; use
// CodeUnits when the exact literal matters.
func (h *UserStringHeap) Get(idx uint32) (string, error) {
	raw, err := readPrefixed(h.region, idx, "user string")
	if err != nil {
		return "", err
	}
	if len(raw)%2 == 1 {
		raw = raw[:len(raw)-1]
	}
	out, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", clierrors.Wrap(clierrors.PhaseHeap, clierrors.KindFormat,
			int64(h.region.Base())+int64(idx), err, "user string at 0x%x", idx)
	}
	return string(out), nil
}

// CodeUnits returns the UTF-16 code units of the entry at idx without
// decoding them, so unpaired surrogates survive.
func (h *UserStringHeap) CodeUnits(idx uint32) ([]uint16, error) {
	raw, err := readPrefixed(h.region, idx, "user string")
	if err != nil {
		return nil, err
	}
	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[2*i:])
	}
	return units, nil
}

// HasSpecialChars reports the flag byte of the entry at idx: whether the
// string holds characters outside plain ASCII.
func (h *UserStringHeap) HasSpecialChars(idx uint32) (bool, error) {
	raw, err := readPrefixed(h.region, idx, "user string")
	if err != nil {
		return false, err
	}
	if len(raw)%2 == 0 {
		return false, nil
	}
	return raw[len(raw)-1] != 0, nil
}

// All yields every non-empty user string with its heap index. Iteration
// stops at the first malformed entry or at trailing padding.
func (h *UserStringHeap) All() iter.Seq2[uint32, string] {
	return func(yield func(uint32, string) bool) {
		g := h.region
		r := g.Reader()
		_ = r.SetOffset(1)
		for r.Remaining() > 0 {
			idx := uint32(r.Offset())
			n, err := r.ReadLengthPrefix()
			if err != nil || n == 0 {
				return
			}
			if err := r.Skip(int(n)); err != nil {
				return
			}
			s, err := h.Get(idx)
			if err != nil {
				return
			}
			if !yield(idx, s) {
				return
			}
		}
	}
}
