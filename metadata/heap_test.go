package metadata

import (
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
)

func TestUserStrings(t *testing.T) {
	img := sampleImage(t)

	type entry struct {
		idx uint32
		s   string
	}
	var got []entry
	for idx, s := range img.UserStrings().All() {
		got = append(got, entry{idx, s})
	}
	if len(got) != 2 {
		t.Fatalf("All yielded %d strings, want 2: %v", len(got), got)
	}
	if got[0].s != "hello" || got[0].idx != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].s != "héllo wörld" {
		t.Errorf("second = %q", got[1].s)
	}

	special, err := img.UserStrings().HasSpecialChars(got[0].idx)
	if err != nil || special {
		t.Errorf("HasSpecialChars(hello) = %v, %v", special, err)
	}
	special, err = img.UserStrings().HasSpecialChars(got[1].idx)
	if err != nil || !special {
		t.Errorf("HasSpecialChars(héllo) = %v, %v", special, err)
	}

	if _, err := img.UserStrings().Get(1 << 20); !errors.Is(err, clierrors.ErrBounds) {
		t.Errorf("Get(out of range) err = %v", err)
	}
}

func TestUserStringLoneSurrogate(t *testing.T) {
	// Entry at 1: length 5, a lone high surrogate, 'A', flag byte.
	h := &UserStringHeap{region: stream.NewRegion([]byte{0x00, 0x05, 0x3D, 0xD8, 0x41, 0x00, 0x01})}

	s, err := h.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s != "\uFFFDA" {
		t.Errorf("Get = %q, want %q", s, "\uFFFDA")
	}

	units, err := h.CodeUnits(1)
	if err != nil {
		t.Fatalf("CodeUnits failed: %v", err)
	}
	if len(units) != 2 || units[0] != 0xD83D || units[1] != 'A' {
		t.Errorf("CodeUnits = %#v, want [0xd83d 0x41]", units)
	}

	if _, err := h.CodeUnits(64); !errors.Is(err, clierrors.ErrBounds) {
		t.Errorf("CodeUnits(out of range) err = %v", err)
	}
}

func TestStringAndBlobHeaps(t *testing.T) {
	img := sampleImage(t)

	s, err := img.Strings().Get(0)
	if err != nil || s != "" {
		t.Errorf("Strings().Get(0) = %q, %v", s, err)
	}
	if _, err := img.Strings().Get(StringIndex(img.Strings().Len() + 10)); !errors.Is(err, clierrors.ErrBounds) {
		t.Errorf("Strings().Get(out of range) err = %v", err)
	}

	c := img.Fields()
	c.Next()
	sig, err := img.Blob().Get(c.Signature())
	if err != nil || len(sig) != 2 || sig[0] != 0x06 || sig[1] != 0x08 {
		t.Errorf("field signature = %x, %v", sig, err)
	}
	empty, err := img.Blob().Get(0)
	if err != nil || len(empty) != 0 {
		t.Errorf("Blob().Get(0) = %x, %v", empty, err)
	}
}

func TestGUIDHeap(t *testing.T) {
	img := sampleImage(t)
	m := img.Table(TableModule).Cursor().(*ModuleCursor)
	m.Next()

	g, err := img.GUID().Get(m.Mvid())
	if err != nil {
		t.Fatalf("Get(mvid) failed: %v", err)
	}
	if g[0] != 0x11 || g[15] != 0x01 {
		t.Errorf("mvid = %x", g)
	}

	zero, err := img.GUID().Get(0)
	if err != nil || zero != ([16]byte{}) {
		t.Errorf("Get(0) = %x, %v", zero, err)
	}
	if _, err := img.GUID().Get(99); !errors.Is(err, clierrors.ErrBounds) {
		t.Errorf("Get(99) err = %v", err)
	}
}
