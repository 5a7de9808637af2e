package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/testasm"
)

func TestParseSample(t *testing.T) {
	img := sampleImage(t)

	if got := img.Version(); got != "v4.0.30319" {
		t.Errorf("Version = %q, want v4.0.30319", got)
	}
	if major, minor := img.TableStreamVersion(); major != 2 || minor != 0 {
		t.Errorf("TableStreamVersion = %d.%d, want 2.0", major, minor)
	}
	if !img.Compressed() {
		t.Error("Compressed = false for a #~ stream")
	}

	var names []string
	for _, s := range img.Streams() {
		names = append(names, s.Name)
	}
	want := []string{"#~", "#Strings", "#US", "#GUID", "#Blob"}
	if len(names) != len(want) {
		t.Fatalf("Streams = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("stream %d = %q, want %q", i, names[i], want[i])
		}
	}

	// Two declared types plus the <Module> pseudo-type.
	if got := img.Table(TableTypeDef).Rows(); got != 3 {
		t.Errorf("TypeDef rows = %d, want 3", got)
	}
	if got := img.EntryPoint(); got != MakeToken(TableMethodDef, rowMain) {
		t.Errorf("EntryPoint = %v, want MethodDef 1", got)
	}
	if img.PE().Is64() {
		t.Error("sample image reported as PE32+")
	}
	if img.Table(0x40) != nil {
		t.Error("Table(0x40) should be nil")
	}
}

func TestParsePE32Plus(t *testing.T) {
	b := sampleBuilder()
	b.SetPE32Plus(true)
	img, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !img.PE().Is64() {
		t.Error("Is64 = false for PE32+ image")
	}
	name, err := img.TypeName(MakeToken(TableTypeDef, rowOuter))
	if err != nil || name != "Demo.Outer" {
		t.Errorf("TypeName = %q, %v", name, err)
	}
}

func TestParseErrors(t *testing.T) {
	good := sampleBuilder().Bytes()
	img, err := Parse(good)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	rootOff, err := img.ResolveRVA(img.PE().CLIHeader().MetaData.RVA)
	if err != nil {
		t.Fatalf("ResolveRVA failed: %v", err)
	}
	tablesOff := rootOff + int(img.Streams()[0].Offset)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{
			name: "bad magic",
			mutate: func(b []byte) []byte {
				b[rootOff] = 'X'
				return b
			},
			want: clierrors.ErrFormat,
		},
		{
			name: "unknown stream",
			mutate: func(b []byte) []byte {
				return bytes.Replace(b, []byte("#GUID\x00"), []byte("#GUIX\x00"), 1)
			},
			want: clierrors.ErrFormat,
		},
		{
			name: "table block exceeds stream",
			mutate: func(b []byte) []byte {
				// First row count is the Module table's.
				binary.LittleEndian.PutUint32(b[tablesOff+24:], 0x00FFFFFF)
				return b
			},
			want: clierrors.ErrBounds,
		},
		{
			name: "unknown table bit",
			mutate: func(b []byte) []byte {
				b[tablesOff+8+6] |= 0x80 // bit 0x37
				return b
			},
			want: clierrors.ErrFormat,
		},
		{
			name: "no PE signature",
			mutate: func(b []byte) []byte {
				b[0x80] = 'X'
				return b
			},
			want: clierrors.ErrFormat,
		},
		{
			name: "data directory count exceeds optional header",
			mutate: func(b []byte) []byte {
				// PE header at 0x80, optional header 24 bytes later.
				binary.LittleEndian.PutUint32(b[0x98+92:], 0x7FFFFFFF)
				return b
			},
			want: clierrors.ErrBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			img, err := Parse(data)
			if err == nil {
				t.Fatal("Parse succeeded, want error")
			}
			if img != nil {
				t.Error("Parse returned a partial image")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCodedIndexWidthThreshold(t *testing.T) {
	tests := []struct {
		name     string
		table    int
		pad      int
		kind     CodedKind
		wantSize int
	}{
		// TypeDefOrRef has 2 tag bits: 14 bits of row.
		{"TypeDefOrRef below", testasm.TypeRef, 1<<14 - 1, TypeDefOrRef, 2},
		{"TypeDefOrRef at", testasm.TypeRef, 1 << 14, TypeDefOrRef, 4},
		// HasCustomAttribute has 5 tag bits: 11 bits of row.
		{"HasCustomAttribute below", testasm.TypeRef, 1<<11 - 1, HasCustomAttribute, 2},
		{"HasCustomAttribute at", testasm.TypeRef, 1 << 11, HasCustomAttribute, 4},
		{"HasCustomAttribute other kind", testasm.TypeRef, 1 << 11, TypeDefOrRef, 2},
		{"MethodDefOrRef at", testasm.MemberRef, 1 << 15, MethodDefOrRef, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testasm.New()
			b.Module("m")
			b.Pad(tt.table, tt.pad)
			b.TypeDef(0, "", "<Module>", 0)
			b.TypeDef(0, "N", "T", testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, 5))

			img, err := Parse(b.Bytes())
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := img.CodedIndexSize(tt.kind); got != tt.wantSize {
				t.Errorf("CodedIndexSize(%v) = %d, want %d", tt.kind, got, tt.wantSize)
			}

			// Rows after the padded table still decode.
			c := img.TypeDefs()
			if err := c.Goto(2); err != nil {
				t.Fatalf("Goto failed: %v", err)
			}
			ext, err := c.Extends()
			if err != nil {
				t.Fatalf("Extends failed: %v", err)
			}
			if ext != MakeToken(TableTypeRef, 5) {
				t.Errorf("Extends = %v, want TypeRef 5", ext)
			}
			name, _ := img.Strings().Get(c.TypeName())
			if name != "T" {
				t.Errorf("TypeName = %q, want T", name)
			}
		})
	}
}

func TestSimpleIndexWidth(t *testing.T) {
	for _, rows := range []int{0xFFFF, 0x10000} {
		b := testasm.New()
		b.Module("m")
		b.Pad(testasm.Field, rows)
		b.TypeDef(0, "", "<Module>", 0)

		img, err := Parse(b.Bytes())
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := 2
		if rows > 0xFFFF {
			want = 4
		}
		if got := img.TableIndexSize(TableField); got != want {
			t.Errorf("rows=%d: TableIndexSize = %d, want %d", rows, got, want)
		}
		if got := img.Table(TableTypeDef).RowSize(); got != 4+2+2+2+want+2 {
			t.Errorf("rows=%d: TypeDef RowSize = %d", rows, got)
		}
	}
}

func TestLargeHeaps(t *testing.T) {
	b := sampleBuilder()
	b.ForceLargeHeaps(true, true, true)
	img, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if img.HeapSizes()&0x07 != 0x07 {
		t.Errorf("HeapSizes = 0x%x, want 0x07", img.HeapSizes())
	}
	if img.Strings().IndexSize() != 4 || img.Blob().IndexSize() != 4 || img.GUID().IndexSize() != 4 {
		t.Error("heap index sizes not widened")
	}
	name, err := img.TypeName(MakeToken(TableTypeDef, rowInner))
	if err != nil || name != "Demo.Outer+Inner" {
		t.Errorf("TypeName = %q, %v", name, err)
	}
}
