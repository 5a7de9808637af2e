package pe

import (
	"encoding/binary"
	"testing"
)

func sectionBytes(name string, vsize, va, rawSize, rawPtr uint32) []byte {
	b := make([]byte, sectionHeaderSize)
	copy(b, name)
	binary.LittleEndian.PutUint32(b[8:], vsize)
	binary.LittleEndian.PutUint32(b[12:], va)
	binary.LittleEndian.PutUint32(b[16:], rawSize)
	binary.LittleEndian.PutUint32(b[20:], rawPtr)
	binary.LittleEndian.PutUint32(b[36:], 0x60000020)
	return b
}

func TestParseSectionHeaders(t *testing.T) {
	data := append(sectionBytes(".text", 0x1200, 0x2000, 0x1400, 0x400),
		sectionBytes(".rsrc1234", 0, 0x4000, 0x200, 0x1800)...)

	secs, err := parseSectionHeaders(data, 2)
	if err != nil {
		t.Fatalf("parseSectionHeaders: %v", err)
	}
	if got := secs[0].NameString(); got != ".text" {
		t.Errorf("name = %q, want .text", got)
	}
	if got := secs[1].NameString(); got != ".rsrc123" {
		t.Errorf("8-byte name = %q, want .rsrc123", got)
	}
	if secs[0].VirtualSize != 0x1200 || secs[0].VirtualAddress != 0x2000 ||
		secs[0].SizeOfRawData != 0x1400 || secs[0].PointerToRawData != 0x400 {
		t.Errorf("header fields = %+v", secs[0])
	}
	if secs[0].Characteristics != 0x60000020 {
		t.Errorf("characteristics = 0x%X", secs[0].Characteristics)
	}

	if _, err := parseSectionHeaders(data[:60], 2); err == nil {
		t.Error("truncated table: expected error")
	}
}

func TestSectionResolve(t *testing.T) {
	data := append(sectionBytes(".text", 0x1200, 0x2000, 0x1400, 0x400),
		sectionBytes(".data", 0, 0x4000, 0x200, 0x1800)...)
	secs, err := parseSectionHeaders(data, 2)
	if err != nil {
		t.Fatalf("parseSectionHeaders: %v", err)
	}
	f := &File{sections: secs}

	tests := []struct {
		rva     uint32
		section int
		offset  int
	}{
		{0x2000, 0, 0x400},
		{0x31FF, 0, 0x15FF},
		{0x3200, -1, 0},
		{0x4010, 1, 0x1810}, // virtual size 0 uses the raw size
		{0x4200, -1, 0},
		{0x1000, -1, 0},
	}
	for _, tt := range tests {
		if got := f.FindSection(tt.rva); got != tt.section {
			t.Errorf("FindSection(0x%X) = %d, want %d", tt.rva, got, tt.section)
			continue
		}
		off, err := f.Resolve(tt.rva)
		if tt.section < 0 {
			if err == nil {
				t.Errorf("Resolve(0x%X): expected error", tt.rva)
			}
			continue
		}
		if err != nil || off != tt.offset {
			t.Errorf("Resolve(0x%X) = 0x%X, %v; want 0x%X", tt.rva, off, err, tt.offset)
		}
	}
}
