package pe

import (
	"bytes"
	"fmt"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
)

// SectionHeader is one entry of the section table.
type SectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

// NameString returns the name up to its first NUL.
func (s *SectionHeader) NameString() string {
	if i := bytes.IndexByte(s.Name[:], 0); i >= 0 {
		return string(s.Name[:i])
	}
	return string(s.Name[:])
}

// Contains reports whether rva falls inside the section's virtual range.
// Sections whose virtual size is zero fall back to the raw size.
func (s *SectionHeader) Contains(rva uint32) bool {
	size := s.VirtualSize
	if size == 0 {
		size = s.SizeOfRawData
	}
	return rva >= s.VirtualAddress && rva-s.VirtualAddress < size
}

const sectionHeaderSize = 40

func parseSectionHeaders(data []byte, count int) ([]SectionHeader, error) {
	r := stream.NewReader(data)
	if r.Remaining() < count*sectionHeaderSize {
		return nil, fmt.Errorf("%d sections need %d bytes, have %d",
			count, count*sectionHeaderSize, r.Remaining())
	}

	sections := make([]SectionHeader, count)
	for i := range sections {
		sec := &sections[i]
		name, _ := r.ReadBytesRef(len(sec.Name))
		copy(sec.Name[:], name)
		for _, dst := range []*uint32{
			&sec.VirtualSize, &sec.VirtualAddress, &sec.SizeOfRawData,
			&sec.PointerToRawData, &sec.PointerToRelocations, &sec.PointerToLinenumbers,
		} {
			*dst, _ = r.ReadU32()
		}
		sec.NumberOfRelocations, _ = r.ReadU16()
		sec.NumberOfLinenumbers, _ = r.ReadU16()
		sec.Characteristics, _ = r.ReadU32()
	}
	return sections, nil
}

// Sections returns all section headers in file order.
func (f *File) Sections() []SectionHeader {
	return f.sections
}

// FindSection returns the index of the first section containing rva, or -1.
func (f *File) FindSection(rva uint32) int {
	for i := range f.sections {
		if f.sections[i].Contains(rva) {
			return i
		}
	}
	return -1
}

// Resolve translates an RVA into a file offset using the first section that
// contains it.
func (f *File) Resolve(rva uint32) (int, error) {
	i := f.FindSection(rva)
	if i < 0 {
		return 0, clierrors.Format(clierrors.PhasePE, clierrors.NoOffset,
			"RVA 0x%08x is not inside any section", rva)
	}
	sec := &f.sections[i]
	return int(sec.PointerToRawData) + int(rva-sec.VirtualAddress), nil
}
