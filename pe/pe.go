// Package pe reads the parts of a portable executable that locate CLI
// metadata: the PE headers, the section table and the CLI header.
package pe

import (
	"fmt"
	"io"
	"os"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
)

const (
	dosMagic       = 0x5A4D // "MZ"
	peSignature    = 0x00004550
	lfanewOffset   = 0x3C
	coffHeaderSize = 20

	// MagicPE32 and MagicPE32Plus are the optional header magic values.
	MagicPE32     = 0x10b
	MagicPE32Plus = 0x20b

	// DirectoryCLIHeader is the data directory index of the CLI header.
	DirectoryCLIHeader = 14

	cliHeaderSize = 72
)

// DataDirectory is one entry of the optional header's directory table.
type DataDirectory struct {
	RVA  uint32
	Size uint32
}

// CLIHeader is the runtime header that points at the metadata root.
type CLIHeader struct {
	Cb                  uint32
	MajorRuntimeVersion uint16
	MinorRuntimeVersion uint16
	MetaData            DataDirectory
	Flags               uint32
	EntryPointToken     uint32
	Resources           DataDirectory
	StrongNameSignature DataDirectory
}

// File is a parsed PE image held in memory.
// It is immutable after parsing and safe for concurrent reads.
type File struct {
	region stream.Region

	Machine         uint16
	Characteristics uint16
	Magic           uint16

	directories []DataDirectory
	sections    []SectionHeader
	cli         CLIHeader
}

// Open reads and parses the PE file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pe: failed to read file: %w", err)
	}
	return Parse(data)
}

// NewFile reads a PE image from an io.ReaderAt.
// This allows reading from arbitrary sources (embedded, network, etc.)
func NewFile(r io.ReaderAt, size int64) (*File, error) {
	if size < 0 {
		return nil, clierrors.InvalidInput(clierrors.PhasePE, "negative image size %d", size)
	}
	data := make([]byte, size)
	if n, err := r.ReadAt(data, 0); n < len(data) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("pe: failed to read image: %w", err)
	}
	return Parse(data)
}

// Parse parses a PE image that is already in memory. The slice is retained.
func Parse(data []byte) (*File, error) {
	f := &File{region: stream.NewRegion(data)}
	if err := f.parseHeaders(); err != nil {
		return nil, err
	}
	if err := f.parseCLIHeader(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parseHeaders() error {
	g := f.region

	mz, err := g.U16At(0)
	if err != nil || mz != dosMagic {
		return clierrors.Format(clierrors.PhasePE, 0, "missing MZ signature")
	}

	lfanew, err := g.U32At(lfanewOffset)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, lfanewOffset, "DOS header truncated")
	}

	sig, err := g.U32At(int(lfanew))
	if err != nil || sig != peSignature {
		return clierrors.Format(clierrors.PhasePE, int64(lfanew), "missing PE signature")
	}

	coff := int(lfanew) + 4
	r, err := g.Sub(coff, coffHeaderSize)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(coff), "COFF header truncated")
	}
	f.Machine, _ = r.U16At(0)
	numSections, _ := r.U16At(2)
	optSize, _ := r.U16At(16)
	f.Characteristics, _ = r.U16At(18)

	opt := coff + coffHeaderSize
	optHeader, err := g.Sub(opt, int(optSize))
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(opt), "optional header truncated")
	}

	f.Magic, err = optHeader.U16At(0)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(opt), "optional header is empty")
	}

	var countOff, dirOff int
	switch f.Magic {
	case MagicPE32:
		countOff, dirOff = 92, 96
	case MagicPE32Plus:
		countOff, dirOff = 108, 112
	default:
		return clierrors.Format(clierrors.PhasePE, int64(opt), "unknown optional header magic 0x%x", f.Magic)
	}

	count, err := optHeader.U32At(countOff)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(opt+countOff), "data directory count truncated")
	}
	if uint64(dirOff)+uint64(count)*8 > uint64(optSize) {
		return clierrors.Bounds(clierrors.PhasePE, int64(opt+countOff), "%d data directories exceed optional header size %d", count, optSize)
	}
	f.directories = make([]DataDirectory, 0, count)
	for i := 0; i < int(count); i++ {
		rva, err1 := optHeader.U32At(dirOff + i*8)
		size, err2 := optHeader.U32At(dirOff + i*8 + 4)
		if err1 != nil || err2 != nil {
			return clierrors.Bounds(clierrors.PhasePE, int64(opt+dirOff+i*8), "data directory %d truncated", i)
		}
		f.directories = append(f.directories, DataDirectory{RVA: rva, Size: size})
	}

	secOff := opt + int(optSize)
	secData, err := g.Bytes(secOff, int(numSections)*sectionHeaderSize)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(secOff), "section table truncated")
	}
	f.sections, err = parseSectionHeaders(secData, int(numSections))
	if err != nil {
		return clierrors.Wrap(clierrors.PhasePE, clierrors.KindOutOfBounds, int64(secOff), err, "section table")
	}

	return nil
}

func (f *File) parseCLIHeader() error {
	dir := f.DataDirectory(DirectoryCLIHeader)
	if dir.RVA == 0 {
		return clierrors.Format(clierrors.PhasePE, clierrors.NoOffset, "image has no CLI header")
	}

	off, err := f.Resolve(dir.RVA)
	if err != nil {
		return err
	}
	h, err := f.region.Sub(off, cliHeaderSize)
	if err != nil {
		return clierrors.Bounds(clierrors.PhasePE, int64(off), "CLI header truncated")
	}

	r := h.Reader()
	c := &f.cli
	c.Cb, _ = r.ReadU32()
	c.MajorRuntimeVersion, _ = r.ReadU16()
	c.MinorRuntimeVersion, _ = r.ReadU16()
	c.MetaData.RVA, _ = r.ReadU32()
	c.MetaData.Size, _ = r.ReadU32()
	c.Flags, _ = r.ReadU32()
	c.EntryPointToken, _ = r.ReadU32()
	c.Resources.RVA, _ = r.ReadU32()
	c.Resources.Size, _ = r.ReadU32()
	c.StrongNameSignature.RVA, _ = r.ReadU32()
	c.StrongNameSignature.Size, _ = r.ReadU32()

	if c.MetaData.RVA == 0 {
		return clierrors.Format(clierrors.PhasePE, int64(off+8), "CLI header has no metadata directory")
	}
	return nil
}

// Is64 reports whether the optional header is PE32+.
func (f *File) Is64() bool {
	return f.Magic == MagicPE32Plus
}

// DataDirectory returns directory i, or a zero entry if the image has fewer.
func (f *File) DataDirectory(i int) DataDirectory {
	if i < 0 || i >= len(f.directories) {
		return DataDirectory{}
	}
	return f.directories[i]
}

// CLIHeader returns the parsed CLI header.
func (f *File) CLIHeader() CLIHeader {
	return f.cli
}

// Region returns the whole image.
func (f *File) Region() stream.Region {
	return f.region
}

// RegionAt resolves rva and returns the length bytes starting there.
func (f *File) RegionAt(rva uint32, length int) (stream.Region, error) {
	off, err := f.Resolve(rva)
	if err != nil {
		return stream.Region{}, err
	}
	g, err := f.region.Sub(off, length)
	if err != nil {
		return stream.Region{}, clierrors.Bounds(clierrors.PhasePE, int64(off),
			"%d bytes at RVA 0x%08x exceed the image", length, rva)
	}
	return g, nil
}

// RegionFrom resolves rva and returns everything from there to the end of
// the image.
func (f *File) RegionFrom(rva uint32) (stream.Region, error) {
	off, err := f.Resolve(rva)
	if err != nil {
		return stream.Region{}, err
	}
	g, err := f.region.From(off)
	if err != nil {
		return stream.Region{}, clierrors.Bounds(clierrors.PhasePE, int64(off), "RVA 0x%08x beyond image", rva)
	}
	return g, nil
}
