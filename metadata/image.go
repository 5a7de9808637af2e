// Package metadata reads the CLI metadata of a managed PE image: the
// metadata root, its heaps, and the tables of the #~ (or #-) stream.
//
// An Image is immutable once constructed and safe for concurrent use.
// Cursors are cheap values owned by a single goroutine.
package metadata

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
	"github.com/brickbot/clifile/pe"
)

const (
	metadataMagic = 0x424A5342 // "BSJB"

	heapLargeStrings = 0x01
	heapLargeGUID    = 0x02
	heapLargeBlob    = 0x04
	heapExtraData    = 0x40
)

// StreamHeader describes one stream of the metadata root. Offset is
// relative to the root.
type StreamHeader struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Image is a parsed metadata image.
type Image struct {
	pe   *pe.File
	path string

	root    stream.Region
	version string
	streams []StreamHeader

	tablesStream     stream.Region
	compressed       bool
	tsMajor, tsMinor uint8
	heapSizes        uint8
	valid, sorted    uint64

	w      widths
	tables [NumTables]*Table

	strings     *StringHeap
	blob        *BlobHeap
	guid        *GUIDHeap
	userStrings *UserStringHeap
}

// Open opens and parses the managed image at path.
func Open(path string) (*Image, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open %s: %w", path, err)
	}
	img, err := newImage(f)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open %s: %w", path, err)
	}
	img.path = path
	return img, nil
}

// OpenReader parses a managed image from an io.ReaderAt.
func OpenReader(r io.ReaderAt, size int64) (*Image, error) {
	f, err := pe.NewFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open image: %w", err)
	}
	return newImage(f)
}

// Parse parses a managed image already in memory. The slice is retained.
func Parse(data []byte) (*Image, error) {
	f, err := pe.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open image: %w", err)
	}
	return newImage(f)
}

func newImage(f *pe.File) (*Image, error) {
	cli := f.CLIHeader()
	root, err := f.RegionAt(cli.MetaData.RVA, int(cli.MetaData.Size))
	if err != nil {
		return nil, err
	}

	img := &Image{pe: f, root: root}
	if err := img.readRoot(); err != nil {
		return nil, err
	}
	if err := img.readTables(); err != nil {
		return nil, err
	}

	Logger().Debug("metadata image loaded",
		zap.String("version", img.version),
		zap.Int("streams", len(img.streams)),
		zap.Uint8("heap_sizes", img.heapSizes),
		zap.Uint64("valid", img.valid),
	)
	return img, nil
}

func (img *Image) readRoot() error {
	g := img.root
	base := int64(g.Base())

	magic, err := g.U32At(0)
	if err != nil || magic != metadataMagic {
		return clierrors.Format(clierrors.PhaseMetadata, base, "missing BSJB signature")
	}

	verLen, err := g.U32At(12)
	if err != nil {
		return clierrors.Bounds(clierrors.PhaseMetadata, base+12, "metadata root truncated")
	}
	verLen = (verLen + 3) &^ 3
	r := g.Reader()
	if err := r.SetOffset(16); err != nil {
		return err
	}
	img.version, err = r.ReadFixedString(int(verLen))
	if err != nil {
		return clierrors.Bounds(clierrors.PhaseMetadata, base+16, "version string of %d bytes exceeds the root", verLen)
	}

	if err := r.Skip(2); err != nil { // flags
		return clierrors.Bounds(clierrors.PhaseMetadata, base+int64(r.Offset()), "metadata root truncated")
	}
	count, err := r.ReadU16()
	if err != nil {
		return clierrors.Bounds(clierrors.PhaseMetadata, base+int64(r.Offset()), "metadata root truncated")
	}

	for i := 0; i < int(count); i++ {
		at := base + int64(r.Offset())
		off, err1 := r.ReadU32()
		size, err2 := r.ReadU32()
		name, err3 := r.ReadCString()
		if err1 != nil || err2 != nil || err3 != nil {
			return clierrors.Bounds(clierrors.PhaseMetadata, at, "stream header %d truncated", i)
		}
		r.Align(4)

		h := StreamHeader{Name: name, Offset: off, Size: size}
		data, err := g.Sub(int(off), int(size))
		if err != nil {
			return clierrors.Bounds(clierrors.PhaseMetadata, at, "stream %q (0x%x+0x%x) exceeds the metadata root", name, off, size)
		}
		if err := img.bindStream(h, data, at); err != nil {
			return err
		}
		img.streams = append(img.streams, h)
		Logger().Debug("metadata stream",
			zap.String("name", name),
			zap.Uint32("offset", off),
			zap.Uint32("size", size),
		)
	}

	if img.tablesStream.Len() == 0 {
		return clierrors.Format(clierrors.PhaseMetadata, base, "image has no table stream")
	}
	return nil
}

func (img *Image) bindStream(h StreamHeader, data stream.Region, at int64) error {
	switch h.Name {
	case "#~":
		img.tablesStream = data
		img.compressed = true
	case "#-":
		img.tablesStream = data
	case "#Strings":
		img.strings = &StringHeap{region: data}
	case "#US":
		img.userStrings = &UserStringHeap{region: data}
	case "#GUID":
		img.guid = &GUIDHeap{region: data}
	case "#Blob":
		img.blob = &BlobHeap{region: data}
	default:
		return clierrors.Format(clierrors.PhaseMetadata, at, "unknown stream %q", h.Name)
	}
	return nil
}

func (img *Image) readTables() error {
	g := img.tablesStream
	base := int64(g.Base())
	r := g.Reader()

	if err := r.Skip(4); err != nil {
		return clierrors.Bounds(clierrors.PhaseTable, base, "table stream header truncated")
	}
	img.tsMajor, _ = r.ReadU8()
	img.tsMinor, _ = r.ReadU8()
	img.heapSizes, _ = r.ReadU8()
	_, _ = r.ReadU8()
	valid, err1 := r.ReadU64()
	sorted, err2 := r.ReadU64()
	if err1 != nil || err2 != nil {
		return clierrors.Bounds(clierrors.PhaseTable, base, "table stream header truncated")
	}
	img.valid, img.sorted = valid, sorted

	// Pass 1: row counts, then every index width.
	var rows [NumTables]uint32
	for bit := 0; bit < 64; bit++ {
		if valid&(1<<uint(bit)) == 0 {
			continue
		}
		if bit >= NumTables {
			return clierrors.Format(clierrors.PhaseTable, base+8, "unknown table 0x%02x in valid mask", bit)
		}
		n, err := r.ReadU32()
		if err != nil {
			return clierrors.Bounds(clierrors.PhaseTable, base+int64(r.Offset()), "row count for %s truncated", TableID(bit))
		}
		rows[bit] = n
	}
	if img.heapSizes&heapExtraData != 0 {
		if err := r.Skip(4); err != nil {
			return clierrors.Bounds(clierrors.PhaseTable, base+int64(r.Offset()), "extra data truncated")
		}
	}

	img.w = computeWidths(img.heapSizes, &rows)

	// Pass 2: row sizes and base offsets.
	offset := r.Offset()
	for id := TableID(0); id < NumTables; id++ {
		t := &Table{id: id, img: img, rows: rows[id], sorted: sorted&(1<<uint(id)) != 0}
		t.offsets, t.sizes, t.rowSize = img.w.layout(id)
		size := int(rows[id]) * t.rowSize
		data, err := g.Sub(offset, size)
		if err != nil {
			return clierrors.Bounds(clierrors.PhaseTable, base+int64(offset),
				"%s: %d rows of %d bytes exceed the table stream", id, rows[id], t.rowSize)
		}
		t.data = data
		offset += size
		img.tables[id] = t

		if rows[id] > 0 {
			Logger().Debug("metadata table",
				zap.Stringer("table", id),
				zap.Uint32("rows", rows[id]),
				zap.Int("row_size", t.rowSize),
			)
		}
	}

	if img.strings == nil {
		img.strings = &StringHeap{}
	}
	if img.blob == nil {
		img.blob = &BlobHeap{}
	}
	if img.guid == nil {
		img.guid = &GUIDHeap{}
	}
	if img.userStrings == nil {
		img.userStrings = &UserStringHeap{}
	}
	img.strings.width = img.w.strings
	img.guid.width = img.w.guid
	img.blob.width = img.w.blob
	return nil
}

func computeWidths(heapSizes uint8, rows *[NumTables]uint32) widths {
	var w widths
	w.strings, w.guid, w.blob = 2, 2, 2
	if heapSizes&heapLargeStrings != 0 {
		w.strings = 4
	}
	if heapSizes&heapLargeGUID != 0 {
		w.guid = 4
	}
	if heapSizes&heapLargeBlob != 0 {
		w.blob = 4
	}
	for id := range rows {
		w.tables[id] = 2
		if rows[id] > 0xFFFF {
			w.tables[id] = 4
		}
	}
	for k := CodedKind(0); k < numCodedKinds; k++ {
		w.coded[k] = codedWidth(k, rows)
	}
	return w
}

// Table returns the table with the given id. Absent tables have zero rows.
// It returns nil for an id outside the schema.
func (img *Image) Table(id TableID) *Table {
	if !id.Valid() {
		return nil
	}
	return img.tables[id]
}

// TableIndexSize returns the width in bytes of a simple index into id.
func (img *Image) TableIndexSize(id TableID) int {
	if !id.Valid() {
		return 0
	}
	return img.w.tables[id]
}

// CodedIndexSize returns the width in bytes of a coded index of kind k.
func (img *Image) CodedIndexSize(k CodedKind) int {
	if k >= numCodedKinds {
		return 0
	}
	return img.w.coded[k]
}

// HeapSizes returns the heap-size flags byte of the table stream.
func (img *Image) HeapSizes() uint8 { return img.heapSizes }

func (img *Image) Strings() *StringHeap         { return img.strings }
func (img *Image) Blob() *BlobHeap              { return img.blob }
func (img *Image) GUID() *GUIDHeap              { return img.guid }
func (img *Image) UserStrings() *UserStringHeap { return img.userStrings }

// Version returns the runtime version string from the metadata root.
func (img *Image) Version() string { return img.version }

// TableStreamVersion returns the major and minor version of the table stream.
func (img *Image) TableStreamVersion() (major, minor uint8) {
	return img.tsMajor, img.tsMinor
}

// Compressed reports whether the tables came from an optimized #~ stream.
func (img *Image) Compressed() bool { return img.compressed }

// Streams returns the stream headers in file order.
func (img *Image) Streams() []StreamHeader {
	return append([]StreamHeader(nil), img.streams...)
}

// EntryPoint returns the CLI header's entry-point token. It is nil for
// libraries.
func (img *Image) EntryPoint() Token {
	return Token(img.pe.CLIHeader().EntryPointToken)
}

// PE returns the underlying PE file.
func (img *Image) PE() *pe.File { return img.pe }

// Path returns the path the image was opened from, or "" for in-memory
// images.
func (img *Image) Path() string { return img.path }

// ResolveRVA maps an RVA to a file offset.
func (img *Image) ResolveRVA(rva uint32) (int, error) {
	return img.pe.Resolve(rva)
}

// RegionAt returns length bytes starting at rva.
func (img *Image) RegionAt(rva uint32, length int) (stream.Region, error) {
	return img.pe.RegionAt(rva, length)
}

// RegionFrom returns everything from rva to the end of the image.
func (img *Image) RegionFrom(rva uint32) (stream.Region, error) {
	return img.pe.RegionFrom(rva)
}
