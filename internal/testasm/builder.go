// Package testasm assembles minimal, well-formed CLI images in memory for
// tests. It writes a single-section PE32 (or PE32+) file holding a CLI
// header, method bodies and a metadata root with the five standard streams.
package testasm

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"
)

const (
	sectionRVA    = 0x2000
	fileAlignment = 0x200
	headerSize    = 0x200
	cliHeaderSize = 72

	// BodiesRVA is where the first method body is placed.
	BodiesRVA = sectionRVA + 80
)

// Builder accumulates heaps, table rows and method bodies.
type Builder struct {
	strings     bytes.Buffer
	stringIndex map[string]uint32
	blobs       bytes.Buffer
	blobIndex   map[string]uint32
	userStrings bytes.Buffer
	guids       bytes.Buffer

	rows   [numTables][][]uint32
	extra  [numTables]int // zero rows appended after explicit rows
	sorted uint64

	bodies     bytes.Buffer
	entryPoint uint32
	pe32Plus   bool
	version    string

	largeStrings, largeGUID, largeBlob bool
}

// New returns an empty builder.
func New() *Builder {
	b := &Builder{
		stringIndex: make(map[string]uint32),
		blobIndex:   make(map[string]uint32),
		version:     "v4.0.30319",
		sorted:      0x000016003301FA00,
	}
	b.strings.WriteByte(0)
	b.blobs.WriteByte(0)
	b.userStrings.WriteByte(0)
	return b
}

// SetPE32Plus selects a PE32+ optional header.
func (b *Builder) SetPE32Plus(v bool) { b.pe32Plus = v }

// SetEntryPoint sets the CLI header entry-point token.
func (b *Builder) SetEntryPoint(token uint32) { b.entryPoint = token }

// SetVersion sets the metadata root version string.
func (b *Builder) SetVersion(v string) { b.version = v }

// ForceLargeHeaps forces 4-byte indexes for the given heaps.
func (b *Builder) ForceLargeHeaps(strings, guid, blob bool) {
	b.largeStrings, b.largeGUID, b.largeBlob = strings, guid, blob
}

// String interns s in the strings heap and returns its index.
func (b *Builder) String(s string) uint32 {
	if s == "" {
		return 0
	}
	if idx, ok := b.stringIndex[s]; ok {
		return idx
	}
	idx := uint32(b.strings.Len())
	b.strings.WriteString(s)
	b.strings.WriteByte(0)
	b.stringIndex[s] = idx
	return idx
}

// Blob appends data to the blob heap and returns its index.
func (b *Builder) Blob(data []byte) uint32 {
	if idx, ok := b.blobIndex[string(data)]; ok {
		return idx
	}
	idx := uint32(b.blobs.Len())
	b.blobs.Write(EncodeLength(uint32(len(data))))
	b.blobs.Write(data)
	b.blobIndex[string(data)] = idx
	return idx
}

// UserString appends s to the user-string heap, UTF-16LE encoded with the
// trailing flag byte, and returns its index.
func (b *Builder) UserString(s string) uint32 {
	enc, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	var flag byte
	for i := 0; i+1 < len(enc); i += 2 {
		if enc[i+1] != 0 || enc[i] >= 0x7F {
			flag = 1
			break
		}
	}
	idx := uint32(b.userStrings.Len())
	b.userStrings.Write(EncodeLength(uint32(len(enc) + 1)))
	b.userStrings.Write(enc)
	b.userStrings.WriteByte(flag)
	return idx
}

// GUID appends g to the guid heap and returns its 1-based index.
func (b *Builder) GUID(g [16]byte) uint32 {
	b.guids.Write(g[:])
	return uint32(b.guids.Len() / 16)
}

// AddRow appends a row with raw column values and returns its 1-based row.
func (b *Builder) AddRow(table int, values ...uint32) uint32 {
	if len(values) != len(schemas[table]) {
		panic("testasm: column count mismatch")
	}
	b.rows[table] = append(b.rows[table], values)
	return uint32(len(b.rows[table]))
}

// Pad appends n all-zero rows to table after its explicit rows. It is used
// to push row counts past index-width thresholds.
func (b *Builder) Pad(table, n int) {
	b.extra[table] += n
}

// SetSorted overrides the sorted-table mask.
func (b *Builder) SetSorted(mask uint64) { b.sorted = mask }

// Rows returns the current row count of table.
func (b *Builder) Rows(table int) int {
	return len(b.rows[table]) + b.extra[table]
}

// Body appends an encoded method body, 4-byte aligned, and returns its RVA.
func (b *Builder) Body(body []byte) uint32 {
	for b.bodies.Len()%4 != 0 {
		b.bodies.WriteByte(0)
	}
	rva := uint32(BodiesRVA + b.bodies.Len())
	b.bodies.Write(body)
	return rva
}

// Module adds the module row.
func (b *Builder) Module(name string) uint32 {
	mvid := b.GUID([16]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x01})
	return b.AddRow(Module, 0, b.String(name), mvid, 0, 0)
}

// Assembly adds the assembly row.
func (b *Builder) Assembly(name string, major, minor, build, rev uint16) uint32 {
	return b.AddRow(Assembly, 0x8004, uint32(major), uint32(minor), uint32(build), uint32(rev), 0, 0, b.String(name), 0)
}

// AssemblyRef adds an assembly reference.
func (b *Builder) AssemblyRef(name string, major, minor, build, rev uint16) uint32 {
	return b.AddRow(AssemblyRef, uint32(major), uint32(minor), uint32(build), uint32(rev), 0, 0, b.String(name), 0, 0)
}

// TypeRef adds a type reference; scope is a ResolutionScope coded index.
func (b *Builder) TypeRef(scope uint32, namespace, name string) uint32 {
	return b.AddRow(TypeRef, scope, b.String(name), b.String(namespace))
}

// TypeDef adds a type definition that owns every field and method added
// after it until the next TypeDef.
func (b *Builder) TypeDef(flags uint32, namespace, name string, extends uint32) uint32 {
	fieldList := uint32(b.Rows(Field) + 1)
	methodList := uint32(b.Rows(MethodDef) + 1)
	return b.AddRow(TypeDef, flags, b.String(name), b.String(namespace), extends, fieldList, methodList)
}

// Field adds a field with the given signature blob.
func (b *Builder) Field(flags uint16, name string, sig []byte) uint32 {
	return b.AddRow(Field, uint32(flags), b.String(name), b.Blob(sig))
}

// Method adds a method. A nil body leaves the RVA zero.
func (b *Builder) Method(flags uint16, name string, sig, body []byte) uint32 {
	var rva uint32
	if body != nil {
		rva = b.Body(body)
	}
	paramList := uint32(b.Rows(Param) + 1)
	return b.AddRow(MethodDef, rva, 0, uint32(flags), b.String(name), b.Blob(sig), paramList)
}

// Param adds a parameter row to the most recently added method.
func (b *Builder) Param(flags, sequence uint16, name string) uint32 {
	return b.AddRow(Param, uint32(flags), uint32(sequence), b.String(name))
}

// MemberRef adds a member reference; parent is a MemberRefParent coded index.
func (b *Builder) MemberRef(parent uint32, name string, sig []byte) uint32 {
	return b.AddRow(MemberRef, parent, b.String(name), b.Blob(sig))
}

// StandAloneSig adds a standalone signature row.
func (b *Builder) StandAloneSig(sig []byte) uint32 {
	return b.AddRow(StandAloneSig, b.Blob(sig))
}

// TypeSpec adds a type specification row.
func (b *Builder) TypeSpec(sig []byte) uint32 {
	return b.AddRow(TypeSpec, b.Blob(sig))
}

// EncodeLength encodes n as a heap length prefix / compressed integer.
func EncodeLength(n uint32) []byte {
	switch {
	case n <= 0x7F:
		return []byte{byte(n)}
	case n <= 0x3FFF:
		return []byte{byte(n>>8) | 0x80, byte(n)}
	default:
		return []byte{byte(n>>24) | 0xC0, byte(n >> 16), byte(n >> 8), byte(n)}
	}
}

func align4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}

func (b *Builder) heapWidths() (strW, guidW, blobW int) {
	strW, guidW, blobW = 2, 2, 2
	if b.largeStrings || b.strings.Len() >= 0x10000 {
		strW = 4
	}
	if b.largeGUID || b.guids.Len()/16 >= 0x10000 {
		guidW = 4
	}
	if b.largeBlob || b.blobs.Len() >= 0x10000 {
		blobW = 4
	}
	return
}

func (b *Builder) colWidth(c col, strW, guidW, blobW int) int {
	switch c.kind {
	case colFixed:
		return c.arg
	case colString:
		return strW
	case colGUID:
		return guidW
	case colBlob:
		return blobW
	case colTable:
		if b.Rows(c.arg) > 0xFFFF {
			return 4
		}
		return 2
	case colCoded:
		k := codedKinds[c.arg]
		limit := 1 << (16 - k.bits)
		for _, t := range k.tables {
			if t != none && b.Rows(t) >= limit {
				return 4
			}
		}
		return 2
	}
	panic("testasm: unknown column kind")
}

func (b *Builder) tableStream() []byte {
	var out bytes.Buffer
	strW, guidW, blobW := b.heapWidths()

	var heapFlags byte
	if strW == 4 {
		heapFlags |= 0x01
	}
	if guidW == 4 {
		heapFlags |= 0x02
	}
	if blobW == 4 {
		heapFlags |= 0x04
	}

	var valid uint64
	for t := 0; t < numTables; t++ {
		if b.Rows(t) > 0 {
			valid |= 1 << uint(t)
		}
	}

	le := binary.LittleEndian
	out.Write([]byte{0, 0, 0, 0}) // reserved
	out.WriteByte(2)              // major
	out.WriteByte(0)              // minor
	out.WriteByte(heapFlags)
	out.WriteByte(1) // reserved
	binary.Write(&out, le, valid)
	binary.Write(&out, le, b.sorted&valid)
	for t := 0; t < numTables; t++ {
		if n := b.Rows(t); n > 0 {
			binary.Write(&out, le, uint32(n))
		}
	}

	for t := 0; t < numTables; t++ {
		rows := b.rows[t]
		for i := 0; i < b.Rows(t); i++ {
			var vals []uint32
			if i < len(rows) {
				vals = rows[i]
			}
			for c, spec := range schemas[t] {
				var v uint32
				if vals != nil {
					v = vals[c]
				}
				switch b.colWidth(spec, strW, guidW, blobW) {
				case 1:
					out.WriteByte(byte(v))
				case 2:
					binary.Write(&out, le, uint16(v))
				case 4:
					binary.Write(&out, le, v)
				}
			}
		}
	}
	align4(&out)
	return out.Bytes()
}

type streamData struct {
	name string
	data []byte
}

func (b *Builder) metadataRoot() []byte {
	strs := append([]byte(nil), b.strings.Bytes()...)
	for len(strs)%4 != 0 {
		strs = append(strs, 0)
	}
	us := append([]byte(nil), b.userStrings.Bytes()...)
	for len(us)%4 != 0 {
		us = append(us, 0)
	}
	blobs := append([]byte(nil), b.blobs.Bytes()...)
	for len(blobs)%4 != 0 {
		blobs = append(blobs, 0)
	}

	streams := []streamData{
		{"#~", b.tableStream()},
		{"#Strings", strs},
		{"#US", us},
		{"#GUID", b.guids.Bytes()},
		{"#Blob", blobs},
	}

	version := []byte(b.version)
	version = append(version, 0)
	for len(version)%4 != 0 {
		version = append(version, 0)
	}

	headerLen := 16 + len(version) + 4
	for _, s := range streams {
		n := len(s.name) + 1
		n = (n + 3) &^ 3
		headerLen += 8 + n
	}

	le := binary.LittleEndian
	var out bytes.Buffer
	binary.Write(&out, le, uint32(0x424A5342))
	binary.Write(&out, le, uint16(1))
	binary.Write(&out, le, uint16(1))
	binary.Write(&out, le, uint32(0))
	binary.Write(&out, le, uint32(len(version)))
	out.Write(version)
	binary.Write(&out, le, uint16(0)) // flags
	binary.Write(&out, le, uint16(len(streams)))

	offset := headerLen
	for _, s := range streams {
		binary.Write(&out, le, uint32(offset))
		binary.Write(&out, le, uint32(len(s.data)))
		name := append([]byte(s.name), 0)
		for len(name)%4 != 0 {
			name = append(name, 0)
		}
		out.Write(name)
		offset += len(s.data)
	}
	for _, s := range streams {
		out.Write(s.data)
	}
	return out.Bytes()
}

// Bytes lays out the complete PE image.
func (b *Builder) Bytes() []byte {
	le := binary.LittleEndian

	// Section contents: CLI header, bodies, metadata.
	var sec bytes.Buffer
	sec.Write(make([]byte, BodiesRVA-sectionRVA))
	sec.Write(b.bodies.Bytes())
	align4(&sec)
	metaRVA := uint32(sectionRVA + sec.Len())
	meta := b.metadataRoot()
	sec.Write(meta)

	cli := sec.Bytes()[:cliHeaderSize]
	le.PutUint32(cli[0:], cliHeaderSize)
	le.PutUint16(cli[4:], 2)
	le.PutUint16(cli[6:], 5)
	le.PutUint32(cli[8:], metaRVA)
	le.PutUint32(cli[12:], uint32(len(meta)))
	le.PutUint32(cli[16:], 1) // ILONLY
	le.PutUint32(cli[20:], b.entryPoint)

	virtualSize := sec.Len()
	for sec.Len()%fileAlignment != 0 {
		sec.WriteByte(0)
	}

	optSize := 224
	if b.pe32Plus {
		optSize = 240
	}

	img := make([]byte, headerSize, headerSize+sec.Len())
	le.PutUint16(img[0:], 0x5A4D)
	le.PutUint32(img[0x3C:], 0x80)

	pe := 0x80
	le.PutUint32(img[pe:], 0x00004550)
	coff := pe + 4
	le.PutUint16(img[coff:], 0x14C)
	le.PutUint16(img[coff+2:], 1)
	le.PutUint16(img[coff+16:], uint16(optSize))
	le.PutUint16(img[coff+18:], 0x2102)

	opt := coff + 20
	dirCountOff, dirOff := 92, 96
	if b.pe32Plus {
		le.PutUint16(img[opt:], 0x20B)
		dirCountOff, dirOff = 108, 112
	} else {
		le.PutUint16(img[opt:], 0x10B)
	}
	le.PutUint32(img[opt+16:], 0) // entry point RVA
	le.PutUint32(img[opt+dirCountOff:], 16)
	le.PutUint32(img[opt+dirOff+14*8:], sectionRVA)
	le.PutUint32(img[opt+dirOff+14*8+4:], cliHeaderSize)

	sh := opt + optSize
	copy(img[sh:], ".text")
	le.PutUint32(img[sh+8:], uint32(virtualSize))
	le.PutUint32(img[sh+12:], sectionRVA)
	le.PutUint32(img[sh+16:], uint32(sec.Len()))
	le.PutUint32(img[sh+20:], headerSize)
	le.PutUint32(img[sh+36:], 0x60000020)

	return append(img, sec.Bytes()...)
}
