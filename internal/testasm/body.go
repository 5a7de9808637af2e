package testasm

import "encoding/binary"

// Clause is an exception-handling clause for FatBody.
type Clause struct {
	Flags         uint32
	TryOffset     uint32
	TryLength     uint32
	HandlerOffset uint32
	HandlerLength uint32
	TokenOrFilter uint32
}

// TinyBody encodes code with a one-byte tiny header. code must be shorter
// than 64 bytes.
func TinyBody(code []byte) []byte {
	if len(code) >= 64 {
		panic("testasm: tiny body too large")
	}
	return append([]byte{byte(len(code))<<2 | 0x2}, code...)
}

// FatBody encodes code with a 12-byte fat header followed by an optional
// EH section. fatEH selects 24-byte clauses instead of 12-byte ones.
func FatBody(maxStack uint16, localsToken uint32, initLocals bool, code []byte, clauses []Clause, fatEH bool) []byte {
	flags := uint16(0x3) | 3<<12
	if initLocals {
		flags |= 0x10
	}
	if len(clauses) > 0 {
		flags |= 0x08
	}

	out := make([]byte, 12, 12+len(code)+4+len(clauses)*24)
	le := binary.LittleEndian
	le.PutUint16(out[0:], flags)
	le.PutUint16(out[2:], maxStack)
	le.PutUint32(out[4:], uint32(len(code)))
	le.PutUint32(out[8:], localsToken)
	out = append(out, code...)

	if len(clauses) == 0 {
		return out
	}
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return append(out, EHSection(clauses, fatEH, false)...)
}

// EHSection encodes one EH data section. more sets the MoreSects bit.
func EHSection(clauses []Clause, fat, more bool) []byte {
	le := binary.LittleEndian
	kind := byte(0x01)
	if more {
		kind |= 0x80
	}

	if fat {
		size := 4 + 24*len(clauses)
		out := make([]byte, size)
		out[0] = kind | 0x40
		out[1] = byte(size)
		out[2] = byte(size >> 8)
		out[3] = byte(size >> 16)
		for i, c := range clauses {
			p := out[4+24*i:]
			le.PutUint32(p[0:], c.Flags)
			le.PutUint32(p[4:], c.TryOffset)
			le.PutUint32(p[8:], c.TryLength)
			le.PutUint32(p[12:], c.HandlerOffset)
			le.PutUint32(p[16:], c.HandlerLength)
			le.PutUint32(p[20:], c.TokenOrFilter)
		}
		return out
	}

	size := 4 + 12*len(clauses)
	out := make([]byte, size)
	out[0] = kind
	out[1] = byte(size)
	for i, c := range clauses {
		p := out[4+12*i:]
		le.PutUint16(p[0:], uint16(c.Flags))
		le.PutUint16(p[2:], uint16(c.TryOffset))
		p[4] = byte(c.TryLength)
		le.PutUint16(p[5:], uint16(c.HandlerOffset))
		p[7] = byte(c.HandlerLength)
		le.PutUint32(p[8:], c.TokenOrFilter)
	}
	return out
}
