package il

import (
	"fmt"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

const (
	headerFormatMask = 0x03
	headerTiny       = 0x02
	headerFat        = 0x03

	fatMoreSects  = 0x08
	fatInitLocals = 0x10
	fatMinHeader  = 12
	tinyMaxStack  = 8

	sectEHTable   = 0x01
	sectKindMask  = 0x3F
	sectFatFormat = 0x40
	sectMoreSects = 0x80

	smallClauseSize = 12
	fatClauseSize   = 24
)

// ClauseKind is the kind of an exception-handling clause.
type ClauseKind uint32

const (
	ClauseCatch   ClauseKind = 0x0
	ClauseFilter  ClauseKind = 0x1
	ClauseFinally ClauseKind = 0x2
	ClauseFault   ClauseKind = 0x4
)

func (k ClauseKind) String() string {
	switch k {
	case ClauseCatch:
		return "catch"
	case ClauseFilter:
		return "filter"
	case ClauseFinally:
		return "finally"
	case ClauseFault:
		return "fault"
	}
	return fmt.Sprintf("ClauseKind(%d)", uint32(k))
}

// EHClause is one protected region and its handler. ClassToken is set for
// catch clauses, FilterOffset for filter clauses.
type EHClause struct {
	Kind          ClauseKind
	TryOffset     int
	TryLength     int
	HandlerOffset int
	HandlerLength int
	ClassToken    metadata.Token
	FilterOffset  int
}

// MethodBody is a decoded method header with its IL and EH clauses.
type MethodBody struct {
	img *metadata.Image

	RVA         uint32
	Fat         bool
	HeaderSize  int
	MaxStack    int
	InitLocals  bool
	LocalsToken metadata.Token

	code    []byte
	clauses []EHClause
}

// ReadBody reads the body of the MethodDef at row.
func ReadBody(img *metadata.Image, methodRow uint32) (*MethodBody, error) {
	c := img.MethodDefs()
	if methodRow == 0 {
		return nil, clierrors.InvalidInput(clierrors.PhaseBody, "method row 0")
	}
	if err := c.Goto(methodRow); err != nil {
		return nil, err
	}
	rva := c.RVA()
	if rva == 0 {
		return nil, clierrors.InvalidInput(clierrors.PhaseBody, "%s has no body", c.Token())
	}
	return BodyAt(img, rva)
}

// BodyAt decodes the method body at rva.
func BodyAt(img *metadata.Image, rva uint32) (*MethodBody, error) {
	g, err := img.RegionFrom(rva)
	if err != nil {
		return nil, fmt.Errorf("il: failed to locate method body: %w", err)
	}
	first, err := g.U8At(0)
	if err != nil {
		return nil, clierrors.Bounds(clierrors.PhaseBody, int64(g.Base()), "empty method body at RVA 0x%08x", rva)
	}

	b := &MethodBody{img: img, RVA: rva}
	switch first & headerFormatMask {
	case headerTiny:
		b.HeaderSize = 1
		b.MaxStack = tinyMaxStack
		b.code, err = g.Bytes(1, int(first>>2))
		if err != nil {
			return nil, clierrors.Bounds(clierrors.PhaseBody, int64(g.Base()), "tiny body of %d bytes exceeds the image", first>>2)
		}
		return b, nil
	case headerFat:
		if err := b.readFat(g); err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, clierrors.Format(clierrors.PhaseBody, int64(g.Base()), "invalid method header format 0x%x", first&headerFormatMask)
}

func (b *MethodBody) readFat(g stream.Region) error {
	base := int64(g.Base())
	flags, err := g.U16At(0)
	if err != nil {
		return clierrors.Bounds(clierrors.PhaseBody, base, "truncated fat header")
	}
	b.Fat = true
	b.HeaderSize = int(flags>>12) * 4
	if b.HeaderSize < fatMinHeader {
		return clierrors.Format(clierrors.PhaseBody, base, "fat header size %d is below %d", b.HeaderSize, fatMinHeader)
	}
	if g.Len() < b.HeaderSize {
		return clierrors.Bounds(clierrors.PhaseBody, base, "truncated fat header")
	}
	maxStack, _ := g.U16At(2)
	codeSize, _ := g.U32At(4)
	locals, _ := g.U32At(8)
	b.MaxStack = int(maxStack)
	b.LocalsToken = metadata.Token(locals)
	b.InitLocals = flags&fatInitLocals != 0

	if uint64(codeSize) > uint64(g.Len()-b.HeaderSize) {
		return clierrors.Bounds(clierrors.PhaseBody, base, "code size %d exceeds the image", codeSize)
	}
	b.code, _ = g.Bytes(b.HeaderSize, int(codeSize))

	if flags&fatMoreSects == 0 {
		return nil
	}
	return b.readSections(g, b.HeaderSize+int(codeSize))
}

// readSections walks the data sections that follow the code. Each section
// starts on a 4-byte boundary of the image.
func (b *MethodBody) readSections(g stream.Region, off int) error {
	for {
		off += int(uint32(-(int(b.RVA) + off)) & 3)
		at := int64(g.Base() + off)
		kind, err := g.U8At(off)
		if err != nil {
			return clierrors.Bounds(clierrors.PhaseBody, at, "missing data section")
		}

		var size, clauseSize int
		if kind&sectFatFormat != 0 {
			v, err := g.U32At(off)
			if err != nil {
				return clierrors.Bounds(clierrors.PhaseBody, at, "truncated section header")
			}
			size, clauseSize = int(v>>8), fatClauseSize
		} else {
			v, err := g.U8At(off + 1)
			if err != nil {
				return clierrors.Bounds(clierrors.PhaseBody, at, "truncated section header")
			}
			size, clauseSize = int(v), smallClauseSize
		}
		if size < 4 {
			return clierrors.Format(clierrors.PhaseBody, at, "data section of %d bytes", size)
		}
		sect, err := g.Sub(off, size)
		if err != nil {
			return clierrors.Bounds(clierrors.PhaseBody, at, "data section of %d bytes exceeds the image", size)
		}

		if kind&sectKindMask == sectEHTable {
			n := (size - 4) / clauseSize
			for i := 0; i < n; i++ {
				c, err := readClause(sect, 4+i*clauseSize, clauseSize == fatClauseSize)
				if err != nil {
					return err
				}
				b.clauses = append(b.clauses, c)
			}
		}

		if kind&sectMoreSects == 0 {
			return nil
		}
		off += size
	}
}

func readClause(g stream.Region, off int, fat bool) (EHClause, error) {
	var c EHClause
	var flags, extra uint32
	if fat {
		flags, _ = g.U32At(off)
		try, _ := g.U32At(off + 4)
		tryLen, _ := g.U32At(off + 8)
		h, _ := g.U32At(off + 12)
		hLen, _ := g.U32At(off + 16)
		extra, _ = g.U32At(off + 20)
		c.TryOffset, c.TryLength = int(try), int(tryLen)
		c.HandlerOffset, c.HandlerLength = int(h), int(hLen)
	} else {
		f, _ := g.U16At(off)
		try, _ := g.U16At(off + 2)
		tryLen, _ := g.U8At(off + 4)
		h, _ := g.U16At(off + 5)
		hLen, _ := g.U8At(off + 7)
		extra, _ = g.U32At(off + 8)
		flags = uint32(f)
		c.TryOffset, c.TryLength = int(try), int(tryLen)
		c.HandlerOffset, c.HandlerLength = int(h), int(hLen)
	}

	c.Kind = ClauseKind(flags)
	switch c.Kind {
	case ClauseCatch:
		c.ClassToken = metadata.Token(extra)
	case ClauseFilter:
		c.FilterOffset = int(extra)
	case ClauseFinally, ClauseFault:
	default:
		return c, clierrors.Format(clierrors.PhaseBody, int64(g.Base()+off), "invalid clause flags 0x%x", flags)
	}
	return c, nil
}

// Code returns the IL byte stream.
func (b *MethodBody) Code() []byte { return b.code }

// Clauses returns the exception-handling clauses in declaration order.
func (b *MethodBody) Clauses() []EHClause { return b.clauses }

// Locals decodes the local variable signature. It returns nil when the
// method declares no locals.
func (b *MethodBody) Locals() ([]signature.Type, error) {
	if b.LocalsToken.IsNil() {
		return nil, nil
	}
	return signature.LocalsOf(b.img, b.LocalsToken)
}

// Instructions returns a cursor over the body's IL with the body's
// handlers registered for stack tracking.
func (b *MethodBody) Instructions() *Cursor {
	c := NewCursor(b.img, b.code)
	c.SetHandlers(b.clauses)
	return c
}
