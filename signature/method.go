package signature

import (
	"fmt"
	"iter"
	"strconv"
	"strings"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

// CallingConvention is the low nibble of a signature's leading byte.
type CallingConvention uint8

const (
	ConvDefault     CallingConvention = 0x0
	ConvC           CallingConvention = 0x1
	ConvStdCall     CallingConvention = 0x2
	ConvThisCall    CallingConvention = 0x3
	ConvFastCall    CallingConvention = 0x4
	ConvVarArg      CallingConvention = 0x5
	ConvField       CallingConvention = 0x6
	ConvLocalSig    CallingConvention = 0x7
	ConvProperty    CallingConvention = 0x8
	ConvUnmanaged   CallingConvention = 0x9
	ConvGenericInst CallingConvention = 0xA
)

// Flag bits in the leading byte.
const (
	FlagGeneric      = 0x10
	FlagHasThis      = 0x20
	FlagExplicitThis = 0x40
)

var convNames = [...]string{
	ConvDefault:     "default",
	ConvC:           "unmanaged cdecl",
	ConvStdCall:     "unmanaged stdcall",
	ConvThisCall:    "unmanaged thiscall",
	ConvFastCall:    "unmanaged fastcall",
	ConvVarArg:      "vararg",
	ConvField:       "field",
	ConvLocalSig:    "local",
	ConvProperty:    "property",
	ConvUnmanaged:   "unmanaged",
	ConvGenericInst: "instantiation",
}

func (c CallingConvention) String() string {
	if int(c) < len(convNames) {
		return convNames[c]
	}
	return fmt.Sprintf("CallingConvention(0x%x)", uint8(c))
}

// SigKind says where a method signature came from. Standalone signatures
// never carry a generic parameter count.
type SigKind int

const (
	SigMethodDef SigKind = iota
	SigMemberRef
	SigStandAlone
)

// Param is one parameter position. Sentinel entries mark the start of the
// variable arguments of a vararg call site and carry no type.
type Param struct {
	Type     Type
	Sentinel bool
}

// MethodSig is a decoded method signature. Parameters are decoded on
// demand from the bytes following the return type.
type MethodSig struct {
	HasThis           bool
	ExplicitThis      bool
	Convention        CallingConvention
	Generic           bool
	GenericParamCount int
	ParamCount        int
	Return            Type

	params []byte
}

// DecodeMethod decodes a MethodDefSig, MethodRefSig or StandAloneMethodSig.
func DecodeMethod(blob []byte, kind SigKind) (*MethodSig, error) {
	return NewDecoder(blob).readMethodSig(kind, false)
}

// readMethodSig decodes the header and return type. When eager is set the
// parameters are decoded too so the reader ends up past the signature.
func (d *Decoder) readMethodSig(kind SigKind, eager bool) (*MethodSig, error) {
	at := d.r.Offset()
	lead, err := d.readByte("method signature")
	if err != nil {
		return nil, err
	}

	conv := CallingConvention(lead & 0x0F)
	switch {
	case conv <= ConvVarArg:
	case conv == ConvUnmanaged && kind == SigStandAlone:
	default:
		return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "invalid method signature lead byte 0x%02x", lead)
	}

	sig := &MethodSig{
		HasThis:           lead&FlagHasThis != 0,
		ExplicitThis:      lead&FlagExplicitThis != 0,
		Convention:        conv,
		Generic:           lead&FlagGeneric != 0,
		GenericParamCount: -1,
	}
	if sig.Generic && kind != SigStandAlone {
		n, err := d.readCompressed("generic parameter count")
		if err != nil {
			return nil, err
		}
		sig.GenericParamCount = int(n)
	}

	n, err := d.readCompressed("parameter count")
	if err != nil {
		return nil, err
	}
	if int(n) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d parameters exceed the blob", n)
	}
	sig.ParamCount = int(n)

	if sig.Return, err = d.readType(true); err != nil {
		return nil, err
	}

	start := d.r.Offset()
	if !eager {
		sig.params = d.r.RemainingData()
		return sig, nil
	}
	for _, err := range sig.paramsFrom(d) {
		if err != nil {
			return nil, err
		}
	}
	sig.params = d.r.Data()[start:d.r.Offset()]
	return sig, nil
}

// Params yields each parameter in order. A vararg sentinel yields an extra
// entry with Sentinel set. Iteration stops at the first error.
func (s *MethodSig) Params() iter.Seq2[Param, error] {
	return s.paramsFrom(NewDecoder(s.params))
}

func (s *MethodSig) paramsFrom(d *Decoder) iter.Seq2[Param, error] {
	return func(yield func(Param, error) bool) {
		sentinel := false
		for i := 0; i < s.ParamCount; {
			b, err := d.peekByte("parameter")
			if err != nil {
				yield(Param{}, err)
				return
			}
			if b == byte(metadata.ElementSentinel) {
				if sentinel {
					yield(Param{}, clierrors.Format(clierrors.PhaseSignature, int64(d.Offset()), "second vararg sentinel"))
					return
				}
				sentinel = true
				_ = d.r.Skip(1)
				if !yield(Param{Type: Sentinel{}, Sentinel: true}, nil) {
					return
				}
				continue
			}

			t, err := d.readType(false)
			if err != nil {
				yield(Param{}, err)
				return
			}
			i++
			if !yield(Param{Type: t}, nil) {
				return
			}
		}
	}
}

// ParamTypes decodes every parameter type, skipping the vararg sentinel.
func (s *MethodSig) ParamTypes() ([]Type, error) {
	types := make([]Type, 0, s.ParamCount)
	for p, err := range s.Params() {
		if err != nil {
			return nil, err
		}
		if !p.Sentinel {
			types = append(types, p.Type)
		}
	}
	return types, nil
}

// ArgCount is the number of stack arguments, counting an implicit this.
func (s *MethodSig) ArgCount() int {
	if s.HasThis && !s.ExplicitThis {
		return s.ParamCount + 1
	}
	return s.ParamCount
}

// ReturnsVoid reports whether the method pushes nothing.
func (s *MethodSig) ReturnsVoid() bool {
	p, ok := Underlying(s.Return).(Primitive)
	return ok && p.Type == metadata.ElementVoid
}

func (s *MethodSig) String() string {
	var b strings.Builder
	s.write(&b, rawToken, "")
	return b.String()
}

func (s *MethodSig) write(b *strings.Builder, name Namer, marker string) {
	if s.HasThis {
		b.WriteString("instance ")
	}
	if s.ExplicitThis {
		b.WriteString("explicit ")
	}
	if s.Convention != ConvDefault {
		b.WriteString(s.Convention.String())
		b.WriteByte(' ')
	}
	s.Return.write(b, name)
	b.WriteString(marker)
	if s.GenericParamCount >= 0 {
		b.WriteString("<[")
		b.WriteString(strconv.Itoa(s.GenericParamCount))
		b.WriteString("]>")
	}
	b.WriteByte('(')
	first := true
	for p, err := range s.Params() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		if err != nil {
			b.WriteString("<invalid>")
			break
		}
		p.Type.write(b, name)
	}
	b.WriteByte(')')
}
