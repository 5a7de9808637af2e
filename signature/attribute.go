package signature

import (
	"math"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

const (
	attributeProlog = 0x0001
	namedField      = 0x53
	namedProperty   = 0x54
	nullArrayLength = 0xFFFFFFFF
)

// Attribute is a decoded custom attribute value blob.
//
// Argument values are bool, rune, int8..int64, uint8..uint64, float32,
// float64, string, nil (a null string or array) or []any.
type Attribute struct {
	Parent      metadata.Token
	Constructor metadata.Token
	Fixed       []any
	Named       []NamedArg
}

// NamedArg is a field or property assignment following the fixed arguments.
type NamedArg struct {
	Property bool
	Name     string
	Type     Type
	Value    any
}

type attrReader struct {
	*Decoder
	img *metadata.Image
}

// DecodeCustomAttribute decodes blob against the parameter types of the
// attribute constructor. Enum and boxed-object arguments are unsupported.
func DecodeCustomAttribute(img *metadata.Image, ctor *MethodSig, blob []byte) (*Attribute, error) {
	a := attrReader{Decoder: NewDecoder(blob), img: img}

	prolog, err := a.r.ReadU16()
	if err != nil {
		return nil, a.fail(err, 0, "custom attribute prolog")
	}
	if prolog != attributeProlog {
		return nil, clierrors.Format(clierrors.PhaseSignature, 0, "invalid custom attribute prolog 0x%04x", prolog)
	}

	params, err := ctor.ParamTypes()
	if err != nil {
		return nil, err
	}
	attr := &Attribute{Fixed: make([]any, len(params))}
	for i, p := range params {
		if attr.Fixed[i], err = a.readValue(p); err != nil {
			return nil, err
		}
	}

	at := a.Offset()
	count, err := a.r.ReadU16()
	if err != nil {
		return nil, a.fail(err, at, "named argument count")
	}
	attr.Named = make([]NamedArg, count)
	for i := range attr.Named {
		if attr.Named[i], err = a.readNamed(); err != nil {
			return nil, err
		}
	}
	return attr, nil
}

// CustomAttributeAt decodes row of the CustomAttribute table.
func CustomAttributeAt(img *metadata.Image, row uint32) (*Attribute, error) {
	if row == 0 {
		return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "custom attribute row 0")
	}
	c := img.CustomAttributeRows()
	if err := c.Goto(row); err != nil {
		return nil, err
	}
	parent, err := c.Parent()
	if err != nil {
		return nil, err
	}
	ctorTok, err := c.Type()
	if err != nil {
		return nil, err
	}
	ctor, err := ForMethod(img, ctorTok)
	if err != nil {
		return nil, err
	}
	blob, err := img.Blob().Get(c.Value())
	if err != nil {
		return nil, err
	}
	attr, err := DecodeCustomAttribute(img, ctor, blob)
	if err != nil {
		return nil, err
	}
	attr.Parent = parent
	attr.Constructor = ctorTok
	return attr, nil
}

func (a *attrReader) readNamed() (NamedArg, error) {
	at := a.Offset()
	kind, err := a.readByte("named argument")
	if err != nil {
		return NamedArg{}, err
	}
	if kind != namedField && kind != namedProperty {
		return NamedArg{}, clierrors.Format(clierrors.PhaseSignature, int64(at), "invalid named argument kind 0x%02x", kind)
	}

	t, err := a.readFieldOrPropType()
	if err != nil {
		return NamedArg{}, err
	}
	at = a.Offset()
	name, err := a.readSerString()
	if err != nil {
		return NamedArg{}, err
	}
	if name == nil {
		return NamedArg{}, clierrors.Format(clierrors.PhaseSignature, int64(at), "named argument without a name")
	}
	v, err := a.readValue(t)
	if err != nil {
		return NamedArg{}, err
	}
	return NamedArg{Property: kind == namedProperty, Name: *name, Type: t, Value: v}, nil
}

func (a *attrReader) readFieldOrPropType() (Type, error) {
	at := a.Offset()
	tag, err := a.readByte("named argument type")
	if err != nil {
		return nil, err
	}
	et := metadata.ElementType(tag)
	switch et {
	case metadata.ElementBoolean, metadata.ElementChar,
		metadata.ElementI1, metadata.ElementU1, metadata.ElementI2, metadata.ElementU2,
		metadata.ElementI4, metadata.ElementU4, metadata.ElementI8, metadata.ElementU8,
		metadata.ElementR4, metadata.ElementR8, metadata.ElementString, metadata.ElementSystemType:
		return Primitive{Type: et}, nil
	case metadata.ElementSzArray:
		elem, err := a.readFieldOrPropType()
		if err != nil {
			return nil, err
		}
		return SzArray{Elem: elem}, nil
	case metadata.ElementBoxed, metadata.ElementEnum:
		return nil, clierrors.Unsupported(clierrors.PhaseSignature, int64(at), "%s attribute arguments", et)
	}
	return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "invalid attribute argument type 0x%02x", tag)
}

func (a *attrReader) readValue(t Type) (any, error) {
	at := a.Offset()
	switch v := Underlying(t).(type) {
	case Primitive:
		return a.readPrimitive(v.Type)

	case Compound:
		if v.ValueType {
			return nil, clierrors.Unsupported(clierrors.PhaseSignature, int64(at), "enum attribute arguments")
		}
		name, err := a.img.TypeName(v.Token)
		if err != nil {
			return nil, err
		}
		switch name {
		case "System.Type":
			return a.readPrimitive(metadata.ElementSystemType)
		case "System.Object":
			return nil, clierrors.Unsupported(clierrors.PhaseSignature, int64(at), "boxed attribute arguments")
		}
		return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "%s is not an attribute argument type", name)

	case SzArray:
		n, err := a.r.ReadU32()
		if err != nil {
			return nil, a.fail(err, at, "attribute array length")
		}
		if n == nullArrayLength {
			return nil, nil
		}
		if int(n) > a.Remaining() {
			return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(at), "attribute array of %d elements exceeds the blob", n)
		}
		elems := make([]any, n)
		for i := range elems {
			if elems[i], err = a.readValue(v.Elem); err != nil {
				return nil, err
			}
		}
		return elems, nil
	}
	return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "%s is not an attribute argument type", t)
}

func (a *attrReader) readPrimitive(et metadata.ElementType) (any, error) {
	at := a.Offset()
	var (
		v   any
		err error
	)
	switch et {
	case metadata.ElementBoolean:
		var b uint8
		b, err = a.r.ReadU8()
		v = b != 0
	case metadata.ElementChar:
		var c uint16
		c, err = a.r.ReadU16()
		v = rune(c)
	case metadata.ElementI1:
		v, err = a.r.ReadI8()
	case metadata.ElementU1:
		v, err = a.r.ReadU8()
	case metadata.ElementI2:
		v, err = a.r.ReadI16()
	case metadata.ElementU2:
		v, err = a.r.ReadU16()
	case metadata.ElementI4:
		v, err = a.r.ReadI32()
	case metadata.ElementU4:
		v, err = a.r.ReadU32()
	case metadata.ElementI8:
		v, err = a.r.ReadI64()
	case metadata.ElementU8:
		v, err = a.r.ReadU64()
	case metadata.ElementR4:
		var bits uint32
		bits, err = a.r.ReadU32()
		v = math.Float32frombits(bits)
	case metadata.ElementR8:
		var bits uint64
		bits, err = a.r.ReadU64()
		v = math.Float64frombits(bits)
	case metadata.ElementString, metadata.ElementSystemType:
		s, err := a.readSerString()
		if err != nil || s == nil {
			return nil, err
		}
		return *s, nil
	case metadata.ElementObject:
		return nil, clierrors.Unsupported(clierrors.PhaseSignature, int64(at), "boxed attribute arguments")
	default:
		return nil, clierrors.Format(clierrors.PhaseSignature, int64(at), "%s is not an attribute argument type", et)
	}
	if err != nil {
		return nil, a.fail(err, at, "attribute argument")
	}
	return v, nil
}

// readSerString reads a length-prefixed UTF-8 string. A lone 0xFF is the
// null string.
func (a *attrReader) readSerString() (*string, error) {
	b, err := a.peekByte("string")
	if err != nil {
		return nil, err
	}
	if b == 0xFF {
		_ = a.r.Skip(1)
		return nil, nil
	}
	n, err := a.readCompressed("string length")
	if err != nil {
		return nil, err
	}
	at := a.Offset()
	raw, err := a.r.ReadBytesRef(int(n))
	if err != nil {
		return nil, a.fail(err, at, "string")
	}
	s := string(raw)
	return &s, nil
}
