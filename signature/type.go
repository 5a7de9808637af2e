package signature

import (
	"errors"
	"strconv"
	"strings"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

// ErrMissingInstantiation is wrapped by Instantiate when a generic
// parameter has no matching argument.
var ErrMissingInstantiation = errors.New("signature: generic parameter without instantiation")

// Namer renders a TypeDef, TypeRef or TypeSpec token.
type Namer func(metadata.Token) string

func rawToken(tok metadata.Token) string { return tok.String() }

// Type is one node of a decoded type signature.
type Type interface {
	// Kind returns the element type tag that introduced the node.
	Kind() metadata.ElementType
	// String renders the type with raw tokens.
	String() string

	write(b *strings.Builder, name Namer)
}

// Format renders t, naming tokens with name.
func Format(t Type, name Namer) string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.write(&b, name)
	return b.String()
}

var primitiveNames = map[metadata.ElementType]string{
	metadata.ElementVoid:       "void",
	metadata.ElementBoolean:    "bool",
	metadata.ElementChar:       "char",
	metadata.ElementI1:         "int8",
	metadata.ElementU1:         "uint8",
	metadata.ElementI2:         "int16",
	metadata.ElementU2:         "uint16",
	metadata.ElementI4:         "int32",
	metadata.ElementU4:         "uint32",
	metadata.ElementI8:         "int64",
	metadata.ElementU8:         "uint64",
	metadata.ElementR4:         "float32",
	metadata.ElementR8:         "float64",
	metadata.ElementString:     "string",
	metadata.ElementObject:     "object",
	metadata.ElementI:          "native int",
	metadata.ElementU:          "native uint",
	metadata.ElementTypedByRef: "typedref",
	metadata.ElementSystemType: "type",
}

// Primitive is a built-in type named by its element tag alone.
type Primitive struct {
	Type metadata.ElementType
}

func (p Primitive) Kind() metadata.ElementType { return p.Type }
func (p Primitive) String() string             { return Format(p, rawToken) }

func (p Primitive) write(b *strings.Builder, _ Namer) {
	if s, ok := primitiveNames[p.Type]; ok {
		b.WriteString(s)
		return
	}
	b.WriteString(p.Type.String())
}

// Compound is a class or value type, optionally a generic instantiation.
type Compound struct {
	Token     metadata.Token
	ValueType bool
	Args      []Type
}

func (c Compound) Kind() metadata.ElementType {
	switch {
	case c.Args != nil:
		return metadata.ElementGenericInst
	case c.ValueType:
		return metadata.ElementValueType
	}
	return metadata.ElementClass
}

func (c Compound) String() string { return Format(c, rawToken) }

func (c Compound) write(b *strings.Builder, name Namer) {
	if c.ValueType {
		b.WriteString("valuetype ")
	} else {
		b.WriteString("class ")
	}
	b.WriteString(name(c.Token))
	if c.Args != nil {
		b.WriteByte('<')
		for i, a := range c.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			a.write(b, name)
		}
		b.WriteByte('>')
	}
}

// Array is a general array. Sizes and LowerBounds may be shorter than Rank.
type Array struct {
	Elem        Type
	Rank        uint32
	Sizes       []uint32
	LowerBounds []int32
}

func (a Array) Kind() metadata.ElementType { return metadata.ElementArray }
func (a Array) String() string             { return Format(a, rawToken) }

func (a Array) write(b *strings.Builder, name Namer) {
	a.Elem.write(b, name)
	b.WriteByte('[')
	for i := uint32(0); i < a.Rank; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		hasSize := int(i) < len(a.Sizes)
		hasLower := int(i) < len(a.LowerBounds)
		switch {
		case hasLower && hasSize:
			lo := int64(a.LowerBounds[i])
			b.WriteString(strconv.FormatInt(lo, 10))
			b.WriteString("...")
			b.WriteString(strconv.FormatInt(lo+int64(a.Sizes[i])-1, 10))
		case hasLower:
			b.WriteString(strconv.FormatInt(int64(a.LowerBounds[i]), 10))
			b.WriteString("...")
		case hasSize:
			b.WriteString(strconv.FormatUint(uint64(a.Sizes[i]), 10))
		}
	}
	b.WriteByte(']')
}

// SzArray is a single-dimension, zero-based array.
type SzArray struct{ Elem Type }

func (s SzArray) Kind() metadata.ElementType { return metadata.ElementSzArray }
func (s SzArray) String() string             { return Format(s, rawToken) }

func (s SzArray) write(b *strings.Builder, name Namer) {
	s.Elem.write(b, name)
	b.WriteString("[]")
}

// Pointer is an unmanaged pointer.
type Pointer struct{ Elem Type }

func (p Pointer) Kind() metadata.ElementType { return metadata.ElementPtr }
func (p Pointer) String() string             { return Format(p, rawToken) }

func (p Pointer) write(b *strings.Builder, name Namer) {
	p.Elem.write(b, name)
	b.WriteByte('*')
}

// ByRef is a managed reference.
type ByRef struct{ Elem Type }

func (r ByRef) Kind() metadata.ElementType { return metadata.ElementByRef }
func (r ByRef) String() string             { return Format(r, rawToken) }

func (r ByRef) write(b *strings.Builder, name Namer) {
	r.Elem.write(b, name)
	b.WriteByte('&')
}

// Pinned marks a local variable the collector must not move.
type Pinned struct{ Elem Type }

func (p Pinned) Kind() metadata.ElementType { return metadata.ElementPinned }
func (p Pinned) String() string             { return Format(p, rawToken) }

func (p Pinned) write(b *strings.Builder, name Namer) {
	p.Elem.write(b, name)
	b.WriteString(" pinned")
}

// CustomMod attaches a modreq or modopt to the type that follows it.
type CustomMod struct {
	Required bool
	Token    metadata.Token
	Elem     Type
}

func (m CustomMod) Kind() metadata.ElementType {
	if m.Required {
		return metadata.ElementCModReqd
	}
	return metadata.ElementCModOpt
}

func (m CustomMod) String() string { return Format(m, rawToken) }

func (m CustomMod) write(b *strings.Builder, name Namer) {
	m.Elem.write(b, name)
	if m.Required {
		b.WriteString(" modreq(")
	} else {
		b.WriteString(" modopt(")
	}
	b.WriteString(name(m.Token))
	b.WriteByte(')')
}

// Var is a type generic parameter, by position.
type Var struct{ Index uint32 }

func (v Var) Kind() metadata.ElementType { return metadata.ElementVar }
func (v Var) String() string             { return "!" + strconv.FormatUint(uint64(v.Index), 10) }

func (v Var) write(b *strings.Builder, _ Namer) { b.WriteString(v.String()) }

// MVar is a method generic parameter, by position.
type MVar struct{ Index uint32 }

func (v MVar) Kind() metadata.ElementType { return metadata.ElementMVar }
func (v MVar) String() string             { return "!!" + strconv.FormatUint(uint64(v.Index), 10) }

func (v MVar) write(b *strings.Builder, _ Namer) { b.WriteString(v.String()) }

// FnPtr is a function pointer carrying a full method signature.
type FnPtr struct{ Sig *MethodSig }

func (f FnPtr) Kind() metadata.ElementType { return metadata.ElementFnPtr }
func (f FnPtr) String() string             { return Format(f, rawToken) }

func (f FnPtr) write(b *strings.Builder, name Namer) {
	b.WriteString("method ")
	f.Sig.write(b, name, "*")
}

// Sentinel marks where the variable part of a vararg call begins.
type Sentinel struct{}

func (Sentinel) Kind() metadata.ElementType { return metadata.ElementSentinel }
func (Sentinel) String() string             { return "..." }

func (Sentinel) write(b *strings.Builder, _ Namer) { b.WriteString("...") }

// Instantiate substitutes Var and MVar nodes with the given arguments.
// A generic parameter whose argument list is nil or too short is an error.
func Instantiate(t Type, typeArgs, methodArgs []Type) (Type, error) {
	switch v := t.(type) {
	case Var:
		if typeArgs == nil || int(v.Index) >= len(typeArgs) {
			return nil, clierrors.Wrap(clierrors.PhaseSignature, clierrors.KindInvalidInput, clierrors.NoOffset,
				ErrMissingInstantiation, "type parameter %s has %d arguments", v, len(typeArgs))
		}
		return typeArgs[v.Index], nil
	case MVar:
		if methodArgs == nil || int(v.Index) >= len(methodArgs) {
			return nil, clierrors.Wrap(clierrors.PhaseSignature, clierrors.KindInvalidInput, clierrors.NoOffset,
				ErrMissingInstantiation, "method parameter %s has %d arguments", v, len(methodArgs))
		}
		return methodArgs[v.Index], nil
	case Compound:
		if v.Args == nil {
			return v, nil
		}
		args := make([]Type, len(v.Args))
		for i, a := range v.Args {
			r, err := Instantiate(a, typeArgs, methodArgs)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		v.Args = args
		return v, nil
	case Array:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		if err != nil {
			return nil, err
		}
		v.Elem = e
		return v, nil
	case SzArray:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		return SzArray{Elem: e}, err
	case Pointer:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		return Pointer{Elem: e}, err
	case ByRef:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		return ByRef{Elem: e}, err
	case Pinned:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		return Pinned{Elem: e}, err
	case CustomMod:
		e, err := Instantiate(v.Elem, typeArgs, methodArgs)
		if err != nil {
			return nil, err
		}
		v.Elem = e
		return v, nil
	}
	// Function pointers keep their own parameter scope.
	return t, nil
}

// Underlying strips custom modifiers and the pinned marker.
func Underlying(t Type) Type {
	for {
		switch v := t.(type) {
		case CustomMod:
			t = v.Elem
		case Pinned:
			t = v.Elem
		default:
			return t
		}
	}
}
