package metadata

import "fmt"

// TypeAttributes are the flags of a TypeDef row.
type TypeAttributes uint32

const (
	TypeVisibilityMask    TypeAttributes = 0x00000007
	TypeNotPublic         TypeAttributes = 0x00000000
	TypePublic            TypeAttributes = 0x00000001
	TypeNestedPublic      TypeAttributes = 0x00000002
	TypeNestedPrivate     TypeAttributes = 0x00000003
	TypeNestedFamily      TypeAttributes = 0x00000004
	TypeNestedAssembly    TypeAttributes = 0x00000005
	TypeNestedFamANDAssem TypeAttributes = 0x00000006
	TypeNestedFamORAssem  TypeAttributes = 0x00000007
	TypeInterface         TypeAttributes = 0x00000020
	TypeAbstract          TypeAttributes = 0x00000080
	TypeSealed            TypeAttributes = 0x00000100
	TypeSpecialName       TypeAttributes = 0x00000400
	TypeImport            TypeAttributes = 0x00001000
	TypeSerializable      TypeAttributes = 0x00002000
	TypeBeforeFieldInit   TypeAttributes = 0x00100000
)

// IsNested reports whether the visibility bits mark a nested type.
func (a TypeAttributes) IsNested() bool {
	return a&TypeVisibilityMask > TypePublic
}

func (a TypeAttributes) IsInterface() bool { return a&TypeInterface != 0 }

// MethodAttributes are the flags of a MethodDef row.
type MethodAttributes uint16

const (
	MethodAccessMask    MethodAttributes = 0x0007
	MethodPrivate       MethodAttributes = 0x0001
	MethodPublic        MethodAttributes = 0x0006
	MethodStatic        MethodAttributes = 0x0010
	MethodFinal         MethodAttributes = 0x0020
	MethodVirtual       MethodAttributes = 0x0040
	MethodHideBySig     MethodAttributes = 0x0080
	MethodNewSlot       MethodAttributes = 0x0100
	MethodAbstract      MethodAttributes = 0x0400
	MethodSpecialName   MethodAttributes = 0x0800
	MethodRTSpecialName MethodAttributes = 0x1000
	MethodPInvokeImpl   MethodAttributes = 0x2000
)

func (a MethodAttributes) IsStatic() bool   { return a&MethodStatic != 0 }
func (a MethodAttributes) IsAbstract() bool { return a&MethodAbstract != 0 }

// MethodImplAttributes are the implementation flags of a MethodDef row.
type MethodImplAttributes uint16

const (
	MethodImplCodeTypeMask MethodImplAttributes = 0x0003
	MethodImplIL           MethodImplAttributes = 0x0000
	MethodImplNative       MethodImplAttributes = 0x0001
	MethodImplRuntime      MethodImplAttributes = 0x0003
	MethodImplUnmanaged    MethodImplAttributes = 0x0004
	MethodImplInternalCall MethodImplAttributes = 0x1000
)

// FieldAttributes are the flags of a Field row.
type FieldAttributes uint16

const (
	FieldStatic     FieldAttributes = 0x0010
	FieldInitOnly   FieldAttributes = 0x0020
	FieldLiteral    FieldAttributes = 0x0040
	FieldHasDefault FieldAttributes = 0x8000
	FieldHasRVA     FieldAttributes = 0x0100
)

func (a FieldAttributes) IsStatic() bool { return a&FieldStatic != 0 }

// ParamAttributes are the flags of a Param row.
type ParamAttributes uint16

const (
	ParamIn       ParamAttributes = 0x0001
	ParamOut      ParamAttributes = 0x0002
	ParamOptional ParamAttributes = 0x0010
)

// MethodSemanticsAttributes give the role of a method in a property or
// event.
type MethodSemanticsAttributes uint16

const (
	SemanticsSetter   MethodSemanticsAttributes = 0x0001
	SemanticsGetter   MethodSemanticsAttributes = 0x0002
	SemanticsOther    MethodSemanticsAttributes = 0x0004
	SemanticsAddOn    MethodSemanticsAttributes = 0x0008
	SemanticsRemoveOn MethodSemanticsAttributes = 0x0010
	SemanticsFire     MethodSemanticsAttributes = 0x0020
)

func (a MethodSemanticsAttributes) String() string {
	switch a {
	case SemanticsSetter:
		return "setter"
	case SemanticsGetter:
		return "getter"
	case SemanticsOther:
		return "other"
	case SemanticsAddOn:
		return "addon"
	case SemanticsRemoveOn:
		return "removeon"
	case SemanticsFire:
		return "fire"
	}
	return fmt.Sprintf("semantics(0x%x)", uint16(a))
}

// ElementType is a signature element tag. Constant rows use the same
// encoding for their value type.
type ElementType uint8

const (
	ElementEnd         ElementType = 0x00
	ElementVoid        ElementType = 0x01
	ElementBoolean     ElementType = 0x02
	ElementChar        ElementType = 0x03
	ElementI1          ElementType = 0x04
	ElementU1          ElementType = 0x05
	ElementI2          ElementType = 0x06
	ElementU2          ElementType = 0x07
	ElementI4          ElementType = 0x08
	ElementU4          ElementType = 0x09
	ElementI8          ElementType = 0x0A
	ElementU8          ElementType = 0x0B
	ElementR4          ElementType = 0x0C
	ElementR8          ElementType = 0x0D
	ElementString      ElementType = 0x0E
	ElementPtr         ElementType = 0x0F
	ElementByRef       ElementType = 0x10
	ElementValueType   ElementType = 0x11
	ElementClass       ElementType = 0x12
	ElementVar         ElementType = 0x13
	ElementArray       ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI           ElementType = 0x18
	ElementU           ElementType = 0x19
	ElementFnPtr       ElementType = 0x1B
	ElementObject      ElementType = 0x1C
	ElementSzArray     ElementType = 0x1D
	ElementMVar        ElementType = 0x1E
	ElementCModReqd    ElementType = 0x1F
	ElementCModOpt     ElementType = 0x20
	ElementInternal    ElementType = 0x21
	ElementModifier    ElementType = 0x40
	ElementSentinel    ElementType = 0x41
	ElementPinned      ElementType = 0x45

	// Custom attribute encodings.
	ElementSystemType ElementType = 0x50
	ElementBoxed      ElementType = 0x51
	ElementEnum       ElementType = 0x55
)

var elementNames = map[ElementType]string{
	ElementVoid: "void", ElementBoolean: "bool", ElementChar: "char",
	ElementI1: "int8", ElementU1: "uint8", ElementI2: "int16", ElementU2: "uint16",
	ElementI4: "int32", ElementU4: "uint32", ElementI8: "int64", ElementU8: "uint64",
	ElementR4: "float32", ElementR8: "float64", ElementString: "string",
	ElementTypedByRef: "typedref", ElementI: "native int", ElementU: "native uint",
	ElementObject: "object", ElementClass: "class",
}

// String returns the IL assembler spelling of primitive tags.
func (e ElementType) String() string {
	if n, ok := elementNames[e]; ok {
		return n
	}
	return fmt.Sprintf("ELEMENT_TYPE(0x%02x)", uint8(e))
}
