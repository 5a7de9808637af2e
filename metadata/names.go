package metadata

import (
	"fmt"
	"strings"

	clierrors "github.com/brickbot/clifile/errors"
)

// maxNesting bounds enclosing-type walks so a cyclic NestedClass or TypeRef
// chain fails instead of looping.
const maxNesting = 64

// AssemblyName identifies an assembly by name, version and culture.
type AssemblyName struct {
	Name    string
	Version [4]uint16
	Culture string
}

func (a AssemblyName) String() string {
	culture := a.Culture
	if culture == "" {
		culture = "neutral"
	}
	return fmt.Sprintf("%s, Version=%d.%d.%d.%d, Culture=%s",
		a.Name, a.Version[0], a.Version[1], a.Version[2], a.Version[3], culture)
}

// AssemblyName returns the name of the assembly this image defines.
func (img *Image) AssemblyName() (AssemblyName, error) {
	t := img.tables[TableAssembly]
	if t.rows == 0 {
		return AssemblyName{}, clierrors.Unsupported(clierrors.PhaseMetadata, clierrors.NoOffset,
			"image has no assembly manifest (multi-module assembly)")
	}
	return img.assemblyName(t, 1, 1, 7, 8)
}

// AssemblyRefName returns the name of the referenced assembly at row.
func (img *Image) AssemblyRefName(row uint32) (AssemblyName, error) {
	t := img.tables[TableAssemblyRef]
	if row == 0 || row > t.rows {
		return AssemblyName{}, clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset,
			"AssemblyRef row %d out of range (rows=%d)", row, t.rows)
	}
	return img.assemblyName(t, row, 0, 6, 7)
}

func (img *Image) assemblyName(t *Table, row uint32, verCol, nameCol, cultureCol int) (AssemblyName, error) {
	var a AssemblyName
	for i := range a.Version {
		a.Version[i] = uint16(t.raw(row, verCol+i))
	}
	var err error
	if a.Name, err = img.strings.Get(StringIndex(t.raw(row, nameCol))); err != nil {
		return a, err
	}
	if a.Culture, err = img.strings.Get(StringIndex(t.raw(row, cultureCol))); err != nil {
		return a, err
	}
	return a, nil
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// TypeName returns the namespace-qualified name of a TypeDef or TypeRef.
// Nested types are joined to their enclosing type with '+'.
func (img *Image) TypeName(tok Token) (string, error) {
	return img.typeName(tok, 0)
}

func (img *Image) typeName(tok Token, depth int) (string, error) {
	if depth > maxNesting {
		return "", clierrors.Format(clierrors.PhaseTable, clierrors.NoOffset, "type nesting too deep at %s", tok)
	}

	t := img.Table(tok.Table())
	if t == nil || tok.IsNil() || tok.Row() > t.rows {
		return "", clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset, "%s out of range", tok)
	}
	row := tok.Row()

	switch tok.Table() {
	case TableTypeDef:
		name, err := img.strings.Get(StringIndex(t.raw(row, 1)))
		if err != nil {
			return "", err
		}
		ns, err := img.strings.Get(StringIndex(t.raw(row, 2)))
		if err != nil {
			return "", err
		}
		if enc := img.EnclosingType(row); enc != 0 {
			outer, err := img.typeName(MakeToken(TableTypeDef, enc), depth+1)
			if err != nil {
				return "", err
			}
			return outer + "+" + qualify(ns, name), nil
		}
		return qualify(ns, name), nil

	case TableTypeRef:
		name, err := img.strings.Get(StringIndex(t.raw(row, 1)))
		if err != nil {
			return "", err
		}
		ns, err := img.strings.Get(StringIndex(t.raw(row, 2)))
		if err != nil {
			return "", err
		}
		scope, err := DecodeCoded(ResolutionScope, t.raw(row, 0))
		if err != nil {
			return "", err
		}
		if scope.Table() == TableTypeRef && !scope.IsNil() {
			outer, err := img.typeName(scope, depth+1)
			if err != nil {
				return "", err
			}
			return outer + "+" + qualify(ns, name), nil
		}
		return qualify(ns, name), nil
	}

	return "", clierrors.InvalidInput(clierrors.PhaseTable, "%s is not a TypeDef or TypeRef", tok)
}

// AssemblyQualifiedName returns the type name followed by the assembly
// that defines it.
func (img *Image) AssemblyQualifiedName(tok Token) (string, error) {
	name, err := img.TypeName(tok)
	if err != nil {
		return "", err
	}
	asm, err := img.definingAssembly(tok)
	if err != nil {
		return "", err
	}
	return name + ", " + asm.String(), nil
}

func (img *Image) definingAssembly(tok Token) (AssemblyName, error) {
	for depth := 0; tok.Table() == TableTypeRef; depth++ {
		if depth > maxNesting {
			return AssemblyName{}, clierrors.Format(clierrors.PhaseTable, clierrors.NoOffset,
				"resolution scope chain too deep at %s", tok)
		}
		scope, err := DecodeCoded(ResolutionScope, img.tables[TableTypeRef].raw(tok.Row(), 0))
		if err != nil {
			return AssemblyName{}, err
		}
		switch scope.Table() {
		case TableAssemblyRef:
			return img.AssemblyRefName(scope.Row())
		case TableModuleRef:
			return AssemblyName{}, clierrors.Unsupported(clierrors.PhaseTable, clierrors.NoOffset,
				"%s is scoped to a module reference (multi-module assembly)", tok)
		case TableModule:
			return img.AssemblyName()
		case TableTypeRef:
			if scope.IsNil() {
				return img.AssemblyName()
			}
			tok = scope
		}
	}
	return img.AssemblyName()
}

// MemberName returns the name of a MethodDef, Field, MemberRef or
// MethodSpec.
func (img *Image) MemberName(tok Token) (string, error) {
	t := img.Table(tok.Table())
	if t == nil || tok.IsNil() || tok.Row() > t.rows {
		return "", clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset, "%s out of range", tok)
	}
	switch tok.Table() {
	case TableMethodDef:
		return img.strings.Get(StringIndex(t.raw(tok.Row(), 3)))
	case TableField, TableMemberRef:
		return img.strings.Get(StringIndex(t.raw(tok.Row(), 1)))
	case TableMethodSpec:
		m, err := DecodeCoded(MethodDefOrRef, t.raw(tok.Row(), 0))
		if err != nil {
			return "", err
		}
		return img.MemberName(m)
	}
	return "", clierrors.InvalidInput(clierrors.PhaseTable, "%s is not a member", tok)
}

// FullMemberName returns "Type::Member" for a member token.
func (img *Image) FullMemberName(tok Token) (string, error) {
	name, err := img.MemberName(tok)
	if err != nil {
		return "", err
	}

	var parent Token
	switch tok.Table() {
	case TableMethodDef, TableField:
		parent, err = img.DeclaringType(tok)
	case TableMemberRef:
		parent, err = DecodeCoded(MemberRefParent, img.tables[TableMemberRef].raw(tok.Row(), 0))
	case TableMethodSpec:
		m, derr := DecodeCoded(MethodDefOrRef, img.tables[TableMethodSpec].raw(tok.Row(), 0))
		if derr != nil {
			return "", derr
		}
		return img.FullMemberName(m)
	}
	if err != nil {
		return "", err
	}

	switch parent.Table() {
	case TableTypeDef, TableTypeRef:
		if parent.IsNil() {
			break
		}
		typ, err := img.TypeName(parent)
		if err != nil {
			return "", err
		}
		return typ + "::" + name, nil
	}
	return name, nil
}

// IsFieldToken reports whether tok names a field: a Field row, or a
// MemberRef whose signature is a field signature.
func (img *Image) IsFieldToken(tok Token) bool {
	switch tok.Table() {
	case TableField:
		return true
	case TableMemberRef:
		return img.memberRefSigKind(tok) == 0x06
	}
	return false
}

// IsMethodToken reports whether tok names a method.
func (img *Image) IsMethodToken(tok Token) bool {
	switch tok.Table() {
	case TableMethodDef, TableMethodSpec:
		return true
	case TableMemberRef:
		k := img.memberRefSigKind(tok)
		return k >= 0 && k != 0x06
	}
	return false
}

// IsValueType reports whether tok is a TypeDef deriving from System.ValueType
// or System.Enum. References into other scopes cannot be decided and report
// false.
func (img *Image) IsValueType(tok Token) bool {
	t := img.tables[TableTypeDef]
	if tok.Table() != TableTypeDef || tok.IsNil() || tok.Row() > t.rows {
		return false
	}
	base, err := DecodeCoded(TypeDefOrRef, t.raw(tok.Row(), 3))
	if err != nil || base.IsNil() {
		return false
	}
	name, err := img.TypeName(base)
	if err != nil {
		return false
	}
	if name == "System.Enum" {
		return true
	}
	self, _ := img.TypeName(tok)
	return name == "System.ValueType" && self != "System.Enum"
}

// memberRefSigKind returns the low nibble of the first signature byte of a
// MemberRef, or -1 when the row or blob cannot be read.
func (img *Image) memberRefSigKind(tok Token) int {
	t := img.tables[TableMemberRef]
	if tok.IsNil() || tok.Row() > t.rows {
		return -1
	}
	sig, err := img.blob.Get(BlobIndex(t.raw(tok.Row(), 2)))
	if err != nil || len(sig) == 0 {
		return -1
	}
	return int(sig[0] & 0x0F)
}

// SplitTypeName splits "Namespace.Name" at the last dot outside any
// nesting suffix.
func SplitTypeName(full string) (namespace, name string) {
	head := full
	if i := strings.IndexByte(full, '+'); i >= 0 {
		head = full[:i]
	}
	i := strings.LastIndexByte(head, '.')
	if i < 0 {
		return "", full
	}
	return full[:i], full[i+1:]
}

// FindType returns the TypeDef whose qualified name is full, or a nil
// token. Nested types are matched with '+'.
func (img *Image) FindType(full string) (Token, error) {
	c := img.TypeDefs()
	for c.Next() {
		name, err := img.TypeName(c.Token())
		if err != nil {
			return 0, err
		}
		if name == full {
			return c.Token(), nil
		}
	}
	return 0, nil
}
