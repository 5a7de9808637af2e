package signature

import (
	"strings"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

// Leading bytes of the non-method signature forms.
const (
	leadField      = 0x06
	leadLocals     = 0x07
	leadProperty   = 0x08
	leadMethodSpec = 0x0A
)

func (d *Decoder) expectLead(want byte, what string) (byte, error) {
	lead, err := d.readByte(what)
	if err != nil {
		return 0, err
	}
	if lead&^FlagHasThis != want {
		return 0, clierrors.Format(clierrors.PhaseSignature, 0, "invalid %s lead byte 0x%02x", what, lead)
	}
	return lead, nil
}

func (d *Decoder) readTypes(what string) ([]Type, error) {
	n, err := d.readCompressed(what + " count")
	if err != nil {
		return nil, err
	}
	if int(n) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d %ss exceed the blob", n, what)
	}
	types := make([]Type, n)
	for i := range types {
		if types[i], err = d.readType(false); err != nil {
			return nil, err
		}
	}
	return types, nil
}

// DecodeField decodes a FieldSig.
func DecodeField(blob []byte) (Type, error) {
	d := NewDecoder(blob)
	lead, err := d.readByte("field signature")
	if err != nil {
		return nil, err
	}
	if lead != leadField {
		return nil, clierrors.Format(clierrors.PhaseSignature, 0, "invalid field signature lead byte 0x%02x", lead)
	}
	return d.readType(false)
}

// PropertySig is a decoded PropertySig: the property type and the types of
// its indexer parameters.
type PropertySig struct {
	HasThis bool
	Type    Type
	Params  []Type
}

func (p *PropertySig) String() string {
	var b strings.Builder
	if p.HasThis {
		b.WriteString("instance ")
	}
	p.Type.write(&b, rawToken)
	b.WriteByte('(')
	for i, t := range p.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		t.write(&b, rawToken)
	}
	b.WriteByte(')')
	return b.String()
}

// DecodeProperty decodes a PropertySig; the lead byte is 0x08, or 0x28 for
// instance properties.
func DecodeProperty(blob []byte) (*PropertySig, error) {
	d := NewDecoder(blob)
	lead, err := d.expectLead(leadProperty, "property signature")
	if err != nil {
		return nil, err
	}
	n, err := d.readCompressed("property parameter count")
	if err != nil {
		return nil, err
	}
	if int(n) > d.r.Remaining() {
		return nil, clierrors.Bounds(clierrors.PhaseSignature, int64(d.r.Offset()), "%d property parameters exceed the blob", n)
	}

	p := &PropertySig{HasThis: lead&FlagHasThis != 0}
	if p.Type, err = d.readType(false); err != nil {
		return nil, err
	}
	p.Params = make([]Type, n)
	for i := range p.Params {
		if p.Params[i], err = d.readType(false); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// DecodeLocals decodes a LocalVarSig. Each entry is TYPEDBYREF or a type
// optionally wrapped in custom modifiers, PINNED and BYREF.
func DecodeLocals(blob []byte) ([]Type, error) {
	d := NewDecoder(blob)
	lead, err := d.readByte("local signature")
	if err != nil {
		return nil, err
	}
	if lead != leadLocals {
		return nil, clierrors.Format(clierrors.PhaseSignature, 0, "invalid local signature lead byte 0x%02x", lead)
	}
	return d.readTypes("local")
}

// DecodeMethodSpec decodes the generic arguments of a MethodSpec.
func DecodeMethodSpec(blob []byte) ([]Type, error) {
	d := NewDecoder(blob)
	lead, err := d.readByte("method instantiation")
	if err != nil {
		return nil, err
	}
	if lead != leadMethodSpec {
		return nil, clierrors.Format(clierrors.PhaseSignature, 0, "invalid method instantiation lead byte 0x%02x", lead)
	}
	return d.readTypes("generic argument")
}

// DecodeTypeSpec decodes the type held by a TypeSpec row.
func DecodeTypeSpec(blob []byte) (Type, error) {
	return NewDecoder(blob).readType(false)
}

func signatureBlob(img *metadata.Image, tok metadata.Token, table metadata.TableID, col int) ([]byte, error) {
	if tok.Table() != table {
		return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "%s is not a %s token", tok, table)
	}
	t := img.Table(table)
	idx, err := t.Column(tok.Row(), col)
	if err != nil {
		return nil, err
	}
	return img.Blob().Get(metadata.BlobIndex(idx))
}

// ForMethod decodes the signature of a MethodDef, MemberRef or MethodSpec
// token. A MethodSpec yields the signature of the method it instantiates.
func ForMethod(img *metadata.Image, tok metadata.Token) (*MethodSig, error) {
	switch tok.Table() {
	case metadata.TableMethodDef:
		blob, err := signatureBlob(img, tok, metadata.TableMethodDef, 4)
		if err != nil {
			return nil, err
		}
		return DecodeMethod(blob, SigMethodDef)

	case metadata.TableMemberRef:
		blob, err := signatureBlob(img, tok, metadata.TableMemberRef, 2)
		if err != nil {
			return nil, err
		}
		if len(blob) > 0 && blob[0] == leadField {
			return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "%s references a field", tok)
		}
		return DecodeMethod(blob, SigMemberRef)

	case metadata.TableMethodSpec:
		t := img.Table(metadata.TableMethodSpec)
		raw, err := t.Column(tok.Row(), 0)
		if err != nil {
			return nil, err
		}
		method, err := metadata.DecodeCoded(metadata.MethodDefOrRef, raw)
		if err != nil {
			return nil, err
		}
		return ForMethod(img, method)
	}
	return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "%s is not a method token", tok)
}

// ForField decodes the type of a Field or field MemberRef token.
func ForField(img *metadata.Image, tok metadata.Token) (Type, error) {
	var blob []byte
	var err error
	switch tok.Table() {
	case metadata.TableField:
		blob, err = signatureBlob(img, tok, metadata.TableField, 2)
	case metadata.TableMemberRef:
		blob, err = signatureBlob(img, tok, metadata.TableMemberRef, 2)
	default:
		return nil, clierrors.InvalidInput(clierrors.PhaseSignature, "%s is not a field token", tok)
	}
	if err != nil {
		return nil, err
	}
	return DecodeField(blob)
}

// ForStandAlone decodes the method signature held by a StandAloneSig row,
// as referenced by calli.
func ForStandAlone(img *metadata.Image, tok metadata.Token) (*MethodSig, error) {
	blob, err := signatureBlob(img, tok, metadata.TableStandAloneSig, 0)
	if err != nil {
		return nil, err
	}
	return DecodeMethod(blob, SigStandAlone)
}

// LocalsOf decodes the local variable types named by a method body's
// locals token. A nil token means the method has no locals.
func LocalsOf(img *metadata.Image, tok metadata.Token) ([]Type, error) {
	if tok == 0 {
		return nil, nil
	}
	blob, err := signatureBlob(img, tok, metadata.TableStandAloneSig, 0)
	if err != nil {
		return nil, err
	}
	return DecodeLocals(blob)
}

// InstantiationOf decodes the generic arguments of a MethodSpec token.
func InstantiationOf(img *metadata.Image, tok metadata.Token) ([]Type, error) {
	blob, err := signatureBlob(img, tok, metadata.TableMethodSpec, 1)
	if err != nil {
		return nil, err
	}
	return DecodeMethodSpec(blob)
}

// TypeSpecOf decodes the type of a TypeSpec token.
func TypeSpecOf(img *metadata.Image, tok metadata.Token) (Type, error) {
	blob, err := signatureBlob(img, tok, metadata.TableTypeSpec, 0)
	if err != nil {
		return nil, err
	}
	return DecodeTypeSpec(blob)
}

// ImageNamer names tokens through img. TypeSpec tokens are decoded and
// rendered in place. Unresolvable tokens fall back to their raw form.
func ImageNamer(img *metadata.Image) Namer {
	var name Namer
	depth := 0
	name = func(tok metadata.Token) string {
		switch tok.Table() {
		case metadata.TableTypeDef, metadata.TableTypeRef:
			if s, err := img.TypeName(tok); err == nil {
				return s
			}
		case metadata.TableTypeSpec:
			if depth >= maxDepth {
				break
			}
			t, err := TypeSpecOf(img, tok)
			if err != nil {
				break
			}
			depth++
			s := Format(t, name)
			depth--
			return s
		}
		return tok.String()
	}
	return name
}

// TypeString renders t with type names resolved through img.
func TypeString(img *metadata.Image, t Type) string {
	return Format(t, ImageNamer(img))
}

// MethodString renders sig with type names resolved through img.
func MethodString(img *metadata.Image, sig *MethodSig) string {
	if sig == nil {
		return "<nil>"
	}
	return FormatMethod(sig, ImageNamer(img), "")
}

// FormatMethod renders sig, placing label between the return type and the
// parameter list.
func FormatMethod(sig *MethodSig, name Namer, label string) string {
	var b strings.Builder
	sig.write(&b, name, label)
	return b.String()
}
