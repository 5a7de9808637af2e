package signature

import (
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/testasm"
	"github.com/brickbot/clifile/metadata"
)

// signatureImage describes:
//
//	class Demo.Widget : System.Object {
//	    List<int32> items;
//	    instance void Add(int32, string);
//	    static !!0 Make<T>(!!0);
//	}
//
// plus a generic TypeSpec, a MethodSpec, standalone signatures and two
// custom attributes.
func signatureImage(t *testing.T) *metadata.Image {
	t.Helper()
	b := testasm.New()
	b.Module("Sig.dll")
	b.Assembly("Sig", 1, 0, 0, 0)
	corlib := b.AssemblyRef("mscorlib", 4, 0, 0, 0)
	scope := testasm.Coded(testasm.ResolutionScope, testasm.AssemblyRef, corlib)
	// Encoded as TypeDefOrRef: Object 0x05, Type 0x09, List`1 0x0D.
	object := b.TypeRef(scope, "System", "Object")
	b.TypeRef(scope, "System", "Type")
	b.TypeRef(scope, "System.Collections.Generic", "List`1")
	attr := b.TypeRef(scope, "Demo", "InfoAttribute")
	b.TypeDef(0, "", "<Module>", 0)
	b.TypeDef(0x00100001, "Demo", "Widget", testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, object))
	b.Field(0x0001, "items", []byte{0x06, 0x15, 0x12, 0x0D, 0x01, 0x08})
	b.Method(0x0086, "Add", []byte{0x20, 0x02, 0x01, 0x08, 0x0E}, nil)
	makeRow := b.Method(0x0096, "Make", []byte{0x10, 0x01, 0x01, 0x1E, 0x00, 0x1E, 0x00}, nil)

	attrParent := testasm.Coded(testasm.MemberRefParent, testasm.TypeRef, attr)
	ctor := b.MemberRef(attrParent, ".ctor", []byte{0x20, 0x03, 0x01, 0x0E, 0x12, 0x09, 0x1D, 0x08})
	b.MemberRef(testasm.Coded(testasm.MemberRefParent, testasm.TypeRef, object), "count", []byte{0x06, 0x08})
	boxed := b.MemberRef(attrParent, ".ctor", []byte{0x20, 0x01, 0x01, 0x1C})

	b.StandAloneSig([]byte{0x07, 0x02, 0x08, 0x0E})
	b.StandAloneSig([]byte{0x00, 0x01, 0x08, 0x08})
	b.TypeSpec([]byte{0x15, 0x12, 0x0D, 0x01, 0x0E})
	b.AddRow(testasm.MethodSpec, testasm.Coded(testasm.MethodDefOrRef, testasm.MethodDef, makeRow), b.Blob([]byte{0x0A, 0x01, 0x0E}))

	// Rows sorted by parent: MethodDef (tag 0) before TypeDef (tag 3).
	b.AddRow(testasm.CustomAttribute,
		testasm.Coded(testasm.HasCustomAttribute, testasm.MethodDef, makeRow),
		testasm.Coded(testasm.CustomAttributeType, testasm.MemberRef, boxed),
		b.Blob([]byte{0x01, 0x00, 0x08, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}))
	value := []byte{
		0x01, 0x00, // prolog
		0x02, 'h', 'i',
		0x0C, 'S', 'y', 's', 't', 'e', 'm', '.', 'I', 'n', 't', '3', '2',
		0x02, 0x00, 0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x07, 0x00, 0x00, 0x00,
		0x02, 0x00, // named
		0x54, 0x08, 0x05, 'L', 'e', 'v', 'e', 'l', 0x03, 0x00, 0x00, 0x00,
		0x53, 0x0E, 0x04, 'N', 'o', 't', 'e', 0xFF,
	}
	b.AddRow(testasm.CustomAttribute,
		testasm.Coded(testasm.HasCustomAttribute, testasm.TypeDef, 2),
		testasm.Coded(testasm.CustomAttributeType, testasm.MemberRef, ctor),
		b.Blob(value))

	img, err := metadata.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return img
}

func TestForMethod(t *testing.T) {
	img := signatureImage(t)

	add, err := ForMethod(img, metadata.MakeToken(metadata.TableMethodDef, 1))
	if err != nil {
		t.Fatalf("ForMethod(Add) failed: %v", err)
	}
	if got := MethodString(img, add); got != "instance void(int32, string)" {
		t.Errorf("Add = %q", got)
	}
	if add.ArgCount() != 3 {
		t.Errorf("Add ArgCount = %d", add.ArgCount())
	}

	spec := metadata.MakeToken(metadata.TableMethodSpec, 1)
	sig, err := ForMethod(img, spec)
	if err != nil {
		t.Fatalf("ForMethod(MethodSpec) failed: %v", err)
	}
	if sig.GenericParamCount != 1 {
		t.Errorf("MethodSpec resolves to a signature with %d generic parameters", sig.GenericParamCount)
	}
	args, err := InstantiationOf(img, spec)
	if err != nil || len(args) != 1 {
		t.Fatalf("InstantiationOf = %v, %v", args, err)
	}
	ret, err := Instantiate(sig.Return, nil, args)
	if err != nil || ret.String() != "string" {
		t.Errorf("instantiated return = %v, %v", ret, err)
	}

	ctor, err := ForMethod(img, metadata.MakeToken(metadata.TableMemberRef, 1))
	if err != nil {
		t.Fatalf("ForMethod(MemberRef) failed: %v", err)
	}
	if got := MethodString(img, ctor); got != "instance void(string, class System.Type, int32[])" {
		t.Errorf(".ctor = %q", got)
	}

	errTests := []struct {
		name string
		tok  metadata.Token
		want error
	}{
		{"field reference", metadata.MakeToken(metadata.TableMemberRef, 2), clierrors.ErrInvalidInput},
		{"type token", metadata.MakeToken(metadata.TableTypeDef, 2), clierrors.ErrInvalidInput},
		{"row past end", metadata.MakeToken(metadata.TableMethodDef, 9), clierrors.ErrBounds},
	}
	for _, tt := range errTests {
		if _, err := ForMethod(img, tt.tok); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestMemberSignatures(t *testing.T) {
	img := signatureImage(t)

	items, err := ForField(img, metadata.MakeToken(metadata.TableField, 1))
	if err != nil {
		t.Fatalf("ForField failed: %v", err)
	}
	if got := TypeString(img, items); got != "class System.Collections.Generic.List`1<int32>" {
		t.Errorf("items = %q", got)
	}
	count, err := ForField(img, metadata.MakeToken(metadata.TableMemberRef, 2))
	if err != nil || count.String() != "int32" {
		t.Errorf("ForField(MemberRef) = %v, %v", count, err)
	}
	if _, err := ForField(img, metadata.MakeToken(metadata.TableMethodDef, 1)); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("ForField(MethodDef) err = %v", err)
	}

	calli, err := ForStandAlone(img, metadata.MakeToken(metadata.TableStandAloneSig, 2))
	if err != nil || calli.String() != "int32(int32)" {
		t.Errorf("ForStandAlone = %v, %v", calli, err)
	}

	locals, err := LocalsOf(img, metadata.MakeToken(metadata.TableStandAloneSig, 1))
	if err != nil || len(locals) != 2 || locals[1].String() != "string" {
		t.Errorf("LocalsOf = %v, %v", locals, err)
	}
	none, err := LocalsOf(img, 0)
	if err != nil || none != nil {
		t.Errorf("LocalsOf(0) = %v, %v", none, err)
	}

	spec, err := TypeSpecOf(img, metadata.MakeToken(metadata.TableTypeSpec, 1))
	if err != nil {
		t.Fatalf("TypeSpecOf failed: %v", err)
	}
	if got := TypeString(img, spec); got != "class System.Collections.Generic.List`1<string>" {
		t.Errorf("TypeSpec = %q", got)
	}

	widget := SzArray{Elem: Compound{Token: metadata.MakeToken(metadata.TableTypeDef, 2)}}
	if got := TypeString(img, widget); got != "class Demo.Widget[]" {
		t.Errorf("TypeString(Widget[]) = %q", got)
	}
	missing := Compound{Token: metadata.MakeToken(metadata.TableTypeRef, 99)}
	if got := TypeString(img, missing); got != "class TypeRef:0x01000063" {
		t.Errorf("unresolvable token rendered as %q", got)
	}
}

func TestCustomAttributes(t *testing.T) {
	img := signatureImage(t)

	attr, err := CustomAttributeAt(img, 2)
	if err != nil {
		t.Fatalf("CustomAttributeAt failed: %v", err)
	}
	if attr.Parent != metadata.MakeToken(metadata.TableTypeDef, 2) || attr.Constructor != metadata.MakeToken(metadata.TableMemberRef, 1) {
		t.Errorf("Parent = %v, Constructor = %v", attr.Parent, attr.Constructor)
	}
	if len(attr.Fixed) != 3 {
		t.Fatalf("Fixed = %v", attr.Fixed)
	}
	if attr.Fixed[0] != "hi" || attr.Fixed[1] != "System.Int32" {
		t.Errorf("Fixed = %v", attr.Fixed)
	}
	arr, ok := attr.Fixed[2].([]any)
	if !ok || len(arr) != 2 || arr[0] != int32(5) || arr[1] != int32(7) {
		t.Errorf("array argument = %#v", attr.Fixed[2])
	}

	if len(attr.Named) != 2 {
		t.Fatalf("Named = %v", attr.Named)
	}
	level := attr.Named[0]
	if !level.Property || level.Name != "Level" || level.Value != int32(3) {
		t.Errorf("first named = %+v", level)
	}
	note := attr.Named[1]
	if note.Property || note.Name != "Note" || note.Value != nil {
		t.Errorf("second named = %+v", note)
	}

	if _, err := CustomAttributeAt(img, 1); !errors.Is(err, clierrors.ErrUnsupported) {
		t.Errorf("boxed argument: err = %v", err)
	}
	if _, err := CustomAttributeAt(img, 0); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("row 0: err = %v", err)
	}
}

func TestDecodeCustomAttributeErrors(t *testing.T) {
	img := signatureImage(t)
	ctor, err := DecodeMethod([]byte{0x20, 0x01, 0x01, 0x08}, SigMemberRef)
	if err != nil {
		t.Fatal(err)
	}
	enumCtor, err := DecodeMethod([]byte{0x20, 0x01, 0x01, 0x11, 0x08}, SigMemberRef)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ctor *MethodSig
		blob []byte
		want error
	}{
		{"bad prolog", ctor, []byte{0x02, 0x00, 0, 0, 0, 0, 0, 0}, clierrors.ErrFormat},
		{"truncated argument", ctor, []byte{0x01, 0x00, 0x05}, clierrors.ErrBounds},
		{"enum argument", enumCtor, []byte{0x01, 0x00, 0, 0, 0, 0, 0, 0}, clierrors.ErrUnsupported},
		{"bad named kind", ctor, []byte{0x01, 0x00, 0, 0, 0, 0, 0x01, 0x00, 0x50}, clierrors.ErrFormat},
		{"enum named argument", ctor, []byte{0x01, 0x00, 0, 0, 0, 0, 0x01, 0x00, 0x53, 0x55}, clierrors.ErrUnsupported},
	}
	for _, tt := range tests {
		if _, err := DecodeCustomAttribute(img, tt.ctor, tt.blob); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
