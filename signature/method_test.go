package signature

import (
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
)

func TestDecodeMethod(t *testing.T) {
	tests := []struct {
		name     string
		blob     []byte
		kind     SigKind
		want     string
		generic  int
		argCount int
	}{
		{"instance", []byte{0x20, 0x02, 0x08, 0x0E, 0x10, 0x08}, SigMethodDef, "instance int32(string, int32&)", -1, 3},
		{"static void", []byte{0x00, 0x00, 0x01}, SigMethodDef, "void()", -1, 0},
		{"generic", []byte{0x30, 0x01, 0x01, 0x1E, 0x00, 0x1E, 0x00}, SigMethodDef, "instance !!0<[1]>(!!0)", 1, 2},
		{"explicit this", []byte{0x60, 0x01, 0x01, 0x12, 0x49}, SigMemberRef,
			"instance explicit void(class TypeRef:0x01000012)", -1, 1},
		{"standalone ignores generic count", []byte{0x10, 0x00, 0x01}, SigStandAlone, "void()", -1, 0},
		{"unmanaged standalone", []byte{0x02, 0x01, 0x08, 0x18}, SigStandAlone, "unmanaged stdcall int32(native int)", -1, 1},
		{"modified return", []byte{0x00, 0x00, 0x1F, 0x49, 0x01}, SigMethodDef, "void modreq(TypeRef:0x01000012)()", -1, 0},
		{"typedref return", []byte{0x00, 0x00, 0x16}, SigMethodDef, "typedref()", -1, 0},
	}
	for _, tt := range tests {
		sig, err := DecodeMethod(tt.blob, tt.kind)
		if err != nil {
			t.Errorf("%s: DecodeMethod failed: %v", tt.name, err)
			continue
		}
		if sig.String() != tt.want {
			t.Errorf("%s: String = %q, want %q", tt.name, sig.String(), tt.want)
		}
		if sig.GenericParamCount != tt.generic {
			t.Errorf("%s: GenericParamCount = %d, want %d", tt.name, sig.GenericParamCount, tt.generic)
		}
		if sig.ArgCount() != tt.argCount {
			t.Errorf("%s: ArgCount = %d, want %d", tt.name, sig.ArgCount(), tt.argCount)
		}
	}

	sig, _ := DecodeMethod([]byte{0x00, 0x00, 0x1F, 0x49, 0x01}, SigMethodDef)
	if !sig.ReturnsVoid() {
		t.Error("modified void return not reported as void")
	}
}

func TestDecodeMethodVarArg(t *testing.T) {
	// int32, ..., string, float32
	sig, err := DecodeMethod([]byte{0x05, 0x03, 0x01, 0x08, 0x41, 0x0E, 0x0C}, SigMemberRef)
	if err != nil {
		t.Fatalf("DecodeMethod failed: %v", err)
	}
	if sig.Convention != ConvVarArg {
		t.Errorf("Convention = %v", sig.Convention)
	}

	var params []Param
	for p, err := range sig.Params() {
		if err != nil {
			t.Fatalf("Params: %v", err)
		}
		params = append(params, p)
	}
	if len(params) != 4 {
		t.Fatalf("Params yielded %d entries, want 4", len(params))
	}
	if !params[1].Sentinel || params[0].Sentinel || params[2].Sentinel {
		t.Errorf("sentinel flags = %v %v %v %v", params[0].Sentinel, params[1].Sentinel, params[2].Sentinel, params[3].Sentinel)
	}

	types, err := sig.ParamTypes()
	if err != nil || len(types) != 3 {
		t.Fatalf("ParamTypes = %v, %v", types, err)
	}
	if types[2].String() != "float32" {
		t.Errorf("third parameter = %s", types[2])
	}
}

func TestDecodeMethodErrors(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
		kind SigKind
		want error
	}{
		{"empty", nil, SigMethodDef, clierrors.ErrBounds},
		{"field lead", []byte{0x06, 0x08}, SigMemberRef, clierrors.ErrFormat},
		{"local lead", []byte{0x07, 0x00}, SigStandAlone, clierrors.ErrFormat},
		{"unmanaged method def", []byte{0x09, 0x00, 0x01}, SigMethodDef, clierrors.ErrFormat},
		{"parameter count past end", []byte{0x00, 0x05, 0x01}, SigMethodDef, clierrors.ErrBounds},
		{"missing return", []byte{0x00, 0x00}, SigMethodDef, clierrors.ErrBounds},
	}
	for _, tt := range tests {
		if _, err := DecodeMethod(tt.blob, tt.kind); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	// Parameters decode lazily, so a bad parameter surfaces from ParamTypes.
	sig, err := DecodeMethod([]byte{0x00, 0x01, 0x01, 0x21}, SigMethodDef)
	if err != nil {
		t.Fatalf("header decode failed: %v", err)
	}
	if _, err := sig.ParamTypes(); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("ParamTypes err = %v", err)
	}
}

func TestDecodeProperty(t *testing.T) {
	p, err := DecodeProperty([]byte{0x28, 0x01, 0x08, 0x0E})
	if err != nil {
		t.Fatalf("DecodeProperty failed: %v", err)
	}
	if !p.HasThis || p.String() != "instance int32(string)" {
		t.Errorf("property = %q (HasThis=%v)", p.String(), p.HasThis)
	}

	p, err = DecodeProperty([]byte{0x08, 0x00, 0x0E})
	if err != nil || p.HasThis || len(p.Params) != 0 {
		t.Errorf("static property = %+v, %v", p, err)
	}

	if _, err := DecodeProperty([]byte{0x06, 0x00, 0x08}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("field lead: err = %v", err)
	}
}

func TestDecodeLocals(t *testing.T) {
	locals, err := DecodeLocals([]byte{0x07, 0x03, 0x08, 0x45, 0x10, 0x08, 0x16})
	if err != nil {
		t.Fatalf("DecodeLocals failed: %v", err)
	}
	want := []string{"int32", "int32& pinned", "typedref"}
	if len(locals) != len(want) {
		t.Fatalf("got %d locals, want %d", len(locals), len(want))
	}
	for i, w := range want {
		if locals[i].String() != w {
			t.Errorf("local %d = %q, want %q", i, locals[i], w)
		}
	}
	if _, ok := Underlying(locals[1]).(ByRef); !ok {
		t.Errorf("Underlying(pinned) = %T", Underlying(locals[1]))
	}

	if _, err := DecodeLocals([]byte{0x06, 0x01, 0x08}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("wrong lead: err = %v", err)
	}
	if _, err := DecodeLocals([]byte{0x07, 0x02, 0x08}); !errors.Is(err, clierrors.ErrBounds) {
		t.Errorf("truncated: err = %v", err)
	}
}

func TestDecodeFieldAndSpecs(t *testing.T) {
	f, err := DecodeField([]byte{0x06, 0x1D, 0x08})
	if err != nil || f.String() != "int32[]" {
		t.Errorf("DecodeField = %v, %v", f, err)
	}
	if _, err := DecodeField([]byte{0x26, 0x08}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("DecodeField(0x26) err = %v", err)
	}

	args, err := DecodeMethodSpec([]byte{0x0A, 0x02, 0x08, 0x0E})
	if err != nil || len(args) != 2 || args[1].Kind() != metadata.ElementString {
		t.Errorf("DecodeMethodSpec = %v, %v", args, err)
	}
	if _, err := DecodeMethodSpec([]byte{0x07, 0x01, 0x08}); !errors.Is(err, clierrors.ErrFormat) {
		t.Errorf("DecodeMethodSpec(wrong lead) err = %v", err)
	}

	ts, err := DecodeTypeSpec([]byte{0x15, 0x12, 0x0D, 0x01, 0x0E})
	if err != nil || ts.Kind() != metadata.ElementGenericInst {
		t.Errorf("DecodeTypeSpec = %v, %v", ts, err)
	}
}
