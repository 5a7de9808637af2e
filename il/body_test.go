package il

import (
	"bytes"
	"errors"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
)

func TestTinyBody(t *testing.T) {
	img := ilImage(t)
	body := readBody(t, img, rowSum)

	if body.Fat || body.HeaderSize != 1 || body.MaxStack != 8 {
		t.Errorf("header = fat %v size %d maxstack %d, want tiny 1/8", body.Fat, body.HeaderSize, body.MaxStack)
	}
	if !bytes.Equal(body.Code(), sumCode) {
		t.Errorf("Code = % x, want % x", body.Code(), sumCode)
	}
	if len(body.Clauses()) != 0 {
		t.Errorf("tiny body has %d clauses", len(body.Clauses()))
	}
	locals, err := body.Locals()
	if err != nil || locals != nil {
		t.Errorf("Locals = %v, %v, want none", locals, err)
	}
}

func TestFatBody(t *testing.T) {
	img := ilImage(t)
	body := readBody(t, img, rowGuarded)

	if !body.Fat || body.HeaderSize != 12 || body.MaxStack != 2 || !body.InitLocals {
		t.Errorf("header = fat %v size %d maxstack %d initlocals %v", body.Fat, body.HeaderSize, body.MaxStack, body.InitLocals)
	}
	if body.LocalsToken != localsToken {
		t.Errorf("LocalsToken = %s, want %s", body.LocalsToken, localsToken)
	}
	if len(body.Code()) != len(guardedCode) {
		t.Errorf("len(Code) = %d, want %d", len(body.Code()), len(guardedCode))
	}

	want := EHClause{Kind: ClauseCatch, TryOffset: 0, TryLength: 3, HandlerOffset: 3, HandlerLength: 3, ClassToken: excToken}
	clauses := body.Clauses()
	if len(clauses) != 1 || clauses[0] != want {
		t.Fatalf("Clauses = %+v, want [%+v]", clauses, want)
	}

	locals, err := body.Locals()
	if err != nil {
		t.Fatalf("Locals failed: %v", err)
	}
	if len(locals) != 2 || locals[0].String() != "int32" || locals[1].String() != "string" {
		t.Errorf("Locals = %v, want [int32 string]", locals)
	}
}

func TestChainedSections(t *testing.T) {
	img := ilImage(t)
	body := readBody(t, img, rowChained)

	want := []EHClause{
		{Kind: ClauseFinally, TryOffset: 0, TryLength: 2, HandlerOffset: 2, HandlerLength: 2},
		{Kind: ClauseFilter, TryOffset: 0, TryLength: 1, HandlerOffset: 3, HandlerLength: 1, FilterOffset: 1},
	}
	got := body.Clauses()
	if len(got) != len(want) {
		t.Fatalf("got %d clauses, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("clause %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[1].Kind.String() != "filter" {
		t.Errorf("Kind.String = %q", got[1].Kind)
	}
}

func TestReadBodyErrors(t *testing.T) {
	img := ilImage(t)

	tests := []struct {
		name string
		row  uint32
		want error
	}{
		{"row zero", 0, clierrors.ErrInvalidInput},
		{"no body", rowAbstract, clierrors.ErrInvalidInput},
		{"row past end", 99, clierrors.ErrBounds},
		{"header format", rowBadHeader, clierrors.ErrFormat},
		{"code past image", rowOverlong, clierrors.ErrBounds},
		{"clause flags", rowBadClause, clierrors.ErrFormat},
		{"fat header too small", rowShortHeader, clierrors.ErrFormat},
	}
	for _, tt := range tests {
		if _, err := ReadBody(img, tt.row); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	if _, err := BodyAt(img, 0x7FFF0000); err == nil {
		t.Error("BodyAt outside every section should fail")
	}
}
