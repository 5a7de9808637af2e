package il

import (
	"errors"
	"slices"
	"testing"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

func primitive(et metadata.ElementType) signature.Type { return signature.Primitive{Type: et} }

func trackedCursor(t *testing.T, c *Cursor, args, locals []signature.Type) *Cursor {
	t.Helper()
	if err := c.TrackStack(args, locals, 8); err != nil {
		t.Fatalf("TrackStack failed: %v", err)
	}
	return c
}

func sourcesOf(slots []StackSlot) []Target {
	out := make([]Target, len(slots))
	for i, s := range slots {
		out[i] = s.Source
	}
	return out
}

func TestStackStatements(t *testing.T) {
	// ldc.i4.0; ldc.i4.1; add; pop; ret
	code := []byte{0x16, 0x17, 0x58, 0x26, 0x2A}
	c := trackedCursor(t, NewCursor(nil, code), nil, nil)

	wantBegin := map[Target]bool{0: true, 1: false, 2: false, 3: false, 4: true}
	for c.Next() {
		begin, err := c.BeginStatement()
		if err != nil {
			t.Fatalf("BeginStatement failed: %v", err)
		}
		if begin != wantBegin[c.Offset()] {
			t.Errorf("BeginStatement at %s = %v", c.Offset(), begin)
		}
		if c.Offset() == 3 {
			st := c.Stack()
			if len(st) != 1 || st[0].Category != Int32 || st[0].Source != 2 {
				t.Errorf("stack after add = %v, want one int32 from IL_0002", st)
			}
		}
	}
	if err := c.Err(); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	var starts []Target
	for off, err := range c.Statements() {
		if err != nil {
			t.Fatalf("Statements failed: %v", err)
		}
		starts = append(starts, off)
	}
	if !slices.Equal(starts, []Target{0, 4}) {
		t.Errorf("Statements = %v, want [IL_0000 IL_0004]", starts)
	}
}

func TestStackAcrossBranches(t *testing.T) {
	i4 := primitive(metadata.ElementI4)
	c := trackedCursor(t, NewCursor(nil, ternaryCode), []signature.Type{i4}, []signature.Type{i4})

	wantDepth := map[Target]int{0: 0, 1: 1, 3: 0, 4: 1, 6: 0, 7: 1, 8: 0}
	for c.Next() {
		if got := len(c.Stack()); got != wantDepth[c.Offset()] {
			t.Errorf("depth at %s = %d, want %d", c.Offset(), got, wantDepth[c.Offset()])
		}
	}
	if err := c.Err(); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	var starts []Target
	for off, err := range c.Statements() {
		if err != nil {
			t.Fatal(err)
		}
		starts = append(starts, off)
	}
	if !slices.Equal(starts, []Target{0, 3, 6, 8}) {
		t.Errorf("Statements = %v", starts)
	}
}

func TestHandlerEntry(t *testing.T) {
	img := ilImage(t)
	body := readBody(t, img, rowGuarded)
	args, err := ArgumentTypes(img, metadata.MakeToken(metadata.TableMethodDef, rowGuarded))
	if err != nil {
		t.Fatalf("ArgumentTypes failed: %v", err)
	}
	locals, err := body.Locals()
	if err != nil {
		t.Fatalf("Locals failed: %v", err)
	}
	c := body.Instructions()
	if err := c.TrackStack(args, locals, body.MaxStack); err != nil {
		t.Fatal(err)
	}

	for c.Next() {
		st := c.Stack()
		switch c.Offset() {
		case 3:
			if len(st) != 1 || st[0].Category != ObjectRef || st[0].Source != 3 {
				t.Fatalf("stack at catch entry = %v", st)
			}
			if got := signature.TypeString(img, st[0].Type); got != "class System.Exception" {
				t.Errorf("exception type = %s", got)
			}
		case 6:
			if len(st) != 0 {
				t.Errorf("stack after leave = %v", st)
			}
		}
	}
	if err := c.Err(); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	c = readBody(t, img, rowChained).Instructions()
	trackedCursor(t, c, nil, nil)
	wantDepth := map[Target]int{0: 0, 1: 1, 2: 0, 3: 1, 4: 1}
	for c.Next() {
		if got := len(c.Stack()); got != wantDepth[c.Offset()] {
			t.Errorf("depth at %s = %d, want %d", c.Offset(), got, wantDepth[c.Offset()])
		}
	}
	if err := c.Err(); err != nil {
		t.Fatalf("walk over handlers failed: %v", err)
	}
}

func TestCallLoadArguments(t *testing.T) {
	img := ilImage(t)

	tests := []struct {
		name string
		row  uint32
		want []Target
	}{
		{"constants", rowCaller, []Target{0, 1}},
		{"nested expression", rowNested, []Target{0, 3}},
	}
	for _, tt := range tests {
		c := trackedCursor(t, readBody(t, img, tt.row).Instructions(), nil, nil)
		for c.Next() && !c.IsCall() {
		}
		if !c.IsCall() {
			t.Fatalf("%s: no call found: %v", tt.name, c.Err())
		}
		at := c.Offset()
		before := sourcesOf(c.Stack())

		got, err := c.CallLoadArguments()
		if err != nil {
			t.Fatalf("%s: CallLoadArguments failed: %v", tt.name, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: CallLoadArguments = %v, want %v", tt.name, got, tt.want)
		}
		if c.Offset() != at || !slices.Equal(sourcesOf(c.Stack()), before) {
			t.Errorf("%s: cursor not restored: at %s with %v", tt.name, c.Offset(), c.Stack())
		}
		if !c.Next() || c.Offset() != at+5 {
			t.Errorf("%s: Next after CallLoadArguments landed on %s", tt.name, c.Offset())
		}
		if st := c.Stack(); len(st) != 1 || st[0].Category != Int32 || st[0].Source != at {
			t.Errorf("%s: stack after call = %v", tt.name, st)
		}
	}
}

func TestCallLoadArgumentsCalli(t *testing.T) {
	img := ilImage(t)
	// ldc.i4.1; ldc.i4.2; ldftn Sum; calli int32(int32, int32); pop; ret
	code := concat([]byte{0x17, 0x18, 0xFE}, withToken(0x06, sumToken), withToken(0x29, calliSigTok), []byte{0x26, 0x2A})
	c := trackedCursor(t, NewCursor(img, code), nil, nil)
	if err := c.GoTo(8); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}
	if st := c.Stack(); len(st) != 3 || st[2].Category != NativeInt {
		t.Fatalf("stack before calli = %v", st)
	}
	got, err := c.CallLoadArguments()
	if err != nil {
		t.Fatalf("CallLoadArguments failed: %v", err)
	}
	if !slices.Equal(got, []Target{0, 1}) {
		t.Errorf("CallLoadArguments = %v", got)
	}
}

func TestCallLoadArgumentsErrors(t *testing.T) {
	img := ilImage(t)

	c := readBody(t, img, rowCaller).Instructions()
	c.Next()
	if _, err := c.CallLoadArguments(); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("without tracking: err = %v", err)
	}
	if _, err := c.BeginStatement(); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("BeginStatement without tracking: err = %v", err)
	}
	for _, err := range c.Statements() {
		if !errors.Is(err, clierrors.ErrInvalidInput) {
			t.Errorf("Statements without tracking: err = %v", err)
		}
	}

	trackedCursor(t, c, nil, nil)
	c.Next()
	if _, err := c.CallLoadArguments(); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("on ldc.i4.5: err = %v", err)
	}
}

func TestGoToTracked(t *testing.T) {
	img := ilImage(t)
	c := trackedCursor(t, readBody(t, img, rowNested).Instructions(), nil, nil)

	steps := []struct {
		to      Target
		sources []Target
	}{
		{4, []Target{2, 3}},
		{9, []Target{4}},
		{2, []Target{0, 1}},
		{10, nil},
		{0, nil},
	}
	for _, s := range steps {
		if err := c.GoTo(s.to); err != nil {
			t.Fatalf("GoTo(%s) failed: %v", s.to, err)
		}
		if c.Offset() != s.to {
			t.Errorf("GoTo(%s) landed on %s", s.to, c.Offset())
		}
		if got := sourcesOf(c.Stack()); !slices.Equal(got, s.sources) {
			t.Errorf("stack at %s = %v, want sources %v", s.to, got, s.sources)
		}
	}

	if err := c.GoTo(5); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("GoTo inside an instruction: err = %v", err)
	}

	if err := c.GoTo(9); err != nil {
		t.Fatal(err)
	}
	saved := c.SaveState()
	c.Reset()
	if err := c.RestoreState(saved); err != nil {
		t.Fatalf("RestoreState failed: %v", err)
	}
	if c.Offset() != 9 || !slices.Equal(sourcesOf(c.Stack()), []Target{4}) {
		t.Errorf("restored to %s with %v", c.Offset(), c.Stack())
	}

	if err := c.GoTo(3); err != nil {
		t.Fatal(err)
	}
	if err := c.BackToStatement(); err != nil {
		t.Fatalf("BackToStatement failed: %v", err)
	}
	if c.Offset() != 0 || len(c.Stack()) != 0 {
		t.Errorf("BackToStatement landed on %s with %v", c.Offset(), c.Stack())
	}
}

func TestBinaryPromotion(t *testing.T) {
	i4 := primitive(metadata.ElementI4)
	i8 := primitive(metadata.ElementI8)
	native := primitive(metadata.ElementI)
	r4 := primitive(metadata.ElementR4)
	r8 := primitive(metadata.ElementR8)
	str := primitive(metadata.ElementString)
	ref := signature.ByRef{Elem: i4}

	tests := []struct {
		name string
		a, b signature.Type
		op   []byte
		want Category // None marks a stack shape error
	}{
		{"int32 add", i4, i4, []byte{0x58}, Int32},
		{"native add", i4, native, []byte{0x58}, NativeInt},
		{"int64 mul", i8, i8, []byte{0x5A}, Int64},
		{"float div", r8, r4, []byte{0x5B}, Float},
		{"ref plus offset", ref, i4, []byte{0x58}, ManagedRef},
		{"offset plus ref", i4, ref, []byte{0x58}, ManagedRef},
		{"ref difference", ref, ref, []byte{0x59}, NativeInt},
		{"offset minus ref", i4, ref, []byte{0x59}, None},
		{"float and", r8, r8, []byte{0x5F}, None},
		{"mixed widths", i4, i8, []byte{0x58}, None},
		{"ref mul", ref, i4, []byte{0x5A}, None},
		{"int64 shl", i8, i4, []byte{0x62}, Int64},
		{"ceq", i4, native, []byte{0xFE, 0x01}, Int32},
		{"object ceq", str, str, []byte{0xFE, 0x01}, Int32},
		{"float clt int", r8, i4, []byte{0xFE, 0x04}, None},
	}
	for _, tt := range tests {
		code := append([]byte{0x02, 0x03}, tt.op...)
		c := trackedCursor(t, NewCursor(nil, code), []signature.Type{tt.a, tt.b}, nil)
		for c.Next() {
		}
		err := c.Err()
		if tt.want == None {
			if !errors.Is(err, clierrors.ErrStackShape) {
				t.Errorf("%s: err = %v, want stack shape error", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: failed: %v", tt.name, err)
			continue
		}
		st := c.Stack()
		if len(st) != 1 || st[0].Category != tt.want || st[0].Source != 2 {
			t.Errorf("%s: stack = %v, want one %s", tt.name, st, tt.want)
		}
	}
}

func TestStackShapeErrors(t *testing.T) {
	i4 := primitive(metadata.ElementI4)
	tests := []struct {
		name string
		code []byte
		args []signature.Type
	}{
		{"underflow", []byte{0x58, 0x2A}, nil},
		{"pop empty", []byte{0x26}, nil},
		{"ret with two values", []byte{0x16, 0x16, 0x2A}, nil},
		{"argument out of range", []byte{0x03, 0x2A}, []signature.Type{i4}},
		{"newarr of float", []byte{0x22, 0, 0, 0x80, 0x3F, 0x8D, 0x01, 0x00, 0x00, 0x01}, nil},
		{"jmp with values", []byte{0x16, 0x27, 0x01, 0x00, 0x00, 0x06}, nil},
	}
	for _, tt := range tests {
		c := trackedCursor(t, NewCursor(nil, tt.code), tt.args, nil)
		for c.Next() {
		}
		if err := c.Err(); !errors.Is(err, clierrors.ErrStackShape) {
			t.Errorf("%s: err = %v, want stack shape error", tt.name, err)
		}
	}

	if err := NewCursor(nil, nil).TrackStack(nil, nil, -1); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("negative max stack: err = %v", err)
	}
}

func TestArgumentTypes(t *testing.T) {
	img := ilImage(t)

	tests := []struct {
		row  uint32
		want []string
	}{
		{rowSum, []string{"int32", "int32"}},
		{rowGuarded, []string{"class Demo.Calc"}},
		{rowLength, []string{"valuetype Demo.Point&"}},
		{rowCaller, nil},
	}
	for _, tt := range tests {
		args, err := ArgumentTypes(img, metadata.MakeToken(metadata.TableMethodDef, tt.row))
		if err != nil {
			t.Errorf("row %d: %v", tt.row, err)
			continue
		}
		var got []string
		for _, a := range args {
			got = append(got, signature.TypeString(img, a))
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("row %d: %v, want %v", tt.row, got, tt.want)
		}
	}

	if _, err := ArgumentTypes(img, totalToken); !errors.Is(err, clierrors.ErrInvalidInput) {
		t.Errorf("field token: err = %v", err)
	}

	if !img.IsValueType(pointToken) || img.IsValueType(calcToken) || img.IsValueType(excToken) {
		t.Error("IsValueType misclassifies the fixture types")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		t    signature.Type
		want Category
	}{
		{primitive(metadata.ElementBoolean), Int32},
		{primitive(metadata.ElementU8), Int64},
		{primitive(metadata.ElementU), NativeInt},
		{primitive(metadata.ElementR4), Float},
		{primitive(metadata.ElementObject), ObjectRef},
		{signature.SzArray{Elem: primitive(metadata.ElementI4)}, ObjectRef},
		{signature.ByRef{Elem: primitive(metadata.ElementI4)}, ManagedRef},
		{signature.Pointer{Elem: primitive(metadata.ElementVoid)}, NativeInt},
		{signature.Compound{Token: pointToken, ValueType: true}, None},
		{signature.Compound{Token: calcToken}, ObjectRef},
	}
	for _, tt := range tests {
		if got := CategoryOf(tt.t); got != tt.want {
			t.Errorf("CategoryOf(%s) = %s, want %s", tt.t, got, tt.want)
		}
	}
}
