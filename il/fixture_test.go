package il

import (
	"encoding/binary"
	"testing"

	"github.com/brickbot/clifile/internal/testasm"
	"github.com/brickbot/clifile/metadata"
)

// Method rows of ilImage.
const (
	rowSum = iota + 1
	rowCaller
	rowNested
	rowGuarded
	rowAbstract
	rowTernary
	rowBadHeader
	rowOverlong
	rowChained
	rowBadClause
	rowShortHeader
	rowLength
)

var (
	sumToken     = metadata.MakeToken(metadata.TableMethodDef, rowSum)
	totalToken   = metadata.MakeToken(metadata.TableField, 1)
	calcToken    = metadata.MakeToken(metadata.TableTypeDef, 2)
	pointToken   = metadata.MakeToken(metadata.TableTypeDef, 3)
	excToken     = metadata.MakeToken(metadata.TableTypeRef, 3)
	localsToken  = metadata.MakeToken(metadata.TableStandAloneSig, 1)
	calliSigTok  = metadata.MakeToken(metadata.TableStandAloneSig, 2)
	helloLiteral = "hello"
)

// withToken encodes an instruction with a 4-byte token operand.
func withToken(op byte, tok metadata.Token) []byte {
	return binary.LittleEndian.AppendUint32([]byte{op}, uint32(tok))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Bodies shared by the fixture and the tests.
var (
	sumCode    = []byte{0x02, 0x03, 0x58, 0x2A} // ldarg.0 ldarg.1 add ret
	callerCode = concat([]byte{0x1B, 0x1D}, withToken(0x28, sumToken), []byte{0x26, 0x2A})
	nestedCode = concat([]byte{0x17, 0x18, 0x58, 0x1D}, withToken(0x28, sumToken), []byte{0x26, 0x2A})

	// nop; leave.s IL_0006; pop; leave.s IL_0006; ret
	guardedCode = []byte{0x00, 0xDE, 0x03, 0x26, 0xDE, 0x00, 0x2A}

	// ldarg.0; brfalse.s IL_0006; ldc.i4.1; br.s IL_0007; ldc.i4.2; stloc.0; ret
	ternaryCode = []byte{0x02, 0x2C, 0x03, 0x17, 0x2B, 0x01, 0x18, 0x0A, 0x2A}

	chainedCode = []byte{0x00, 0x00, 0x00, 0x00, 0x2A}
)

// ilImage describes:
//
//	class Demo.Calc : System.Object {
//	    static int32 total;
//	    static int32 Sum(int32, int32);
//	    static void Caller();   // Sum(5, 7)
//	    static void Nested();   // Sum(1 + 2, 7)
//	    instance void Guarded(); // try/catch(Exception), fat header
//	    ...
//	}
//	struct Demo.Point { instance float64 Length(); }
//
// plus bodies with malformed headers and EH sections.
func ilImage(t *testing.T) *metadata.Image {
	t.Helper()
	b := testasm.New()
	b.Module("IL.dll")
	b.Assembly("IL", 1, 0, 0, 0)
	corlib := b.AssemblyRef("mscorlib", 4, 0, 0, 0)
	scope := testasm.Coded(testasm.ResolutionScope, testasm.AssemblyRef, corlib)
	object := b.TypeRef(scope, "System", "Object")
	valueType := b.TypeRef(scope, "System", "ValueType")
	b.TypeRef(scope, "System", "Exception")

	b.TypeDef(0, "", "<Module>", 0)
	b.TypeDef(0x00100001, "Demo", "Calc", testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, object))
	b.Field(0x0016, "total", []byte{0x06, 0x08})

	b.Method(0x0016, "Sum", []byte{0x00, 0x02, 0x08, 0x08, 0x08}, testasm.TinyBody(sumCode))
	b.Method(0x0016, "Caller", []byte{0x00, 0x00, 0x01}, testasm.TinyBody(callerCode))
	b.Method(0x0016, "Nested", []byte{0x00, 0x00, 0x01}, testasm.TinyBody(nestedCode))
	b.Method(0x0006, "Guarded", []byte{0x20, 0x00, 0x01}, testasm.FatBody(2, uint32(localsToken), true, guardedCode,
		[]testasm.Clause{{Flags: 0, TryOffset: 0, TryLength: 3, HandlerOffset: 3, HandlerLength: 3, TokenOrFilter: uint32(excToken)}}, false))
	b.Method(0x0416, "Abstract", []byte{0x00, 0x00, 0x01}, nil)
	b.Method(0x0016, "Ternary", []byte{0x00, 0x01, 0x01, 0x08}, testasm.TinyBody(ternaryCode))
	b.Method(0x0016, "BadHeader", []byte{0x00, 0x00, 0x01}, []byte{0x00, 0x00, 0x00, 0x00})
	b.Method(0x0016, "Overlong", []byte{0x00, 0x00, 0x01},
		[]byte{0x03, 0x30, 0x08, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	// Two chained sections: a small finally clause, then a fat filter.
	chained := testasm.FatBody(2, 0, false, chainedCode,
		[]testasm.Clause{{Flags: 2, TryOffset: 0, TryLength: 2, HandlerOffset: 2, HandlerLength: 2}}, false)
	chained[20] |= 0x80
	chained = append(chained, testasm.EHSection(
		[]testasm.Clause{{Flags: 1, TryOffset: 0, TryLength: 1, HandlerOffset: 3, HandlerLength: 1, TokenOrFilter: 1}}, true, false)...)
	b.Method(0x0016, "Chained", []byte{0x00, 0x00, 0x01}, chained)

	b.Method(0x0016, "BadClause", []byte{0x00, 0x00, 0x01}, testasm.FatBody(2, 0, false, chainedCode,
		[]testasm.Clause{{Flags: 3, TryOffset: 0, TryLength: 1, HandlerOffset: 1, HandlerLength: 1}}, false))
	b.Method(0x0016, "ShortHeader", []byte{0x00, 0x00, 0x01},
		[]byte{0x03, 0x20, 0x08, 0x00, 0x01, 0x00, 0x00, 0x00, 0x2A, 0x00, 0x00, 0x00})

	b.TypeDef(0x00100109, "Demo", "Point", testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, valueType))
	b.Method(0x0086, "Length", []byte{0x20, 0x00, 0x0D}, nil)

	b.StandAloneSig([]byte{0x07, 0x02, 0x08, 0x0E})       // int32, string
	b.StandAloneSig([]byte{0x00, 0x02, 0x08, 0x08, 0x08}) // int32(int32, int32)
	b.UserString(helloLiteral)

	img, err := metadata.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return img
}

// userStringToken returns the token of the first user string.
func userStringToken() metadata.Token {
	return metadata.MakeToken(metadata.TableUserString, 1)
}

func readBody(t *testing.T, img *metadata.Image, row uint32) *MethodBody {
	t.Helper()
	body, err := ReadBody(img, row)
	if err != nil {
		t.Fatalf("ReadBody(%d) failed: %v", row, err)
	}
	return body
}
