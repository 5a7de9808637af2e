package metadata

import (
	"testing"

	"github.com/brickbot/clifile/internal/testasm"
)

// Row numbers of the sample assembly built by sampleBuilder.
const (
	rowModuleType = 1
	rowOuter      = 2
	rowInner      = 3

	rowMain = 1
	rowCtor = 2
	rowRun  = 3
)

// sampleBuilder describes:
//
//	namespace Demo {
//	    public class Outer : System.Object, IDisposable {
//	        int count; static long total;
//	        static void Main(int32 args);
//	        .ctor();
//	        int Count { get => Main }
//	        public class Inner { void Run(); }
//	    }
//	}
func sampleBuilder() *testasm.Builder {
	b := testasm.New()
	b.Module("Sample.dll")
	b.Assembly("Sample", 1, 2, 3, 4)
	corlib := b.AssemblyRef("mscorlib", 4, 0, 0, 0)
	object := b.TypeRef(testasm.Coded(testasm.ResolutionScope, testasm.AssemblyRef, corlib), "System", "Object")
	disposable := b.TypeRef(testasm.Coded(testasm.ResolutionScope, testasm.AssemblyRef, corlib), "System", "IDisposable")
	b.TypeRef(testasm.Coded(testasm.ResolutionScope, testasm.TypeRef, object), "", "Nested")
	modRef := b.AddRow(testasm.ModuleRef, b.String("other.netmodule"))
	b.TypeRef(testasm.Coded(testasm.ResolutionScope, testasm.ModuleRef, modRef), "Far", "Away")

	extends := testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, object)
	b.TypeDef(0, "", "<Module>", 0)
	outer := b.TypeDef(0x00100001, "Demo", "Outer", extends)
	b.Field(0x0001, "count", []byte{0x06, 0x08})
	b.Field(0x0011, "total", []byte{0x06, 0x0A})
	mainRow := b.Method(0x0096, "Main", []byte{0x00, 0x01, 0x01, 0x08}, testasm.TinyBody([]byte{0x2A}))
	b.Param(0, 1, "args")
	b.Method(0x1886, ".ctor", []byte{0x20, 0x00, 0x01}, nil)
	inner := b.TypeDef(0x00000002, "", "Inner", extends)
	b.Method(0x0086, "Run", []byte{0x20, 0x00, 0x01}, testasm.TinyBody([]byte{0x2A}))

	b.AddRow(testasm.NestedClass, inner, outer)
	b.AddRow(testasm.InterfaceImpl, outer, testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, disposable))
	b.AddRow(testasm.Constant, 0x08, 0, testasm.Coded(testasm.HasConstant, testasm.Field, 1), b.Blob([]byte{7, 0, 0, 0}))
	b.AddRow(testasm.ClassLayout, 8, 16, outer)
	b.AddRow(testasm.FieldRVA, 0x4000, 2)
	b.AddRow(testasm.GenericParam, 0, 0, testasm.Coded(testasm.TypeOrMethodDef, testasm.TypeDef, outer), b.String("T"))

	ctorRef := b.MemberRef(testasm.Coded(testasm.MemberRefParent, testasm.TypeRef, object), ".ctor", []byte{0x20, 0x00, 0x01})
	b.MemberRef(testasm.Coded(testasm.MemberRefParent, testasm.TypeRef, object), "field", []byte{0x06, 0x08})
	attrType := testasm.Coded(testasm.CustomAttributeType, testasm.MemberRef, ctorRef)
	b.AddRow(testasm.CustomAttribute, testasm.Coded(testasm.HasCustomAttribute, testasm.TypeDef, outer), attrType, b.Blob([]byte{1, 0, 0, 0}))
	b.AddRow(testasm.CustomAttribute, testasm.Coded(testasm.HasCustomAttribute, testasm.TypeDef, outer), attrType, b.Blob([]byte{1, 0, 0, 0}))
	b.AddRow(testasm.CustomAttribute, testasm.Coded(testasm.HasCustomAttribute, testasm.TypeDef, inner), attrType, b.Blob([]byte{1, 0, 0, 0}))

	b.AddRow(testasm.PropertyMap, outer, 1)
	prop := b.AddRow(testasm.Property, 0, b.String("Count"), b.Blob([]byte{0x28, 0x00, 0x08}))
	b.AddRow(testasm.MethodSemantics, 0x0002, mainRow, testasm.Coded(testasm.HasSemantics, testasm.Property, prop))

	b.UserString("hello")
	b.UserString("héllo wörld")
	b.SetEntryPoint(0x06000000 | mainRow)
	return b
}

func sampleImage(t *testing.T) *Image {
	t.Helper()
	img, err := Parse(sampleBuilder().Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return img
}
