package export

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/brickbot/clifile/internal/testasm"
	"github.com/brickbot/clifile/metadata"
)

// exportImage describes one class with a field, a method with a body and
// an abstract method, plus two user strings.
func exportImage(t *testing.T) *metadata.Image {
	t.Helper()
	b := testasm.New()
	b.Module("Export.dll")
	b.Assembly("Export", 2, 1, 0, 0)
	corlib := b.AssemblyRef("mscorlib", 4, 0, 0, 0)
	object := b.TypeRef(testasm.Coded(testasm.ResolutionScope, testasm.AssemblyRef, corlib), "System", "Object")
	b.TypeDef(0, "", "<Module>", 0)
	b.TypeDef(0x00100001, "Demo", "Widget", testasm.Coded(testasm.TypeDefOrRef, testasm.TypeRef, object))
	b.Field(0x0001, "count", []byte{0x06, 0x08})
	run := b.Method(0x0016, "Run", []byte{0x00, 0x00, 0x01}, testasm.TinyBody([]byte{0x00, 0x2A}))
	b.Method(0x05C6, "Step", []byte{0x20, 0x01, 0x01, 0x08}, nil)
	b.SetEntryPoint(uint32(metadata.MakeToken(metadata.TableMethodDef, run)))
	b.UserString("alpha")
	b.UserString("beta")

	img, err := metadata.Parse(b.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return img
}

func TestSummarize(t *testing.T) {
	img := exportImage(t)
	s, err := Summarize(img)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if s.Assembly != "Export, Version=2.1.0.0, Culture=neutral" {
		t.Errorf("Assembly = %q", s.Assembly)
	}
	if s.EntryPoint != "MethodDef:0x06000001" {
		t.Errorf("EntryPoint = %q", s.EntryPoint)
	}
	if s.UserStrings != 2 {
		t.Errorf("UserStrings = %d", s.UserStrings)
	}
	if len(s.Types) != 2 {
		t.Fatalf("got %d types", len(s.Types))
	}

	w := s.Types[1]
	if w.Name != "Demo.Widget" || w.Extends != "System.Object" || w.Fields != 1 || len(w.Methods) != 2 {
		t.Errorf("Widget = %+v", w)
	}
	run, step := w.Methods[0], w.Methods[1]
	if run.Name != "Run" || run.CodeSize != 2 || run.MaxStack != 8 || run.RVA == 0 {
		t.Errorf("Run = %+v", run)
	}
	if step.Signature != "instance void(int32)" || step.RVA != 0 || step.CodeSize != 0 {
		t.Errorf("Step = %+v", step)
	}

	rows := make(map[string]uint32)
	for _, ti := range s.Tables {
		rows[ti.Name] = ti.Rows
	}
	if rows["TypeDef"] != 2 || rows["MethodDef"] != 2 || rows["Field"] != 1 {
		t.Errorf("table rows = %v", rows)
	}
}

func TestEncodings(t *testing.T) {
	s, err := Summarize(exportImage(t))
	if err != nil {
		t.Fatal(err)
	}

	var first, second bytes.Buffer
	if err := EncodeCBOR(&first, s); err != nil {
		t.Fatalf("EncodeCBOR failed: %v", err)
	}
	if err := EncodeCBOR(&second, s); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("canonical CBOR encoding is not deterministic")
	}
	back, err := DecodeCBOR(first.Bytes())
	if err != nil {
		t.Fatalf("DecodeCBOR failed: %v", err)
	}
	if back.Assembly != s.Assembly || len(back.Types) != len(s.Types) {
		t.Errorf("decoded summary = %+v", back)
	}

	var js bytes.Buffer
	if err := EncodeJSON(&js, s); err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(js.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc["table_stream"] != "2.0" {
		t.Errorf("table_stream = %v", doc["table_stream"])
	}
}

func TestSQLite(t *testing.T) {
	img := exportImage(t)
	path := filepath.Join(t.TempDir(), "export.db")
	if err := SQLite(context.Background(), img, path); err != nil {
		t.Fatalf("SQLite failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	counts := []struct {
		table string
		want  int
	}{
		{"Module", 1},
		{"TypeRef", 1},
		{"TypeDef", 2},
		{"MethodDef", 2},
		{"types", 2},
		{"methods", 2},
		{"user_strings", 2},
	}
	for _, c := range counts {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM "` + c.table + `"`).Scan(&n); err != nil {
			t.Errorf("%s: %v", c.table, err)
			continue
		}
		if n != c.want {
			t.Errorf("%s has %d rows, want %d", c.table, n, c.want)
		}
	}

	var name string
	var codeSize sql.NullInt64
	err = db.QueryRow(`SELECT name, code_size FROM methods WHERE name = 'Step'`).Scan(&name, &codeSize)
	if err != nil || codeSize.Valid {
		t.Errorf("Step code_size = %v, %v", codeSize, err)
	}
	var value string
	if err := db.QueryRow(`SELECT value FROM user_strings ORDER BY offset LIMIT 1`).Scan(&value); err != nil || value != "alpha" {
		t.Errorf("first user string = %q, %v", value, err)
	}
	var version string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key = 'metadata_version'`).Scan(&version); err != nil || version != "v4.0.30319" {
		t.Errorf("metadata_version = %q, %v", version, err)
	}
}
