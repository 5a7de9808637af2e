// Package export renders a metadata image as a summary document (JSON or
// canonical CBOR) or as a SQLite database.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"go.uber.org/zap"

	"github.com/brickbot/clifile/il"
	"github.com/brickbot/clifile/metadata"
	"github.com/brickbot/clifile/signature"
)

// Summary is a serializable overview of an image. CBOR encoding reuses the
// JSON field names.
type Summary struct {
	Path            string       `json:"path,omitempty"`
	Assembly        string       `json:"assembly,omitempty"`
	MetadataVersion string       `json:"metadata_version"`
	TableStream     string       `json:"table_stream"`
	PE32Plus        bool         `json:"pe32_plus"`
	EntryPoint      string       `json:"entry_point,omitempty"`
	Streams         []StreamInfo `json:"streams"`
	Tables          []TableInfo  `json:"tables"`
	Types           []TypeInfo   `json:"types"`
	UserStrings     int          `json:"user_strings"`
}

type StreamInfo struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Size   uint32 `json:"size"`
}

type TableInfo struct {
	Name   string `json:"name"`
	Rows   uint32 `json:"rows"`
	Sorted bool   `json:"sorted"`
}

type TypeInfo struct {
	Token   uint32       `json:"token"`
	Name    string       `json:"name"`
	Extends string       `json:"extends,omitempty"`
	Fields  int          `json:"fields"`
	Methods []MethodInfo `json:"methods,omitempty"`
}

type MethodInfo struct {
	Token     uint32 `json:"token"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	RVA       uint32 `json:"rva,omitempty"`
	CodeSize  int    `json:"code_size,omitempty"`
	MaxStack  int    `json:"max_stack,omitempty"`
	Clauses   int    `json:"clauses,omitempty"`
}

// Summarize collects the summary of img. Rows whose names or signatures
// fail to decode are reported with empty fields rather than failing the
// whole summary.
func Summarize(img *metadata.Image) (*Summary, error) {
	major, minor := img.TableStreamVersion()
	s := &Summary{
		Path:            img.Path(),
		MetadataVersion: img.Version(),
		TableStream:     fmt.Sprintf("%d.%d", major, minor),
		PE32Plus:        img.PE() != nil && img.PE().Is64(),
		UserStrings:     countUserStrings(img),
	}
	if name, err := img.AssemblyName(); err == nil {
		s.Assembly = name.String()
	}
	if ep := img.EntryPoint(); !ep.IsNil() {
		s.EntryPoint = ep.String()
	}
	for _, h := range img.Streams() {
		s.Streams = append(s.Streams, StreamInfo{Name: h.Name, Offset: h.Offset, Size: h.Size})
	}
	for id := metadata.TableID(0); id < metadata.NumTables; id++ {
		t := img.Table(id)
		if t == nil || t.Rows() == 0 {
			continue
		}
		s.Tables = append(s.Tables, TableInfo{Name: id.String(), Rows: t.Rows(), Sorted: t.Sorted()})
	}

	types := img.TypeDefs()
	for types.Next() {
		ti, err := summarizeType(img, types)
		if err != nil {
			return nil, fmt.Errorf("export: failed to summarize %s: %w", types.Token(), err)
		}
		s.Types = append(s.Types, ti)
	}
	return s, nil
}

func summarizeType(img *metadata.Image, c *metadata.TypeDefCursor) (TypeInfo, error) {
	tok := c.Token()
	ti := TypeInfo{Token: uint32(tok)}
	ti.Name, _ = img.TypeName(tok)
	if base, err := c.Extends(); err == nil && !base.IsNil() {
		ti.Extends, _ = img.TypeName(base)
	}

	fields, err := img.FieldRange(tok.Row())
	if err != nil {
		return ti, err
	}
	ti.Fields = fields.Len()

	methods, err := img.MethodRange(tok.Row())
	if err != nil {
		return ti, err
	}
	for m := range methods.Tokens() {
		ti.Methods = append(ti.Methods, summarizeMethod(img, m))
	}
	return ti, nil
}

func summarizeMethod(img *metadata.Image, tok metadata.Token) MethodInfo {
	mi := MethodInfo{Token: uint32(tok)}
	mi.Name, _ = img.MemberName(tok)
	if sig, err := signature.ForMethod(img, tok); err == nil {
		mi.Signature = signature.MethodString(img, sig)
	}

	c := img.MethodDefs()
	if c.Goto(tok.Row()) != nil || c.RVA() == 0 {
		return mi
	}
	mi.RVA = c.RVA()
	body, err := il.BodyAt(img, mi.RVA)
	if err != nil {
		metadata.Logger().Debug("method body skipped",
			zap.Stringer("method", tok), zap.Error(err))
		return mi
	}
	mi.CodeSize = len(body.Code())
	mi.MaxStack = body.MaxStack
	mi.Clauses = len(body.Clauses())
	return mi
}

func countUserStrings(img *metadata.Image) int {
	n := 0
	for range img.UserStrings().All() {
		n++
	}
	return n
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("export: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeCBOR writes s as canonical CBOR.
func EncodeCBOR(w io.Writer, s *Summary) error {
	data, err := cborEncMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("export: marshal cbor: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// DecodeCBOR reads a summary written by EncodeCBOR.
func DecodeCBOR(data []byte) (*Summary, error) {
	var s Summary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("export: unmarshal cbor: %w", err)
	}
	return &s, nil
}

// EncodeJSON writes s as indented JSON.
func EncodeJSON(w io.Writer, s *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("export: marshal json: %w", err)
	}
	return nil
}
