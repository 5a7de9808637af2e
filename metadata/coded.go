package metadata

import (
	"fmt"

	clierrors "github.com/brickbot/clifile/errors"
)

// CodedKind identifies a family of coded indexes: a tag selecting one of
// several tables packed together with a row number.
type CodedKind uint8

const (
	TypeDefOrRef CodedKind = iota
	HasConstant
	HasCustomAttribute
	HasFieldMarshal
	HasDeclSecurity
	MemberRefParent
	HasSemantics
	MethodDefOrRef
	MemberForwarded
	Implementation
	CustomAttributeType
	ResolutionScope
	TypeOrMethodDef

	numCodedKinds
)

// noTable marks a tag value that the format reserves.
const noTable TableID = 0xFF

type codedInfo struct {
	name   string
	bits   uint
	tables []TableID
}

var codedInfos = [numCodedKinds]codedInfo{
	TypeDefOrRef: {"TypeDefOrRef", 2, []TableID{TableTypeDef, TableTypeRef, TableTypeSpec}},
	HasConstant:  {"HasConstant", 2, []TableID{TableField, TableParam, TableProperty}},
	HasCustomAttribute: {"HasCustomAttribute", 5, []TableID{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam, TableInterfaceImpl,
		TableMemberRef, TableModule, TableDeclSecurity, TableProperty, TableEvent,
		TableStandAloneSig, TableModuleRef, TableTypeSpec, TableAssembly, TableAssemblyRef,
		TableFile, TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec,
	}},
	HasFieldMarshal:     {"HasFieldMarshal", 1, []TableID{TableField, TableParam}},
	HasDeclSecurity:     {"HasDeclSecurity", 2, []TableID{TableTypeDef, TableMethodDef, TableAssembly}},
	MemberRefParent:     {"MemberRefParent", 3, []TableID{TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec}},
	HasSemantics:        {"HasSemantics", 1, []TableID{TableEvent, TableProperty}},
	MethodDefOrRef:      {"MethodDefOrRef", 1, []TableID{TableMethodDef, TableMemberRef}},
	MemberForwarded:     {"MemberForwarded", 1, []TableID{TableField, TableMethodDef}},
	Implementation:      {"Implementation", 2, []TableID{TableFile, TableAssemblyRef, TableExportedType}},
	CustomAttributeType: {"CustomAttributeType", 3, []TableID{noTable, noTable, TableMethodDef, TableMemberRef, noTable}},
	ResolutionScope:     {"ResolutionScope", 2, []TableID{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef}},
	TypeOrMethodDef:     {"TypeOrMethodDef", 1, []TableID{TableTypeDef, TableMethodDef}},
}

func (k CodedKind) String() string {
	if k < numCodedKinds {
		return codedInfos[k].name
	}
	return fmt.Sprintf("CodedKind(%d)", uint8(k))
}

// TagBits returns the number of low bits used for the table tag.
func (k CodedKind) TagBits() uint {
	return codedInfos[k].bits
}

// Tables returns the member tables in tag order. Reserved tags are omitted.
func (k CodedKind) Tables() []TableID {
	var out []TableID
	for _, t := range codedInfos[k].tables {
		if t != noTable {
			out = append(out, t)
		}
	}
	return out
}

// DecodeCoded splits a coded index value into a token.
func DecodeCoded(k CodedKind, v uint32) (Token, error) {
	info := &codedInfos[k]
	tag := v & (1<<info.bits - 1)
	if int(tag) >= len(info.tables) || info.tables[tag] == noTable {
		return 0, clierrors.Format(clierrors.PhaseTable, clierrors.NoOffset,
			"invalid %s tag %d in 0x%x", info.name, tag, v)
	}
	return MakeToken(info.tables[tag], v>>info.bits), nil
}

// EncodeCoded packs a token as a coded index of kind k.
func EncodeCoded(k CodedKind, tok Token) (uint32, error) {
	info := &codedInfos[k]
	for tag, t := range info.tables {
		if t == tok.Table() && t != noTable {
			return tok.Row()<<info.bits | uint32(tag), nil
		}
	}
	return 0, clierrors.InvalidInput(clierrors.PhaseTable, "%s cannot reference %s", info.name, tok.Table())
}

// codedWidth returns 4 if any member table has at least 2^(16-bits) rows,
// which no longer fits alongside the tag in 16 bits. A "more than 2^(16-bits)
// rows" rule disagrees only at exactly 2^(16-bits) rows (16384 for
// TypeDefOrRef, 2048 for HasCustomAttribute), where this returns 4.
func codedWidth(k CodedKind, rows *[NumTables]uint32) int {
	info := &codedInfos[k]
	limit := uint32(1) << (16 - info.bits)
	for _, t := range info.tables {
		if t != noTable && rows[t] >= limit {
			return 4
		}
	}
	return 2
}
