package testasm

// Table ids, duplicated here so the builder stays independent of the
// package under test.
const (
	Module                 = 0x00
	TypeRef                = 0x01
	TypeDef                = 0x02
	FieldPtr               = 0x03
	Field                  = 0x04
	MethodPtr              = 0x05
	MethodDef              = 0x06
	ParamPtr               = 0x07
	Param                  = 0x08
	InterfaceImpl          = 0x09
	MemberRef              = 0x0A
	Constant               = 0x0B
	CustomAttribute        = 0x0C
	FieldMarshal           = 0x0D
	DeclSecurity           = 0x0E
	ClassLayout            = 0x0F
	FieldLayout            = 0x10
	StandAloneSig          = 0x11
	EventMap               = 0x12
	EventPtr               = 0x13
	Event                  = 0x14
	PropertyMap            = 0x15
	PropertyPtr            = 0x16
	Property               = 0x17
	MethodSemantics        = 0x18
	MethodImpl             = 0x19
	ModuleRef              = 0x1A
	TypeSpec               = 0x1B
	ImplMap                = 0x1C
	FieldRVA               = 0x1D
	EncLog                 = 0x1E
	EncMap                 = 0x1F
	Assembly               = 0x20
	AssemblyProcessor      = 0x21
	AssemblyOS             = 0x22
	AssemblyRef            = 0x23
	AssemblyRefProcessor   = 0x24
	AssemblyRefOS          = 0x25
	File                   = 0x26
	ExportedType           = 0x27
	ManifestResource       = 0x28
	NestedClass            = 0x29
	GenericParam           = 0x2A
	MethodSpec             = 0x2B
	GenericParamConstraint = 0x2C

	numTables = 0x2D
	none      = -1
)

// Coded index kinds.
const (
	TypeDefOrRef = iota
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
)

type codedKind struct {
	bits   uint
	tables []int
}

var codedKinds = []codedKind{
	TypeDefOrRef:        {2, []int{TypeDef, TypeRef, TypeSpec}},
	HasConstant:         {2, []int{Field, Param, Property}},
	HasCustomAttribute:  {5, []int{MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef, Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef, TypeSpec, Assembly, AssemblyRef, File, ExportedType, ManifestResource, GenericParam, GenericParamConstraint, MethodSpec}},
	HasFieldMarshal:     {1, []int{Field, Param}},
	HasDeclSecurity:     {2, []int{TypeDef, MethodDef, Assembly}},
	MemberRefParent:     {3, []int{TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec}},
	HasSemantics:        {1, []int{Event, Property}},
	MethodDefOrRef:      {1, []int{MethodDef, MemberRef}},
	MemberForwarded:     {1, []int{Field, MethodDef}},
	Implementation:      {2, []int{File, AssemblyRef, ExportedType}},
	CustomAttributeType: {3, []int{none, none, MethodDef, MemberRef, none}},
	ResolutionScope:     {2, []int{Module, ModuleRef, AssemblyRef, TypeRef}},
	TypeOrMethodDef:     {1, []int{TypeDef, MethodDef}},
}

// Coded encodes (table, row) as a coded index of the given kind.
// It panics if table is not a member of kind.
func Coded(kind, table int, row uint32) uint32 {
	k := codedKinds[kind]
	for tag, t := range k.tables {
		if t == table {
			return row<<k.bits | uint32(tag)
		}
	}
	panic("testasm: table not in coded index")
}

type colKind int

const (
	colFixed colKind = iota
	colString
	colGUID
	colBlob
	colTable
	colCoded
)

type col struct {
	kind colKind
	arg  int // byte width, table id or coded kind
}

func u1() col            { return col{colFixed, 1} }
func u2() col            { return col{colFixed, 2} }
func u4() col            { return col{colFixed, 4} }
func str() col           { return col{colString, 0} }
func guid() col          { return col{colGUID, 0} }
func blob() col          { return col{colBlob, 0} }
func tbl(t int) col      { return col{colTable, t} }
func coded(kind int) col { return col{colCoded, kind} }

var schemas = [numTables][]col{
	Module:                 {u2(), str(), guid(), guid(), guid()},
	TypeRef:                {coded(ResolutionScope), str(), str()},
	TypeDef:                {u4(), str(), str(), coded(TypeDefOrRef), tbl(Field), tbl(MethodDef)},
	FieldPtr:               {tbl(Field)},
	Field:                  {u2(), str(), blob()},
	MethodPtr:              {tbl(MethodDef)},
	MethodDef:              {u4(), u2(), u2(), str(), blob(), tbl(Param)},
	ParamPtr:               {tbl(Param)},
	Param:                  {u2(), u2(), str()},
	InterfaceImpl:          {tbl(TypeDef), coded(TypeDefOrRef)},
	MemberRef:              {coded(MemberRefParent), str(), blob()},
	Constant:               {u1(), u1(), coded(HasConstant), blob()},
	CustomAttribute:        {coded(HasCustomAttribute), coded(CustomAttributeType), blob()},
	FieldMarshal:           {coded(HasFieldMarshal), blob()},
	DeclSecurity:           {u2(), coded(HasDeclSecurity), blob()},
	ClassLayout:            {u2(), u4(), tbl(TypeDef)},
	FieldLayout:            {u4(), tbl(Field)},
	StandAloneSig:          {blob()},
	EventMap:               {tbl(TypeDef), tbl(Event)},
	EventPtr:               {tbl(Event)},
	Event:                  {u2(), str(), coded(TypeDefOrRef)},
	PropertyMap:            {tbl(TypeDef), tbl(Property)},
	PropertyPtr:            {tbl(Property)},
	Property:               {u2(), str(), blob()},
	MethodSemantics:        {u2(), tbl(MethodDef), coded(HasSemantics)},
	MethodImpl:             {tbl(TypeDef), coded(MethodDefOrRef), coded(MethodDefOrRef)},
	ModuleRef:              {str()},
	TypeSpec:               {blob()},
	ImplMap:                {u2(), coded(MemberForwarded), str(), tbl(ModuleRef)},
	FieldRVA:               {u4(), tbl(Field)},
	EncLog:                 {u4(), u4()},
	EncMap:                 {u4()},
	Assembly:               {u4(), u2(), u2(), u2(), u2(), u4(), blob(), str(), str()},
	AssemblyProcessor:      {u4()},
	AssemblyOS:             {u4(), u4(), u4()},
	AssemblyRef:            {u2(), u2(), u2(), u2(), u4(), blob(), str(), str(), blob()},
	AssemblyRefProcessor:   {u4(), tbl(AssemblyRef)},
	AssemblyRefOS:          {u4(), u4(), u4(), tbl(AssemblyRef)},
	File:                   {u4(), str(), blob()},
	ExportedType:           {u4(), u4(), str(), str(), coded(Implementation)},
	ManifestResource:       {u4(), u4(), str(), coded(Implementation)},
	NestedClass:            {tbl(TypeDef), tbl(TypeDef)},
	GenericParam:           {u2(), u2(), coded(TypeOrMethodDef), str()},
	MethodSpec:             {coded(MethodDefOrRef), blob()},
	GenericParamConstraint: {tbl(GenericParam), coded(TypeDefOrRef)},
}
