package metadata

// ColumnKind describes how a column is stored.
type ColumnKind uint8

const (
	ColumnU8 ColumnKind = iota
	ColumnU16
	ColumnU32
	ColumnString // #Strings heap index
	ColumnGUID   // #GUID heap index
	ColumnBlob   // #Blob heap index
	ColumnTable  // simple index into another table
	ColumnCoded  // coded index
)

// Column is one column of a table schema.
type Column struct {
	Name  string
	Kind  ColumnKind
	Table TableID   // for ColumnTable
	Coded CodedKind // for ColumnCoded
}

func u8(name string) Column     { return Column{Name: name, Kind: ColumnU8} }
func u16(name string) Column    { return Column{Name: name, Kind: ColumnU16} }
func u32(name string) Column    { return Column{Name: name, Kind: ColumnU32} }
func strCol(name string) Column { return Column{Name: name, Kind: ColumnString} }
func guidCol(name string) Column {
	return Column{Name: name, Kind: ColumnGUID}
}
func blobCol(name string) Column { return Column{Name: name, Kind: ColumnBlob} }
func index(name string, t TableID) Column {
	return Column{Name: name, Kind: ColumnTable, Table: t}
}
func coded(name string, k CodedKind) Column {
	return Column{Name: name, Kind: ColumnCoded, Coded: k}
}

var schemas = [NumTables][]Column{
	TableModule:  {u16("Generation"), strCol("Name"), guidCol("Mvid"), guidCol("EncId"), guidCol("EncBaseId")},
	TableTypeRef: {coded("ResolutionScope", ResolutionScope), strCol("TypeName"), strCol("TypeNamespace")},
	TableTypeDef: {u32("Flags"), strCol("TypeName"), strCol("TypeNamespace"), coded("Extends", TypeDefOrRef),
		index("FieldList", TableField), index("MethodList", TableMethodDef)},
	TableFieldPtr:  {index("Field", TableField)},
	TableField:     {u16("Flags"), strCol("Name"), blobCol("Signature")},
	TableMethodPtr: {index("Method", TableMethodDef)},
	TableMethodDef: {u32("RVA"), u16("ImplFlags"), u16("Flags"), strCol("Name"), blobCol("Signature"),
		index("ParamList", TableParam)},
	TableParamPtr:        {index("Param", TableParam)},
	TableParam:           {u16("Flags"), u16("Sequence"), strCol("Name")},
	TableInterfaceImpl:   {index("Class", TableTypeDef), coded("Interface", TypeDefOrRef)},
	TableMemberRef:       {coded("Class", MemberRefParent), strCol("Name"), blobCol("Signature")},
	TableConstant:        {u8("Type"), u8("Padding"), coded("Parent", HasConstant), blobCol("Value")},
	TableCustomAttribute: {coded("Parent", HasCustomAttribute), coded("Type", CustomAttributeType), blobCol("Value")},
	TableFieldMarshal:    {coded("Parent", HasFieldMarshal), blobCol("NativeType")},
	TableDeclSecurity:    {u16("Action"), coded("Parent", HasDeclSecurity), blobCol("PermissionSet")},
	TableClassLayout:     {u16("PackingSize"), u32("ClassSize"), index("Parent", TableTypeDef)},
	TableFieldLayout:     {u32("Offset"), index("Field", TableField)},
	TableStandAloneSig:   {blobCol("Signature")},
	TableEventMap:        {index("Parent", TableTypeDef), index("EventList", TableEvent)},
	TableEventPtr:        {index("Event", TableEvent)},
	TableEvent:           {u16("EventFlags"), strCol("Name"), coded("EventType", TypeDefOrRef)},
	TablePropertyMap:     {index("Parent", TableTypeDef), index("PropertyList", TableProperty)},
	TablePropertyPtr:     {index("Property", TableProperty)},
	TableProperty:        {u16("Flags"), strCol("Name"), blobCol("Type")},
	TableMethodSemantics: {u16("Semantics"), index("Method", TableMethodDef), coded("Association", HasSemantics)},
	TableMethodImpl: {index("Class", TableTypeDef), coded("MethodBody", MethodDefOrRef),
		coded("MethodDeclaration", MethodDefOrRef)},
	TableModuleRef: {strCol("Name")},
	TableTypeSpec:  {blobCol("Signature")},
	TableImplMap: {u16("MappingFlags"), coded("MemberForwarded", MemberForwarded), strCol("ImportName"),
		index("ImportScope", TableModuleRef)},
	TableFieldRVA: {u32("RVA"), index("Field", TableField)},
	TableEncLog:   {u32("Token"), u32("FuncCode")},
	TableEncMap:   {u32("Token")},
	TableAssembly: {u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"),
		u16("RevisionNumber"), u32("Flags"), blobCol("PublicKey"), strCol("Name"), strCol("Culture")},
	TableAssemblyProcessor: {u32("Processor")},
	TableAssemblyOS:        {u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion")},
	TableAssemblyRef: {u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blobCol("PublicKeyOrToken"), strCol("Name"), strCol("Culture"), blobCol("HashValue")},
	TableAssemblyRefProcessor: {u32("Processor"), index("AssemblyRef", TableAssemblyRef)},
	TableAssemblyRefOS: {u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"),
		index("AssemblyRef", TableAssemblyRef)},
	TableFile: {u32("Flags"), strCol("Name"), blobCol("HashValue")},
	TableExportedType: {u32("Flags"), u32("TypeDefId"), strCol("TypeName"), strCol("TypeNamespace"),
		coded("Implementation", Implementation)},
	TableManifestResource:       {u32("Offset"), u32("Flags"), strCol("Name"), coded("Implementation", Implementation)},
	TableNestedClass:            {index("NestedClass", TableTypeDef), index("EnclosingClass", TableTypeDef)},
	TableGenericParam:           {u16("Number"), u16("Flags"), coded("Owner", TypeOrMethodDef), strCol("Name")},
	TableMethodSpec:             {coded("Method", MethodDefOrRef), blobCol("Instantiation")},
	TableGenericParamConstraint: {index("Owner", TableGenericParam), coded("Constraint", TypeDefOrRef)},
}

// Schema returns the column layout of table t.
func Schema(t TableID) []Column {
	if !t.Valid() {
		return nil
	}
	return schemas[t]
}

// widths holds every index width an image resolved, from which any row
// size can be computed.
type widths struct {
	strings, guid, blob int
	tables              [NumTables]int
	coded               [numCodedKinds]int
}

func (w *widths) column(c Column) int {
	switch c.Kind {
	case ColumnU8:
		return 1
	case ColumnU16:
		return 2
	case ColumnU32:
		return 4
	case ColumnString:
		return w.strings
	case ColumnGUID:
		return w.guid
	case ColumnBlob:
		return w.blob
	case ColumnTable:
		return w.tables[c.Table]
	case ColumnCoded:
		return w.coded[c.Coded]
	}
	return 0
}

// layout computes the byte offset and width of every column of t and the
// total row size. It depends only on w.
func (w *widths) layout(t TableID) (offsets, sizes []int, rowSize int) {
	cols := schemas[t]
	offsets = make([]int, len(cols))
	sizes = make([]int, len(cols))
	for i, c := range cols {
		offsets[i] = rowSize
		sizes[i] = w.column(c)
		rowSize += sizes[i]
	}
	return offsets, sizes, rowSize
}
