package metadata

type ModuleCursor struct{ Cursor }

func (c *ModuleCursor) Generation() uint16   { return uint16(c.value(0)) }
func (c *ModuleCursor) Name() StringIndex    { return StringIndex(c.value(1)) }
func (c *ModuleCursor) Mvid() GUIDIndex      { return GUIDIndex(c.value(2)) }
func (c *ModuleCursor) EncId() GUIDIndex     { return GUIDIndex(c.value(3)) }
func (c *ModuleCursor) EncBaseId() GUIDIndex { return GUIDIndex(c.value(4)) }

// TypeRefCursor walks references to types defined in other scopes.
type TypeRefCursor struct{ Cursor }

func (c *TypeRefCursor) ResolutionScope() (Token, error) { return c.coded(0) }
func (c *TypeRefCursor) TypeName() StringIndex           { return StringIndex(c.value(1)) }
func (c *TypeRefCursor) TypeNamespace() StringIndex      { return StringIndex(c.value(2)) }

// TypeDefCursor walks type definitions. Row 1 is the <Module> pseudo-type.
type TypeDefCursor struct{ Cursor }

func (c *TypeDefCursor) Flags() TypeAttributes      { return TypeAttributes(c.value(0)) }
func (c *TypeDefCursor) TypeName() StringIndex      { return StringIndex(c.value(1)) }
func (c *TypeDefCursor) TypeNamespace() StringIndex { return StringIndex(c.value(2)) }

// Extends returns the base type; nil for interfaces and System.Object.
func (c *TypeDefCursor) Extends() (Token, error) { return c.coded(3) }

// FieldList returns the first field owned by the type. See FieldRange.
func (c *TypeDefCursor) FieldList() Token { return c.index(4) }

// MethodList returns the first method owned by the type. See MethodRange.
func (c *TypeDefCursor) MethodList() Token { return c.index(5) }

// FieldPtrCursor, like the other Ptr tables, only appears in unoptimized #- streams.
type FieldPtrCursor struct{ Cursor }

func (c *FieldPtrCursor) Field() Token { return c.index(0) }

// FieldCursor walks field definitions.
type FieldCursor struct{ Cursor }

func (c *FieldCursor) Flags() FieldAttributes { return FieldAttributes(c.value(0)) }
func (c *FieldCursor) Name() StringIndex      { return StringIndex(c.value(1)) }
func (c *FieldCursor) Signature() BlobIndex   { return BlobIndex(c.value(2)) }

type MethodPtrCursor struct{ Cursor }

func (c *MethodPtrCursor) Method() Token { return c.index(0) }

// MethodDefCursor walks method definitions.
type MethodDefCursor struct{ Cursor }

// RVA returns the body address, or 0 for abstract, runtime and P/Invoke methods.
func (c *MethodDefCursor) RVA() uint32                     { return c.value(0) }
func (c *MethodDefCursor) ImplFlags() MethodImplAttributes { return MethodImplAttributes(c.value(1)) }
func (c *MethodDefCursor) Flags() MethodAttributes         { return MethodAttributes(c.value(2)) }
func (c *MethodDefCursor) Name() StringIndex               { return StringIndex(c.value(3)) }
func (c *MethodDefCursor) Signature() BlobIndex            { return BlobIndex(c.value(4)) }

// ParamList returns the first Param row of the method. See ParamRange.
func (c *MethodDefCursor) ParamList() Token { return c.index(5) }

type ParamPtrCursor struct{ Cursor }

func (c *ParamPtrCursor) Param() Token { return c.index(0) }

type ParamCursor struct{ Cursor }

func (c *ParamCursor) Flags() ParamAttributes { return ParamAttributes(c.value(0)) }

// Sequence is 0 for the return value and 1-based for parameters.
func (c *ParamCursor) Sequence() uint16  { return uint16(c.value(1)) }
func (c *ParamCursor) Name() StringIndex { return StringIndex(c.value(2)) }

type InterfaceImplCursor struct{ Cursor }

func (c *InterfaceImplCursor) Class() Token              { return c.index(0) }
func (c *InterfaceImplCursor) Interface() (Token, error) { return c.coded(1) }

// MemberRefCursor walks references to fields and methods of other types.
type MemberRefCursor struct{ Cursor }

func (c *MemberRefCursor) Class() (Token, error) { return c.coded(0) }
func (c *MemberRefCursor) Name() StringIndex     { return StringIndex(c.value(1)) }
func (c *MemberRefCursor) Signature() BlobIndex  { return BlobIndex(c.value(2)) }

type ConstantCursor struct{ Cursor }

func (c *ConstantCursor) Type() ElementType { return ElementType(c.value(0)) }

// Padding is always zero in well-formed images.
func (c *ConstantCursor) Padding() uint8         { return uint8(c.value(1)) }
func (c *ConstantCursor) Parent() (Token, error) { return c.coded(2) }
func (c *ConstantCursor) Value() BlobIndex       { return BlobIndex(c.value(3)) }

// CustomAttributeCursor walks attributes. The table is sorted by Parent.
type CustomAttributeCursor struct{ Cursor }

func (c *CustomAttributeCursor) Parent() (Token, error) { return c.coded(0) }

// Type returns the attribute constructor: a MethodDef or MemberRef.
func (c *CustomAttributeCursor) Type() (Token, error) { return c.coded(1) }
func (c *CustomAttributeCursor) Value() BlobIndex     { return BlobIndex(c.value(2)) }

type FieldMarshalCursor struct{ Cursor }

func (c *FieldMarshalCursor) Parent() (Token, error) { return c.coded(0) }
func (c *FieldMarshalCursor) NativeType() BlobIndex  { return BlobIndex(c.value(1)) }

type DeclSecurityCursor struct{ Cursor }

func (c *DeclSecurityCursor) Action() uint16           { return uint16(c.value(0)) }
func (c *DeclSecurityCursor) Parent() (Token, error)   { return c.coded(1) }
func (c *DeclSecurityCursor) PermissionSet() BlobIndex { return BlobIndex(c.value(2)) }

type ClassLayoutCursor struct{ Cursor }

func (c *ClassLayoutCursor) PackingSize() uint16 { return uint16(c.value(0)) }
func (c *ClassLayoutCursor) ClassSize() uint32   { return c.value(1) }
func (c *ClassLayoutCursor) Parent() Token       { return c.index(2) }

type FieldLayoutCursor struct{ Cursor }

func (c *FieldLayoutCursor) Offset() uint32 { return c.value(0) }
func (c *FieldLayoutCursor) Field() Token   { return c.index(1) }

type StandAloneSigCursor struct{ Cursor }

func (c *StandAloneSigCursor) Signature() BlobIndex { return BlobIndex(c.value(0)) }

type EventMapCursor struct{ Cursor }

func (c *EventMapCursor) Parent() Token    { return c.index(0) }
func (c *EventMapCursor) EventList() Token { return c.index(1) }

type EventPtrCursor struct{ Cursor }

func (c *EventPtrCursor) Event() Token { return c.index(0) }

type EventCursor struct{ Cursor }

func (c *EventCursor) EventFlags() uint16        { return uint16(c.value(0)) }
func (c *EventCursor) Name() StringIndex         { return StringIndex(c.value(1)) }
func (c *EventCursor) EventType() (Token, error) { return c.coded(2) }

type PropertyMapCursor struct{ Cursor }

func (c *PropertyMapCursor) Parent() Token       { return c.index(0) }
func (c *PropertyMapCursor) PropertyList() Token { return c.index(1) }

type PropertyPtrCursor struct{ Cursor }

func (c *PropertyPtrCursor) Property() Token { return c.index(0) }

type PropertyCursor struct{ Cursor }

func (c *PropertyCursor) Flags() uint16     { return uint16(c.value(0)) }
func (c *PropertyCursor) Name() StringIndex { return StringIndex(c.value(1)) }
func (c *PropertyCursor) Type() BlobIndex   { return BlobIndex(c.value(2)) }

type MethodSemanticsCursor struct{ Cursor }

func (c *MethodSemanticsCursor) Semantics() MethodSemanticsAttributes {
	return MethodSemanticsAttributes(c.value(0))
}

func (c *MethodSemanticsCursor) Method() Token               { return c.index(1) }
func (c *MethodSemanticsCursor) Association() (Token, error) { return c.coded(2) }

type MethodImplCursor struct{ Cursor }

func (c *MethodImplCursor) Class() Token                      { return c.index(0) }
func (c *MethodImplCursor) MethodBody() (Token, error)        { return c.coded(1) }
func (c *MethodImplCursor) MethodDeclaration() (Token, error) { return c.coded(2) }

type ModuleRefCursor struct{ Cursor }

func (c *ModuleRefCursor) Name() StringIndex { return StringIndex(c.value(0)) }

type TypeSpecCursor struct{ Cursor }

func (c *TypeSpecCursor) Signature() BlobIndex { return BlobIndex(c.value(0)) }

type ImplMapCursor struct{ Cursor }

func (c *ImplMapCursor) MappingFlags() uint16            { return uint16(c.value(0)) }
func (c *ImplMapCursor) MemberForwarded() (Token, error) { return c.coded(1) }
func (c *ImplMapCursor) ImportName() StringIndex         { return StringIndex(c.value(2)) }

// ImportScope returns the ModuleRef naming the native library.
func (c *ImplMapCursor) ImportScope() Token { return c.index(3) }

type FieldRVACursor struct{ Cursor }

func (c *FieldRVACursor) RVA() uint32  { return c.value(0) }
func (c *FieldRVACursor) Field() Token { return c.index(1) }

// EncLogCursor and EncMapCursor expose edit-and-continue records.
type EncLogCursor struct{ Cursor }

func (c *EncLogCursor) RecordToken() uint32 { return c.value(0) }
func (c *EncLogCursor) FuncCode() uint32    { return c.value(1) }

type EncMapCursor struct{ Cursor }

func (c *EncMapCursor) RecordToken() uint32 { return c.value(0) }

// AssemblyCursor reads the single assembly manifest row.
type AssemblyCursor struct{ Cursor }

func (c *AssemblyCursor) HashAlgId() uint32      { return c.value(0) }
func (c *AssemblyCursor) MajorVersion() uint16   { return uint16(c.value(1)) }
func (c *AssemblyCursor) MinorVersion() uint16   { return uint16(c.value(2)) }
func (c *AssemblyCursor) BuildNumber() uint16    { return uint16(c.value(3)) }
func (c *AssemblyCursor) RevisionNumber() uint16 { return uint16(c.value(4)) }
func (c *AssemblyCursor) Flags() uint32          { return c.value(5) }
func (c *AssemblyCursor) PublicKey() BlobIndex   { return BlobIndex(c.value(6)) }
func (c *AssemblyCursor) Name() StringIndex      { return StringIndex(c.value(7)) }
func (c *AssemblyCursor) Culture() StringIndex   { return StringIndex(c.value(8)) }

type AssemblyProcessorCursor struct{ Cursor }

func (c *AssemblyProcessorCursor) Processor() uint32 { return c.value(0) }

type AssemblyOSCursor struct{ Cursor }

func (c *AssemblyOSCursor) OSPlatformID() uint32   { return c.value(0) }
func (c *AssemblyOSCursor) OSMajorVersion() uint32 { return c.value(1) }
func (c *AssemblyOSCursor) OSMinorVersion() uint32 { return c.value(2) }

type AssemblyRefCursor struct{ Cursor }

func (c *AssemblyRefCursor) MajorVersion() uint16        { return uint16(c.value(0)) }
func (c *AssemblyRefCursor) MinorVersion() uint16        { return uint16(c.value(1)) }
func (c *AssemblyRefCursor) BuildNumber() uint16         { return uint16(c.value(2)) }
func (c *AssemblyRefCursor) RevisionNumber() uint16      { return uint16(c.value(3)) }
func (c *AssemblyRefCursor) Flags() uint32               { return c.value(4) }
func (c *AssemblyRefCursor) PublicKeyOrToken() BlobIndex { return BlobIndex(c.value(5)) }
func (c *AssemblyRefCursor) Name() StringIndex           { return StringIndex(c.value(6)) }
func (c *AssemblyRefCursor) Culture() StringIndex        { return StringIndex(c.value(7)) }
func (c *AssemblyRefCursor) HashValue() BlobIndex        { return BlobIndex(c.value(8)) }

type AssemblyRefProcessorCursor struct{ Cursor }

func (c *AssemblyRefProcessorCursor) Processor() uint32  { return c.value(0) }
func (c *AssemblyRefProcessorCursor) AssemblyRef() Token { return c.index(1) }

type AssemblyRefOSCursor struct{ Cursor }

func (c *AssemblyRefOSCursor) OSPlatformID() uint32   { return c.value(0) }
func (c *AssemblyRefOSCursor) OSMajorVersion() uint32 { return c.value(1) }
func (c *AssemblyRefOSCursor) OSMinorVersion() uint32 { return c.value(2) }
func (c *AssemblyRefOSCursor) AssemblyRef() Token     { return c.index(3) }

type FileCursor struct{ Cursor }

func (c *FileCursor) Flags() uint32        { return c.value(0) }
func (c *FileCursor) Name() StringIndex    { return StringIndex(c.value(1)) }
func (c *FileCursor) HashValue() BlobIndex { return BlobIndex(c.value(2)) }

type ExportedTypeCursor struct{ Cursor }

func (c *ExportedTypeCursor) Flags() uint32                  { return c.value(0) }
func (c *ExportedTypeCursor) TypeDefId() uint32              { return c.value(1) }
func (c *ExportedTypeCursor) TypeName() StringIndex          { return StringIndex(c.value(2)) }
func (c *ExportedTypeCursor) TypeNamespace() StringIndex     { return StringIndex(c.value(3)) }
func (c *ExportedTypeCursor) Implementation() (Token, error) { return c.coded(4) }

type ManifestResourceCursor struct{ Cursor }

func (c *ManifestResourceCursor) Offset() uint32                 { return c.value(0) }
func (c *ManifestResourceCursor) Flags() uint32                  { return c.value(1) }
func (c *ManifestResourceCursor) Name() StringIndex              { return StringIndex(c.value(2)) }
func (c *ManifestResourceCursor) Implementation() (Token, error) { return c.coded(3) }

// NestedClassCursor maps nested types to their enclosing type.
type NestedClassCursor struct{ Cursor }

func (c *NestedClassCursor) NestedClass() Token    { return c.index(0) }
func (c *NestedClassCursor) EnclosingClass() Token { return c.index(1) }

// GenericParamCursor walks generic parameters, sorted by Owner.
type GenericParamCursor struct{ Cursor }

// Number is the 0-based position of the parameter in its owner.
func (c *GenericParamCursor) Number() uint16        { return uint16(c.value(0)) }
func (c *GenericParamCursor) Flags() uint16         { return uint16(c.value(1)) }
func (c *GenericParamCursor) Owner() (Token, error) { return c.coded(2) }
func (c *GenericParamCursor) Name() StringIndex     { return StringIndex(c.value(3)) }

type MethodSpecCursor struct{ Cursor }

func (c *MethodSpecCursor) Method() (Token, error)   { return c.coded(0) }
func (c *MethodSpecCursor) Instantiation() BlobIndex { return BlobIndex(c.value(1)) }

type GenericParamConstraintCursor struct{ Cursor }

func (c *GenericParamConstraintCursor) Owner() Token               { return c.index(0) }
func (c *GenericParamConstraintCursor) Constraint() (Token, error) { return c.coded(1) }

// Cursor returns a typed cursor for the table, positioned before the
// first row. Assert to the concrete type for column accessors.
func (t *Table) Cursor() RowCursor {
	c := newCursor(t)
	switch t.id {
	case TableModule:
		return &ModuleCursor{c}
	case TableTypeRef:
		return &TypeRefCursor{c}
	case TableTypeDef:
		return &TypeDefCursor{c}
	case TableFieldPtr:
		return &FieldPtrCursor{c}
	case TableField:
		return &FieldCursor{c}
	case TableMethodPtr:
		return &MethodPtrCursor{c}
	case TableMethodDef:
		return &MethodDefCursor{c}
	case TableParamPtr:
		return &ParamPtrCursor{c}
	case TableParam:
		return &ParamCursor{c}
	case TableInterfaceImpl:
		return &InterfaceImplCursor{c}
	case TableMemberRef:
		return &MemberRefCursor{c}
	case TableConstant:
		return &ConstantCursor{c}
	case TableCustomAttribute:
		return &CustomAttributeCursor{c}
	case TableFieldMarshal:
		return &FieldMarshalCursor{c}
	case TableDeclSecurity:
		return &DeclSecurityCursor{c}
	case TableClassLayout:
		return &ClassLayoutCursor{c}
	case TableFieldLayout:
		return &FieldLayoutCursor{c}
	case TableStandAloneSig:
		return &StandAloneSigCursor{c}
	case TableEventMap:
		return &EventMapCursor{c}
	case TableEventPtr:
		return &EventPtrCursor{c}
	case TableEvent:
		return &EventCursor{c}
	case TablePropertyMap:
		return &PropertyMapCursor{c}
	case TablePropertyPtr:
		return &PropertyPtrCursor{c}
	case TableProperty:
		return &PropertyCursor{c}
	case TableMethodSemantics:
		return &MethodSemanticsCursor{c}
	case TableMethodImpl:
		return &MethodImplCursor{c}
	case TableModuleRef:
		return &ModuleRefCursor{c}
	case TableTypeSpec:
		return &TypeSpecCursor{c}
	case TableImplMap:
		return &ImplMapCursor{c}
	case TableFieldRVA:
		return &FieldRVACursor{c}
	case TableEncLog:
		return &EncLogCursor{c}
	case TableEncMap:
		return &EncMapCursor{c}
	case TableAssembly:
		return &AssemblyCursor{c}
	case TableAssemblyProcessor:
		return &AssemblyProcessorCursor{c}
	case TableAssemblyOS:
		return &AssemblyOSCursor{c}
	case TableAssemblyRef:
		return &AssemblyRefCursor{c}
	case TableAssemblyRefProcessor:
		return &AssemblyRefProcessorCursor{c}
	case TableAssemblyRefOS:
		return &AssemblyRefOSCursor{c}
	case TableFile:
		return &FileCursor{c}
	case TableExportedType:
		return &ExportedTypeCursor{c}
	case TableManifestResource:
		return &ManifestResourceCursor{c}
	case TableNestedClass:
		return &NestedClassCursor{c}
	case TableGenericParam:
		return &GenericParamCursor{c}
	case TableMethodSpec:
		return &MethodSpecCursor{c}
	case TableGenericParamConstraint:
		return &GenericParamConstraintCursor{c}
	}
	return &c
}

// Typed cursors over the tables most callers walk.
func (img *Image) TypeDefs() *TypeDefCursor {
	return &TypeDefCursor{newCursor(img.tables[TableTypeDef])}
}

func (img *Image) MethodDefs() *MethodDefCursor {
	return &MethodDefCursor{newCursor(img.tables[TableMethodDef])}
}

func (img *Image) Fields() *FieldCursor {
	return &FieldCursor{newCursor(img.tables[TableField])}
}

func (img *Image) TypeRefs() *TypeRefCursor {
	return &TypeRefCursor{newCursor(img.tables[TableTypeRef])}
}

func (img *Image) MemberRefs() *MemberRefCursor {
	return &MemberRefCursor{newCursor(img.tables[TableMemberRef])}
}

func (img *Image) Params() *ParamCursor {
	return &ParamCursor{newCursor(img.tables[TableParam])}
}

func (img *Image) StandAloneSigs() *StandAloneSigCursor {
	return &StandAloneSigCursor{newCursor(img.tables[TableStandAloneSig])}
}

func (img *Image) TypeSpecs() *TypeSpecCursor {
	return &TypeSpecCursor{newCursor(img.tables[TableTypeSpec])}
}

func (img *Image) MethodSpecs() *MethodSpecCursor {
	return &MethodSpecCursor{newCursor(img.tables[TableMethodSpec])}
}

func (img *Image) AssemblyRefs() *AssemblyRefCursor {
	return &AssemblyRefCursor{newCursor(img.tables[TableAssemblyRef])}
}

func (img *Image) CustomAttributeRows() *CustomAttributeCursor {
	return &CustomAttributeCursor{newCursor(img.tables[TableCustomAttribute])}
}

func (img *Image) GenericParamRows() *GenericParamCursor {
	return &GenericParamCursor{newCursor(img.tables[TableGenericParam])}
}

func (img *Image) ModuleRefs() *ModuleRefCursor {
	return &ModuleRefCursor{newCursor(img.tables[TableModuleRef])}
}

func (img *Image) Properties() *PropertyCursor {
	return &PropertyCursor{newCursor(img.tables[TableProperty])}
}

func (img *Image) Events() *EventCursor {
	return &EventCursor{newCursor(img.tables[TableEvent])}
}

func (img *Image) Modules() *ModuleCursor {
	return &ModuleCursor{newCursor(img.tables[TableModule])}
}

func (img *Image) Assemblies() *AssemblyCursor {
	return &AssemblyCursor{newCursor(img.tables[TableAssembly])}
}

func (img *Image) NestedClasses() *NestedClassCursor {
	return &NestedClassCursor{newCursor(img.tables[TableNestedClass])}
}

func (img *Image) InterfaceImpls() *InterfaceImplCursor {
	return &InterfaceImplCursor{newCursor(img.tables[TableInterfaceImpl])}
}
