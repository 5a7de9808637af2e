package metadata

import (
	"iter"

	clierrors "github.com/brickbot/clifile/errors"
)

// Range is a half-open run [Start, End) of rows in a child table, such as
// the fields owned by a type.
type Range struct {
	Table      TableID
	Start, End uint32
}

// Len returns the number of rows in the run.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return int(r.End - r.Start)
}

// Contains reports whether row falls inside the run.
func (r Range) Contains(row uint32) bool {
	return row >= r.Start && row < r.End
}

// Tokens yields the token of each row in the run.
func (r Range) Tokens() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		for row := r.Start; row < r.End; row++ {
			if !yield(MakeToken(r.Table, row)) {
				return
			}
		}
	}
}

// ownerRange computes the run of child rows owned by row of owner, where
// listCol holds the first child. The run ends where the next owner's run
// starts, or after the last child row.
func (img *Image) ownerRange(owner TableID, listCol int, child TableID, row uint32) (Range, error) {
	t := img.tables[owner]
	if row == 0 || row > t.rows {
		return Range{}, clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset,
			"%s row %d out of range (rows=%d)", owner, row, t.rows)
	}

	limit := img.tables[child].rows + 1
	start := t.raw(row, listCol)
	end := limit
	if row < t.rows {
		end = t.raw(row+1, listCol)
	}
	if start > limit {
		start = limit
	}
	if end > limit {
		end = limit
	}
	if end < start {
		end = start
	}
	return Range{Table: child, Start: start, End: end}, nil
}

// FieldRange returns the fields owned by the TypeDef at typeRow.
func (img *Image) FieldRange(typeRow uint32) (Range, error) {
	return img.ownerRange(TableTypeDef, 4, TableField, typeRow)
}

// MethodRange returns the methods owned by the TypeDef at typeRow.
func (img *Image) MethodRange(typeRow uint32) (Range, error) {
	return img.ownerRange(TableTypeDef, 5, TableMethodDef, typeRow)
}

// ParamRange returns the Param rows of the MethodDef at methodRow.
func (img *Image) ParamRange(methodRow uint32) (Range, error) {
	return img.ownerRange(TableMethodDef, 5, TableParam, methodRow)
}

func (img *Image) EventRange(eventMapRow uint32) (Range, error) {
	return img.ownerRange(TableEventMap, 1, TableEvent, eventMapRow)
}

func (img *Image) PropertyRange(propertyMapRow uint32) (Range, error) {
	return img.ownerRange(TablePropertyMap, 1, TableProperty, propertyMapRow)
}

// DeclaringType returns the TypeDef that owns a Field or MethodDef token,
// or the MethodDef that owns a Param token. It is the last owner whose run
// starts at or before the child row. A nil token means no owner was found.
func (img *Image) DeclaringType(tok Token) (Token, error) {
	var owner TableID
	var col int
	switch tok.Table() {
	case TableField:
		owner, col = TableTypeDef, 4
	case TableMethodDef:
		owner, col = TableTypeDef, 5
	case TableParam:
		owner, col = TableMethodDef, 5
	default:
		return 0, clierrors.InvalidInput(clierrors.PhaseTable, "%s has no declaring type", tok)
	}
	if tok.IsNil() || tok.Row() > img.tables[tok.Table()].rows {
		return 0, clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset, "%s out of range", tok)
	}

	t := img.tables[owner]
	var found uint32
	for row := uint32(1); row <= t.rows; row++ {
		if t.raw(row, col) <= tok.Row() {
			found = row
		}
	}
	if found == 0 {
		return 0, nil
	}
	return MakeToken(owner, found), nil
}

// EventMapOf returns the EventMap row for a type, or 0.
func (img *Image) EventMapOf(typeRow uint32) uint32 {
	return img.tables[TableEventMap].Search(0, typeRow)
}

// PropertyMapOf returns the PropertyMap row for a type, or 0.
func (img *Image) PropertyMapOf(typeRow uint32) uint32 {
	return img.tables[TablePropertyMap].Search(0, typeRow)
}

// rowsByCoded returns the rows of table whose coded column references tok.
func (img *Image) rowsByCoded(table TableID, col int, tok Token) ([]uint32, error) {
	k := schemas[table][col].Coded
	v, err := EncodeCoded(k, tok)
	if err != nil {
		return nil, err
	}
	return img.tables[table].rowsWhere(col, v), nil
}

// GenericParams returns the GenericParam rows of a TypeDef or MethodDef,
// in table order.
func (img *Image) GenericParams(owner Token) ([]uint32, error) {
	return img.rowsByCoded(TableGenericParam, 2, owner)
}

// CustomAttributes returns the CustomAttribute rows attached to parent.
func (img *Image) CustomAttributes(parent Token) ([]uint32, error) {
	return img.rowsByCoded(TableCustomAttribute, 0, parent)
}

// MethodSemanticsOf returns the MethodSemantics rows of an Event or
// Property.
func (img *Image) MethodSemanticsOf(assoc Token) ([]uint32, error) {
	return img.rowsByCoded(TableMethodSemantics, 2, assoc)
}

// ConstantOf returns the Constant row of a Field, Param or Property, or 0.
func (img *Image) ConstantOf(parent Token) (uint32, error) {
	rows, err := img.rowsByCoded(TableConstant, 2, parent)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0], nil
}

// EnclosingType returns the TypeDef row enclosing a nested type, or 0.
func (img *Image) EnclosingType(typeRow uint32) uint32 {
	t := img.tables[TableNestedClass]
	row := t.Search(0, typeRow)
	if row == 0 {
		return 0
	}
	return t.raw(row, 1)
}

// Interfaces returns the interfaces a type declares it implements.
func (img *Image) Interfaces(typeRow uint32) ([]Token, error) {
	t := img.tables[TableInterfaceImpl]
	var out []Token
	for _, row := range t.rowsWhere(0, typeRow) {
		tok, err := DecodeCoded(TypeDefOrRef, t.raw(row, 1))
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

// ClassLayoutOf returns the explicit packing and size of a type.
func (img *Image) ClassLayoutOf(typeRow uint32) (packing uint16, size uint32, ok bool) {
	t := img.tables[TableClassLayout]
	row := t.Search(2, typeRow)
	if row == 0 {
		return 0, 0, false
	}
	return uint16(t.raw(row, 0)), t.raw(row, 1), true
}

// FieldRVAOf returns the RVA of a field's initial data.
func (img *Image) FieldRVAOf(fieldRow uint32) (uint32, bool) {
	t := img.tables[TableFieldRVA]
	row := t.Search(1, fieldRow)
	if row == 0 {
		return 0, false
	}
	return t.raw(row, 0), true
}
