package metadata

import (
	"sort"

	clierrors "github.com/brickbot/clifile/errors"
	"github.com/brickbot/clifile/internal/stream"
)

// Table is one metadata table of an image. Its layout is fixed when the
// image is constructed.
type Table struct {
	img     *Image
	id      TableID
	rows    uint32
	sorted  bool
	rowSize int
	offsets []int
	sizes   []int
	data    stream.Region
}

func (t *Table) ID() TableID       { return t.id }
func (t *Table) Rows() uint32      { return t.rows }
func (t *Table) Sorted() bool      { return t.sorted }
func (t *Table) RowSize() int      { return t.rowSize }
func (t *Table) Columns() []Column { return schemas[t.id] }

// IndexSize returns the width of a simple index into this table.
func (t *Table) IndexSize() int {
	return t.img.w.tables[t.id]
}

// ColumnSize returns the width in bytes of column col.
func (t *Table) ColumnSize(col int) int {
	if col < 0 || col >= len(t.sizes) {
		return 0
	}
	return t.sizes[col]
}

// Column returns the raw value of column col in the 1-based row.
func (t *Table) Column(row uint32, col int) (uint32, error) {
	if row == 0 || row > t.rows {
		return 0, clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset,
			"%s row %d out of range (rows=%d)", t.id, row, t.rows)
	}
	if col < 0 || col >= len(t.offsets) {
		return 0, clierrors.InvalidInput(clierrors.PhaseTable, "%s has no column %d", t.id, col)
	}
	return t.raw(row, col), nil
}

// raw reads a column of a row already known to be in range. The table
// region was sized from the row count, so the read cannot fail.
func (t *Table) raw(row uint32, col int) uint32 {
	v, _ := t.data.IndexAt(int(row-1)*t.rowSize+t.offsets[col], t.sizes[col])
	return v
}

// Row returns the raw values of every column of a row.
func (t *Table) Row(row uint32) ([]uint32, error) {
	if row == 0 || row > t.rows {
		return nil, clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset,
			"%s row %d out of range (rows=%d)", t.id, row, t.rows)
	}
	out := make([]uint32, len(t.offsets))
	for i := range out {
		out[i] = t.raw(row, i)
	}
	return out, nil
}

// Search returns the first row whose column col equals value, or 0 if
// there is none. Sorted tables are binary searched.
func (t *Table) Search(col int, value uint32) uint32 {
	first, _ := t.searchRange(col, value)
	return first
}

// searchRange returns the run [first, last] of rows whose column equals
// value, or (0, 0).
func (t *Table) searchRange(col int, value uint32) (first, last uint32) {
	if col < 0 || col >= len(t.offsets) || t.rows == 0 {
		return 0, 0
	}
	if !t.sorted {
		for row := uint32(1); row <= t.rows; row++ {
			if t.raw(row, col) == value {
				if first == 0 {
					first = row
				}
				last = row
			}
		}
		return first, last
	}

	n := int(t.rows)
	i := sort.Search(n, func(i int) bool { return t.raw(uint32(i+1), col) >= value })
	if i == n || t.raw(uint32(i+1), col) != value {
		return 0, 0
	}
	first = uint32(i + 1)
	last = first
	for last < t.rows && t.raw(last+1, col) == value {
		last++
	}
	return first, last
}

// rowsWhere returns every row whose column equals value.
func (t *Table) rowsWhere(col int, value uint32) []uint32 {
	if t.sorted {
		first, last := t.searchRange(col, value)
		if first == 0 {
			return nil
		}
		out := make([]uint32, 0, last-first+1)
		for row := first; row <= last; row++ {
			out = append(out, row)
		}
		return out
	}
	var out []uint32
	for row := uint32(1); row <= t.rows; row++ {
		if t.raw(row, col) == value {
			out = append(out, row)
		}
	}
	return out
}

// RowCursor is the contract shared by every typed cursor.
type RowCursor interface {
	Table() *Table
	Position() uint32
	BOF() bool
	EOF() bool
	Goto(row uint32) error
	Next() bool
	Reset()
	Token() Token
	Column(col int) (uint32, error)
}

// Cursor walks the rows of a table. A new cursor sits before the first row;
// Next moves to row 1.
type Cursor struct {
	table *Table
	pos   uint32
}

func newCursor(t *Table) Cursor { return Cursor{table: t} }

func (c *Cursor) Table() *Table { return c.table }

// Position returns the current 1-based row, or 0 before the first row.
func (c *Cursor) Position() uint32 { return c.pos }

func (c *Cursor) BOF() bool { return c.pos == 0 }
func (c *Cursor) EOF() bool { return c.pos > c.table.rows }

// Goto moves to row. Row 0 is the position before the first row.
func (c *Cursor) Goto(row uint32) error {
	if row > c.table.rows {
		return clierrors.Bounds(clierrors.PhaseTable, clierrors.NoOffset,
			"%s row %d out of range (rows=%d)", c.table.id, row, c.table.rows)
	}
	c.pos = row
	return nil
}

// Next advances one row and reports whether the cursor is on a row.
func (c *Cursor) Next() bool {
	if c.pos <= c.table.rows {
		c.pos++
	}
	return c.pos <= c.table.rows
}

// Reset moves the cursor before the first row.
func (c *Cursor) Reset() { c.pos = 0 }

// Token returns the token of the current row.
func (c *Cursor) Token() Token { return MakeToken(c.table.id, c.pos) }

func (c *Cursor) Column(col int) (uint32, error) {
	return c.table.Column(c.pos, col)
}

func (c *Cursor) valid() bool { return c.pos != 0 && c.pos <= c.table.rows }

// value reads a column of the current row, or 0 off the table.
func (c *Cursor) value(col int) uint32 {
	if !c.valid() {
		return 0
	}
	return c.table.raw(c.pos, col)
}

func (c *Cursor) index(col int) Token {
	v := c.value(col)
	return MakeToken(schemas[c.table.id][col].Table, v)
}

func (c *Cursor) coded(col int) (Token, error) {
	if !c.valid() {
		return 0, clierrors.InvalidInput(clierrors.PhaseTable, "%s cursor is not on a row", c.table.id)
	}
	return DecodeCoded(schemas[c.table.id][col].Coded, c.table.raw(c.pos, col))
}
