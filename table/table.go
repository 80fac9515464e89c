// Package table is the in-memory result table: an Arrow record with nullable
// Utf8, Int64, Float64 or Boolean columns.
package table

import (
	"fmt"
	"math"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
)

var (
	String  = arrow.BinaryTypes.String
	Int64   = arrow.PrimitiveTypes.Int64
	Float64 = arrow.PrimitiveTypes.Float64
	Bool    = arrow.FixedWidthTypes.Boolean
)

type Table struct {
	rec   arrow.Record
	index map[string]int
}

func New(rec arrow.Record) *Table {
	t := &Table{rec: rec, index: make(map[string]int, rec.NumCols())}
	for i, f := range rec.Schema().Fields() {
		t.index[f.Name] = i
	}
	return t
}

func (t *Table) Record() arrow.Record {
	return t.rec
}

func (t *Table) Schema() *arrow.Schema {
	return t.rec.Schema()
}

func (t *Table) NumRows() int {
	return int(t.rec.NumRows())
}

func (t *Table) Columns() []string {
	res := make([]string, t.rec.NumCols())
	for i, f := range t.rec.Schema().Fields() {
		res[i] = f.Name
	}
	return res
}

func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell at (row, col) as string, int64, float64 or bool, or
// nil for a null cell.
func (t *Table) Value(row, col int) any {
	arr := t.rec.Column(col)
	if arr.IsNull(row) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(row)
	case *array.Int64:
		return a.Value(row)
	case *array.Float64:
		return a.Value(row)
	case *array.Boolean:
		return a.Value(row)
	}
	return arr.ValueStr(row)
}

// Lookup returns the cell of the named column at row.
func (t *Table) Lookup(row int, name string) (any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.Value(row, i), true
}

// Row returns a column name to value map of one row.
func (t *Table) Row(row int) map[string]any {
	res := make(map[string]any, len(t.index))
	for name, i := range t.index {
		res[name] = t.Value(row, i)
	}
	return res
}

// Rows returns every row as a slice of cells in column order.
func (t *Table) Rows() [][]any {
	res := make([][]any, t.NumRows())
	for r := range res {
		row := make([]any, t.rec.NumCols())
		for c := range row {
			row[c] = t.Value(r, c)
		}
		res[r] = row
	}
	return res
}

// Select projects the table to names, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	fields := make([]arrow.Field, len(names))
	cols := make([]arrow.Array, len(names))
	for i, name := range names {
		idx, ok := t.index[name]
		if !ok {
			return nil, fmt.Errorf("column %q not in table", name)
		}
		fields[i] = t.rec.Schema().Field(idx)
		cols[i] = t.rec.Column(idx)
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), cols, t.rec.NumRows())), nil
}

// WithColumn returns a copy of the table with one more column. A column of
// the same name is replaced.
func (t *Table) WithColumn(name string, typ arrow.DataType, values []any) (*Table, error) {
	if len(values) != t.NumRows() {
		return nil, fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), t.NumRows())
	}
	b, err := NewBuilder(arrow.Field{Name: name, Type: typ, Nullable: true})
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := b.AppendRow(v); err != nil {
			return nil, err
		}
	}
	added := b.Build().rec.Column(0)

	fields := append([]arrow.Field(nil), t.rec.Schema().Fields()...)
	cols := append([]arrow.Array(nil), t.rec.Columns()...)
	if i, ok := t.index[name]; ok {
		fields[i] = arrow.Field{Name: name, Type: typ, Nullable: true}
		cols[i] = added
	} else {
		fields = append(fields, arrow.Field{Name: name, Type: typ, Nullable: true})
		cols = append(cols, added)
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), cols, t.rec.NumRows())), nil
}

// Equal compares column names, column types and every cell. Field metadata
// is ignored.
func (t *Table) Equal(o *Table) bool {
	if t.NumRows() != o.NumRows() || t.rec.NumCols() != o.rec.NumCols() {
		return false
	}
	for i, f := range t.rec.Schema().Fields() {
		of := o.rec.Schema().Field(i)
		if f.Name != of.Name || !arrow.TypeEqual(f.Type, of.Type) {
			return false
		}
	}
	for r := 0; r < t.NumRows(); r++ {
		for c := 0; c < int(t.rec.NumCols()); c++ {
			if !cellEqual(t.Value(r, c), o.Value(r, c)) {
				return false
			}
		}
	}
	return true
}

func cellEqual(a, b any) bool {
	fa, okA := a.(float64)
	fb, okB := b.(float64)
	if okA && okB && math.IsNaN(fa) && math.IsNaN(fb) {
		return true
	}
	return a == b
}

// TypeOf returns the column type used for a Go value produced by Value.
func TypeOf(v any) arrow.DataType {
	switch v.(type) {
	case int64, int, int32:
		return Int64
	case float64, float32:
		return Float64
	case bool:
		return Bool
	}
	return String
}
