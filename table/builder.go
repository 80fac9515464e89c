package table

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"golang.org/x/exp/constraints"
)

type cell interface {
	constraints.Ordered | ~bool
}

type appender[T cell] interface {
	AppendValues(values []T, valid []bool)
}

type columnBuffer interface {
	Append(v any) error
	Len() int
	flush(b array.Builder)
}

// column buffers the values of one output column before they are handed to
// the arrow builder in a single AppendValues call.
type column[T cell] struct {
	name    string
	data    []T
	valids  []bool
	convert func(v any) (T, error)
}

func (c *column[T]) Append(v any) error {
	if v == nil {
		var zero T
		c.data = append(c.data, zero)
		c.valids = append(c.valids, false)
		return nil
	}
	val, err := c.convert(v)
	if err != nil {
		return fmt.Errorf("column %s: %w", c.name, err)
	}
	c.data = append(c.data, val)
	c.valids = append(c.valids, true)
	return nil
}

func (c *column[T]) Len() int {
	return len(c.data)
}

func (c *column[T]) flush(b array.Builder) {
	b.(appender[T]).AppendValues(c.data, c.valids)
	c.data, c.valids = c.data[:0], c.valids[:0]
}

func newColumn(f arrow.Field) (columnBuffer, error) {
	switch f.Type.ID() {
	case arrow.STRING:
		return &column[string]{name: f.Name, convert: toString}, nil
	case arrow.INT64:
		return &column[int64]{name: f.Name, convert: toInt64}, nil
	case arrow.FLOAT64:
		return &column[float64]{name: f.Name, convert: toFloat64}, nil
	case arrow.BOOL:
		return &column[bool]{name: f.Name, convert: toBool}, nil
	}
	return nil, fmt.Errorf("unsupported column type %s for %s", f.Type, f.Name)
}

// Builder assembles a Table row by row.
type Builder struct {
	schema *arrow.Schema
	cols   []columnBuffer
	mem    memory.Allocator
}

func NewBuilder(fields ...arrow.Field) (*Builder, error) {
	b := &Builder{
		schema: arrow.NewSchema(fields, nil),
		cols:   make([]columnBuffer, len(fields)),
		mem:    memory.NewGoAllocator(),
	}
	for i, f := range fields {
		col, err := newColumn(f)
		if err != nil {
			return nil, err
		}
		b.cols[i] = col
	}
	return b, nil
}

// AppendRow appends one value per column; nil is a null cell.
func (b *Builder) AppendRow(values ...any) error {
	if len(values) != len(b.cols) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(b.cols))
	}
	for i, v := range values {
		if err := b.cols[i].Append(v); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) Build() *Table {
	rb := array.NewRecordBuilder(b.mem, b.schema)
	defer rb.Release()
	for i, col := range b.cols {
		col.flush(rb.Field(i))
	}
	return New(rb.NewRecord())
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case time.Time:
		return s.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return fmt.Sprint(v), nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to int64", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	case interface{ Float64() float64 }:
		return n.Float64(), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
	return float64(i), nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	}
	i, err := toInt64(v)
	if err != nil {
		return false, fmt.Errorf("cannot convert %T to bool", v)
	}
	return i != 0, nil
}
