package table

import (
	"database/sql"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
)

// arrowType maps a DuckDB column type name onto one of the table types.
func arrowType(dbType string) arrow.DataType {
	t := strings.ToUpper(dbType)
	switch {
	case t == "BOOLEAN":
		return Bool
	case t == "BIGINT", t == "INTEGER", t == "SMALLINT", t == "TINYINT",
		t == "UBIGINT", t == "UINTEGER", t == "USMALLINT", t == "UTINYINT":
		return Int64
	case t == "DOUBLE", t == "FLOAT", t == "REAL", t == "HUGEINT", t == "UHUGEINT",
		strings.HasPrefix(t, "DECIMAL"):
		return Float64
	}
	return String
}

// FromRows drains rows into a Table. Rows are closed on return.
func FromRows(rows *sql.Rows) (*Table, error) {
	defer rows.Close()
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	fields := make([]arrow.Field, len(types))
	for i, ct := range types {
		fields[i] = arrow.Field{Name: ct.Name(), Type: arrowType(ct.DatabaseTypeName()), Nullable: true}
	}
	b, err := NewBuilder(fields...)
	if err != nil {
		return nil, err
	}
	values := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		if err := b.AppendRow(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
