package utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/table"
	"github.com/go-faster/jx"
)

// Formats accepted by FormatTable.
var Formats = []string{"JSONCompact", "JSON", "TSVWithNames", "TabSeparatedWithNames", "CSVWithNames"}

// FormatTable renders a result table in one of Formats.
func FormatTable(t *table.Table, format string, elapsed time.Duration) (string, error) {
	switch format {
	case "JSONCompact", "JSON", "":
		return tableToJSON(t, elapsed), nil
	case "TSVWithNames", "TabSeparatedWithNames":
		return tableToTSV(t), nil
	case "CSVWithNames":
		return tableToCSV(t)
	}
	return "", model.Configurationf("unknown output format %q", format)
}

// typeName reports arrow types with the names DuckDB uses for them.
func typeName(typ arrow.DataType) string {
	switch typ.ID() {
	case arrow.INT64:
		return "BIGINT"
	case arrow.FLOAT64:
		return "DOUBLE"
	case arrow.BOOL:
		return "BOOLEAN"
	}
	return "VARCHAR"
}

func tableToJSON(t *table.Table, elapsed time.Duration) string {
	e := &jx.Encoder{}
	e.ObjStart()

	e.FieldStart("meta")
	e.ArrStart()
	for _, f := range t.Schema().Fields() {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(f.Name)
		e.FieldStart("type")
		e.Str(typeName(f.Type))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("data")
	e.ArrStart()
	for r := 0; r < t.NumRows(); r++ {
		e.ArrStart()
		for c := range t.Columns() {
			writeCell(e, t.Value(r, c))
		}
		e.ArrEnd()
	}
	e.ArrEnd()

	e.FieldStart("rows")
	e.Int(t.NumRows())

	e.FieldStart("statistics")
	e.ObjStart()
	e.FieldStart("elapsed")
	e.Float64(elapsed.Seconds())
	e.FieldStart("rows")
	e.Int(t.NumRows())
	e.ObjEnd()

	e.ObjEnd()
	return e.String()
}

func writeCell(e *jx.Encoder, v any) {
	switch v := v.(type) {
	case nil:
		e.Null()
	case string:
		e.Str(v)
	case int64:
		e.Int64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			e.Null()
			return
		}
		e.Float64(v)
	case bool:
		e.Bool(v)
	default:
		e.Str(fmt.Sprint(v))
	}
}

func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// tableToTSV escapes tabs and newlines inside values and writes nulls as \N.
func tableToTSV(t *table.Table) string {
	escaper := strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n")
	lines := []string{strings.Join(t.Columns(), "\t")}
	for _, row := range t.Rows() {
		parts := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				parts[i] = "\\N"
				continue
			}
			parts[i] = escaper.Replace(cellString(v))
		}
		lines = append(lines, strings.Join(parts, "\t"))
	}
	return strings.Join(lines, "\n")
}

func tableToCSV(t *table.Table) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns()); err != nil {
		return "", err
	}
	for _, row := range t.Rows() {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = cellString(v)
		}
		if err := w.Write(parts); err != nil {
			return "", err
		}
	}
	w.Flush()
	return strings.TrimSuffix(buf.String(), "\n"), w.Error()
}
