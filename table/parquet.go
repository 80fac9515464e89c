package table

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// WriteParquet writes the table as a single parquet file to w.
func (t *Table) WriteParquet(w io.Writer) error {
	writerProps := parquet.NewWriterProperties(
		parquet.WithMaxRowGroupLength(8124),
		parquet.WithCompression(compress.Codecs.Zstd),
	)
	arrprops := pqarrow.NewArrowWriterProperties()

	writer, err := pqarrow.NewFileWriter(t.rec.Schema(), w, writerProps, arrprops)
	if err != nil {
		return fmt.Errorf("failed to create parquet file writer: %w", err)
	}
	if err := writer.Write(t.rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record to parquet file: %w", err)
	}
	return writer.Close()
}

// ReadParquet reads a parquet file written by WriteParquet.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Table, error) {
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	defer tbl.Release()

	schema := tbl.Schema()
	fields := make([]arrow.Field, schema.NumFields())
	cols := make([]arrow.Array, schema.NumFields())
	for i := range cols {
		f := schema.Field(i)
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type, Nullable: true}
		chunks := tbl.Column(i).Data().Chunks()
		if len(chunks) == 0 {
			cols[i] = array.MakeArrayOfNull(mem, f.Type, 0)
			continue
		}
		col, err := array.Concatenate(chunks, mem)
		if err != nil {
			return nil, fmt.Errorf("failed to concatenate column %s: %w", f.Name, err)
		}
		cols[i] = col
	}
	return New(array.NewRecord(arrow.NewSchema(fields, nil), cols, tbl.NumRows())), nil
}
