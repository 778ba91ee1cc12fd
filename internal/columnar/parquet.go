// Package columnar encodes record sets as Parquet and reads them back.
package columnar

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// Encode writes rows as a single Parquet file. The schema is derived from the
// parquet struct tags of T, so an empty slice still produces a valid file.
func Encode[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf)
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a Parquet file into typed rows.
func Decode[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

// Records reads a flat Parquet file into records keyed by field name. Null
// values map to nil.
func Records(data []byte) ([]map[string]any, error) {
	r := parquet.NewReader(bytes.NewReader(data))
	defer r.Close()

	paths := r.Schema().Columns()
	var out []map[string]any
	buf := make([]parquet.Row, 128)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			rec := make(map[string]any, len(row))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(paths) || len(paths[col]) != 1 {
					return nil, fmt.Errorf("parquet column %d is not a top-level field", col)
				}
				rec[paths[col][0]] = value(v)
			}
			out = append(out, rec)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			return out, nil
		}
	}
}

func value(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return string(v.ByteArray())
	}
}
