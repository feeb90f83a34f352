package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"modelkit/internal/dbclient"
	"modelkit/internal/jsonenc"
	"modelkit/internal/model"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes records into a target system: a database table or
// collection through a dbclient.Connector, or a CSV / JSON lines file.

// SyncMode determines how records are written to the destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // delete all existing rows, insert fresh
	SyncAppend  SyncMode = "append"  // add rows without deleting existing
)

// Destination writes records to a target system. target names the table,
// collection or file inside it.
type Destination interface {
	Write(ctx context.Context, target string, schema *Schema, records []Record, mode SyncMode) (int, error)
}

// ── Table Destination ──────────────────────────────────────

const defaultBatchSize = 500

// TableDestination writes records into a table (or collection) through a
// database connector, creating missing columns as it goes.
type TableDestination struct {
	Conn dbclient.Connector
	// RowIDColumn, when set, is prepended to the columns and filled with a
	// fresh UUID per row.
	RowIDColumn string
	BatchSize   int
}

func (d *TableDestination) Write(ctx context.Context, table string, schema *Schema, records []Record, mode SyncMode) (int, error) {
	if table == "" {
		return 0, fmt.Errorf("target table is required")
	}

	cols := make([]dbclient.Column, 0, len(schema.Fields)+1)
	if d.RowIDColumn != "" {
		cols = append(cols, dbclient.Column{Name: d.RowIDColumn, Type: TypeText})
	}
	for _, f := range schema.Fields {
		cols = append(cols, dbclient.Column{Name: f.Name, Type: f.Type})
	}
	if len(cols) > 0 {
		if err := d.Conn.EnsureTable(ctx, table, cols); err != nil {
			return 0, fmt.Errorf("ensure table: %w", err)
		}
	}
	// Replace clears the previous export even when nothing new arrives.
	if mode == SyncReplace {
		if err := d.Conn.Truncate(ctx, table); err != nil {
			return 0, fmt.Errorf("clear target: %w", err)
		}
	}
	if len(cols) == 0 {
		return 0, nil
	}

	names := lo.Map(cols, func(c dbclient.Column, _ int) string { return c.Name })
	size := d.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	written := 0
	for _, batch := range lo.Chunk(records, size) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		rows := make([][]any, len(batch))
		for i, rec := range batch {
			row := make([]any, 0, len(names))
			if d.RowIDColumn != "" {
				row = append(row, uuid.New().String())
			}
			for _, f := range schema.Fields {
				row = append(row, rec.Data[f.Name])
			}
			rows[i] = row
		}
		n, err := d.Conn.InsertRows(ctx, table, names, rows)
		written += n
		if err != nil {
			return written, fmt.Errorf("insert rows: %w", err)
		}
	}
	return written, nil
}

// ── CSV Destination ────────────────────────────────────────

// CSVDestination writes records to a CSV file with a header row. In append
// mode the header is only written when the file is new or empty.
type CSVDestination struct {
	Delimiter rune
}

func (d *CSVDestination) Write(ctx context.Context, path string, schema *Schema, records []Record, mode SyncMode) (int, error) {
	f, fresh, err := openTarget(path, mode)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return WriteCSV(ctx, f, d.Delimiter, fresh, schema, records)
}

// WriteCSV writes records as CSV rows in schema column order, preceded by a
// header row when header is set. A zero delimiter means a comma.
func WriteCSV(ctx context.Context, out io.Writer, delimiter rune, header bool, schema *Schema, records []Record) (int, error) {
	w := csv.NewWriter(out)
	if delimiter != 0 {
		w.Comma = delimiter
	}
	if header {
		if err := w.Write(schema.FieldNames()); err != nil {
			return 0, fmt.Errorf("write header: %w", err)
		}
	}

	written := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		row := make([]string, len(schema.Fields))
		for i, field := range schema.Fields {
			row[i] = formatCell(rec.Data[field.Name])
		}
		if err := w.Write(row); err != nil {
			return written, fmt.Errorf("write row %d: %w", written, err)
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return written, fmt.Errorf("flush csv: %w", err)
	}
	return written, nil
}

// formatCell renders a flat row value as CSV text.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case []any, map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// ── JSON Lines Destination ─────────────────────────────────

// JSONLinesDestination writes one JSON object per record, keys in schema
// order. Encoding goes through jsonenc so times and big numbers render the
// same way as ToJSON output.
type JSONLinesDestination struct {
	Encoder *jsonenc.Encoder
}

func (d *JSONLinesDestination) Write(ctx context.Context, path string, schema *Schema, records []Record, mode SyncMode) (int, error) {
	f, _, err := openTarget(path, mode)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return WriteJSONLines(ctx, f, d.Encoder, schema, records)
}

// WriteJSONLines writes one JSON object per record with keys in schema
// order. Cells missing from a record are left out of its object.
func WriteJSONLines(ctx context.Context, out io.Writer, enc *jsonenc.Encoder, schema *Schema, records []Record) (int, error) {
	if enc == nil {
		enc = jsonenc.New()
	}

	written := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		obj := model.NewDict()
		for _, field := range schema.Fields {
			if v, ok := rec.Data[field.Name]; ok {
				obj.Set(field.Name, v)
			}
		}
		line, err := enc.Marshal(obj)
		if err != nil {
			return written, fmt.Errorf("encode row %d: %w", written, err)
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			return written, fmt.Errorf("write row %d: %w", written, err)
		}
		written++
	}
	return written, nil
}

// openTarget opens path for writing according to mode and reports whether
// the file starts out empty.
func openTarget(path string, mode SyncMode) (io.WriteCloser, bool, error) {
	if path == "" {
		return nil, false, fmt.Errorf("target path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("create target dir: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if mode == SyncAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("open target: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("stat target: %w", err)
	}
	return f, info.Size() == 0, nil
}
