package etl

import (
	"encoding/json"
	"reflect"
	"time"

	"modelkit/internal/model"
)

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Model rows are flattened into Records; all destinations consume Records.

// Field types inferred for a column.
const (
	TypeText     = "text"
	TypeNumber   = "number"
	TypeBoolean  = "boolean"
	TypeDatetime = "datetime"
)

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number" | "boolean" | "datetime"
}

// Schema describes the columns of a batch of records, in output order.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}

// ── Frame ──────────────────────────────────────────────────
// FromRows is the tabular sink form of projected rows: a column list in
// first-seen order plus one flat record per row. Rows may be ragged; a
// column missing from a row is simply absent from its Data.

// FromRows builds a schema and records from projected rows.
func FromRows(rows []*model.Dict) (*Schema, []Record) {
	records := make([]Record, 0, len(rows))
	seen := make(map[string]bool)
	var names []string
	for _, row := range rows {
		data := make(map[string]any, row.Len())
		for pair := row.Oldest(); pair != nil; pair = pair.Next() {
			data[pair.Key] = pair.Value
			if !seen[pair.Key] {
				seen[pair.Key] = true
				names = append(names, pair.Key)
			}
		}
		records = append(records, Record{Data: data})
	}
	return &Schema{Fields: inferFields(names, records)}, records
}

// inferFields assigns each column the narrowest type all its non-nil values
// share, falling back to text.
func inferFields(names []string, records []Record) []Field {
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		typ := ""
		for _, r := range records {
			v, ok := r.Data[name]
			if !ok || v == nil {
				continue
			}
			vt := inferType(v)
			if typ == "" {
				typ = vt
			} else if typ != vt {
				typ = TypeText
				break
			}
		}
		if typ == "" {
			typ = TypeText
		}
		fields = append(fields, Field{Name: name, Type: typ})
	}
	return fields
}

func inferType(v any) string {
	switch v.(type) {
	case time.Time, *time.Time:
		return TypeDatetime
	case json.Number:
		return TypeNumber
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	default:
		return TypeText
	}
}
