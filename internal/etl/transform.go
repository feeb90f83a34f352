package etl

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify rows in-flight between projection and destination.
// They are composable: each takes a record, returns a (possibly modified)
// record and a boolean indicating whether to keep it.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// SchemaTransformer is implemented by transforms that change the column set,
// so the output schema can follow them without rescanning the rows.
type SchemaTransformer interface {
	TransformSchema(*Schema) *Schema
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition (stored as JSON).
type TransformConfig struct {
	Type   string         `json:"type" yaml:"type"` // "filter" | "rename" | "select" | "dedupe" | "sort" | "limit" | "type_cast"
	Config map[string]any `json:"config" yaml:"config"`
}

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform drops records where the given field does not match the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "gt" | "lt" | "contains" | "exists"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	switch t.Op {
	case "eq":
		return r, fmt.Sprint(v) == fmt.Sprint(t.Value)
	case "neq":
		return r, fmt.Sprint(v) != fmt.Sprint(t.Value)
	case "contains":
		return r, strings.Contains(fmt.Sprint(v), fmt.Sprint(t.Value))
	case "gt":
		return r, compareValues(v, t.Value) > 0
	case "lt":
		return r, compareValues(v, t.Value) < 0
	default:
		return r, true
	}
}

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	for old, renamed := range t.Mapping {
		if v, ok := r.Data[old]; ok {
			delete(r.Data, old)
			r.Data[renamed] = v
		}
	}
	return r, true
}

func (t *RenameTransform) TransformSchema(s *Schema) *Schema {
	fields := make([]Field, len(s.Fields))
	for i, f := range s.Fields {
		if renamed, ok := t.Mapping[f.Name]; ok {
			f.Name = renamed
		}
		fields[i] = f
	}
	return &Schema{Fields: fields}
}

// SelectTransform keeps only the specified fields, in the given order.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true
}

func (t *SelectTransform) TransformSchema(s *Schema) *Schema {
	byName := lo.KeyBy(s.Fields, func(f Field) string { return f.Name })
	fields := make([]Field, 0, len(t.Fields))
	for _, name := range t.Fields {
		if f, ok := byName[name]; ok {
			fields = append(fields, f)
		}
	}
	return &Schema{Fields: fields}
}

// DedupeTransform drops records with duplicate values for the given key.
type DedupeTransform struct {
	Key  string
	seen map[string]bool
}

func NewDedupeTransform(key string) *DedupeTransform {
	return &DedupeTransform{Key: key, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	v := fmt.Sprint(r.Data[t.Key])
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// SortTransform sorts all collected records by a field.
// It is a batch transform: it passes records through while streaming and
// the engine sorts the collected batch afterwards.
type SortTransform struct {
	Field     string
	Direction string // "asc" | "desc"
}

func (t *SortTransform) Transform(r Record) (Record, bool) {
	return r, true
}

// LimitTransform caps the number of records.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool) {
	t.seen++
	return r, t.seen <= t.Count
}

// TypeCastTransform converts a field's value to a target type.
type TypeCastTransform struct {
	Field    string
	CastType string // "number" | "string" | "bool"
}

func (t *TypeCastTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok || v == nil {
		return r, true
	}
	switch t.CastType {
	case "number":
		f, _ := toFloatSafe(v)
		r.Data[t.Field] = f
	case "string":
		r.Data[t.Field] = fmt.Sprint(v)
	case "bool":
		r.Data[t.Field] = toBool(v)
	}
	return r, true
}

func (t *TypeCastTransform) TransformSchema(s *Schema) *Schema {
	typ := map[string]string{"number": TypeNumber, "string": TypeText, "bool": TypeBoolean}[t.CastType]
	fields := slices.Clone(s.Fields)
	for i := range fields {
		if fields[i].Name == t.Field && typ != "" {
			fields[i].Type = typ
		}
	}
	return &Schema{Fields: fields}
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		lower := strings.ToLower(b)
		return lower == "true" || lower == "yes" || lower == "1"
	default:
		f, ok := toFloatSafe(v)
		return ok && f != 0
	}
}

// BuildTransformers converts declarative TransformConfig into Transformer instances.
func BuildTransformers(configs []TransformConfig) ([]Transformer, error) {
	var ts []Transformer

	for _, tc := range configs {
		cfg := SourceConfig(tc.Config)
		switch tc.Type {
		case "filter":
			field, op := cfg.String("field"), cfg.String("op")
			if field == "" || op == "" {
				return nil, fmt.Errorf("filter transform requires field and op")
			}
			ts = append(ts, &FilterTransform{Field: field, Op: op, Value: cfg["value"]})

		case "rename":
			mapping, ok := cfg["mapping"].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("rename transform requires mapping")
			}
			m := make(map[string]string, len(mapping))
			for k, v := range mapping {
				m[k] = fmt.Sprint(v)
			}
			ts = append(ts, &RenameTransform{Mapping: m})

		case "select":
			fields := cfg.Strings("fields")
			if len(fields) == 0 {
				return nil, fmt.Errorf("select transform requires fields")
			}
			ts = append(ts, &SelectTransform{Fields: fields})

		case "dedupe":
			key := cfg.String("key")
			if key == "" {
				return nil, fmt.Errorf("dedupe transform requires key")
			}
			ts = append(ts, NewDedupeTransform(key))

		case "sort":
			field, direction := cfg.String("field"), cfg.String("direction")
			if field == "" {
				return nil, fmt.Errorf("sort transform requires field")
			}
			if direction == "" {
				direction = "asc"
			}
			ts = append(ts, &SortTransform{Field: field, Direction: direction})

		case "limit":
			count, ok := toFloatSafe(cfg["count"])
			if !ok || count <= 0 {
				return nil, fmt.Errorf("limit transform requires a positive count")
			}
			ts = append(ts, NewLimitTransform(int(count)))

		case "type_cast":
			field, castType := cfg.String("field"), cfg.String("castType")
			if field == "" || castType == "" {
				return nil, fmt.Errorf("type_cast transform requires field and castType")
			}
			ts = append(ts, &TypeCastTransform{Field: field, CastType: castType})

		default:
			return nil, fmt.Errorf("unknown transform type: %q", tc.Type)
		}
	}

	return ts, nil
}

// ── Batch Transforms ──────────────────────────────────────

// ApplyBatchSort sorts records if a SortTransform exists in the chain.
func ApplyBatchSort(records []Record, ts []Transformer) []Record {
	for _, t := range ts {
		if st, ok := t.(*SortTransform); ok && st.Field != "" {
			sorted := slices.Clone(records)
			dir := 1
			if st.Direction == "desc" {
				dir = -1
			}
			slices.SortStableFunc(sorted, func(a, b Record) int {
				return compareValues(a.Data[st.Field], b.Data[st.Field]) * dir
			})
			return sorted
		}
	}
	return records
}

// ApplySchemaTransforms runs the column-changing transforms over s.
func ApplySchemaTransforms(s *Schema, ts []Transformer) *Schema {
	for _, t := range ts {
		if st, ok := t.(SchemaTransformer); ok {
			s = st.TransformSchema(s)
		}
	}
	return s
}

// compareValues orders numbers numerically, times chronologically and
// everything else by its printed form. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	fa, aOk := toFloatSafe(a)
	fb, bOk := toFloatSafe(b)
	if aOk && bOk {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloatSafe(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}
