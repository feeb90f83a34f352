package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(kv ...any) Record {
	data := make(map[string]any)
	for i := 0; i < len(kv); i += 2 {
		data[kv[i].(string)] = kv[i+1]
	}
	return Record{Data: data}
}

func TestFilterTransform(t *testing.T) {
	tests := []struct {
		op    string
		value any
		in    any
		keep  bool
	}{
		{"eq", "UK", "UK", true},
		{"eq", "UK", "FR", false},
		{"neq", "UK", "FR", true},
		{"contains", "ov", "Lovelace", true},
		{"gt", 10, 11.0, true},
		{"gt", 10, "9", false},
		{"lt", 10, 9, true},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			f := &FilterTransform{Field: "v", Op: tt.op, Value: tt.value}
			_, keep := f.Transform(rec("v", tt.in))
			assert.Equal(t, tt.keep, keep)
		})
	}

	_, keep := (&FilterTransform{Field: "missing", Op: "eq", Value: 1}).Transform(rec("v", 1))
	assert.False(t, keep)
}

func TestRenameAndSelect_FollowSchema(t *testing.T) {
	ts, err := BuildTransformers([]TransformConfig{
		{Type: "rename", Config: map[string]any{"mapping": map[string]any{"a.b": "ab"}}},
		{Type: "select", Config: map[string]any{"fields": []any{"c", "ab"}}},
	})
	require.NoError(t, err)

	out, keep := ApplyTransformers(rec("a.b", 1, "c", 2, "d", 3), ts)
	require.True(t, keep)
	assert.Equal(t, map[string]any{"ab": 1, "c": 2}, out.Data)

	schema := ApplySchemaTransforms(&Schema{Fields: []Field{
		{Name: "a.b", Type: TypeNumber}, {Name: "c", Type: TypeNumber}, {Name: "d", Type: TypeText},
	}}, ts)
	assert.Equal(t, []string{"c", "ab"}, schema.FieldNames())
}

func TestLimitAndDedupe(t *testing.T) {
	ts, err := BuildTransformers([]TransformConfig{
		{Type: "dedupe", Config: map[string]any{"key": "k"}},
		{Type: "limit", Config: map[string]any{"count": 2}},
	})
	require.NoError(t, err)

	var kept []any
	for _, k := range []any{1, 1, 2, 3, 4} {
		if r, keep := ApplyTransformers(rec("k", k), ts); keep {
			kept = append(kept, r.Data["k"])
		}
	}
	assert.Equal(t, []any{1, 2}, kept)
}

func TestApplyBatchSort(t *testing.T) {
	ts, err := BuildTransformers([]TransformConfig{
		{Type: "sort", Config: map[string]any{"field": "n", "direction": "desc"}},
	})
	require.NoError(t, err)

	records := []Record{rec("n", 2), rec("n", 10), rec("x", 1), rec("n", 3)}
	sorted := ApplyBatchSort(records, ts)

	got := make([]any, len(sorted))
	for i, r := range sorted {
		got[i] = r.Data["n"]
	}
	assert.Equal(t, []any{10, 3, 2, nil}, got)
	assert.Equal(t, 2, records[0].Data["n"], "input must not be reordered")
}

func TestTypeCastTransform(t *testing.T) {
	ts, err := BuildTransformers([]TransformConfig{
		{Type: "type_cast", Config: map[string]any{"field": "n", "castType": "number"}},
	})
	require.NoError(t, err)

	out, _ := ApplyTransformers(rec("n", "4.5"), ts)
	assert.Equal(t, 4.5, out.Data["n"])

	schema := ApplySchemaTransforms(&Schema{Fields: []Field{{Name: "n", Type: TypeText}}}, ts)
	assert.Equal(t, TypeNumber, schema.Fields[0].Type)
}

func TestBuildTransformers_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  TransformConfig
		msg  string
	}{
		{"unknown", TransformConfig{Type: "compute"}, "unknown transform type"},
		{"filter", TransformConfig{Type: "filter", Config: map[string]any{"field": "a"}}, "requires field and op"},
		{"limit", TransformConfig{Type: "limit", Config: map[string]any{"count": 0}}, "positive count"},
		{"select", TransformConfig{Type: "select"}, "requires fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTransformers([]TransformConfig{tt.cfg})
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}
