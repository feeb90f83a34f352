package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelkit/internal/jsonenc"
)

func samplePublication(t *testing.T) *Record {
	t.Helper()
	rec, err := New(publicationSchema, []any{"US1", "Widget", 2001, false}, map[string]any{
		"inventors":   []*Record{inventor("Ada", "London"), inventor("Alan", "Wilmslow")},
		"tags":        []string{"mech", "tool"},
		"internal_id": 99,
	})
	require.NoError(t, err)
	return rec
}

func TestToDictIsStable(t *testing.T) {
	s := &Schema{Name: "test.Flat", Fields: []string{"b", "a"}}
	rec := MustNew(s, []any{0, "x"}, nil)

	first, err := ToDict(rec)
	require.NoError(t, err)
	second, err := ToDict(rec)
	require.NoError(t, err)

	assert.Equal(t, dictKeys(first), dictKeys(second))
	assert.Equal(t, dictValue(first, "a"), dictValue(second, "a"))
	assert.Equal(t, dictValue(first, "b"), dictValue(second, "b"))

	a, _ := rec.Get("a")
	assert.Equal(t, "x", a)
}

func TestToJSON(t *testing.T) {
	s := &Schema{
		Name:   "test.Ordered",
		Fields: []string{"a", "b", "c", "d"},
		Order:  []string{"c", "a", "b", "d"},
	}
	rec := MustNew(s, []any{1, nil, true, []any{}}, nil)

	out, err := ToJSON(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"c":true,"a":1}`, string(out))

	out, err = ToJSON(rec, jsonenc.SortKeys(true))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"c":true}`, string(out))

	out, err = ToJSON(rec, jsonenc.Indent("", "  "))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"c\": true,\n  \"a\": 1\n}", string(out))
}

type upperSerializer struct{ calls int }

func (u *upperSerializer) Marshal(v any) ([]byte, error) {
	u.calls++
	d := v.(*Dict)
	return []byte(dictKeys(d)[0]), nil
}

func TestToJSONWithInjectedSerializer(t *testing.T) {
	s := &Schema{Name: "test.One", Fields: []string{"only"}}
	ser := &upperSerializer{}

	out, err := ToJSONWith(MustNew(s, []any{1}, nil), ser)
	require.NoError(t, err)
	assert.Equal(t, "only", string(out))
	assert.Equal(t, 1, ser.calls)
}

func TestToRowsFansOutCollections(t *testing.T) {
	rows, err := ToRows(samplePublication(t))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"granted=false inventors.city=London inventors.name=Ada number=US1 tags=mech title=Widget year=2001",
		"granted=false inventors.city=London inventors.name=Ada number=US1 tags=tool title=Widget year=2001",
		"granted=false inventors.city=Wilmslow inventors.name=Alan number=US1 tags=mech title=Widget year=2001",
		"granted=false inventors.city=Wilmslow inventors.name=Alan number=US1 tags=tool title=Widget year=2001",
	}, rowStrings(rows))
}

func TestToRowsEmptyCollectionShortCircuits(t *testing.T) {
	rec := MustNew(publicationSchema, []any{"US1", "Widget", 2001, true}, map[string]any{
		"inventors": []*Record{inventor("Ada", "")},
		"tags":      []string{},
	})

	rows, err := ToRows(rec)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// The dictionary form still omits the empty collection.
	d, err := ToDict(rec)
	require.NoError(t, err)
	assert.NotContains(t, dictKeys(d), "tags")
}

func TestToRowsNilCollectionIsAbsent(t *testing.T) {
	var tags []string
	rec := MustNew(publicationSchema, []any{"US1", "Widget", 2001, true}, map[string]any{
		"tags": tags,
	})

	rows, err := ToRows(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"granted=true number=US1 title=Widget year=2001"}, rowStrings(rows))
}

func TestToRowsWithSeparator(t *testing.T) {
	rec := MustNew(publicationSchema, []any{"US1", "Widget", 2001, true}, map[string]any{
		"inventors": []*Record{inventor("Ada", "")},
	})

	rows, err := ToRowsWith(rec, Projector{Sep: "_"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", dictValue(rows[0], "inventors_name"))
}

func TestToRowsAllEmptyCollectionIsOmitted(t *testing.T) {
	s := &Schema{Name: "test.Sparse", Fields: []string{"id", "xs"}}
	rec := MustNew(s, []any{1, []any{nil, nil}}, nil)

	d, err := ToDict(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, dictKeys(d))

	rows, err := ToRows(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"id=1"}, rowStrings(rows))
}

// legacyOrdered lists a field in its order that it no longer declares.
type legacyOrdered struct {
	A string `model:"a"`
}

func (legacyOrdered) Policy() Policy {
	return Policy{Order: []string{"a", "legacy"}}
}

func TestConvertSkipsUndeclaredOrderedFields(t *testing.T) {
	s := &Schema{Name: "test.Ordered", Fields: []string{"a", "b"}, Order: []string{"b", "zzz", "a"}}
	rec := MustNew(s, []any{1, 2}, nil)

	d, err := ToDict(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, dictKeys(d))

	out, err := ToJSON(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"b":2,"a":1}`, string(out))

	rows, err := ToRows(rec)
	require.NoError(t, err)
	assert.Equal(t, []string{"b=2 a=1"}, rowStrings(rows))

	m, err := Struct(legacyOrdered{A: "x"})
	require.NoError(t, err)
	d, err = ToDict(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, dictKeys(d))
}

func TestConvertPropagatesOtherAccessErrors(t *testing.T) {
	_, err := ToDict(brokenModel{err: errBoom})
	assert.ErrorIs(t, err, errBoom)
}
