package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const documentJSON = `[
	{"number": "US1", "year": 2001, "granted": false, "notes": null,
	 "family": {"id": 7, "members": ["US1", "EP1"]},
	 "claims": [{"n": 1}, {"n": 2, "dependent": true}]},
	{"number": "US2", "claims": []},
	42
]`

func decodeDocuments(t *testing.T) []Model {
	t.Helper()
	var raw any
	require.NoError(t, json.Unmarshal([]byte(documentJSON), &raw))
	return Documents("test.Doc", raw)
}

func TestDocumentsSkipNonObjects(t *testing.T) {
	docs := decodeDocuments(t)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"claims", "family", "granted", "notes", "number", "year"}, docs[0].Schema().Fields)
	assert.Nil(t, Documents("x", "scalar"))
}

func TestDocumentToDict(t *testing.T) {
	d, err := ToDict(decodeDocuments(t)[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"claims", "family", "granted", "number", "year"}, dictKeys(d))
	assert.Equal(t, float64(2001), dictValue(d, "year"))
	family := dictValue(d, "family").(*Dict)
	assert.Equal(t, []string{"id", "members"}, dictKeys(family))
}

func TestDocumentToRows(t *testing.T) {
	docs := decodeDocuments(t)

	rows, err := ToRows(docs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{
		"claims.n=1 family.id=7 family.members=US1 granted=false number=US1 year=2001",
		"claims.n=1 family.id=7 family.members=EP1 granted=false number=US1 year=2001",
		"claims.dependent=true claims.n=2 family.id=7 family.members=US1 granted=false number=US1 year=2001",
		"claims.dependent=true claims.n=2 family.id=7 family.members=EP1 granted=false number=US1 year=2001",
	}, rowStrings(rows))

	rows, err = ToRows(docs[1])
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDocumentWithPolicy(t *testing.T) {
	doc := NewDocument("test.Doc", map[string]any{"a": 1, "b": 2, "c": 3})
	shaped := doc.WithPolicy(Policy{Order: []string{"c", "a", "missing"}, Exclude: []string{"a"}})

	d, err := ToDict(shaped)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, dictKeys(d))

	// The original keeps its default policy.
	assert.Empty(t, doc.Schema().Order)
}
