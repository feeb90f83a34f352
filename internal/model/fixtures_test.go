package model

import (
	"errors"
)

var inventorSchema = &Schema{
	Name:   "test.Inventor",
	Fields: []string{"name", "city"},
	Defaults: map[string]any{
		"city": nil,
	},
}

var publicationSchema = &Schema{
	Name:    "test.Publication",
	Fields:  []string{"number", "title", "year", "granted", "inventors", "tags", "internal_id"},
	Exclude: []string{"internal_id"},
	Defaults: map[string]any{
		"inventors":   nil,
		"tags":        nil,
		"internal_id": nil,
	},
}

func inventor(name, city string) *Record {
	kw := map[string]any{"name": name}
	if city != "" {
		kw["city"] = city
	}
	return MustNew(inventorSchema, nil, kw)
}

// brokenModel fails every attribute access.
type brokenModel struct{ err error }

func (b brokenModel) Schema() *Schema {
	return &Schema{Name: "test.Broken", Fields: []string{"x"}}
}

func (b brokenModel) Get(string) (any, error) { return nil, b.err }

var errBoom = errors.New("boom")

func dictKeys(d *Dict) []string {
	var keys []string
	for pair := d.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func dictValue(d *Dict, key string) any {
	v, _ := d.Get(key)
	return v
}
