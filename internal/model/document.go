package model

import (
	"slices"

	"github.com/samber/lo"
)

// Document adapts a decoded JSON object to the Model interface. Its fields
// are the object's keys; nested objects and arrays are converted as plain
// mappings and sequences.
type Document struct {
	schema *Schema
	data   map[string]any
}

// NewDocument wraps data as a model of type name. Exclusions and ordering
// can be applied afterwards with WithPolicy.
func NewDocument(name string, data map[string]any) *Document {
	fields := lo.Keys(data)
	slices.Sort(fields)
	return &Document{
		schema: &Schema{Name: name, Fields: fields},
		data:   data,
	}
}

// WithPolicy returns a copy of d whose schema carries p.
func (d *Document) WithPolicy(p Policy) *Document {
	s := *d.schema
	s.Exclude = p.Exclude
	s.Order = p.Order
	s.Manager = p.Manager
	return &Document{schema: &s, data: d.data}
}

func (d *Document) Schema() *Schema { return d.schema }

// Get returns Absent for keys the object does not carry, since documents of
// one type are free to differ in shape.
func (d *Document) Get(field string) (any, error) {
	v, ok := d.data[field]
	if !ok {
		return Absent, nil
	}
	return v, nil
}

// Documents wraps every JSON object in raw, which may be a single object or
// an array of objects. Non-object array items are skipped.
func Documents(name string, raw any) []Model {
	switch v := raw.(type) {
	case map[string]any:
		return []Model{NewDocument(name, v)}
	case []any:
		docs := make([]Model, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				docs = append(docs, NewDocument(name, m))
			}
		}
		return docs
	default:
		return nil
	}
}
