package model

import (
	"modelkit/internal/jsonenc"
)

// Serializer renders a normalized tree as JSON text.
type Serializer interface {
	Marshal(v any) ([]byte, error)
}

// ToDict converts m into an ordered mapping of its selected, non-empty
// fields. Nested models become nested mappings and collections become
// sequences.
func ToDict(m Model) (*Dict, error) {
	return normalizer{}.model(m)
}

// ToJSON renders ToDict(m) with the default encoder configured by opts.
func ToJSON(m Model, opts ...jsonenc.Option) ([]byte, error) {
	return ToJSONWith(m, jsonenc.New(opts...))
}

// ToJSONWith renders ToDict(m) with s.
func ToJSONWith(m Model, s Serializer) ([]byte, error) {
	d, err := ToDict(m)
	if err != nil {
		return nil, err
	}
	return s.Marshal(d)
}

// ToRows projects m into flat rows, one per combination of collection
// elements. A collection that is present but empty yields no rows; a nil
// collection is treated as absent.
func ToRows(m Model) ([]*Dict, error) {
	return ToRowsWith(m, Projector{})
}

// ToRowsWith is ToRows with a custom projector.
func ToRowsWith(m Model, p Projector) ([]*Dict, error) {
	d, err := normalizer{tabular: true}.model(m)
	if err != nil {
		return nil, err
	}
	return p.Project(d), nil
}
