package model

import (
	"errors"
	"reflect"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Dict is the normalized form of a model: an insertion-ordered mapping whose
// values are scalars, nested *Dict values or []any sequences.
type Dict = orderedmap.OrderedMap[string, any]

// NewDict returns an empty Dict.
func NewDict() *Dict {
	return orderedmap.New[string, any]()
}

type absentValue struct{}

func (absentValue) String() string { return "<absent>" }

// Absent marks a field that carries no value. It is always omitted from
// converted output.
var Absent any = absentValue{}

// Collection is implemented by custom sequence types that should fan out
// like slices.
type Collection interface {
	Len() int
	At(i int) any
}

// IsEmpty reports whether v is omitted from normalized output: nil, Absent,
// nil pointers and interfaces, zero-length slices, arrays, maps and
// collections, and models that normalize to an empty mapping. Zero scalars
// such as 0, "" and false are not empty. A model whose fields cannot be read
// is not empty; converting it reports the error.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case absentValue:
		return true
	case Model:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return true
		}
		d, err := normalizer{}.model(t)
		return err == nil && d.Len() == 0
	case Collection:
		return t.Len() == 0
	case *Dict:
		return t == nil || t.Len() == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// Normalize converts v into its JSON-safe form. present is false when v is
// empty and must be left out of the parent mapping.
func Normalize(v any) (value any, present bool, err error) {
	return normalizer{}.value(v)
}

// normalizer walks values read-only. In tabular mode a sequence with no
// elements at all is kept as an empty fan-out axis instead of being dropped,
// so projection can yield zero rows for it. A sequence whose elements were
// all empty is dropped in both modes.
type normalizer struct {
	tabular bool
}

func (n normalizer) model(m Model) (*Dict, error) {
	out := NewDict()
	for _, name := range Select(m) {
		raw, err := m.Get(name)
		if errors.Is(err, ErrNoField) {
			// An explicit order may name fields the type never declared.
			continue
		}
		if err != nil {
			return nil, err
		}
		v, ok, err := n.value(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Set(name, v)
		}
	}
	return out, nil
}

func (n normalizer) value(v any) (any, bool, error) {
	switch v.(type) {
	case nil, absentValue:
		return nil, false, nil
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, true, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan, reflect.Map:
		if rv.IsNil() {
			return nil, false, nil
		}
	}

	switch t := v.(type) {
	case Model:
		d, err := n.model(t)
		if err != nil {
			return nil, false, err
		}
		return d, d.Len() > 0, nil
	case *Dict:
		return n.dict(t)
	case Collection:
		return n.sequence(t.Len(), t.At)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		if rv.Elem().Kind() == reflect.Struct {
			return v, true, nil
		}
		return n.value(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil, false, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v, rv.Len() > 0, nil
		}
		return n.sequence(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Array:
		return n.sequence(rv.Len(), func(i int) any { return rv.Index(i).Interface() })
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, rv.Len() > 0, nil
		}
		return n.mapping(rv)
	}
	return v, true, nil
}

func (n normalizer) sequence(size int, at func(int) any) (any, bool, error) {
	out := make([]any, 0, size)
	for i := 0; i < size; i++ {
		v, ok, err := n.value(at(i))
		if err != nil {
			return nil, false, err
		}
		if inner, isSeq := v.([]any); isSeq && len(inner) == 0 {
			ok = false
		}
		if ok {
			out = append(out, v)
		}
	}
	if len(out) == 0 && (size > 0 || !n.tabular) {
		return nil, false, nil
	}
	return out, true, nil
}

func (n normalizer) mapping(rv reflect.Value) (any, bool, error) {
	keys := make([]string, 0, rv.Len())
	entries := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		keys = append(keys, k)
		entries[k] = iter.Value().Interface()
	}
	slices.Sort(keys)

	out := NewDict()
	for _, k := range keys {
		v, ok, err := n.value(entries[k])
		if err != nil {
			return nil, false, err
		}
		if ok {
			out.Set(k, v)
		}
	}
	return out, out.Len() > 0, nil
}

func (n normalizer) dict(d *Dict) (any, bool, error) {
	out := NewDict()
	for pair := d.Oldest(); pair != nil; pair = pair.Next() {
		v, ok, err := n.value(pair.Value)
		if err != nil {
			return nil, false, err
		}
		if ok {
			out.Set(pair.Key, v)
		}
	}
	return out, out.Len() > 0, nil
}
