package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Policy is the type-level conversion policy of a struct model. A struct
// type supplies it by implementing Policy() on its value or pointer.
type Policy struct {
	Exclude []string
	Order   []string
	Manager Manager
}

type policyProvider interface {
	Policy() Policy
}

// structMeta is the schema derived from a struct type, plus the field index
// of each declared name.
type structMeta struct {
	schema *Schema
	index  map[string]int
}

var structCache sync.Map // reflect.Type -> *structMeta

// Struct adapts a struct value, or a pointer to one, to the Model
// interface. Exported fields are declared under their `model:"name"` tag or
// their Go name; `model:"-"` skips a field. Tag options: `exclude` adds the
// field to the exclusion set, `optional` lets Populate leave it unset.
func Struct(v any) (Model, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("model: nil %s", rv.Type())
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model: %T is not a struct", v)
	}
	return &structModel{meta: metaOf(rv.Type()), v: rv}, nil
}

// MustStruct is Struct for values known to be structs.
func MustStruct(v any) Model {
	m, err := Struct(v)
	if err != nil {
		panic(err)
	}
	return m
}

// SchemaOf returns the schema derived from the struct type of v.
func SchemaOf(v any) (*Schema, error) {
	m, err := Struct(v)
	if err != nil {
		return nil, err
	}
	return m.Schema(), nil
}

type structModel struct {
	meta *structMeta
	v    reflect.Value
}

func (m *structModel) Schema() *Schema { return m.meta.schema }

func (m *structModel) Get(field string) (any, error) {
	i, ok := m.meta.index[field]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", m.meta.schema.Name, field, ErrNoField)
	}
	return wrapNested(m.v.Field(i)), nil
}

// wrapNested exposes tagged struct values, and slices of them, as models so
// the normalizer recurses into them. Everything else is returned as is.
func wrapNested(fv reflect.Value) any {
	if m, ok := fv.Interface().(Model); ok {
		return m
	}
	switch fv.Kind() {
	case reflect.Struct:
		if isModelStruct(fv.Type()) {
			return &structModel{meta: metaOf(fv.Type()), v: fv}
		}
	case reflect.Pointer:
		if !fv.IsNil() && isModelStruct(fv.Type().Elem()) {
			return &structModel{meta: metaOf(fv.Type().Elem()), v: fv.Elem()}
		}
	case reflect.Slice, reflect.Array:
		if fv.Kind() == reflect.Slice && fv.IsNil() {
			break
		}
		elem := fv.Type().Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if !isModelStruct(elem) {
			break
		}
		out := make([]any, fv.Len())
		for i := range out {
			out[i] = wrapNested(fv.Index(i))
		}
		return out
	}
	return fv.Interface()
}

// isModelStruct reports whether t is a struct carrying at least one model tag.
func isModelStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if _, ok := t.Field(i).Tag.Lookup("model"); ok {
			return true
		}
	}
	return false
}

func metaOf(t reflect.Type) *structMeta {
	if cached, ok := structCache.Load(t); ok {
		return cached.(*structMeta)
	}

	s := &Schema{Name: t.String()}
	meta := &structMeta{schema: s, index: map[string]int{}}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("model")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		s.Fields = append(s.Fields, name)
		meta.index[name] = i
		for _, opt := range strings.Split(opts, ",") {
			switch opt {
			case "exclude":
				s.Exclude = append(s.Exclude, name)
			case "optional":
				if s.Defaults == nil {
					s.Defaults = map[string]any{}
				}
				s.Defaults[name] = reflect.Zero(f.Type).Interface()
			}
		}
	}

	if p, ok := policyOf(t); ok {
		s.Exclude = append(s.Exclude, p.Exclude...)
		s.Order = p.Order
		s.Manager = p.Manager
	}

	actual, _ := structCache.LoadOrStore(t, meta)
	return actual.(*structMeta)
}

func policyOf(t reflect.Type) (Policy, bool) {
	if p, ok := reflect.Zero(t).Interface().(policyProvider); ok {
		return p.Policy(), true
	}
	if p, ok := reflect.New(t).Interface().(policyProvider); ok {
		return p.Policy(), true
	}
	return Policy{}, false
}

// Populate fills the struct behind ptr from constructor arguments, the way
// New does for schema records. Values must be assignable to the field type;
// nothing is converted. Fields marked optional keep their current value when
// not supplied.
func Populate(ptr any, args []any, kwargs map[string]any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return &ConstructionError{Type: fmt.Sprintf("%T", ptr), Args: args, Kwargs: kwargs, Err: ErrNotStruct}
	}
	target := rv.Elem()
	meta := metaOf(target.Type())

	values, err := bind(meta.schema, args, kwargs)
	if err != nil {
		return err
	}

	for _, name := range meta.schema.Fields {
		v, ok := values[name]
		if !ok {
			continue
		}
		field := target.Field(meta.index[name])
		if v == nil {
			switch field.Kind() {
			case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
				field.Set(reflect.Zero(field.Type()))
				continue
			}
			return &ConstructionError{
				Type: meta.schema.Name, Args: args, Kwargs: kwargs,
				Err: fmt.Errorf("%w: nil for %q (%s)", ErrUnassignable, name, field.Type()),
			}
		}
		av := reflect.ValueOf(v)
		if !av.Type().AssignableTo(field.Type()) {
			return &ConstructionError{
				Type: meta.schema.Name, Args: args, Kwargs: kwargs,
				Err: fmt.Errorf("%w: %s for %q (%s)", ErrUnassignable, av.Type(), name, field.Type()),
			}
		}
		field.Set(av)
	}
	return nil
}
