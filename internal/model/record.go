package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Record is a model backed by a Schema and a value per declared field.
// Records are immutable once constructed.
type Record struct {
	schema *Schema
	values map[string]any
}

// New builds a Record of type s. Positional args fill s.Fields in order,
// kwargs fill fields by name, and fields left unset take their default.
// Any mismatch is reported as a *ConstructionError.
func New(s *Schema, args []any, kwargs map[string]any) (*Record, error) {
	values, err := bind(s, args, kwargs)
	if err != nil {
		return nil, err
	}
	for name, def := range s.Defaults {
		if _, ok := values[name]; !ok {
			values[name] = def
		}
	}
	return &Record{schema: s, values: values}, nil
}

// MustNew is New for statically known arguments; it panics on error.
func MustNew(s *Schema, args []any, kwargs map[string]any) *Record {
	r, err := New(s, args, kwargs)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Record) Schema() *Schema { return r.schema }

func (r *Record) Get(field string) (any, error) {
	if !r.schema.Has(field) {
		return nil, fmt.Errorf("%s.%s: %w", r.schema.Name, field, ErrNoField)
	}
	return r.values[field], nil
}

// bind matches constructor arguments against the declared fields of s.
// The returned map holds only supplied values.
func bind(s *Schema, args []any, kwargs map[string]any) (map[string]any, error) {
	fail := func(err error) (map[string]any, error) {
		return nil, &ConstructionError{Type: s.Name, Args: args, Kwargs: kwargs, Err: err}
	}

	if len(args) > len(s.Fields) {
		return fail(fmt.Errorf("%w: takes %d, got %d", ErrTooManyArgs, len(s.Fields), len(args)))
	}

	values := make(map[string]any, len(s.Fields))
	for i, v := range args {
		values[s.Fields[i]] = v
	}

	keys := lo.Keys(kwargs)
	slices.Sort(keys)
	for _, k := range keys {
		if !s.Has(k) {
			return fail(fmt.Errorf("%w %q", ErrUnknownField, k))
		}
		if _, dup := values[k]; dup {
			return fail(fmt.Errorf("%w %q", ErrDuplicateField, k))
		}
		values[k] = kwargs[k]
	}

	var missing []string
	for _, name := range s.Fields {
		if _, ok := values[name]; ok {
			continue
		}
		if _, ok := s.Defaults[name]; !ok {
			missing = append(missing, fmt.Sprintf("%q", name))
		}
	}
	if len(missing) > 0 {
		return fail(fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", ")))
	}
	return values, nil
}
