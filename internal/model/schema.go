package model

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Model is anything convertible to a dictionary, JSON or rows.
// Get is the attribute access used during conversion; its errors are
// propagated to the caller unchanged.
type Model interface {
	Schema() *Schema
	Get(field string) (any, error)
}

// Schema is the explicit descriptor of a model type. It is shared by every
// instance of the type and must not be mutated once instances exist.
type Schema struct {
	// Name identifies the model type, e.g. "patents.Publication".
	Name string

	// Fields are the declared field names in declaration order.
	Fields []string

	// Defaults holds values for fields that may be left out at construction.
	Defaults map[string]any

	// Exclude names fields that never appear in converted output.
	Exclude []string

	// Order, when non-empty, fixes the output order and replaces the sorted
	// default. Declared fields missing from Order are not emitted.
	Order []string

	// Manager is the lazily bound fetch capability of the type.
	Manager Manager
}

// Select returns the names of the fields to emit, in output order.
func (s *Schema) Select() []string {
	names := s.Order
	if len(names) == 0 {
		names = slices.Clone(s.Fields)
		slices.Sort(names)
	}
	return lo.Filter(names, func(name string, _ int) bool {
		return !lo.Contains(s.Exclude, name)
	})
}

// Has reports whether field is declared.
func (s *Schema) Has(field string) bool {
	return lo.Contains(s.Fields, field)
}

// Select returns the output field order of m.
func Select(m Model) []string {
	return m.Schema().Select()
}

// ── Schema Registry ────────────────────────────────────────
// Lets pipelines refer to a model type by name.

var (
	schemasMu sync.RWMutex
	schemas   = map[string]*Schema{}
)

// RegisterSchema makes s available to LookupSchema under s.Name.
// Typically called from init().
func RegisterSchema(s *Schema) {
	if s == nil || s.Name == "" {
		panic("model: RegisterSchema needs a named schema")
	}
	schemasMu.Lock()
	defer schemasMu.Unlock()
	schemas[s.Name] = s
}

// LookupSchema returns a registered schema by name.
func LookupSchema(name string) (*Schema, error) {
	schemasMu.RLock()
	defer schemasMu.RUnlock()
	s, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown model type: %q", name)
	}
	return s, nil
}

// SchemaNames lists registered schema names, sorted.
func SchemaNames() []string {
	schemasMu.RLock()
	defer schemasMu.RUnlock()
	names := lo.Keys(schemas)
	slices.Sort(names)
	return names
}
