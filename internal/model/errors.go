package model

import (
	"errors"
	"fmt"
)

// Construction failures. A *ConstructionError wraps exactly one of these.
var (
	ErrTooManyArgs    = errors.New("too many positional arguments")
	ErrUnknownField   = errors.New("unexpected keyword argument")
	ErrDuplicateField = errors.New("multiple values for argument")
	ErrMissingField   = errors.New("missing required argument")
	ErrUnassignable   = errors.New("value not assignable to field")
	ErrNotStruct      = errors.New("target is not a pointer to a struct")
)

// Resolution failures. A *ResolutionError wraps exactly one of these.
var (
	ErrMalformedPath    = errors.New("manager path must be <container>.<name>")
	ErrUnknownContainer = errors.New("container not found")
	ErrUnknownName      = errors.New("name not found in container")
)

// ErrNoField is returned by Get when a model has no such declared field.
var ErrNoField = errors.New("no such field")

// ConstructionError reports a mismatch between the arguments supplied to a
// constructor and the fields a model declares. The original cause and the
// offending arguments are always kept.
type ConstructionError struct {
	Type   string
	Args   []any
	Kwargs map[string]any
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("%s: %v\nargs:%v\nkwargs:%v", e.Type, e.Err, e.Args, e.Kwargs)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// ResolutionError reports a manager path that could not be resolved to a
// registered factory.
type ResolutionError struct {
	Path      string
	Container string
	Name      string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve manager %q: %v", e.Path, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
