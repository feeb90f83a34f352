package model

import (
	"slices"
	"strings"
	"sync"
)

// ManagerFactory instantiates a fetch capability. It is invoked on every
// access; instances are never cached.
type ManagerFactory func() (any, error)

// Manager is a type-level reference to a fetch capability: either a factory
// or a dotted "<container>.<name>" path looked up in a Registry on access.
// The zero value means the type has no capability.
type Manager struct {
	factory ManagerFactory
	path    string
}

// ManagerFunc references a capability by its factory.
func ManagerFunc(f ManagerFactory) Manager { return Manager{factory: f} }

// ManagerPath references a capability by registry path.
func ManagerPath(path string) Manager { return Manager{path: path} }

// IsZero reports whether no capability is configured.
func (m Manager) IsZero() bool { return m.factory == nil && m.path == "" }

// Path returns the registry path, or "" for factory references.
func (m Manager) Path() string { return m.path }

// ── Registry ───────────────────────────────────────────────
// Lookup table from dotted paths to factories, filled at startup.

// Registry maps containers to named factories.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]map[string]ManagerFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{containers: map[string]map[string]ManagerFactory{}}
}

// DefaultRegistry backs RegisterManager and Schema.Objects.
var DefaultRegistry = NewRegistry()

// RegisterManager registers f in DefaultRegistry. Called from init().
func RegisterManager(path string, f ManagerFactory) {
	DefaultRegistry.Register(path, f)
}

// Register binds path to f, replacing any previous binding. It panics on a
// malformed path or a nil factory, since both are programming errors.
func (r *Registry) Register(path string, f ManagerFactory) {
	container, name, ok := splitPath(path)
	if !ok {
		panic("model: malformed manager path " + path)
	}
	if f == nil {
		panic("model: nil manager factory for " + path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containers[container] == nil {
		r.containers[container] = map[string]ManagerFactory{}
	}
	r.containers[container][name] = f
}

// Resolve looks up the factory registered under path.
func (r *Registry) Resolve(path string) (ManagerFactory, error) {
	container, name, ok := splitPath(path)
	if !ok {
		return nil, &ResolutionError{Path: path, Err: ErrMalformedPath}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names, ok := r.containers[container]
	if !ok {
		return nil, &ResolutionError{Path: path, Container: container, Name: name, Err: ErrUnknownContainer}
	}
	f, ok := names[name]
	if !ok {
		return nil, &ResolutionError{Path: path, Container: container, Name: name, Err: ErrUnknownName}
	}
	return f, nil
}

// Paths lists every registered path, sorted.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var paths []string
	for container, names := range r.containers {
		for name := range names {
			paths = append(paths, container+"."+name)
		}
	}
	slices.Sort(paths)
	return paths
}

func splitPath(path string) (container, name string, ok bool) {
	i := strings.LastIndex(path, ".")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

// ── Binding ────────────────────────────────────────────────

// Objects returns a fresh instance of the type's fetch capability, resolved
// through DefaultRegistry. It returns (nil, nil) when none is configured.
func (s *Schema) Objects() (any, error) {
	return s.ObjectsFrom(DefaultRegistry)
}

// ObjectsFrom is Objects with an explicit registry.
func (s *Schema) ObjectsFrom(r *Registry) (any, error) {
	m := s.Manager
	switch {
	case m.factory != nil:
		return m.factory()
	case m.path != "":
		f, err := r.Resolve(m.path)
		if err != nil {
			return nil, err
		}
		return f()
	default:
		return nil, nil
	}
}

// Objects returns a fresh fetch capability for the type of m.
func Objects(m Model) (any, error) {
	return m.Schema().Objects()
}
