package etl

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"modelkit/internal/model"
)

// ── Source ──────────────────────────────────────────────────
// A Source yields models from an external system. Models are converted to
// rows by the engine, so sources never deal with flattening.
// Implementations live in etl/sources/, one file per source type.

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns the value at key, or "" when it is missing or not a string.
func (c SourceConfig) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Strings returns the value at key as a string list. Both []string and the
// []any produced by JSON/YAML decoding are accepted.
func (c SourceConfig) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		return lo.FilterMap(v, func(item any, _ int) (string, bool) {
			s, ok := item.(string)
			return s, ok
		})
	default:
		return nil
	}
}

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // "string" | "list" | "file"
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type: its label and config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Source is the interface every model source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Read streams models from the source into a channel.
	// The channel is closed when all models have been read or ctx is cancelled.
	// Errors are sent on the error channel (buffered size 1).
	Read(ctx context.Context, cfg SourceConfig) (<-chan model.Model, <-chan error)
}

// Lister is the capability a model manager exposes to the "manager" source:
// it returns every model it knows about.
type Lister interface {
	List(ctx context.Context) ([]model.Model, error)
}

// Stream sends models on a fresh channel pair, honoring ctx. Sources that
// load everything up front use it to satisfy Read.
func Stream(ctx context.Context, load func() ([]model.Model, error)) (<-chan model.Model, <-chan error) {
	out := make(chan model.Model, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		models, err := load()
		if err != nil {
			errCh <- err
			return
		}
		for _, m := range models {
			select {
			case out <- m:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources, sorted by type.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := lo.Keys(registry)
	slices.Sort(types)
	specs := make([]SourceSpec, 0, len(types))
	for _, typ := range types {
		specs = append(specs, registry[typ].Spec())
	}
	return specs
}
