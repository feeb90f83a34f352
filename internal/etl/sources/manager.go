package sources

import (
	"context"
	"fmt"

	"modelkit/internal/etl"
	"modelkit/internal/model"
)

// ── Manager Source ─────────────────────────────────────────
// Lists models through a model type's lazily bound manager. The manager is
// resolved on every read, either from a registered model type or directly
// from a dotted registry path, and must implement etl.Lister.

type managerSource struct{}

func init() { etl.RegisterSource(&managerSource{}) }

func (s *managerSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "manager",
		Label: "Model Manager",
		ConfigFields: []etl.ConfigField{
			{Key: "model", Label: "Model Type", Type: "string", Required: false, Help: "Registered model type whose manager lists the models"},
			{Key: "manager", Label: "Manager Path", Type: "string", Required: false, Help: "Dotted registry path (e.g., 'patents.PublicationManager'); overrides model"},
		},
	}
}

func (s *managerSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan model.Model, <-chan error) {
	return etl.Stream(ctx, func() ([]model.Model, error) {
		manager, err := resolveManager(cfg)
		if err != nil {
			return nil, err
		}
		lister, ok := manager.(etl.Lister)
		if !ok {
			return nil, fmt.Errorf("manager %T cannot list models", manager)
		}
		return lister.List(ctx)
	})
}

func resolveManager(cfg etl.SourceConfig) (any, error) {
	if path := cfg.String("manager"); path != "" {
		factory, err := model.DefaultRegistry.Resolve(path)
		if err != nil {
			return nil, err
		}
		return factory()
	}

	name := cfg.String("model")
	if name == "" {
		return nil, fmt.Errorf("model or manager is required")
	}
	schema, err := model.LookupSchema(name)
	if err != nil {
		return nil, err
	}
	manager, err := schema.Objects()
	if err != nil {
		return nil, err
	}
	if manager == nil {
		return nil, fmt.Errorf("model %q has no manager", name)
	}
	return manager, nil
}
