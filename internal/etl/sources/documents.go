package sources

import (
	"fmt"
	"strings"

	"modelkit/internal/etl"
	"modelkit/internal/model"
)

// Config keys shared by the document-producing sources.
var documentFields = []etl.ConfigField{
	{Key: "modelName", Label: "Model Name", Type: "string", Required: false, Default: "document", Help: "Type name given to each document"},
	{Key: "order", Label: "Field Order", Type: "list", Required: false, Help: "Explicit output field order; fields not listed are dropped"},
	{Key: "exclude", Label: "Exclude", Type: "list", Required: false, Help: "Fields never written"},
}

// navigatePath walks a dot-separated path into nested objects.
func navigatePath(obj any, path string) (any, error) {
	if path == "" {
		return obj, nil
	}
	current := obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid data path: %q not found", part)
		}
		if current, ok = m[part]; !ok {
			return nil, fmt.Errorf("invalid data path: %q not found", part)
		}
	}
	return current, nil
}

// DocumentModels wraps decoded JSON (an object or an array of objects) as
// document models carrying the policy configured in cfg.
func DocumentModels(cfg etl.SourceConfig, raw any) ([]model.Model, error) {
	raw, err := navigatePath(raw, cfg.String("dataPath"))
	if err != nil {
		return nil, err
	}
	docs := model.Documents(modelName(cfg), raw)
	return withPolicy(cfg, docs), nil
}

func modelName(cfg etl.SourceConfig) string {
	if name := cfg.String("modelName"); name != "" {
		return name
	}
	return "document"
}

func withPolicy(cfg etl.SourceConfig, docs []model.Model) []model.Model {
	policy := model.Policy{Order: cfg.Strings("order"), Exclude: cfg.Strings("exclude")}
	if len(policy.Order) == 0 && len(policy.Exclude) == 0 {
		return docs
	}
	for i, m := range docs {
		if d, ok := m.(*model.Document); ok {
			docs[i] = d.WithPolicy(policy)
		}
	}
	return docs
}
