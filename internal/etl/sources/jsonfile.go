package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"modelkit/internal/etl"
	"modelkit/internal/model"
)

// ── JSON File Source ────────────────────────────────────────
// Reads document models from a local JSON file.

type jsonFileSource struct{}

func init() { etl.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		ConfigFields: append([]etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Path to the JSON file"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		}, documentFields...),
	}
}

func (s *jsonFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan model.Model, <-chan error) {
	return etl.Stream(ctx, func() ([]model.Model, error) {
		return readJSONFile(cfg)
	})
}

func readJSONFile(cfg etl.SourceConfig) ([]model.Model, error) {
	filePath := cfg.String("filePath")
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return DocumentModels(cfg, raw)
}
