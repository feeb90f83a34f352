package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"modelkit/internal/etl"
	"modelkit/internal/model"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches document models from a JSON REST endpoint.

type httpSource struct {
	client *http.Client
}

func init() { etl.RegisterSource(&httpSource{client: &http.Client{Timeout: 30 * time.Second}}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: append([]etl.ConfigField{
			{Key: "url", Label: "URL", Type: "string", Required: true, Help: "Full URL to fetch (e.g., https://api.example.com/items)"},
			{Key: "method", Label: "Method", Type: "string", Required: false, Default: "GET"},
			{Key: "headers", Label: "Headers", Type: "string", Required: false, Help: "Header object, or its JSON text (e.g., {\"Authorization\": \"Bearer xxx\"})"},
			{Key: "body", Label: "Body", Type: "string", Required: false, Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
		}, documentFields...),
	}
}

func (s *httpSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan model.Model, <-chan error) {
	return etl.Stream(ctx, func() ([]model.Model, error) {
		return s.fetch(ctx, cfg)
	})
}

func (s *httpSource) fetch(ctx context.Context, cfg etl.SourceConfig) ([]model.Model, error) {
	url := cfg.String("url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	method := cfg.String("method")
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body := cfg.String("body"); body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	headers, err := requestHeaders(cfg["headers"])
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return DocumentModels(cfg, raw)
}

// requestHeaders accepts headers as a mapping (from YAML) or as JSON text.
func requestHeaders(v any) (map[string]string, error) {
	switch h := v.(type) {
	case nil:
		return nil, nil
	case string:
		if h == "" {
			return nil, nil
		}
		var headers map[string]string
		if err := json.Unmarshal([]byte(h), &headers); err != nil {
			return nil, fmt.Errorf("parse headers: %w", err)
		}
		return headers, nil
	case map[string]any:
		headers := make(map[string]string, len(h))
		for k, val := range h {
			headers[k] = fmt.Sprint(val)
		}
		return headers, nil
	default:
		return nil, fmt.Errorf("headers must be an object, got %T", v)
	}
}
