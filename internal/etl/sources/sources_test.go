package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelkit/internal/dbclient"
	"modelkit/internal/domain"
	"modelkit/internal/etl"
	"modelkit/internal/model"
)

func readAll(t *testing.T, typ string, cfg etl.SourceConfig) ([]model.Model, error) {
	t.Helper()
	src, err := etl.GetSource(typ)
	require.NoError(t, err)

	modelCh, errCh := src.Read(context.Background(), cfg)
	var models []model.Model
	for m := range modelCh {
		models = append(models, m)
	}
	return models, <-errCh
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func dictJSON(t *testing.T, m model.Model) string {
	t.Helper()
	b, err := model.ToJSON(m)
	require.NoError(t, err)
	return string(b)
}

func TestJSONFileSource(t *testing.T) {
	path := writeFile(t, "pubs.json", `{"data": {"items": [
		{"number": "US1", "tags": ["a", "b"], "meta": {"z": 1, "a": null}, "internal": 7},
		"not an object",
		{"number": "US2", "tags": []}
	]}}`)

	models, err := readAll(t, "json_file", etl.SourceConfig{
		"filePath":  path,
		"dataPath":  "data.items",
		"modelName": "publication",
		"exclude":   []any{"internal"},
	})
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, "publication", models[0].Schema().Name)
	assert.Equal(t, `{"meta":{"z":1},"number":"US1","tags":["a","b"]}`, dictJSON(t, models[0]))
	assert.Equal(t, `{"number":"US2"}`, dictJSON(t, models[1]))
}

func TestJSONFileSource_Errors(t *testing.T) {
	_, err := readAll(t, "json_file", etl.SourceConfig{})
	assert.ErrorContains(t, err, "filePath is required")

	path := writeFile(t, "x.json", `{"data": []}`)
	_, err = readAll(t, "json_file", etl.SourceConfig{"filePath": path, "dataPath": "data.items"})
	assert.ErrorContains(t, err, `invalid data path: "items" not found`)
}

func TestCSVFileSource_KeepsHeaderOrder(t *testing.T) {
	path := writeFile(t, "people.csv", "name,score,active\nAda,1.5,true\nAlan,,no\n")

	models, err := readAll(t, "csv_file", etl.SourceConfig{"filePath": path})
	require.NoError(t, err)
	require.Len(t, models, 2)

	assert.Equal(t, `{"name":"Ada","score":1.5,"active":true}`, dictJSON(t, models[0]))
	assert.Equal(t, `{"name":"Alan","active":false}`, dictJSON(t, models[1]))
}

func TestCSVFileSource_NoHeader(t *testing.T) {
	path := writeFile(t, "raw.csv", "a;1\n")

	models, err := readAll(t, "csv_file", etl.SourceConfig{"filePath": path, "hasHeader": false, "delimiter": ";"})
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, `{"col_1":"a","col_2":1}`, dictJSON(t, models[0]))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": 1}, {"id": 2}]}`))
	}))
	defer srv.Close()

	models, err := readAll(t, "http", etl.SourceConfig{
		"url":      srv.URL,
		"headers":  map[string]any{"Authorization": "Bearer t"},
		"dataPath": "results",
	})
	require.NoError(t, err)
	assert.Len(t, models, 2)

	_, err = readAll(t, "http", etl.SourceConfig{"url": srv.URL})
	assert.ErrorContains(t, err, "http 401")
}

func TestRequestHeaders(t *testing.T) {
	h, err := requestHeaders(`{"X-A": "1"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-A": "1"}, h)

	_, err = requestHeaders(`{`)
	assert.ErrorContains(t, err, "parse headers")

	_, err = requestHeaders(42)
	assert.ErrorContains(t, err, "must be an object")
}

// ── manager source ─────────────────────────────────────────

var widgetSchema = &model.Schema{
	Name:    "sourcestest.Widget",
	Fields:  []string{"name"},
	Manager: model.ManagerPath("sourcestest.WidgetManager"),
}

var orphanSchema = &model.Schema{Name: "sourcestest.Orphan", Fields: []string{"name"}}

type widgetManager struct{}

func (widgetManager) List(context.Context) ([]model.Model, error) {
	return []model.Model{
		model.MustNew(widgetSchema, []any{"gear"}, nil),
		model.MustNew(widgetSchema, []any{"cog"}, nil),
	}, nil
}

func init() {
	model.RegisterSchema(widgetSchema)
	model.RegisterSchema(orphanSchema)
	model.RegisterManager("sourcestest.WidgetManager", func() (any, error) { return widgetManager{}, nil })
	model.RegisterManager("sourcestest.Opaque", func() (any, error) { return struct{}{}, nil })
}

func TestManagerSource(t *testing.T) {
	byModel, err := readAll(t, "manager", etl.SourceConfig{"model": "sourcestest.Widget"})
	require.NoError(t, err)
	assert.Len(t, byModel, 2)

	byPath, err := readAll(t, "manager", etl.SourceConfig{"manager": "sourcestest.WidgetManager"})
	require.NoError(t, err)
	assert.Len(t, byPath, 2)
}

func TestManagerSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  etl.SourceConfig
		msg  string
	}{
		{"no config", etl.SourceConfig{}, "model or manager is required"},
		{"unknown model", etl.SourceConfig{"model": "nope"}, "unknown model type"},
		{"no manager", etl.SourceConfig{"model": "sourcestest.Orphan"}, "has no manager"},
		{"not a lister", etl.SourceConfig{"manager": "sourcestest.Opaque"}, "cannot list models"},
		{"unresolvable", etl.SourceConfig{"manager": "missing.Manager"}, "resolve manager"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readAll(t, "manager", tt.cfg)
			assert.ErrorContains(t, err, tt.msg)
		})
	}
}

// ── database source ────────────────────────────────────────

type sqliteProvider struct{ path string }

func (p sqliteProvider) OpenConnector(_ context.Context, name string) (dbclient.Connector, error) {
	return dbclient.NewConnector(&domain.DatabaseConnection{Name: name, Driver: domain.DatabaseDriverSQLite, Host: p.path}, "")
}

func TestDatabaseSource(t *testing.T) {
	ctx := context.Background()
	provider := sqliteProvider{path: filepath.Join(t.TempDir(), "src.db")}
	conn, err := provider.OpenConnector(ctx, "src")
	require.NoError(t, err)
	require.NoError(t, conn.EnsureTable(ctx, "items", []dbclient.Column{{Name: "sku", Type: "text"}, {Name: "qty", Type: "number"}}))
	_, err = conn.InsertRows(ctx, "items", []string{"sku", "qty"}, [][]any{{"a", 2.0}, {"b", nil}})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	SetConnectorProvider(provider)
	t.Cleanup(func() { SetConnectorProvider(nil) })

	models, err := readAll(t, "database", etl.SourceConfig{"connection": "src", "query": "SELECT sku, qty FROM items ORDER BY sku"})
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, `{"sku":"a","qty":2}`, dictJSON(t, models[0]))
	assert.Equal(t, `{"sku":"b"}`, dictJSON(t, models[1]))
}
