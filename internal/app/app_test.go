package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patents = `{"items": [
  {"title": "Loom", "year": 1804, "inventors": [{"name": "Jacquard"}], "tags": []},
  {"title": "Engine", "year": 1837, "inventors": [{"name": "Babbage"}, {"name": "Lovelace"}]}
]}`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDictCmd(t *testing.T) {
	out, err := run(t, patents, "dict", "--data-path", "items", "--order", "title,inventors,tags")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"title":"Loom","inventors":[{"name":"Jacquard"}]}`, lines[0])
	assert.Equal(t, `{"title":"Engine","inventors":[{"name":"Babbage"},{"name":"Lovelace"}]}`, lines[1])
}

func TestRowsCmd_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patents.json")
	require.NoError(t, os.WriteFile(path, []byte(patents), 0o644))

	out, err := run(t, "", "rows", path, "--data-path", "items", "--exclude", "tags", "--order", "title,year,inventors", "--sep", "_", "-f", "csv")
	require.NoError(t, err)
	assert.Equal(t, "title,year,inventors_name\nLoom,1804,Jacquard\nEngine,1837,Babbage\nEngine,1837,Lovelace\n", out)
}

func TestRowsCmd_EmptyFanOutDropsObject(t *testing.T) {
	// Loom's empty "tags" list leaves it without rows; Engine has no tags
	// at all, so the field is simply absent.
	out, err := run(t, patents, "rows", "--data-path", "items", "--order", "title,tags")
	require.NoError(t, err)
	assert.Equal(t, "{\"title\":\"Engine\"}\n", out)
}

func TestRowsCmd_BadInput(t *testing.T) {
	_, err := run(t, "{", "rows")
	assert.ErrorContains(t, err, "parse stdin")

	_, err = run(t, patents, "rows", "--format", "xml")
	assert.ErrorContains(t, err, `unknown format "xml"`)
}

func writeConfig(t *testing.T) (cfgPath, outPath string) {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "patents.json")
	require.NoError(t, os.WriteFile(input, []byte(patents), 0o644))
	outPath = filepath.Join(dir, "out", "patents.jsonl")

	cfg := `
dataDir: state
jobs:
  - name: patents
    source:
      type: json_file
      config:
        filePath: ` + input + `
        dataPath: items
        order: [title, inventors]
    target: jsonl
    table: ` + outPath + `
`
	cfgPath = filepath.Join(dir, "modelkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, outPath
}

func TestExportAndJobsCmd(t *testing.T) {
	cfgPath, outPath := writeConfig(t)

	out, err := run(t, "", "--config", cfgPath, "export", "patents")
	require.NoError(t, err)
	assert.Contains(t, out, "patents: 2 model(s), 3 row(s) read, 3 written")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Loom","inventors.name":"Jacquard"}`, strings.SplitN(string(data), "\n", 2)[0])

	out, err = run(t, "", "--config", cfgPath, "jobs")
	require.NoError(t, err)
	assert.Contains(t, out, "patents")
	assert.Contains(t, out, "success")

	out, err = run(t, "", "--config", cfgPath, "jobs", "runs", "patents")
	require.NoError(t, err)
	assert.Contains(t, out, "success")

	_, err = run(t, "", "--config", cfgPath, "export", "missing")
	assert.ErrorContains(t, err, "1 of 1 job(s) failed")
}

func TestPreviewCmd(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	out, err := run(t, "", "--config", cfgPath, "preview", "patents", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "title\tinventors.name\nLoom\tJacquard\nEngine\tBabbage\n", out)
}

func TestSourcesCmd(t *testing.T) {
	out, err := run(t, "", "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "json_file")
	assert.Contains(t, out, "manager")
}

func TestLoadConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := LoadConfig(missing, true)
	assert.ErrorContains(t, err, "failed to read config file")

	cfg, err := LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "modelkit", filepath.Base(cfg.DataDir))
	assert.Empty(t, cfg.Jobs)
}

func TestConnectionsCmd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "modelkit.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
dataDir: state
connections:
  - name: local
    driver: sqlite
    host: `+filepath.Join(dir, "local.db")+`
`), 0o644))

	out, err := run(t, "", "--config", cfgPath, "connections")
	require.NoError(t, err)
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "ok")
}
