package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelkit/internal/domain"
	"modelkit/internal/etl"
	_ "modelkit/internal/etl/sources"
)

const sample = `
dataDir: state
connections:
  - name: warehouse
    driver: postgres
    host: db.internal
    database: analytics
    username: loader
managers:
  - path: patents.PublicationManager
    connection: warehouse
    query: SELECT * FROM publications
jobs:
  - name: publications
    source:
      type: manager
      config:
        model: patents.Publication
    transforms:
      - type: rename
        config:
          mapping:
            inventors.name: inventor
      - type: limit
        config:
          count: 100
    target: warehouse
    table: publication_rows
    separator: _
    trigger:
      type: schedule
      config: "@hourly"
  - name: dump
    source:
      type: json_file
      config:
        filePath: data.json
    target: csv
    table: out/dump.csv
    mode: append
    enabled: false
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "state", cfg.DataDir)
	assert.Equal(t, SecretsEnv, cfg.Secrets)
	require.Len(t, cfg.Connections, 1)
	assert.Equal(t, domain.DatabaseDriverPostgres, cfg.Connections[0].Driver)

	require.Len(t, cfg.Managers, 1)
	assert.Equal(t, "PublicationManager", cfg.Managers[0].Model)

	require.Len(t, cfg.Jobs, 2)
	pubs := cfg.Jobs[0]
	assert.Equal(t, etl.SyncReplace, pubs.Mode)
	assert.True(t, *pubs.Enabled)
	assert.Equal(t, "schedule", pubs.Trigger.Type)
	require.Len(t, pubs.Transforms, 2)
	assert.Equal(t, "rename", pubs.Transforms[0].Type)

	dump := cfg.Jobs[1]
	assert.Equal(t, "manual", dump.Trigger.Type)
	assert.Equal(t, etl.SyncAppend, dump.Mode)
	assert.False(t, *dump.Enabled)
}

func TestJob_ExportJob(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	job := cfg.Jobs[0].ExportJob()
	assert.Equal(t, "publications", job.Name)
	assert.Equal(t, "manager", job.SourceType)
	assert.Equal(t, "patents.Publication", job.SourceCfg.String("model"))
	assert.Equal(t, "warehouse", job.Target)
	assert.Equal(t, "publication_rows", job.TargetTable)
	assert.Equal(t, "_", job.Separator)
	assert.Equal(t, "@hourly", job.TriggerConfig)
	assert.True(t, job.Enabled)
	assert.Empty(t, job.ID)

	assert.False(t, cfg.Jobs[1].ExportJob().Enabled)
}

func TestLoadFile_ResolvesDataDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modelkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "state", "modelkit.db"), cfg.StatePath())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, ".modelkit", cfg.DataDir)
	assert.Empty(t, cfg.Jobs)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "jobs: [", "failed to parse config YAML"},
		{"secrets", "secrets: vault", `unknown secrets backend "vault"`},
		{"driver", "connections: [{name: a, driver: oracle}]", `unsupported driver "oracle"`},
		{"duplicate connection", "connections: [{name: a, driver: sqlite}, {name: a, driver: sqlite}]", `duplicate connection "a"`},
		{"reserved name", "connections: [{name: csv, driver: sqlite}]", `"csv" is reserved`},
		{"manager path", "connections: [{name: a, driver: sqlite}]\nmanagers: [{path: flat, connection: a, query: x}]", "must be container.name"},
		{"manager connection", "managers: [{path: a.B, connection: nope, query: x}]", `unknown connection "nope"`},
		{"manager query", "connections: [{name: a, driver: sqlite}]\nmanagers: [{path: a.B, connection: a}]", "query is required"},
		{"source", "jobs: [{name: j, source: {type: ftp}, target: csv}]", "unknown source type"},
		{"target", "jobs: [{name: j, source: {type: json_file}, target: nowhere}]", `unknown target "nowhere"`},
		{"mode", "jobs: [{name: j, source: {type: json_file}, target: csv, mode: merge}]", `unknown mode "merge"`},
		{"transform", "jobs: [{name: j, source: {type: json_file}, target: csv, transforms: [{type: pivot}]}]", "pivot"},
		{"trigger", "jobs: [{name: j, source: {type: json_file}, target: csv, trigger: {type: webhook}}]", `unknown trigger "webhook"`},
		{"trigger config", "jobs: [{name: j, source: {type: json_file}, target: csv, trigger: {type: schedule}}]", "schedule trigger needs a config"},
		{"duplicate job", "jobs: [{name: j, source: {type: json_file}, target: csv}, {name: j, source: {type: json_file}, target: csv}]", `duplicate job "j"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestConnection(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	conn, err := cfg.Connection("warehouse")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", conn.Host)

	_, err = cfg.Connection("missing")
	assert.ErrorContains(t, err, `unknown connection "missing"`)
}
