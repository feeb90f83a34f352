// Package config loads the modelkit YAML configuration: where state lives,
// which databases exports may target and which export jobs exist.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"modelkit/internal/domain"
	"modelkit/internal/etl"
)

// Secret backends.
const (
	SecretsEnv      = "env"
	SecretsKeychain = "keychain"
)

// Config is the root of a configuration file.
type Config struct {
	DataDir     string                      `yaml:"dataDir"`
	Secrets     string                      `yaml:"secrets"`
	Connections []domain.DatabaseConnection `yaml:"connections"`
	Managers    []Manager                   `yaml:"managers"`
	Jobs        []Job                       `yaml:"jobs"`
}

// Manager registers a query-backed model manager under a dotted path so
// model types and "manager" sources can refer to it.
type Manager struct {
	Path       string `yaml:"path"` // e.g. "patents.PublicationManager"
	Connection string `yaml:"connection"`
	Query      string `yaml:"query"`
	Model      string `yaml:"model"` // name given to the listed documents
	Limit      int    `yaml:"limit,omitempty"`
}

// Job declares an export job.
type Job struct {
	Name        string                `yaml:"name"`
	Source      Source                `yaml:"source"`
	Transforms  []etl.TransformConfig `yaml:"transforms,omitempty"`
	Target      string                `yaml:"target"` // connection name, "csv" or "jsonl"
	Table       string                `yaml:"table"`  // table, collection or file path
	Mode        etl.SyncMode          `yaml:"mode"`
	Separator   string                `yaml:"separator,omitempty"`
	RowIDColumn string                `yaml:"rowIdColumn,omitempty"`
	Trigger     Trigger               `yaml:"trigger"`
	Enabled     *bool                 `yaml:"enabled,omitempty"`
}

// Source selects a registered source type and its settings.
type Source struct {
	Type   string           `yaml:"type"`
	Config etl.SourceConfig `yaml:"config"`
}

// Trigger selects how a job starts: "manual", "schedule" (Config is a cron
// expression) or "file_watch" (Config is the watched path).
type Trigger struct {
	Type   string `yaml:"type"`
	Config string `yaml:"config,omitempty"`
}

// LoadFile loads and parses a YAML configuration file from the given path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	// Relative data directories are resolved against the config file.
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return cfg, nil
}

// Parse parses YAML data into a Config and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = ".modelkit"
	}
	if cfg.Secrets == "" {
		cfg.Secrets = SecretsEnv
	}
	for i := range cfg.Managers {
		if cfg.Managers[i].Model == "" {
			cfg.Managers[i].Model = cfg.Managers[i].Path[strings.LastIndex(cfg.Managers[i].Path, ".")+1:]
		}
	}
	for i := range cfg.Jobs {
		j := &cfg.Jobs[i]
		if j.Mode == "" {
			j.Mode = etl.SyncReplace
		}
		if j.Trigger.Type == "" {
			j.Trigger.Type = "manual"
		}
		if j.Enabled == nil {
			j.Enabled = lo.ToPtr(true)
		}
		if j.Source.Config == nil {
			j.Source.Config = etl.SourceConfig{}
		}
	}
}

// Validate checks names are unique and every reference resolves.
func (c *Config) Validate() error {
	if c.Secrets != SecretsEnv && c.Secrets != SecretsKeychain {
		return fmt.Errorf("unknown secrets backend %q", c.Secrets)
	}

	connNames := make(map[string]bool, len(c.Connections))
	for _, conn := range c.Connections {
		if conn.Name == "" {
			return fmt.Errorf("connection without a name")
		}
		if connNames[conn.Name] {
			return fmt.Errorf("duplicate connection %q", conn.Name)
		}
		if conn.Name == etl.TargetCSV || conn.Name == etl.TargetJSONL {
			return fmt.Errorf("connection name %q is reserved", conn.Name)
		}
		if !conn.Driver.Valid() {
			return fmt.Errorf("connection %q: unsupported driver %q", conn.Name, conn.Driver)
		}
		connNames[conn.Name] = true
	}

	paths := make(map[string]bool, len(c.Managers))
	for _, m := range c.Managers {
		if i := strings.LastIndex(m.Path, "."); i <= 0 || i == len(m.Path)-1 {
			return fmt.Errorf("manager path %q must be container.name", m.Path)
		}
		if paths[m.Path] {
			return fmt.Errorf("duplicate manager %q", m.Path)
		}
		paths[m.Path] = true
		if !connNames[m.Connection] {
			return fmt.Errorf("manager %q: unknown connection %q", m.Path, m.Connection)
		}
		if m.Query == "" {
			return fmt.Errorf("manager %q: query is required", m.Path)
		}
	}

	jobNames := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("job without a name")
		}
		if jobNames[j.Name] {
			return fmt.Errorf("duplicate job %q", j.Name)
		}
		jobNames[j.Name] = true

		if _, err := etl.GetSource(j.Source.Type); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
		if _, err := etl.BuildTransformers(j.Transforms); err != nil {
			return fmt.Errorf("job %q: %w", j.Name, err)
		}
		if j.Target != etl.TargetCSV && j.Target != etl.TargetJSONL && !connNames[j.Target] {
			return fmt.Errorf("job %q: unknown target %q", j.Name, j.Target)
		}
		if j.Mode != etl.SyncReplace && j.Mode != etl.SyncAppend {
			return fmt.Errorf("job %q: unknown mode %q", j.Name, j.Mode)
		}
		switch j.Trigger.Type {
		case "manual":
		case "schedule", "file_watch":
			if j.Trigger.Config == "" {
				return fmt.Errorf("job %q: %s trigger needs a config", j.Name, j.Trigger.Type)
			}
		default:
			return fmt.Errorf("job %q: unknown trigger %q", j.Name, j.Trigger.Type)
		}
	}
	return nil
}

// Connection returns the connection with the given name.
func (c *Config) Connection(name string) (*domain.DatabaseConnection, error) {
	conn, ok := lo.Find(c.Connections, func(conn domain.DatabaseConnection) bool { return conn.Name == name })
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", name)
	}
	return &conn, nil
}

// StatePath is the SQLite file holding job state.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "modelkit.db")
}

// ExportJob converts the declaration into the job the engine and store use.
func (j Job) ExportJob() *etl.ExportJob {
	return &etl.ExportJob{
		Name:          j.Name,
		SourceType:    j.Source.Type,
		SourceCfg:     j.Source.Config,
		Transforms:    j.Transforms,
		Target:        j.Target,
		TargetTable:   j.Table,
		SyncMode:      j.Mode,
		Separator:     j.Separator,
		RowIDColumn:   j.RowIDColumn,
		TriggerType:   j.Trigger.Type,
		TriggerConfig: j.Trigger.Config,
		Enabled:       j.Enabled == nil || *j.Enabled,
	}
}
