package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"modelkit/internal/config"
	"modelkit/internal/etl"
	"modelkit/internal/etl/sources"
	"modelkit/internal/secret"
	"modelkit/internal/service"
	"modelkit/internal/storage"
)

// App holds the wired services behind the CLI and MCP surfaces.
type App struct {
	Config  *config.Config
	Exports *service.ExportService

	db *storage.DB
}

// LoadConfig reads the configuration file. A missing file is only an error
// when the path was given explicitly; otherwise defaults are used with the
// state kept under ~/.local/share/modelkit.
func LoadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err == nil {
		return cfg, nil
	}
	if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg, err = config.Parse(nil)
	if err != nil {
		return nil, err
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		cfg.DataDir = filepath.Join(homeDir, ".local", "share", "modelkit")
	}
	return cfg, nil
}

// Open opens the job store and wires the export service: connections and
// secrets from cfg, query managers registered, jobs seeded.
func Open(cfg *config.Config, emitter service.EventEmitter) (*App, error) {
	db, err := storage.New(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}

	secrets, err := secret.New(cfg.Secrets)
	if err != nil {
		db.Close()
		return nil, err
	}

	exports := service.NewExportService(storage.NewExportStore(db), cfg.Connections, secrets, emitter)
	exports.RegisterManagers(cfg.Managers)
	// Database sources open their connections through the service.
	sources.SetConnectorProvider(exports)

	jobs := make([]*etl.ExportJob, 0, len(cfg.Jobs))
	for _, j := range cfg.Jobs {
		jobs = append(jobs, j.ExportJob())
	}
	if err := exports.SeedJobs(jobs); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("modelkit: %d connection(s), %d job(s), state in %s", len(cfg.Connections), len(jobs), cfg.StatePath())

	return &App{Config: cfg, Exports: exports, db: db}, nil
}

// Close stops triggers and closes the store.
func (a *App) Close() error {
	a.Exports.Stop()
	return a.db.Close()
}
