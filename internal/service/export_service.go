package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"modelkit/internal/config"
	"modelkit/internal/dbclient"
	"modelkit/internal/domain"
	"modelkit/internal/etl"
	"modelkit/internal/jsonenc"
	"modelkit/internal/model"
	"modelkit/internal/secret"
	"modelkit/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Export Service: business logic for export jobs
// ─────────────────────────────────────────────────────────────

const (
	runTimeout     = 5 * time.Minute
	previewTimeout = 30 * time.Second
	watchDebounce  = 500 * time.Millisecond
	runLogLimit    = 50
)

// ExportService runs export jobs, schedules them and watches their inputs.
// It also opens database connectors for sources, destinations and
// query-backed model managers.
type ExportService struct {
	store       *storage.ExportStore
	conns       *ConnectionService
	emitter     EventEmitter
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewExportService creates an ExportService ready for use.
func NewExportService(
	store *storage.ExportStore,
	conns []domain.DatabaseConnection,
	secrets secret.SecretStore,
	emitter EventEmitter,
) *ExportService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &ExportService{
		store:   store,
		conns:   NewConnectionService(conns, secrets),
		emitter: emitter,
	}
}

// ── Connections ────────────────────────────────────────────

// Connections returns the service resolving configured connections.
func (s *ExportService) Connections() *ConnectionService {
	return s.conns
}

// OpenConnector opens and pings the named connection. The caller closes it.
func (s *ExportService) OpenConnector(ctx context.Context, name string) (dbclient.Connector, error) {
	return s.conns.Open(ctx, name)
}

// RegisterManagers binds every configured query manager into the default
// model registry. Each List opens its own connector.
func (s *ExportService) RegisterManagers(managers []config.Manager) {
	for _, m := range managers {
		model.RegisterManager(m.Path, func() (any, error) {
			return &dbclient.QueryManager{
				Open:      func(ctx context.Context) (dbclient.Connector, error) { return s.OpenConnector(ctx, m.Connection) },
				Query:     m.Query,
				ModelName: m.Model,
				Limit:     m.Limit,
			}, nil
		})
	}
}

// destination builds the writer for a job's target. The returned func
// releases whatever the destination holds open.
func (s *ExportService) destination(ctx context.Context, job *etl.ExportJob) (etl.Destination, func(), error) {
	switch job.Target {
	case etl.TargetCSV:
		return &etl.CSVDestination{}, func() {}, nil
	case etl.TargetJSONL:
		return &etl.JSONLinesDestination{Encoder: jsonenc.New()}, func() {}, nil
	}

	conn, err := s.OpenConnector(ctx, job.Target)
	if err != nil {
		return nil, nil, err
	}
	dest := &etl.TableDestination{Conn: conn, RowIDColumn: job.RowIDColumn}
	return dest, func() { conn.Close() }, nil
}

// ── Jobs ───────────────────────────────────────────────────

// SeedJobs stores the configured jobs, updating definitions of jobs that
// already exist while keeping their run history.
func (s *ExportService) SeedJobs(jobs []*etl.ExportJob) error {
	for _, job := range jobs {
		if err := s.store.UpsertJob(job); err != nil {
			return fmt.Errorf("seed job %q: %w", job.Name, err)
		}
	}
	return nil
}

// GetJob finds a job by ID, falling back to its name.
func (s *ExportService) GetJob(ref string) (*etl.ExportJob, error) {
	job, err := s.store.GetJob(ref)
	if errors.Is(err, storage.ErrJobNotFound) {
		return s.store.GetJobByName(ref)
	}
	return job, err
}

func (s *ExportService) ListJobs() ([]etl.ExportJob, error) {
	return s.store.ListJobs()
}

// ListSources returns the available source descriptors.
func (s *ExportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRunLogs returns the latest run logs for a job.
func (s *ExportService) ListRunLogs(ref string) ([]etl.ExportRunLog, error) {
	job, err := s.GetJob(ref)
	if err != nil {
		return nil, err
	}
	return s.store.ListRunLogs(job.ID, runLogLimit)
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single export job synchronously. The run is recorded in
// the job's status and run log whatever the outcome.
func (s *ExportService) RunJob(ctx context.Context, ref string) (*etl.ExportResult, error) {
	job, err := s.GetJob(ref)
	if err != nil {
		return nil, err
	}

	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(job.ID) {
		return nil, fmt.Errorf("job %s is already running", job.Name)
	}
	defer s.runningJobs.Unlock(job.ID)

	if err := s.store.UpdateJobStatus(job.ID, "running", ""); err != nil {
		log.Printf("export: mark %s running: %v", job.Name, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	var result *etl.ExportResult
	dest, release, runErr := s.destination(runCtx, job)
	if runErr == nil {
		engine := &etl.Engine{Dest: dest}
		result, runErr = engine.RunExport(runCtx, job)
		release()
	} else {
		result = &etl.ExportResult{JobID: job.ID, Status: "error", Error: runErr.Error(), Duration: time.Since(start)}
	}

	runLog := &etl.ExportRunLog{
		JobID:       job.ID,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Error:       result.Error,
	}
	if err := s.store.CreateRunLog(runLog); err != nil {
		log.Printf("export: record run of %s: %v", job.Name, err)
	}
	if err := s.store.UpdateJobStatus(job.ID, result.Status, result.Error); err != nil {
		log.Printf("export: record status of %s: %v", job.Name, err)
	}

	if result.Status == "success" {
		s.emitter.Emit(ctx, "export:job-completed", map[string]any{
			"jobId":       job.ID,
			"job":         job.Name,
			"target":      job.Target,
			"rowsWritten": result.RowsWritten,
		})
	}

	return result, runErr
}

// ── Preview ────────────────────────────────────────────────

// PreviewResult is the response from Preview.
type PreviewResult struct {
	Schema  *etl.Schema  `json:"schema"`
	Records []etl.Record `json:"records"`
}

// Preview reads up to maxRows projected rows from a source without writing.
func (s *ExportService) Preview(ctx context.Context, sourceType string, cfg etl.SourceConfig, sep string, maxRows int) (*PreviewResult, error) {
	previewCtx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	engine := &etl.Engine{}
	records, schema, err := engine.Preview(previewCtx, sourceType, cfg, sep, maxRows)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Records: records}, nil
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from
// the enabled jobs. It returns how many jobs were scheduled and watched.
func (s *ExportService) RestartWatchers(ctx context.Context) (scheduled, watched int) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchers()

	jobs, err := s.store.ListEnabledTriggeredJobs()
	if err != nil {
		log.Printf("export watcher: failed to list jobs: %v", err)
		return 0, 0
	}

	// ── Cron jobs ──
	cronJobs := lo.Filter(jobs, func(j etl.ExportJob, _ int) bool {
		return j.TriggerType == "schedule" && j.TriggerConfig != ""
	})
	if len(cronJobs) > 0 {
		c := cron.New()
		for _, cj := range cronJobs {
			jid, name := cj.ID, cj.Name
			_, err := c.AddFunc(cj.TriggerConfig, func() {
				log.Printf("export cron: running job %s", name)
				if _, err := s.RunJob(ctx, jid); err != nil {
					log.Printf("export cron: job %s failed: %v", name, err)
				}
			})
			if err != nil {
				log.Printf("export cron: invalid expression %q for job %s: %v", cj.TriggerConfig, name, err)
				continue
			}
			scheduled++
		}
		c.Start()
		s.cronSched = c
		log.Printf("export cron: scheduled %d job(s)", scheduled)
	}

	// ── File watchers ──
	watchJobs := lo.Filter(jobs, func(j etl.ExportJob, _ int) bool {
		return j.TriggerType == "file_watch" && j.TriggerConfig != ""
	})
	if len(watchJobs) == 0 {
		return scheduled, 0
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("export watcher: failed to create watcher: %v", err)
		return scheduled, 0
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, j := range watchJobs {
		absPath, err := filepath.Abs(j.TriggerConfig)
		if err != nil {
			log.Printf("export watcher: bad path %q: %v", j.TriggerConfig, err)
			continue
		}

		// Watch the directory so editors that replace the file are seen.
		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("export watcher: failed to watch dir %q: %v", dir, err)
				continue
			}
			watchedDirs[dir] = true
		}
		pathToJob[absPath] = j.ID
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(watchDebounce, func() {
					log.Printf("export watcher: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("export watcher: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("export watcher: error: %v", err)
			}
		}
	}()

	log.Printf("export watcher: watching %d file(s)", len(pathToJob))
	return scheduled, len(pathToJob)
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ExportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ExportService) Stop() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.stopWatchers()
}

func (s *ExportService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

// RunningJobs lists the IDs of jobs with a run in flight.
func (s *ExportService) RunningJobs() []string {
	return s.runningJobs.Running()
}
