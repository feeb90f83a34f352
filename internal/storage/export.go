package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modelkit/internal/etl"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when a job lookup matches nothing.
var ErrJobNotFound = errors.New("export job not found")

// ExportStore implements persistence for export jobs and run logs.
type ExportStore struct {
	db *DB
}

// NewExportStore creates a new ExportStore.
func NewExportStore(db *DB) *ExportStore {
	return &ExportStore{db: db}
}

const jobColumns = `id, name, source_type, source_config, transforms, target, target_table,
	sync_mode, separator, row_id_column, trigger_type, trigger_config, enabled,
	last_run_at, last_status, last_error, created_at, updated_at`

// ── ExportJob CRUD ─────────────────────────────────────────

func (s *ExportStore) CreateJob(job *etl.ExportJob) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	srcCfg, transforms, err := encodeJobConfig(job)
	if err != nil {
		return err
	}

	_, err = s.db.conn.Exec(
		`INSERT INTO export_jobs (id, name, source_type, source_config, transforms, target, target_table,
		 sync_mode, separator, row_id_column, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, srcCfg, transforms, job.Target, job.TargetTable,
		job.SyncMode, job.Separator, job.RowIDColumn, job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert export job %q: %w", job.Name, err)
	}
	return nil
}

func (s *ExportStore) GetJob(id string) (*etl.ExportJob, error) {
	return s.getJob(`SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
}

func (s *ExportStore) GetJobByName(name string) (*etl.ExportJob, error) {
	return s.getJob(`SELECT `+jobColumns+` FROM export_jobs WHERE name = ?`, name)
}

func (s *ExportStore) getJob(query, arg string) (*etl.ExportJob, error) {
	job, err := scanJob(s.db.conn.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *ExportStore) UpdateJob(job *etl.ExportJob) error {
	job.UpdatedAt = time.Now()
	srcCfg, transforms, err := encodeJobConfig(job)
	if err != nil {
		return err
	}

	_, err = s.db.conn.Exec(
		`UPDATE export_jobs SET name=?, source_type=?, source_config=?, transforms=?, target=?,
		 target_table=?, sync_mode=?, separator=?, row_id_column=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, srcCfg, transforms, job.Target,
		job.TargetTable, job.SyncMode, job.Separator, job.RowIDColumn, job.TriggerType, job.TriggerConfig,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	return err
}

// UpsertJob creates job, or updates the definition of the existing job with
// the same name. Run status of an existing job is preserved.
func (s *ExportStore) UpsertJob(job *etl.ExportJob) error {
	existing, err := s.GetJobByName(job.Name)
	if errors.Is(err, ErrJobNotFound) {
		return s.CreateJob(job)
	}
	if err != nil {
		return err
	}
	job.ID = existing.ID
	job.CreatedAt = existing.CreatedAt
	job.LastRunAt = existing.LastRunAt
	job.LastStatus = existing.LastStatus
	job.LastError = existing.LastError
	return s.UpdateJob(job)
}

func (s *ExportStore) UpdateJobStatus(id, status, errMsg string) error {
	now := time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE export_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return err
}

func (s *ExportStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM export_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM export_jobs WHERE id = ?`, id)
	return err
}

func (s *ExportStore) ListJobs() ([]etl.ExportJob, error) {
	return s.listJobs(`SELECT ` + jobColumns + ` FROM export_jobs ORDER BY name ASC`)
}

// ListEnabledTriggeredJobs returns enabled jobs with a schedule or file_watch trigger.
func (s *ExportStore) ListEnabledTriggeredJobs() ([]etl.ExportJob, error) {
	return s.listJobs(`SELECT ` + jobColumns + ` FROM export_jobs
		WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		ORDER BY name ASC`)
}

func (s *ExportStore) listJobs(query string) ([]etl.ExportJob, error) {
	rows, err := s.db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []etl.ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*etl.ExportJob, error) {
	job := &etl.ExportJob{}
	var srcCfg, transforms string
	var lastRun sql.NullTime
	if err := row.Scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg, &transforms, &job.Target, &job.TargetTable,
		&job.SyncMode, &job.Separator, &job.RowIDColumn, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&lastRun, &job.LastStatus, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.LastRunAt = lastRun.Time
	if err := json.Unmarshal([]byte(srcCfg), &job.SourceCfg); err != nil {
		return nil, fmt.Errorf("decode source config of %s: %w", job.Name, err)
	}
	if err := json.Unmarshal([]byte(transforms), &job.Transforms); err != nil {
		return nil, fmt.Errorf("decode transforms of %s: %w", job.Name, err)
	}
	return job, nil
}

func encodeJobConfig(job *etl.ExportJob) (string, string, error) {
	srcCfg, err := json.Marshal(job.SourceCfg)
	if err != nil {
		return "", "", fmt.Errorf("encode source config: %w", err)
	}
	if job.Transforms == nil {
		job.Transforms = []etl.TransformConfig{}
	}
	transforms, err := json.Marshal(job.Transforms)
	if err != nil {
		return "", "", fmt.Errorf("encode transforms: %w", err)
	}
	return string(srcCfg), string(transforms), nil
}

// ── Run Logs ───────────────────────────────────────────────

func (s *ExportStore) CreateRunLog(l *etl.ExportRunLog) error {
	l.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO export_run_logs (id, job_id, started_at, finished_at, status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.JobID, l.StartedAt, l.FinishedAt, l.Status, l.RowsRead, l.RowsWritten, l.Error,
	)
	return err
}

func (s *ExportStore) ListRunLogs(jobID string, limit int) ([]etl.ExportRunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, rows_written, error
		 FROM export_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.ExportRunLog
	for rows.Next() {
		var l etl.ExportRunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsWritten, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
