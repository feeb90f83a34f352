package etl

import (
	"context"
	"fmt"
	"time"

	"modelkit/internal/model"
)

// ── ExportJob ──────────────────────────────────────────────
// Orchestrates: source.Read → model.ToRows → transform chain → destination.Write.

// Target kinds that are not database connections.
const (
	TargetCSV   = "csv"
	TargetJSONL = "jsonl"
)

// ExportJob holds the configuration for a single export.
type ExportJob struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	SourceType    string            `json:"sourceType"`
	SourceCfg     SourceConfig      `json:"sourceConfig"`
	Transforms    []TransformConfig `json:"transforms,omitempty"`
	Target        string            `json:"target"`      // connection name, "csv" or "jsonl"
	TargetTable   string            `json:"targetTable"` // table, collection or file path
	SyncMode      SyncMode          `json:"syncMode"`
	Separator     string            `json:"separator,omitempty"` // key-path separator, "." when empty
	RowIDColumn   string            `json:"rowIdColumn,omitempty"`
	TriggerType   string            `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string            `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool              `json:"enabled"`
	LastRunAt     time.Time         `json:"lastRunAt"`
	LastStatus    string            `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string            `json:"lastError"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// ExportResult is the outcome of running an export job.
type ExportResult struct {
	JobID       string        `json:"jobId"`
	Status      string        `json:"status"` // "success" | "error"
	ModelsRead  int           `json:"modelsRead"`
	RowsRead    int           `json:"rowsRead"` // projected rows before transforms
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// ExportRunLog is a historical record of an export run.
type ExportRunLog struct {
	ID          string    `json:"id"`
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs export jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// RunExport executes an export job end-to-end.
func (e *Engine) RunExport(ctx context.Context, job *ExportJob) (*ExportResult, error) {
	start := time.Now()
	result := &ExportResult{JobID: job.ID}
	fail := func(step string, err error) (*ExportResult, error) {
		err = fmt.Errorf("%s: %w", step, err)
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Build transformer chain from config.
	transformers, err := BuildTransformers(job.Transforms)
	if err != nil {
		return fail("transforms", err)
	}

	// 2. Read models and project each into rows.
	rows, models, err := readRows(ctx, job.SourceType, job.SourceCfg, model.Projector{Sep: job.Separator}, 0)
	result.ModelsRead = models
	if err != nil {
		return fail("read", err)
	}
	result.RowsRead = len(rows)

	// 3. Frame the rows and run them through the chain.
	schema, all := FromRows(rows)
	records := make([]Record, 0, len(all))
	for _, rec := range all {
		if transformed, keep := ApplyTransformers(rec, transformers); keep {
			records = append(records, transformed)
		}
	}
	records = ApplyBatchSort(records, transformers)
	schema = ApplySchemaTransforms(schema, transformers)

	// 4. Write to destination.
	written, err := e.Dest.Write(ctx, job.TargetTable, schema, records, job.SyncMode)
	result.RowsWritten = written
	if err != nil {
		return fail("write", err)
	}

	result.Status = "success"
	result.Duration = time.Since(start)
	return result, nil
}

// Preview reads from a source and returns up to maxRows projected records
// without writing anything.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, sep string, maxRows int) ([]Record, *Schema, error) {
	rows, _, err := readRows(ctx, sourceType, cfg, model.Projector{Sep: sep}, maxRows)
	if err != nil {
		return nil, nil, err
	}
	schema, records := FromRows(rows)
	return records, schema, nil
}

// readRows drains a source, converting every model to rows. With maxRows > 0
// it stops reading once that many rows have been produced.
func readRows(ctx context.Context, sourceType string, cfg SourceConfig, p model.Projector, maxRows int) ([]*model.Dict, int, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, 0, err
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	modelCh, errCh := source.Read(readCtx, cfg)

	var rows []*model.Dict
	models := 0
	for m := range modelCh {
		models++
		projected, err := model.ToRowsWith(m, p)
		if err != nil {
			cancel()
			drain(modelCh)
			return nil, models, fmt.Errorf("model %d: %w", models, err)
		}
		rows = append(rows, projected...)
		if maxRows > 0 && len(rows) >= maxRows {
			cancel()
			drain(modelCh)
			return rows[:maxRows], models, nil
		}
	}

	if err := <-errCh; err != nil {
		return rows, models, err
	}
	return rows, models, nil
}

func drain(ch <-chan model.Model) {
	go func() {
		for range ch {
		}
	}()
}
