package mcpserver

import (
	"context"
	"fmt"

	"modelkit/internal/etl"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("list_export_jobs",
		mcp.WithDescription("List configured export jobs with their source, target, trigger and last run status"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
	), s.handleListExportJobs)

	s.mcp.AddTool(mcp.NewTool("list_export_sources",
		mcp.WithDescription("List available export source types with their configuration schemas"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
	), s.handleListExportSources)

	s.mcp.AddTool(mcp.NewTool("list_export_runs",
		mcp.WithDescription("List the most recent runs of an export job"),
		mcp.WithString("job", mcp.Description("Export job name or ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
	), s.handleListExportRuns)

	s.mcp.AddTool(mcp.NewTool("run_export_job",
		mcp.WithDescription("DESTRUCTIVE: Execute an export job. In replace mode the target table or file is overwritten."),
		mcp.WithString("job", mcp.Description("Export job name or ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: lo.ToPtr(true)}),
	), s.handleRunExportJob)

	s.mcp.AddTool(mcp.NewTool("preview_export_source",
		mcp.WithDescription("Preview the rows a source produces, flattened exactly as an export would write them, without writing anything"),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_export_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("separator", mcp.Description("Key-path separator for nested columns (default: .)")),
		mcp.WithNumber("maxRows", mcp.Description("Maximum rows to return (default: 10)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
	), s.handlePreviewExportSource)
}

// jobSummary is the agent-facing view of a job.
type jobSummary struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Table      string       `json:"table"`
	Mode       etl.SyncMode `json:"mode"`
	Trigger    string       `json:"trigger"`
	Enabled    bool         `json:"enabled"`
	LastStatus string       `json:"lastStatus,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
	LastRunAt  string       `json:"lastRunAt,omitempty"`
	Running    bool         `json:"running,omitempty"`
}

func (s *Server) jobSummaries() ([]jobSummary, error) {
	jobs, err := s.exports.ListJobs()
	if err != nil {
		return nil, err
	}
	running := s.exports.RunningJobs()
	return lo.Map(jobs, func(j etl.ExportJob, _ int) jobSummary {
		trigger := j.TriggerType
		if j.TriggerConfig != "" {
			trigger += " " + j.TriggerConfig
		}
		sum := jobSummary{
			ID:         j.ID,
			Name:       j.Name,
			Source:     j.SourceType,
			Target:     j.Target,
			Table:      j.TargetTable,
			Mode:       j.SyncMode,
			Trigger:    trigger,
			Enabled:    j.Enabled,
			LastStatus: j.LastStatus,
			LastError:  j.LastError,
			Running:    lo.Contains(running, j.ID),
		}
		if !j.LastRunAt.IsZero() {
			sum.LastRunAt = j.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
		}
		return sum
	}), nil
}

func (s *Server) handleListExportJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.jobSummaries()
	if err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return s.jsonResult(jobs)
}

func (s *Server) handleListExportSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.jsonResult(s.exports.ListSources())
}

func (s *Server) handleListExportRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := req.GetString("job", "")
	if ref == "" {
		return nil, fmt.Errorf("job is required")
	}
	logs, err := s.exports.ListRunLogs(ref)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return s.jsonResult(logs)
}

func (s *Server) handleRunExportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := req.GetString("job", "")
	if ref == "" {
		return nil, fmt.Errorf("job is required")
	}

	result, err := s.exports.RunJob(ctx, ref)
	if err != nil && result == nil {
		return nil, fmt.Errorf("run export job: %w", err)
	}
	// A failed run still reports its result so the agent sees the counts.
	return s.jsonResult(result)
}

func (s *Server) handlePreviewExportSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceType := req.GetString("sourceType", "")
	if sourceType == "" {
		return nil, fmt.Errorf("sourceType is required")
	}
	raw, err := argJSON(args, "sourceConfigJSON")
	if err != nil {
		return nil, err
	}
	cfg, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sourceConfigJSON must be a JSON object")
	}

	preview, err := s.exports.Preview(ctx, sourceType, etl.SourceConfig(cfg), req.GetString("separator", ""), argInt(args, "maxRows", 10))
	if err != nil {
		return nil, fmt.Errorf("preview source: %w", err)
	}
	return s.jsonResult(preview)
}
