package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("flatten_document",
		mcp.WithPromptDescription("Work out the field order and separator that turn a JSON document into clean table rows"),
		mcp.WithArgument("document",
			mcp.ArgumentDescription("JSON object or array of objects"),
			mcp.RequiredArgument(),
		),
	), s.handleFlattenPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("export_pipeline",
		mcp.WithPromptDescription("Check a source, preview its rows and run the export job that writes them"),
		mcp.WithArgument("job",
			mcp.ArgumentDescription("Export job name"),
			mcp.RequiredArgument(),
		),
	), s.handleExportPipelinePrompt)
}

func (s *Server) handleFlattenPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	document := req.Params.Arguments["document"]
	return &mcp.GetPromptResult{
		Description: "Flatten a JSON document into rows",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Turn this JSON document into table rows:

%s

1. Call model_to_dict to see the normalized fields. Empty values are dropped.
2. Pick the fields worth keeping and pass them as "order" (or drop noise with "exclude").
3. Call model_to_rows with that order. Every list fans out into one row per element, so check the row count: two lists of 3 and 4 items give 12 rows per object.
4. If a list is empty, the object produces no rows at all. Exclude that field if the object should still appear.
5. Report the final columns and the arguments you used.`, document),
				},
			},
		},
	}, nil
}

func (s *Server) handleExportPipelinePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	job := req.Params.Arguments["job"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Run export job %s", job),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Run the export job "%s" safely. Follow these steps:

1. Use list_export_jobs to find the job, its source and its target.
2. Use preview_export_source with the same source type and config to check the rows look right.
3. If the job is in replace mode, confirm with the user before continuing: the target will be overwritten.
4. Run it with run_export_job and report rows read and written.
5. If it fails, use list_export_runs to show recent runs and their errors.`, job),
				},
			},
		},
	}, nil
}
