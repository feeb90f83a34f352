package mcpserver

import (
	"context"
	"fmt"

	"modelkit/internal/etl"
	"modelkit/internal/etl/sources"
	"modelkit/internal/model"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

// ── Model conversion tools ─────────────────────────────────
// Both tools take a JSON object (or an array of objects), wrap each object
// as a document model and convert it.

func documentArgs() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("document", mcp.Description("JSON object, or array of objects, to convert"), mcp.Required()),
		mcp.WithString("dataPath", mcp.Description("Dot-separated path to the objects inside the document (optional)")),
		mcp.WithString("modelName", mcp.Description("Type name given to each object (default: document)")),
		mcp.WithString("order", mcp.Description("Comma-separated explicit field order; unlisted fields are dropped")),
		mcp.WithString("exclude", mcp.Description("Comma-separated fields to leave out")),
	}
}

func (s *Server) registerModelTools() {
	s.mcp.AddTool(mcp.NewTool("model_to_dict",
		append([]mcp.ToolOption{
			mcp.WithDescription("Convert JSON objects to normalized dictionaries: fields selected and ordered, empty values (null, empty lists and objects) omitted, nested objects normalized recursively."),
			mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
		}, documentArgs()...)...,
	), s.handleModelToDict)

	s.mcp.AddTool(mcp.NewTool("model_to_rows",
		append([]mcp.ToolOption{
			mcp.WithDescription("Flatten JSON objects into tabular rows. Nested keys become path columns joined by the separator; every list fans out into one row per element (Cartesian product across lists). An empty list yields no rows for that object."),
			mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: lo.ToPtr(true)}),
			mcp.WithString("separator", mcp.Description("Key-path separator for nested columns (default: .)")),
		}, documentArgs()...)...,
	), s.handleModelToRows)
}

// documentsFromArgs decodes the document argument into models. single
// reports whether the argument was one bare object.
func documentsFromArgs(args map[string]any) (models []model.Model, single bool, err error) {
	raw, err := argJSON(args, "document")
	if err != nil {
		return nil, false, err
	}
	_, isObject := raw.(map[string]any)
	dataPath, _ := args["dataPath"].(string)
	cfg := etl.SourceConfig{
		"dataPath":  dataPath,
		"modelName": args["modelName"],
		"order":     argStrings(args, "order"),
		"exclude":   argStrings(args, "exclude"),
	}
	models, err = sources.DocumentModels(cfg, raw)
	if err != nil {
		return nil, false, err
	}
	if len(models) == 0 {
		return nil, false, fmt.Errorf("document holds no JSON objects")
	}
	return models, isObject && dataPath == "", nil
}

func (s *Server) handleModelToDict(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	models, single, err := documentsFromArgs(req.GetArguments())
	if err != nil {
		return nil, err
	}

	dicts := make([]any, 0, len(models))
	for i, m := range models {
		d, err := model.ToDict(m)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		dicts = append(dicts, d)
	}

	// A single object converts to a single dictionary.
	if single {
		return s.jsonResult(dicts[0])
	}
	return s.jsonResult(dicts)
}

func (s *Server) handleModelToRows(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	models, _, err := documentsFromArgs(args)
	if err != nil {
		return nil, err
	}

	p := model.Projector{Sep: req.GetString("separator", "")}
	rows := make([]any, 0, len(models))
	for i, m := range models {
		projected, err := model.ToRowsWith(m, p)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		for _, row := range projected {
			rows = append(rows, row)
		}
	}
	return s.jsonResult(rows)
}
