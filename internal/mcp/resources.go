package mcpserver

import (
	"context"

	"modelkit/internal/model"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	jobsURI     = "modelkit://jobs"
	sourcesURI  = "modelkit://sources"
	managersURI = "modelkit://managers"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(mcp.NewResource(
		jobsURI,
		"Export Jobs",
		mcp.WithMIMEType("application/json"),
	), s.handleJobsResource)

	s.mcp.AddResource(mcp.NewResource(
		sourcesURI,
		"Export Sources",
		mcp.WithMIMEType("application/json"),
	), s.handleSourcesResource)

	s.mcp.AddResource(mcp.NewResource(
		managersURI,
		"Model Managers and Types",
		mcp.WithMIMEType("application/json"),
	), s.handleManagersResource)
}

func (s *Server) handleJobsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jobs, err := s.jobSummaries()
	if err != nil {
		return nil, err
	}
	return s.jsonContents(jobsURI, jobs)
}

func (s *Server) handleSourcesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return s.jsonContents(sourcesURI, s.exports.ListSources())
}

// handleManagersResource lists what a "manager" source can refer to.
func (s *Server) handleManagersResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return s.jsonContents(managersURI, map[string][]string{
		"managers": nonNil(model.DefaultRegistry.Paths()),
		"models":   nonNil(model.SchemaNames()),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
