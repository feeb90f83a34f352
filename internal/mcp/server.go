package mcpserver

import (
	"fmt"
	"log"

	"modelkit/internal/jsonenc"
	"modelkit/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server is the MCP server for modelkit.
// It exposes model conversion and export jobs as tools so AI agents can
// flatten documents and trigger exports.
type Server struct {
	mcp     *server.MCPServer
	exports *service.ExportService
	enc     *jsonenc.Encoder
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Exports *service.ExportService
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		exports: deps.Exports,
		enc:     jsonenc.New(jsonenc.Indent("", "  ")),
	}

	s.mcp = server.NewMCPServer(
		"modelkit-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerModelTools()
	if s.exports != nil {
		s.registerExportTools()
		s.registerResources()
	}
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying server, e.g. for an SSE transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to indented JSON and wraps it in a text tool result.
func (s *Server) jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := s.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// jsonContents wraps v as a JSON resource body.
func (s *Server) jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := s.enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
