// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes laguz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/laguz/internal/noteservice"
)

const formatURI = "laguz://note-format"

// Server wraps the MCP server with laguz tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"laguz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search the note archive. Returns an outline of matching notes "+
			"grouped by year, month and day when ordered by date, or a flat list by relevance. "+
			"Read the query syntax via get_note_contract."),
		mcp.WithString("query", mcp.Description("Query string; empty matches every note")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Only notes carrying any of these tags")),
		mcp.WithString("order", mcp.Enum("relevance", "date"), mcp.Description("Result ordering (default relevance)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the tags carried by notes matching a query."),
		mcp.WithString("query", mcp.Description("Query string; empty lists every tag")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Only notes carrying any of these tags")),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. journal/2021-06-15.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("index_note",
		mcp.WithDescription("Index or re-index a single note after it changed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.indexNote)

	s.mcp.AddTool(mcp.NewTool("sync_index",
		mcp.WithDescription("Bring the whole index up to date with the vault."),
	), s.syncIndex)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the note format and query syntax."),
	), s.getNoteContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format",
			mcp.WithResourceDescription("Front matter fields, date forms and query syntax."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func searchRequest(req mcp.CallToolRequest) noteservice.SearchRequest {
	return noteservice.SearchRequest{
		Query:  req.GetString("query", ""),
		Tags:   req.GetStringSlice("tags", nil),
		ByDate: req.GetString("order", "relevance") == "date",
	}
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lines, err := s.svc.Outline(ctx, searchRequest(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.Tags(ctx, searchRequest(req))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tags) == 0 {
		return mcp.NewToolResultText("no tags found"), nil
	}
	return mcp.NewToolResultText(strings.Join(tags, "\n")), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) indexNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.IndexFile(ctx, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed: %s", path)), nil
}

func (s *Server) syncIndex(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.svc.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	failures := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, f.String())
	}
	out, _ := json.MarshalIndent(map[string]any{
		"indexed":  report.Indexed,
		"skipped":  report.Skipped,
		"removed":  report.Removed,
		"failures": failures,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
