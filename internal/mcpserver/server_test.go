package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/noteservice"
	"github.com/starford/laguz/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	vaultDir, store := testutil.TestVault(t)
	svc, err := noteservice.NewService(store, noteservice.Options{
		IndexPath: testutil.IndexPath(t),
		Indexer:   indexer.Options{Stemming: true},
	}, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	return New(svc, "test"), vaultDir
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper; call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "list_tags":
		result, err = srv.listTags(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "index_note":
		result, err = srv.indexNote(ctx, req)
	case "sync_index":
		result, err = srv.syncIndex(ctx, req)
	case "get_note_contract":
		result, err = srv.getNoteContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSyncAndSearch(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteNote(t, dir, "a.md", testutil.Note("2020-01-01", "A", []string{"x"}, "alpha"))
	testutil.WriteNote(t, dir, "c.md", testutil.Note("2021-06-15", "C", []string{"x", "y"}, "gamma"))

	r := callTool(t, srv, "sync_index", map[string]any{})
	if r.IsError || !strings.Contains(resultText(r), `"indexed": 2`) {
		t.Fatalf("sync result = %q", resultText(r))
	}

	r = callTool(t, srv, "search_notes", map[string]any{
		"tags":  []any{"x"},
		"order": "date",
	})
	text := resultText(r)
	if r.IsError {
		t.Fatalf("search error: %s", text)
	}
	for _, want := range []string{"Ordered By Date", "2021\nJune\nTuesday 15", "(a.md)", "Found 2 matches"} {
		if !strings.Contains(text, want) {
			t.Errorf("search output missing %q:\n%s", want, text)
		}
	}
}

func TestListTags(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteNote(t, dir, "a.md", testutil.Note("2020-01-01", "A", []string{"work", "home"}, "alpha"))
	callTool(t, srv, "sync_index", map[string]any{})

	r := callTool(t, srv, "list_tags", map[string]any{})
	if got := resultText(r); got != "home\nwork" {
		t.Errorf("tags = %q", got)
	}
}

func TestIndexNote(t *testing.T) {
	srv, dir := testServer(t)
	testutil.WriteNote(t, dir, "n.md", testutil.Note("2020-01-01", "N", nil, "needle"))

	r := callTool(t, srv, "index_note", map[string]any{"path": "n.md"})
	if r.IsError || resultText(r) != "indexed: n.md" {
		t.Fatalf("index result = %q", resultText(r))
	}

	r = callTool(t, srv, "search_notes", map[string]any{"query": "needle"})
	if !strings.Contains(resultText(r), "Found 1 matches") {
		t.Errorf("search after index = %q", resultText(r))
	}

	testutil.WriteNote(t, dir, "bad.md", testutil.Note("", "Bad", nil, "x"))
	if r := callTool(t, srv, "index_note", map[string]any{"path": "bad.md"}); !r.IsError {
		t.Error("expected error for undated note")
	}
}

func TestReadNote(t *testing.T) {
	srv, dir := testServer(t)
	content := testutil.Note("2020-01-01", "Read me", nil, "body")
	testutil.WriteNote(t, dir, "r.md", content)

	if got := resultText(callTool(t, srv, "read_note", map[string]any{"path": "r.md"})); got != content {
		t.Errorf("read = %q", got)
	}
	if r := callTool(t, srv, "read_note", map[string]any{"path": "nope.md"}); !r.IsError {
		t.Error("expected error for missing note")
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]any{"query": "x"})
	if !r.IsError {
		t.Error("expected error before the index exists")
	}
}

func TestNoteContract(t *testing.T) {
	srv, _ := testServer(t)
	if !strings.Contains(resultText(callTool(t, srv, "get_note_contract", nil)), "date:") {
		t.Error("contract should document the date field")
	}
}
