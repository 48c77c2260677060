package noteservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/testutil"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	svc, err := NewService(store, Options{
		IndexPath: testutil.IndexPath(t),
		Indexer:   indexer.Options{Stemming: true},
	}, testutil.Logger())
	if err != nil {
		t.Fatal(err)
	}
	return svc, dir
}

func TestService_IndexAndOutline(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	testutil.WriteNote(t, dir, "a.md", testutil.Note("2020-01-01", "A", []string{"x"}, "alpha"))
	testutil.WriteNote(t, dir, "b.md", testutil.Note("2020-01-02", "B", []string{"y"}, "beta"))
	testutil.WriteNote(t, dir, "c.md", testutil.Note("2021-06-15", "C", []string{"x", "y"}, "gamma"))

	report, err := svc.IndexTree(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if report.Indexed != 3 {
		t.Fatalf("indexed = %d, want 3", report.Indexed)
	}

	lines, err := svc.Outline(ctx, SearchRequest{Tags: []string{"x"}, ByDate: true})
	if err != nil {
		t.Fatal(err)
	}
	if lines[0] != "# Tags: x Ordered By Date" || lines[len(lines)-1] != "Found 2 matches" {
		t.Errorf("outline = %q", lines)
	}

	tags, err := svc.Tags(ctx, SearchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(tags, ",") != "x,y" {
		t.Errorf("tags = %v", tags)
	}

	n, err := svc.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("count = %d, %v", n, err)
	}
}

func TestService_SearchBeforeIndex(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Search(context.Background(), SearchRequest{Query: "anything"})
	if !errors.Is(err, apperr.ErrIndexMissing) {
		t.Fatalf("expected ErrIndexMissing, got %v", err)
	}
}

func TestService_SettingsChangeNeedsRebuild(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	testutil.WriteNote(t, dir, "a.md", testutil.Note("2020-01-01", "A", nil, "walking"))
	if _, err := svc.IndexTree(ctx, ""); err != nil {
		t.Fatal(err)
	}

	for _, opts := range []indexer.Options{
		{Stemming: false},
		{Stemming: true, Identity: indexer.IdentityDate},
	} {
		other, err := NewService(svc.Store(), Options{IndexPath: svc.opts.IndexPath, Indexer: opts}, testutil.Logger())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := other.Search(ctx, SearchRequest{Query: "walk"}); !errors.Is(err, apperr.ErrSchemaMismatch) {
			t.Errorf("search with %+v: expected ErrSchemaMismatch, got %v", opts, err)
		}
		if _, err := other.Sync(ctx); !errors.Is(err, apperr.ErrSchemaMismatch) {
			t.Errorf("sync with %+v: expected ErrSchemaMismatch, got %v", opts, err)
		}
	}
}

func TestService_SyncAndRemove(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	testutil.WriteNote(t, dir, "keep.md", testutil.Note("2020-01-01", "Keep", nil, "kept"))
	testutil.WriteNote(t, dir, "gone.md", testutil.Note("2020-01-02", "Gone", nil, "gone"))
	if _, err := svc.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(dir, "gone.md")); err != nil {
		t.Fatal(err)
	}
	report, err := svc.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 || report.Skipped != 1 {
		t.Errorf("report = %+v", report)
	}

	n, err := svc.Remove(ctx, "keep.md")
	if err != nil || n != 1 {
		t.Errorf("remove = %d, %v", n, err)
	}
}

func TestService_IndexFileSurfacesError(t *testing.T) {
	svc, dir := newService(t)
	testutil.WriteNote(t, dir, "nodate.md", testutil.Note("", "Undated", nil, "x"))
	err := svc.IndexFile(context.Background(), "nodate.md")
	if !errors.Is(err, apperr.ErrDateParse) {
		t.Fatalf("expected ErrDateParse, got %v", err)
	}
}

func TestService_FailuresJournal(t *testing.T) {
	svc, dir := newService(t)
	ctx := context.Background()
	testutil.WriteNote(t, dir, "a.md", testutil.Note("2020-01-01", "A", nil, "a"))
	testutil.WriteNote(t, dir, "bad.md", testutil.Note("", "Bad", nil, "b"))

	if _, err := svc.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	failures, err := svc.Failures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(failures) != 1 || failures[0].Path != "bad.md" || failures[0].Kind != "date" {
		t.Fatalf("failures = %+v", failures)
	}

	// Fixing the file clears it.
	testutil.WriteNote(t, dir, "bad.md", testutil.Note("2020-01-02", "Bad", nil, "b"))
	if err := svc.IndexFile(ctx, "bad.md"); err != nil {
		t.Fatal(err)
	}
	if failures, _ = svc.Failures(ctx); len(failures) != 0 {
		t.Errorf("failures after fix = %+v", failures)
	}

	// A file that breaks and is then deleted leaves no entry.
	testutil.WriteNote(t, dir, "a.md", "---\ntitle: [unclosed\n---\n")
	if err := svc.IndexFile(ctx, "a.md"); !errors.Is(err, apperr.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
	if failures, _ = svc.Failures(ctx); len(failures) != 1 || failures[0].Path != "a.md" {
		t.Fatalf("failures = %+v", failures)
	}
	if _, err := svc.Remove(ctx, "a.md"); err != nil {
		t.Fatal(err)
	}
	if failures, _ = svc.Failures(ctx); len(failures) != 0 {
		t.Errorf("failures after remove = %+v", failures)
	}
}

func TestService_GetNote(t *testing.T) {
	svc, dir := newService(t)
	testutil.WriteNote(t, dir, "sub/n.md", testutil.Note("2020-05-05", "Hello", []string{"t"}, "body"))

	note, err := svc.GetNote(context.Background(), "sub/n.md")
	if err != nil {
		t.Fatal(err)
	}
	if note.Record.Title != "Hello" || note.Record.Filename != "sub/n.md" || note.Checksum == "" {
		t.Errorf("note = %+v", note)
	}

	if _, err := svc.GetNote(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_WriteOutline(t *testing.T) {
	svc, dir := newService(t)
	if err := svc.WriteOutline("out/result.md", []string{"# Ordered By Relevance", "", "", "Found 0 matches"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out", "result.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "Found 0 matches\n") {
		t.Errorf("content = %q", data)
	}
}
