// Package testutil provides shared test helpers for setting up vaults and indexes.
package testutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/schema"
	"github.com/starford/laguz/internal/storage"
)

// IndexPath returns a fresh index path inside a temp directory.
func IndexPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "index")
}

// TestEngine opens a writable index laid out for the notes schema. It is
// closed on cleanup.
func TestEngine(t *testing.T) *engine.Database {
	t.Helper()
	db, err := engine.Open(IndexPath(t), engine.ModeCreateOrOpen, schema.Notes().EngineOptions(nil))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault of .md notes with a storage provider.
func TestVault(t *testing.T, exclude ...string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir, "md", exclude)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes content to rel under dir, creating parent directories.
func WriteNote(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Note renders a note with front matter. An empty date is omitted.
func Note(date, title string, tags []string, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	if date != "" {
		fmt.Fprintf(&b, "date: %s\n", date)
	}
	fmt.Fprintf(&b, "title: %q\n", title)
	if len(tags) > 0 {
		b.WriteString("tags:\n")
		for _, tag := range tags {
			fmt.Fprintf(&b, "  - %q\n", tag)
		}
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
