package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/starford/laguz/internal/checksum"
	"github.com/starford/laguz/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root    string // absolute path to vault directory
	suffix  string // with leading dot, e.g. ".md"
	exclude []string
}

// NewFS creates a provider rooted at root listing files ending in suffix.
// exclude holds glob patterns matched against relative paths and base
// names; a matching directory is skipped whole. The root must exist.
func NewFS(root, suffix string, exclude []string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	for _, p := range exclude {
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("storage: bad exclude pattern %q: %w", p, err)
		}
	}
	suffix = strings.TrimPrefix(suffix, ".")
	if suffix != "" {
		suffix = "." + suffix
	}
	return &FS{root: abs, suffix: suffix, exclude: exclude}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string { return f.root }

// safePath resolves a relative path against the vault root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes vault root: %s", rel)
	}
	return abs, nil
}

func (f *FS) excluded(rel string) bool {
	base := path.Base(rel)
	for _, p := range f.exclude {
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
		if ok, _ := path.Match(p, base); ok {
			return true
		}
	}
	return false
}

func (f *FS) isNote(name string) bool {
	return f.suffix == "" || strings.HasSuffix(name, f.suffix)
}

// Rel converts an absolute path to a vault path if it names a note file
// that listing would include.
func (f *FS) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) || rel == ".." {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !f.isNote(rel) {
		return "", false
	}
	dir := rel
	for {
		if f.excluded(dir) {
			return "", false
		}
		next := path.Dir(dir)
		if next == "." || next == dir {
			break
		}
		dir = next
	}
	return rel, true
}

// List walks dir (relative to root) and returns metadata for every note
// file, in walk order. A file or subdirectory that cannot be read is
// skipped and returned as a failure; only an unreadable dir fails the call.
func (f *FS) List(dir string) ([]models.NoteMetadata, []ListFailure, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, nil, err
	}
	var (
		out      []models.NoteMetadata
		failures []ListFailure
	)
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		rel, _ := filepath.Rel(f.root, p)
		rel = filepath.ToSlash(rel)
		if walkErr != nil {
			if p == base {
				return walkErr
			}
			failures = append(failures, ListFailure{Path: rel, Err: walkErr})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != base && f.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !f.isNote(d.Name()) || f.excluded(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			failures = append(failures, ListFailure{Path: rel, Err: err})
			return nil
		}
		sum, err := checksum.File(p)
		if err != nil {
			failures = append(failures, ListFailure{Path: rel, Err: err})
			return nil
		}
		out = append(out, models.NoteMetadata{
			Path:      rel,
			Checksum:  sum,
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, failures, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the file at path, creating parent directories.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	return WriteFile(abs, content)
}

// WriteFile atomically replaces the file at an arbitrary path.
func WriteFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}
