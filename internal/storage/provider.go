// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/laguz/internal/models"

// ListFailure is a file or directory a listing found but could not read.
type ListFailure struct {
	Path string
	Err  error
}

// Provider is the interface for vault file operations. Paths are relative
// to the vault root, slash-separated.
type Provider interface {
	// List returns metadata for every note file under dir, plus the
	// entries it had to skip.
	List(dir string) ([]models.NoteMetadata, []ListFailure, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Rel converts an absolute path under the root into a vault path.
	// ok is false for paths outside the vault or not matching the note
	// filter.
	Rel(abs string) (rel string, ok bool)
	// Root returns the absolute vault root.
	Root() string
}
