//go:build !purego

package journal

// Default build: cgo SQLite through github.com/mattn/go-sqlite3.
//
//	CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"

	// BuildMode describes the compiled SQLite driver.
	BuildMode = "cgo"
)

func dsn(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}
