//go:build purego

package journal

// Pure Go build through modernc.org/sqlite; no C toolchain needed.
//
//	CGO_ENABLED=0 go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	// BuildMode describes the compiled SQLite driver.
	BuildMode = "purego"
)

func dsn(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}
