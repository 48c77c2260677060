package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*Application)

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *Application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		a.logger = logger
	}
}

// WithStdout sets where rendered output goes.
func WithStdout(w io.Writer) Option {
	return func(a *Application) {
		a.stdout = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *Application) {
		a.version = v
	}
}
