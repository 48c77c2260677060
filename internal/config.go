package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/laguz/internal/dates"
	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/outline"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Stemmers.
const (
	StemmerEnglish = "english"
	StemmerNone    = "none"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Vault VaultConfig       `yaml:"vault"`
	Index IndexConfig       `yaml:"index"`
	Notes NotesConfig       `yaml:"notes"`
	Auth  AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig describes the note tree.
type VaultConfig struct {
	Path    string   `yaml:"path"`
	Suffix  string   `yaml:"suffix"`
	Exclude []string `yaml:"exclude"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	c.Suffix = strings.TrimPrefix(c.Suffix, ".")
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Suffix, validation.Required),
		validation.Field(&c.Exclude, validation.Each(validation.By(validGlob))),
	)
}

func validGlob(v any) error {
	s, _ := v.(string)
	if _, err := filepath.Match(s, ""); err != nil {
		return fmt.Errorf("bad pattern %q", s)
	}
	return nil
}

// IndexConfig holds search index configuration.
type IndexConfig struct {
	Path     string `yaml:"path"`
	Identity string `yaml:"identity"`
	PageSize int    `yaml:"page_size"`
	Stemmer  string `yaml:"stemmer"`
	// JournalPath defaults to Path plus ".journal".
	JournalPath string `yaml:"journal_path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Identity, validation.Required,
			validation.In(string(indexer.IdentityPath), string(indexer.IdentityDate))),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Stemmer, validation.Required, validation.In(StemmerEnglish, StemmerNone)),
	)
}

// Stemming reports whether stemmed terms are written and queried.
func (c *IndexConfig) Stemming() bool {
	return c.Stemmer == StemmerEnglish
}

// NotesConfig holds defaults applied to note metadata.
type NotesConfig struct {
	Timezone      string `yaml:"timezone"`
	DefaultAuthor string `yaml:"default_author"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.Required, validation.By(func(any) error {
			_, err := dates.LoadLocation(c.Timezone)
			return err
		})),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:    "./notes",
			Suffix:  "md",
			Exclude: []string{".git"},
		},
		Index: IndexConfig{
			Path:     "./laguz.bleve",
			Identity: string(indexer.IdentityPath),
			PageSize: outline.DefaultPageSize,
			Stemmer:  StemmerEnglish,
		},
		Notes: NotesConfig{
			Timezone: "UTC",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
