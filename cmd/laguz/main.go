package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/laguz/internal"
	"github.com/starford/laguz/internal/noteservice"
	pkgconfig "github.com/starford/laguz/pkg/config"
)

var version = "dev"

func newApp(cmd *cli.Command) (*internal.Application, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if v := cmd.String("index"); v != "" {
		cfg.Index.Path = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return internal.New(internal.WithConfig(cfg), internal.WithVersion(version))
}

func searchRequest(cmd *cli.Command) noteservice.SearchRequest {
	return noteservice.SearchRequest{
		Query:  strings.Join(cmd.Args().Slice(), " "),
		Tags:   cmd.StringSlice("tag"),
		ByDate: cmd.Bool("by-date"),
	}
}

var filterFlags = []cli.Flag{
	&cli.StringSliceFlag{
		Name:    "tag",
		Aliases: []string{"t"},
		Usage:   "only notes carrying this tag (repeatable; any tag matches)",
	},
	&cli.BoolFlag{
		Name:    "by-date",
		Aliases: []string{"d"},
		Usage:   "order by date, newest first, grouped by year, month and day",
	},
}

func main() {
	cmd := &cli.Command{
		Name:    "laguz",
		Usage:   "Index and query a personal archive of Markdown notes",
		Version: version,
		Description: heredoc.Doc(`
			laguz reads notes with YAML front matter from a vault directory,
			keeps a full-text index of them, and renders query results as a
			Markdown outline of links back to the notes.

			Configuration is read from the file named by --config; when it does
			not exist, defaults apply. Values may reference ${ENV} variables and
			a .env file in the working directory is loaded first.
		`),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("LAGUZ_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "vault directory (overrides vault.path)",
				Sources: cli.EnvVars("LAGUZ_VAULT"),
			},
			&cli.StringFlag{
				Name:    "index",
				Usage:   "index file (overrides index.path)",
				Sources: cli.EnvVars("LAGUZ_INDEX"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index every note under a directory of the vault",
				ArgsUsage: "[dir]",
				Description: heredoc.Doc(`
					Extracts and stores every note under dir (the whole vault by
					default). A note that cannot be read, parsed or dated is
					reported and skipped; the rest are still indexed.
				`),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Index(ctx, cmd.Args().First())
				},
			},
			{
				Name:  "sync",
				Usage: "Re-index changed notes and drop deleted ones",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Sync(ctx)
				},
			},
			{
				Name:  "failures",
				Usage: "List notes whose last index attempt failed",
				Description: heredoc.Doc(`
					Every index, sync and watch run records each file's outcome.
					A file stays listed until it indexes cleanly or is deleted.
				`),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Failures(ctx)
				},
			},
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search notes and print an outline of links",
				ArgsUsage: "[query...]",
				Description: heredoc.Doc(`
					Query words are joined into one query. Supported syntax:

					  walk "river bank"        words and phrases
					  title:walk author:sam     field prefixes
					  +required -excluded       required and excluded terms
					  wal* walk~1               wildcards and fuzzy matches
					  20200101..20201231       date range (either bound optional)

					An empty query matches every note.
				`),
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "write the outline to this vault-relative file instead of stdout",
					},
				}, filterFlags...),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Search(ctx, searchRequest(cmd), cmd.String("output"))
				},
			},
			{
				Name:      "tags",
				Usage:     "List the tags of notes matching a query",
				ArgsUsage: "[query...]",
				Flags:     filterFlags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Tags(ctx, searchRequest(cmd))
				},
			},
			{
				Name:  "watch",
				Usage: "Keep the index in step with the vault as files change",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Watch(ctx)
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API and watch the vault",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.Serve(ctx)
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve MCP tools over stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					app, err := newApp(cmd)
					if err != nil {
						return err
					}
					return app.ServeMCP(ctx)
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
