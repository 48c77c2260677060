package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/laguz/internal/schema"
)

// Failure is one file that could not be indexed.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s [%s]: %v", f.Path, Kind(f.Err), f.Err)
}

// Report summarises a batch run.
type Report struct {
	Indexed  int
	Skipped  int
	Removed  int
	Failures []Failure
	// Stored and Pruned name the files whose documents were written or
	// dropped as stale.
	Stored []string
	Pruned []string
}

// Err joins all failures, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

func (r *Report) fail(logger *slog.Logger, op, path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Err: err})
	logger.Warn(op+": failed",
		slog.String("path", path),
		slog.String("kind", Kind(err)),
		slog.String("error", err.Error()))
}

// IndexTree upserts every note file under dir. One file's failure is
// logged and recorded, and its stale document dropped; the rest still run.
// Each document commits on its own, so a cancelled run keeps what it
// already stored and returns the context's error with the partial report.
func (ix *Indexer) IndexTree(ctx context.Context, dir string) (*Report, error) {
	metas, unreadable, err := ix.store.List(dir)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}

	report := &Report{}
	for _, f := range unreadable {
		report.fail(ix.logger, "index", f.Path, ix.dropStale(ctx, f.Path, f.Err))
	}
	for _, m := range metas {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := ix.indexOne(ctx, m.Path); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.fail(ix.logger, "index", m.Path, err)
			continue
		}
		report.Indexed++
		report.Stored = append(report.Stored, m.Path)
		ix.logger.Debug("index: stored", slog.String("path", m.Path))
	}
	ix.logger.Info("index: done",
		slog.Int("indexed", report.Indexed),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}

// Sync brings the index up to date with the vault: changed and new files
// are upserted, unchanged ones skipped by checksum, and documents whose
// source file is gone are removed. A file that cannot be read or indexed
// is reported and loses its document.
func (ix *Indexer) Sync(ctx context.Context) (*Report, error) {
	metas, unreadable, err := ix.store.List("")
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	paths, err := ix.db.Values(ctx, schema.SlotPath)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	sums, err := ix.db.Values(ctx, schema.SlotChecksum)
	if err != nil {
		return nil, fmt.Errorf("indexer: %w", err)
	}
	indexed := make(map[string]string, len(paths))
	for id, p := range paths {
		indexed[p] = sums[id]
	}

	report := &Report{}
	disk := make(map[string]struct{}, len(metas)+len(unreadable))
	for _, f := range unreadable {
		disk[f.Path] = struct{}{}
		report.fail(ix.logger, "sync", f.Path, ix.dropStale(ctx, f.Path, f.Err))
	}
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if sum, ok := indexed[m.Path]; ok && sum == m.Checksum {
			report.Skipped++
			continue
		}
		if err := ix.IndexFile(ctx, m.Path); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.fail(ix.logger, "sync", m.Path, err)
			continue
		}
		report.Indexed++
		report.Stored = append(report.Stored, m.Path)
		ix.logger.Debug("sync: indexed", slog.String("path", m.Path))
	}

	// Remove stale entries.
	for p := range indexed {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := ix.Remove(ctx, p)
		if err != nil {
			report.fail(ix.logger, "sync", p, err)
			continue
		}
		report.Removed += n
		report.Pruned = append(report.Pruned, p)
		ix.logger.Debug("sync: removed stale", slog.String("path", p))
	}

	ix.logger.Info("sync: done",
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
		slog.Int("removed", report.Removed),
		slog.Int("failed", len(report.Failures)))
	return report, nil
}
