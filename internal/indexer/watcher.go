package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/laguz/internal/storage"
)

// Reindexer applies single-file changes. *Indexer implements it; callers
// that must not hold the writer between events wrap one that opens a fresh
// writer per call.
type Reindexer interface {
	IndexFile(ctx context.Context, rel string) error
	Remove(ctx context.Context, rel string) (int, error)
	Sync(ctx context.Context) (*Report, error)
}

// EventCallback is called after a watcher-driven index change.
// kind is one of "indexed", "removed", "synced".
type EventCallback func(kind string, path string)

// ReconcileDelay debounces the sync that follows renames and new
// directories.
var ReconcileDelay = 200 * time.Millisecond

// Watch watches the vault and applies changes through rx until ctx is
// cancelled. New directories are added to the watch list. Renames and new
// directories schedule a debounced Sync, which picks up moved files and
// prunes stale entries.
func Watch(ctx context.Context, store storage.Provider, rx Reindexer, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(ReconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(ReconcileDelay)
		}
	}

	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			report, err := rx.Sync(ctx)
			if err != nil {
				logger.Warn("watcher: reconcile failed", slog.String("error", err.Error()))
				continue
			}
			logger.Debug("watcher: reconciled",
				slog.Int("indexed", report.Indexed),
				slog.Int("removed", report.Removed))
			notify("synced", "")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			rel, ok := store.Rel(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := rx.IndexFile(ctx, rel); err != nil {
					logger.Warn("watcher: index failed",
						slog.String("path", rel),
						slog.String("kind", Kind(err)),
						slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: indexed", slog.String("path", rel))
				notify("indexed", rel)

			case ev.Op&fsnotify.Remove != 0:
				if _, err := rx.Remove(ctx, rel); err != nil {
					logger.Warn("watcher: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: removed", slog.String("path", rel))
				notify("removed", rel)

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path; the new one arrives as a
				// Create when it stays inside a watched directory.
				if _, err := rx.Remove(ctx, rel); err != nil {
					logger.Warn("watcher: rename remove failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else {
					notify("removed", rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
