package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/laguz/internal/schema"
	"github.com/starford/laguz/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_IndexAndRemove(t *testing.T) {
	e := newEnv(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var events []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, e.store, e.ix, testutil.Logger(), func(kind, path string) {
			mu.Lock()
			events = append(events, kind+":"+path)
			mu.Unlock()
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)

	pathTerm := schema.Notes().PathTerm("new.md")
	freq := func() int {
		n, _ := e.db.TermFreq(context.Background(), pathTerm)
		return n
	}

	testutil.WriteNote(t, e.dir, "new.md", testutil.Note("2020-01-01", "New", nil, "fresh"))
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return freq() == 1 },
		"new file not indexed by watcher")

	if err := os.Remove(filepath.Join(e.dir, "new.md")); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return freq() == 0 },
		"deleted file still indexed")

	mu.Lock()
	defer mu.Unlock()
	var sawRemove bool
	for _, ev := range events {
		if ev == "removed:new.md" {
			sawRemove = true
		}
	}
	if !sawRemove {
		t.Errorf("events = %v, want removed:new.md", events)
	}
}

func TestWatch_NewDirectoryReconciles(t *testing.T) {
	old := ReconcileDelay
	ReconcileDelay = 20 * time.Millisecond
	t.Cleanup(func() { ReconcileDelay = old })

	e := newEnv(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, e.store, e.ix, testutil.Logger(), nil)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)

	// Build the directory outside the vault, then move it in whole.
	outside := t.TempDir()
	testutil.WriteNote(t, outside, "batch/one.md", testutil.Note("2020-03-01", "One", nil, "1"))
	if err := os.Rename(filepath.Join(outside, "batch"), filepath.Join(e.dir, "batch")); err != nil {
		t.Skipf("cross-device rename: %v", err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, _ := e.db.TermFreq(context.Background(), schema.Notes().PathTerm("batch/one.md"))
		return n == 1
	}, "moved-in directory not reconciled")
}
