package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// recv waits for one message on ch.
func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return ""
}

// eventName pulls the "event:" field out of a wire message.
func eventName(msg string) string {
	for line := range strings.SplitSeq(msg, "\n") {
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			return v
		}
	}
	return ""
}

func TestClientCount(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel still open")
	}
	b.Unsubscribe(c)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d, want 0", n)
	}
}

func TestIndexEventWireFormat(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishIndexEvent("indexed", "2021/walk.md")

	want := "id: 1\nevent: note.indexed\ndata: {\"path\":\"2021/walk.md\"}\n\n"
	if diff := cmp.Diff(want, recv(t, ch)); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 2\nevent: results.stale\n") {
		t.Errorf("second message = %q", got)
	}
}

func TestIndexEventKinds(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishIndexEvent("indexed", "a.md")
	b.PublishIndexEvent("renamed", "b.md")
	b.PublishIndexEvent("removed", "c.md")
	b.PublishIndexEvent("synced", "")

	var got []string
	for range 4 {
		got = append(got, eventName(recv(t, ch)))
	}
	// results.stale follows the first change only.
	want := []string{EventNoteIndexed, EventResultsStale, EventNoteRemoved, EventIndexSynced}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleAfterThrottle(t *testing.T) {
	b := NewBroker(20 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()

	b.PublishIndexEvent("indexed", "a.md")
	recv(t, ch)
	recv(t, ch)

	time.Sleep(40 * time.Millisecond)
	b.PublishIndexEvent("removed", "a.md")
	if got := eventName(recv(t, ch)); got != EventNoteRemoved {
		t.Fatalf("event = %q", got)
	}
	if got := eventName(recv(t, ch)); got != EventResultsStale {
		t.Errorf("event = %q, want %s once the throttle has passed", got, EventResultsStale)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()
	slow := b.Subscribe()

	for range 200 {
		b.Publish(Event{Type: EventIndexSynced, Data: map[string]int{}})
	}
	deadline := time.Now().Add(time.Second)
	for len(slow) < cap(slow) {
		if time.Now().After(deadline) {
			t.Fatalf("buffered = %d, want %d", len(slow), cap(slow))
		}
		time.Sleep(5 * time.Millisecond)
	}
	// The loop is still responsive once the slow buffer is full.
	if n := b.ClientCount(); n != 1 {
		t.Errorf("clients = %d", n)
	}
}

func TestServeHTTP_StreamsUntilDisconnect(t *testing.T) {
	b := NewBroker(time.Minute)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishIndexEvent("removed", "old.md")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: note.removed\ndata: {\"path\":\"old.md\"}") {
		t.Errorf("body = %q", body)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after disconnect = %d", n)
	}
}

func TestServeHTTP_KeepAlive(t *testing.T) {
	old := KeepAlive
	KeepAlive = 10 * time.Millisecond
	t.Cleanup(func() { KeepAlive = old })

	b := NewBroker(time.Minute)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping\n\n") {
		t.Errorf("no keep-alive in %q", w.Body.String())
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(time.Minute)
	ch := b.Subscribe()
	b.Close()

	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel still open")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after close = %d", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	// No-ops once closed.
	b.PublishIndexEvent("indexed", "x.md")
	b.Unsubscribe(ch)
	b.Close()
}
