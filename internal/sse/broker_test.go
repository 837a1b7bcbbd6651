package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

func assertClosed(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe(1, "s1")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishReachesOnlyOwner(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	tab1 := b.Subscribe(1, "s1")
	tab2 := b.Subscribe(1, "s2")
	other := b.Subscribe(2, "s3")

	b.Publish(1, Event{Type: NoteDeleted, Data: map[string]int{"index": 0}})

	for _, ch := range []chan []byte{tab1, tab2} {
		s := receive(t, ch)
		if !strings.Contains(s, "event: note.deleted") || !strings.Contains(s, `"index":0`) {
			t.Errorf("message = %q", s)
		}
	}

	// A later event for user 2 must be the first thing user 2 sees.
	b.Publish(2, Event{Type: NoteCreated, Data: map[string]int{"index": 0}})
	if s := receive(t, other); !strings.Contains(s, "note.created") {
		t.Errorf("user 2 got %q, want its own event first", s)
	}
}

func TestDropSessionClosesOnlyThatSession(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	dropped := b.Subscribe(1, "s1")
	kept := b.Subscribe(1, "s2")

	b.DropSession("s1")
	assertClosed(t, dropped)
	if b.ClientCount() != 1 {
		t.Fatalf("clients = %d, want 1", b.ClientCount())
	}
	// Unsubscribing a dropped stream is a no-op.
	b.Unsubscribe(dropped)

	b.Publish(1, Event{Type: NoteUpdated, Data: map[string]int{"index": 2}})
	if s := receive(t, kept); !strings.Contains(s, "note.updated") {
		t.Errorf("kept stream got %q", s)
	}
}

func TestStreamHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	ch := b.Subscribe(1, "s1")
	done := make(chan struct{})
	go func() {
		Stream(w, req, ch)
		close(done)
	}()

	b.Publish(1, Event{Type: NoteCreated, Data: map[string]int{"index": 0}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done
	b.Unsubscribe(ch)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: note.created") {
		t.Errorf("handler output missing event: %q", body)
	}
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestStreamEndsWhenChannelCloses(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := httptest.NewRecorder()
	ch := b.Subscribe(1, "s1")

	done := make(chan struct{})
	go func() {
		Stream(w, req, ch)
		close(done)
	}()

	b.DropSession("s1")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end after its session was dropped")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe(1, "s1")
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(1, Event{Type: NoteUpdated, Data: map[string]int{"index": i}})
	}
	if b.ClientCount() != 1 {
		t.Errorf("clients = %d, want 1", b.ClientCount())
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(1, "s1")

	b.Close()
	assertClosed(t, ch)

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	// Safe no-ops after close.
	b.Publish(1, Event{Type: NoteUpdated})
	b.DropSession("s1")
	b.Close()
	assertClosed(t, b.Subscribe(1, "s2"))
}
