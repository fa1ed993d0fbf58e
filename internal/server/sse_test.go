package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMatchTopicPattern(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{"plenum.law.added", "plenum.law.added", true},
		{"plenum.law.added", "plenum.law.finalized", false},
		{"plenum.law.*", "plenum.law.added", true},
		{"plenum.law.*", "plenum.law.added.extra", false},
		{"plenum.*.added", "plenum.law.added", true},
		{"plenum.>", "plenum.law.added", true},
		{"plenum.>", "plenum.session.created", true},
		{"plenum.>", "plenum", false},
		{">", "plenum.law.added", true},
		{"plenum.law", "plenum.law.added", false},
		{"plenum.law.added", "plenum.law", false},
	}
	for _, tt := range tests {
		if got := matchTopicPattern(tt.pattern, tt.topic); got != tt.want {
			t.Errorf("matchTopicPattern(%q, %q) = %v, want %v", tt.pattern, tt.topic, got, tt.want)
		}
	}
}

func TestSSEHubBroadcast(t *testing.T) {
	hub := newSSEHub()
	all := hub.subscribe(nil)
	laws := hub.subscribe([]string{"plenum.law.*"})
	defer hub.unsubscribe(all)
	defer hub.unsubscribe(laws)

	hub.broadcast("plenum.law.added", []byte(`{"n":1}`))
	hub.broadcast("plenum.session.created", []byte(`{"n":2}`))

	select {
	case evt := <-all.ch:
		if evt.Topic != "plenum.law.added" {
			t.Errorf("first event topic = %q", evt.Topic)
		}
	default:
		t.Fatal("no event delivered to unfiltered client")
	}
	select {
	case evt := <-all.ch:
		if evt.Topic != "plenum.session.created" {
			t.Errorf("second event topic = %q", evt.Topic)
		}
	default:
		t.Fatal("second event missing for unfiltered client")
	}

	select {
	case evt := <-laws.ch:
		if evt.Topic != "plenum.law.added" {
			t.Errorf("filtered event topic = %q", evt.Topic)
		}
	default:
		t.Fatal("no event delivered to filtered client")
	}
	select {
	case evt := <-laws.ch:
		t.Errorf("filtered client received %q, want nothing", evt.Topic)
	default:
	}
}

func TestSSEHubEventsSince(t *testing.T) {
	hub := newSSEHub()
	for i := range 5 {
		hub.broadcast("plenum.vote.registered", fmt.Appendf(nil, `{"n":%d}`, i))
	}

	replay := hub.eventsSince(2)
	if len(replay) != 3 {
		t.Fatalf("replay length = %d, want 3", len(replay))
	}
	if replay[0].ID != 3 || replay[2].ID != 5 {
		t.Errorf("replay ids = %d..%d, want 3..5", replay[0].ID, replay[len(replay)-1].ID)
	}

	if got := hub.eventsSince(5); got != nil {
		t.Errorf("eventsSince(latest) = %d events, want none", len(got))
	}
}

func TestSSEHubRingWraps(t *testing.T) {
	hub := newSSEHub()
	total := sseRingBufferSize + 10
	for i := 0; i < total; i++ {
		hub.broadcast("plenum.vote.registered", []byte(`{}`))
	}

	replay := hub.eventsSince(0)
	if len(replay) != sseRingBufferSize {
		t.Fatalf("replay length = %d, want %d", len(replay), sseRingBufferSize)
	}
	// Oldest retained event is total - sseRingBufferSize + 1.
	if want := uint64(total - sseRingBufferSize + 1); replay[0].ID != want {
		t.Errorf("oldest id = %d, want %d", replay[0].ID, want)
	}
}

// streamReplay runs the SSE handler with an already-cancelled context so
// that it replays buffered events and returns without blocking.
func streamReplay(t *testing.T, srv *Server, target, lastID string) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", lastID)
	w := httptest.NewRecorder()
	srv.handleEventStream(w, req)
	return w
}

func TestEventStreamReplay(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.broadcastEvent("plenum.law.added", map[string]any{"title": "Water Act"})
	srv.broadcastEvent("plenum.session.created", map[string]any{"id": 1})

	w := streamReplay(t, srv, "/v1/events/stream", "0")

	body := w.Body.String()
	if !strings.Contains(body, "event:plenum.law.added") {
		t.Errorf("missing law event in stream: %q", body)
	}
	if !strings.Contains(body, "event:plenum.session.created") {
		t.Errorf("missing session event in stream: %q", body)
	}
	if !strings.Contains(body, "id:1\n") {
		t.Errorf("missing event id in stream: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestEventStreamTopicFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.broadcastEvent("plenum.law.added", map[string]any{"n": 1})
	srv.broadcastEvent("plenum.session.created", map[string]any{"n": 2})

	w := streamReplay(t, srv, "/v1/events/stream?topics=plenum.session.*", "0")

	body := w.Body.String()
	if !strings.Contains(body, "plenum.session.created") {
		t.Fatalf("missing session event in filtered stream: %q", body)
	}
	if strings.Contains(body, "plenum.law.added") {
		t.Errorf("filtered stream leaked law event: %q", body)
	}
}
