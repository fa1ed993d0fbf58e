package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// sseRingBufferSize bounds how many recent events are retained for
	// Last-Event-ID replay after a reconnect.
	sseRingBufferSize = 1000

	// sseKeepaliveInterval paces comment lines that keep idle connections
	// from being reaped by proxies.
	sseKeepaliveInterval = 15 * time.Second
)

// sseEvent is one broadcast item: a sequence id, the topic it was published
// under, and the JSON payload.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseClient is one connected stream consumer. A client with no topic
// patterns receives everything.
type sseClient struct {
	topics []string
	ch     chan *sseEvent
}

// sseHub fans confirmed engine and ledger events out to stream consumers and
// keeps a bounded replay window so a reconnecting client can catch up.
type sseHub struct {
	nextID atomic.Uint64

	mu      sync.RWMutex
	clients map[*sseClient]struct{}

	ringMu  sync.RWMutex
	ring    [sseRingBufferSize]sseEvent
	ringPos int // next slot to overwrite
	ringLen int // valid entries, saturates at sseRingBufferSize
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// subscribe registers a consumer with optional topic patterns. The caller
// must unsubscribe when the connection ends.
func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{topics: topics, ch: make(chan *sseEvent, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// broadcast assigns the event its sequence id, records it in the replay ring,
// and delivers it to every matching consumer. Consumers that cannot keep up
// lose events rather than stall the publisher; replay covers the gap.
func (h *sseHub) broadcast(topic string, payload []byte) {
	evt := &sseEvent{ID: h.nextID.Add(1), Topic: topic, Data: payload}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % sseRingBufferSize
	if h.ringLen < sseRingBufferSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	for c := range h.clients {
		if !c.matchesTopic(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}

// eventsSince returns retained events with id > lastID, oldest first. Events
// older than the ring window are gone; the caller gets whatever survives.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	if h.ringLen == 0 {
		return nil
	}

	oldest := h.ringPos - h.ringLen
	if oldest < 0 {
		oldest += sseRingBufferSize
	}

	var out []*sseEvent
	for i := range h.ringLen {
		evt := &h.ring[(oldest+i)%sseRingBufferSize]
		if evt.ID > lastID {
			out = append(out, evt)
		}
	}
	return out
}

func (c *sseClient) matchesTopic(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a NATS-style
// pattern: "*" matches exactly one segment, a trailing ">" matches one or
// more remaining segments.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	pat := strings.Split(pattern, ".")
	seg := strings.Split(topic, ".")

	for i, p := range pat {
		switch {
		case p == ">":
			return i < len(seg)
		case i >= len(seg):
			return false
		case p != "*" && p != seg[i]:
			return false
		}
	}
	return len(pat) == len(seg)
}

// parseTopicsQuery splits the comma-separated ?topics= value into patterns.
func parseTopicsQuery(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream handles GET /v1/events/stream. Clients may filter with
// ?topics=plenum.vote.*,plenum.session.finalized and resume with the
// standard Last-Event-ID header.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		topics = parseTopicsQuery(q)
	}

	client := s.sseHub.subscribe(topics)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.replayMissedEvents(w, r, client)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// replayMissedEvents re-sends retained events newer than the client's
// Last-Event-ID, honoring its topic filters.
func (s *Server) replayMissedEvents(w http.ResponseWriter, r *http.Request, client *sseClient) {
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		return
	}
	lastID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	for _, evt := range s.sseHub.eventsSince(lastID) {
		if client.matchesTopic(evt.Topic) {
			writeSSEEvent(w, evt)
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *sseEvent) {
	fmt.Fprintf(w, "id:%d\n", evt.ID)
	fmt.Fprintf(w, "event:%s\n", evt.Topic)
	fmt.Fprintf(w, "data:%s\n\n", evt.Data)
}
