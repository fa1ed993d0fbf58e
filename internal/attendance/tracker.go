// Package attendance tracks which legislators have shown activity in a
// session, fed by confirmed vote events.
//
// The Tracker maintains an in-memory map per session, updated directly by the
// server when a vote confirms (its own writes or VoteRegistered events from
// the ledger subscription). The roster is presentation state only — the
// ledger's votes are the durable record — so losing it on restart costs
// nothing: it repopulates as events arrive.
package attendance

import (
	"sort"
	"sync"
	"time"
)

// Entry represents a single legislator's activity in a session.
type Entry struct {
	Address             string    `json:"address"`
	LastSeen            time.Time `json:"last_seen"`
	FirstSeen           time.Time `json:"first_seen"`
	LastChoice          string    `json:"last_choice"`
	VoteCount           int64     `json:"vote_count"`
	IdleSecs            float64   `json:"idle_secs"`
	SessionDurationSecs float64   `json:"session_duration_secs"`
}

// Tracker maintains in-memory attendance rosters keyed by session.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[uint64]map[string]*actorState
}

type actorState struct {
	firstSeen  time.Time
	lastSeen   time.Time
	lastChoice string
	voteCount  int64
}

// New creates a new attendance tracker.
func New() *Tracker {
	return &Tracker{
		sessions: make(map[uint64]map[string]*actorState),
	}
}

// RecordVote updates the attendance state for a legislator. Called by the
// server when a vote is confirmed, for any choice including PRESENT.
func (t *Tracker) RecordVote(sessionID uint64, address, choice string) {
	if address == "" {
		return
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	actors, ok := t.sessions[sessionID]
	if !ok {
		actors = make(map[string]*actorState)
		t.sessions[sessionID] = actors
	}

	state, ok := actors[address]
	if !ok {
		state = &actorState{firstSeen: now}
		actors[address] = state
	}

	state.lastSeen = now
	state.lastChoice = choice
	state.voteCount++
}

// Roster returns a snapshot of a session's attendance, sorted by most
// recently active. staleThreshold excludes legislators idle longer than the
// threshold; pass 0 to include everyone seen.
func (t *Tracker) Roster(sessionID uint64, staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	actors := t.sessions[sessionID]
	entries := make([]Entry, 0, len(actors))

	for address, state := range actors {
		idle := now.Sub(state.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			Address:             address,
			LastSeen:            state.lastSeen,
			FirstSeen:           state.firstSeen,
			LastChoice:          state.lastChoice,
			VoteCount:           state.voteCount,
			IdleSecs:            idle.Seconds(),
			SessionDurationSecs: now.Sub(state.firstSeen).Seconds(),
		})
	}

	// Sort by last seen (most recent first).
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})

	return entries
}

// ClearSession drops a session's roster. Called when the session finalizes;
// keeps the map from growing across legislative terms.
func (t *Tracker) ClearSession(sessionID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}
