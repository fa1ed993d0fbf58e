// Package registry manages sessions and the law catalog. Writes go to the
// ledger first and are mirrored into the projection; reads prefer the
// projection and fall back to an on-demand sync when a record is missing.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/recon"
	"github.com/parlatech/plenum/internal/store"
)

// ErrNoActiveSession is returned when no session is currently open for voting.
var ErrNoActiveSession = errors.New("no active session")

// Registry coordinates session and law lifecycle across ledger and projection.
type Registry struct {
	gw     ledger.Gateway
	store  store.Store
	recon  *recon.Service
	pub    events.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	activeID uint64
	cached   bool
}

// New creates a registry.
func New(gw ledger.Gateway, st store.Store, rc *recon.Service, pub events.Publisher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{gw: gw, store: st, recon: rc, pub: pub, logger: logger}
}

// CreateSession opens a new voting session on the ledger and mirrors it into
// the projection. The contract enforces single-active-session; a second open
// session surfaces as ErrSessionNotActive from the ledger.
func (r *Registry) CreateSession(ctx context.Context, date, description string) (*model.Session, error) {
	session := &model.Session{Date: date, Description: description, Active: true}
	if err := model.ValidateSession(session); err != nil {
		return nil, err
	}

	tx, id, err := r.gw.CreateSession(ctx, date, description)
	if err != nil {
		return nil, err
	}
	session.ID = id

	if err := r.store.CreateSession(ctx, session); err != nil {
		// The ledger session exists; the next sync backfills the row.
		r.logger.Warn("session projection write failed", "session", id, "error", err)
	}

	r.mu.Lock()
	r.activeID = id
	r.cached = true
	r.mu.Unlock()

	r.publish(ctx, events.TopicSessionCreated, events.SessionCreated{Session: session, TxRef: tx.TxHash})
	r.logger.Info("session created", "session", id, "date", date, "tx", tx.TxHash)
	return session, nil
}

// AddLawInput carries a new law's ledger fields plus off-chain metadata.
type AddLawInput struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Author       string          `json:"author,omitempty"`
	Party        string          `json:"party,omitempty"`
	Category     string          `json:"category,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	DocumentRefs json.RawMessage `json:"document_refs,omitempty"`
}

// AddLaw registers a law proposal in a session. Title and description go to
// the ledger; the remaining metadata is projection-only.
func (r *Registry) AddLaw(ctx context.Context, sessionID uint64, in AddLawInput) (*model.Law, error) {
	law := &model.Law{
		SessionID:    sessionID,
		Title:        in.Title,
		Description:  in.Description,
		Author:       in.Author,
		Party:        in.Party,
		Category:     in.Category,
		Status:       model.StatusInDebate,
		FinalStatus:  model.FinalPending,
		Active:       true,
		Tags:         in.Tags,
		DocumentRefs: in.DocumentRefs,
	}
	if err := model.ValidateLaw(law); err != nil {
		return nil, err
	}

	tx, lawID, err := r.gw.AddLaw(ctx, sessionID, in.Title, in.Description)
	if err != nil {
		return nil, err
	}
	law.LedgerLawID = lawID

	if err := r.store.UpsertLaw(ctx, law); err != nil {
		r.logger.Warn("law projection write failed",
			"session", sessionID, "law", lawID, "error", err)
	}
	r.bumpLawCount(ctx, sessionID)

	r.publish(ctx, events.TopicLawAdded, events.LawAdded{Law: law, TxRef: tx.TxHash})
	r.logger.Info("law added", "session", sessionID, "law", lawID, "title", in.Title, "tx", tx.TxHash)
	return law, nil
}

// UpdateLawMetadata rewrites the projection-only fields of a law. Ledger-owned
// fields in the patch are ignored.
func (r *Registry) UpdateLawMetadata(ctx context.Context, key model.LawKey, in AddLawInput) (*model.Law, error) {
	law, err := r.GetLaw(ctx, key)
	if err != nil {
		return nil, err
	}
	law.Author = in.Author
	law.Party = in.Party
	law.Category = in.Category
	law.Tags = in.Tags
	law.DocumentRefs = in.DocumentRefs
	if err := model.ValidateLaw(law); err != nil {
		return nil, err
	}
	if err := r.store.UpdateLaw(ctx, law); err != nil {
		return nil, err
	}
	return law, nil
}

// ActiveSession resolves the currently open session. The resolved id is cached
// until Invalidate is called or a session event arrives via Watch; resolution
// scans every ledger session newest-first and returns the first active one.
func (r *Registry) ActiveSession(ctx context.Context) (*model.Session, error) {
	r.mu.Lock()
	cached, id := r.cached, r.activeID
	r.mu.Unlock()

	if cached {
		session, err := r.GetSession(ctx, id)
		if err == nil && session.Active {
			return session, nil
		}
		r.Invalidate()
	}

	count, err := r.gw.SessionCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("session count: %w", err)
	}
	for id := count; id >= 1; id-- {
		state, err := r.gw.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read session %d: %w", id, err)
		}
		if !state.Active {
			continue
		}
		r.mu.Lock()
		r.activeID = id
		r.cached = true
		r.mu.Unlock()
		return r.GetSession(ctx, id)
	}
	return nil, ErrNoActiveSession
}

// Invalidate drops the cached active-session id.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.cached = false
	r.mu.Unlock()
}

// Watch subscribes to ledger session events and drops the cache whenever a
// session opens or closes. Returns a cancel function; the watch also ends
// when ctx is done.
func (r *Registry) Watch(ctx context.Context) (func(), error) {
	ch, cancel, err := r.gw.Subscribe(ctx, ledger.EventSessionCreated, ledger.EventSessionFinalized)
	if err != nil {
		return nil, fmt.Errorf("subscribe session events: %w", err)
	}
	go func() {
		for ev := range ch {
			r.logger.Debug("session event, dropping cache", "kind", ev.Kind, "session", ev.SessionID)
			r.Invalidate()
		}
	}()
	return cancel, nil
}

// GetSession reads a session from the projection, syncing it from the ledger
// when the row is missing.
func (r *Registry) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
	session, err := r.store.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return r.recon.SyncSession(ctx, id)
	}
	return session, err
}

// ListSessions pages through the session projection, newest first.
func (r *Registry) ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) {
	return r.store.ListSessions(ctx, limit, offset)
}

// GetLaw reads a law from the projection, syncing it from the ledger when the
// row is missing.
func (r *Registry) GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	law, err := r.store.GetLaw(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return r.recon.SyncLaw(ctx, key)
	}
	return law, err
}

// ListLaws queries the law catalog.
func (r *Registry) ListLaws(ctx context.Context, filter model.LawFilter) ([]*model.Law, int, error) {
	return r.store.ListLaws(ctx, filter)
}

// ListVotes returns the recorded votes for a law.
func (r *Registry) ListVotes(ctx context.Context, key model.LawKey) ([]*model.Vote, error) {
	return r.store.ListVotes(ctx, key)
}

// bumpLawCount keeps the projection's per-session law count in step after an
// AddLaw. Best effort; a resync recomputes it from the ledger.
func (r *Registry) bumpLawCount(ctx context.Context, sessionID uint64) {
	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	session.LawCount++
	if err := r.store.UpdateSession(ctx, session); err != nil {
		r.logger.Warn("law count update failed", "session", sessionID, "error", err)
	}
}

func (r *Registry) publish(ctx context.Context, topic string, event any) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, topic, event); err != nil {
		r.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}
