// Package recon reconciles the off-chain projection with the ledger contract.
// The ledger is authoritative for titles, lifecycle flags, and tallies; the
// projection is a queryable copy that may lag and is repaired here. Off-chain
// metadata (author, party, category, tags, document refs) lives only in the
// projection and is never touched by a resync.
package recon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/store"
)

// Service performs projection syncs against the ledger.
type Service struct {
	gw     ledger.Gateway
	store  store.Store
	pub    events.Publisher
	logger *slog.Logger
}

// New creates a reconciliation service. The publisher may be a NoopPublisher.
func New(gw ledger.Gateway, st store.Store, pub events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, store: st, pub: pub, logger: logger}
}

// SyncLaw copies a single law's ledger state into the projection and returns
// the refreshed record. Existing off-chain metadata and a previously written
// final status survive the overwrite. Safe to call repeatedly.
func (s *Service) SyncLaw(ctx context.Context, key model.LawKey) (*model.Law, error) {
	state, err := s.gw.GetLaw(ctx, key.SessionID, key.LedgerLawID)
	if err != nil {
		return nil, fmt.Errorf("read law %d/%d: %w", key.SessionID, key.LedgerLawID, err)
	}
	tally, err := s.gw.GetTally(ctx, key.SessionID, key.LedgerLawID)
	if err != nil {
		return nil, fmt.Errorf("read tally %d/%d: %w", key.SessionID, key.LedgerLawID, err)
	}

	law := &model.Law{
		SessionID:   key.SessionID,
		LedgerLawID: key.LedgerLawID,
		Title:       state.Title,
		Description: state.Description,
		Status:      statusFromLedger(state.Active),
		FinalStatus: model.FinalPending,
		Tally:       tally,
		Active:      state.Active,
	}

	// A final status already recorded locally is write-once; carry it over.
	if existing, err := s.store.GetLaw(ctx, key); err == nil {
		law.FinalStatus = existing.FinalStatus
		if existing.Status == model.StatusFinalized {
			law.Status = model.StatusFinalized
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read projection %d/%d: %w", key.SessionID, key.LedgerLawID, err)
	}

	if err := s.store.UpsertLaw(ctx, law); err != nil {
		return nil, fmt.Errorf("upsert law %d/%d: %w", key.SessionID, key.LedgerLawID, err)
	}
	return law, nil
}

// SyncSession refreshes the session row and every law the ledger holds for it.
// The sync is strict: the first ledger or store failure aborts, leaving the
// projection partially refreshed but never inconsistent with the ledger.
func (s *Service) SyncSession(ctx context.Context, sessionID uint64) (*model.Session, error) {
	state, err := s.gw.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session %d: %w", sessionID, err)
	}

	session, err := s.upsertSession(ctx, state)
	if err != nil {
		return nil, err
	}

	for lawID := uint64(0); lawID < state.LawCount; lawID++ {
		if _, err := s.SyncLaw(ctx, model.LawKey{SessionID: sessionID, LedgerLawID: lawID}); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.TopicProjectionSynced, events.ProjectionSynced{
		SessionID: sessionID,
		LawCount:  int(state.LawCount),
	})
	s.logger.Info("session synced", "session", sessionID, "laws", state.LawCount)
	return session, nil
}

// RebuildSession regenerates a session's projection from ledger state alone.
// It is SyncSession plus pruning: any projection law the ledger does not know
// about is dropped. Off-chain metadata on surviving laws is kept, which makes
// this the recovery path after projection corruption or a restored backup.
func (s *Service) RebuildSession(ctx context.Context, sessionID uint64) (*model.Session, error) {
	state, err := s.gw.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read session %d: %w", sessionID, err)
	}

	stale, _, err := s.store.ListLaws(ctx, model.LawFilter{SessionID: &sessionID})
	if err != nil {
		return nil, fmt.Errorf("list projection laws %d: %w", sessionID, err)
	}
	for _, law := range stale {
		if law.LedgerLawID >= state.LawCount {
			if err := s.store.DeleteLaw(ctx, law.Key()); err != nil {
				return nil, fmt.Errorf("prune law %d/%d: %w", sessionID, law.LedgerLawID, err)
			}
			s.logger.Warn("pruned law unknown to ledger", "session", sessionID, "law", law.LedgerLawID)
		}
	}

	return s.SyncSession(ctx, sessionID)
}

// ApplyVoteDelta bumps the projection tally counter for a confirmed vote.
// This is the optimistic fast path: it keeps reads fresh between full syncs
// but is advisory only; the next SyncLaw overwrites it with ledger truth.
// PRESENT marks attendance and has no counter.
func (s *Service) ApplyVoteDelta(ctx context.Context, key model.LawKey, choice model.Choice) error {
	bucket, ok := choice.Bucket()
	if !ok {
		return nil
	}
	if err := s.store.ApplyTallyDelta(ctx, key, bucket); err != nil {
		return fmt.Errorf("tally delta %d/%d %s: %w", key.SessionID, key.LedgerLawID, bucket, err)
	}
	return nil
}

// upsertSession writes the ledger's session state over the projection row,
// creating it when missing. FinalizedAt is stamped the first time the session
// is seen inactive.
func (s *Service) upsertSession(ctx context.Context, state *ledger.SessionState) (*model.Session, error) {
	session, err := s.store.GetSession(ctx, state.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		session = &model.Session{
			ID:          state.ID,
			Date:        state.Date,
			Description: state.Description,
			Active:      state.Active,
			LawCount:    int(state.LawCount),
		}
		if !state.Active {
			now := time.Now().UTC()
			session.FinalizedAt = &now
		}
		if err := s.store.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("create session %d: %w", state.ID, err)
		}
		return session, nil
	case err != nil:
		return nil, fmt.Errorf("read projection session %d: %w", state.ID, err)
	}

	session.Date = state.Date
	session.Description = state.Description
	session.Active = state.Active
	session.LawCount = int(state.LawCount)
	if !state.Active && session.FinalizedAt == nil {
		now := time.Now().UTC()
		session.FinalizedAt = &now
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("update session %d: %w", state.ID, err)
	}
	return session, nil
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// statusFromLedger maps the contract's active flag to a projection status.
func statusFromLedger(active bool) model.LawStatus {
	if active {
		return model.StatusInDebate
	}
	return model.StatusFinalized
}
