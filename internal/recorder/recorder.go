// Package recorder drives the vote-casting flow: validate, submit to the
// ledger, then refresh the projection. The ledger write is the only step that
// can fail a vote; projection bookkeeping after confirmation is best effort.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/recon"
	"github.com/parlatech/plenum/internal/store"
)

// Recorder casts votes on behalf of signing legislators.
type Recorder struct {
	gw     ledger.Gateway
	store  store.Store
	recon  *recon.Service
	pub    events.Publisher
	logger *slog.Logger

	bookkeeping sync.WaitGroup
}

// New creates a vote recorder.
func New(gw ledger.Gateway, st store.Store, rc *recon.Service, pub events.Publisher, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{gw: gw, store: st, recon: rc, pub: pub, logger: logger}
}

// CastVote submits a vote transaction and waits for confirmation. Once the
// ledger accepts the vote it is durable and the call returns immediately;
// the projection delta, audit record, and event publish run in the
// background and never delay or fail a confirmed vote. Failures there are
// logged and repaired by the next sync.
func (r *Recorder) CastVote(ctx context.Context, signer ledger.Signer, sessionID, lawID uint64, choice model.Choice) (*model.Vote, error) {
	if !choice.IsValid() {
		return nil, fmt.Errorf("%w: %d", ledger.ErrInvalidChoice, uint8(choice))
	}
	if signer == nil {
		return nil, ledger.ErrUserRejected
	}

	tx, err := r.gw.RegisterVote(ctx, signer, sessionID, lawID, choice)
	if err != nil {
		return nil, err
	}

	vote := &model.Vote{
		SessionID:    sessionID,
		LedgerLawID:  lawID,
		ActorAddress: signer.Address().Hex(),
		Choice:       choice,
		ChoiceLabel:  choice.String(),
		TxRef:        tx.TxHash,
		BlockNumber:  tx.BlockNumber,
		CreatedAt:    time.Now().UTC(),
	}
	r.logger.Info("vote confirmed",
		"session", sessionID, "law", lawID,
		"actor", vote.ActorAddress, "choice", vote.ChoiceLabel, "tx", tx.TxHash)

	// Bookkeeping outlives the request: the caller's deadline must not
	// cancel projection updates for a vote the ledger already holds.
	bgCtx := context.WithoutCancel(ctx)
	r.bookkeeping.Add(1)
	go func() {
		defer r.bookkeeping.Done()
		key := model.LawKey{SessionID: sessionID, LedgerLawID: lawID}
		if err := r.recon.ApplyVoteDelta(bgCtx, key, choice); err != nil {
			r.logger.Warn("tally delta failed after confirmed vote",
				"session", sessionID, "law", lawID, "error", err)
		}
		if err := r.store.RecordVote(bgCtx, vote); err != nil {
			r.logger.Warn("vote audit record failed",
				"session", sessionID, "law", lawID, "tx", tx.TxHash, "error", err)
		}
		if r.pub != nil {
			if err := r.pub.Publish(bgCtx, events.TopicVoteRegistered, events.VoteRegistered{Vote: vote}); err != nil {
				r.logger.Warn("vote event publish failed", "tx", tx.TxHash, "error", err)
			}
		}
	}()
	return vote, nil
}

// Wait blocks until background bookkeeping for all returned votes has
// finished. Called on shutdown so confirmed votes reach the projection
// before the store closes.
func (r *Recorder) Wait() {
	r.bookkeeping.Wait()
}

// Eligible reports whether the address is a registered legislator. Purely
// advisory: the contract re-checks on every vote.
func (r *Recorder) Eligible(ctx context.Context, address string) (bool, error) {
	return r.gw.IsLegislator(ctx, address)
}
