package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/parlatech/plenum/internal/events"
	"github.com/parlatech/plenum/internal/idgen"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/outcome"
)

// LawOutcome is the finalization result for one law.
type LawOutcome struct {
	Key         model.LawKey      `json:"key"`
	Title       string            `json:"title,omitempty"`
	FinalStatus model.FinalStatus `json:"final_status,omitempty"`
	Tally       model.Tally       `json:"tally"`
	Error       string            `json:"error,omitempty"`
}

// FinalizeReport summarizes a session finalization run.
type FinalizeReport struct {
	ReportID    string       `json:"report_id"`
	SessionID   uint64       `json:"session_id"`
	TxHash      string       `json:"tx_hash"`
	BlockNumber uint64       `json:"block_number"`
	Outcomes    []LawOutcome `json:"outcomes"`
	Failed      int          `json:"failed"`
	SyncError   string       `json:"sync_error,omitempty"`
	FinalizedAt time.Time    `json:"finalized_at"`
}

// FinalizeSession closes a session on the ledger and settles every law in the
// projection. The ledger write comes first and must succeed; once the session
// is durably closed, each law is settled in isolation so one bad law cannot
// block the rest. Per-law failures are collected in the report, not returned:
// the ledger already holds the truth and a later resync repairs the gaps.
func (s *Service) FinalizeSession(ctx context.Context, sessionID uint64) (*FinalizeReport, error) {
	tx, err := s.gw.FinalizeSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("finalize session %d: %w", sessionID, err)
	}

	reportID, err := idgen.Generate()
	if err != nil {
		return nil, err
	}
	report := &FinalizeReport{
		ReportID:    reportID,
		SessionID:   sessionID,
		TxHash:      tx.TxHash,
		BlockNumber: tx.BlockNumber,
		FinalizedAt: time.Now().UTC(),
	}

	state, err := s.gw.GetSession(ctx, sessionID)
	if err != nil {
		// The session is closed on the ledger; report that even though the
		// projection could not be refreshed.
		s.logger.Error("session finalized on ledger but sync failed",
			"session", sessionID, "tx", tx.TxHash, "error", err)
		report.SyncError = err.Error()
		return report, nil
	}

	session, err := s.upsertSession(ctx, state)
	if err != nil {
		s.logger.Error("session row update failed after finalize",
			"session", sessionID, "error", err)
	}

	for lawID := uint64(0); lawID < state.LawCount; lawID++ {
		key := model.LawKey{SessionID: sessionID, LedgerLawID: lawID}
		report.Outcomes = append(report.Outcomes, s.settleLaw(ctx, key))
	}
	for _, o := range report.Outcomes {
		if o.Error != "" {
			report.Failed++
		}
	}

	if session != nil {
		s.publish(ctx, events.TopicSessionFinalized, events.SessionFinalized{
			Session: session,
			TxRef:   tx.TxHash,
		})
	}
	s.logger.Info("session finalized",
		"session", sessionID, "laws", len(report.Outcomes), "failed", report.Failed, "report", reportID)
	return report, nil
}

// settleLaw computes and records the terminal status of one law from the
// projection's last-known tally. No ledger re-read happens here: settlement
// must not stall on a flaky node, and a follow-up session sync repairs any
// tally the projection had not yet caught up on.
func (s *Service) settleLaw(ctx context.Context, key model.LawKey) LawOutcome {
	out := LawOutcome{Key: key}

	law, err := s.store.GetLaw(ctx, key)
	if err != nil {
		out.Error = fmt.Sprintf("law not in projection: %v", err)
		return out
	}

	out.Title = law.Title
	out.Tally = law.Tally

	// Write-once: a law settled by an earlier run keeps its status.
	if law.FinalStatus == model.FinalPending {
		law.FinalStatus = outcome.Decide(law.Tally)
	}
	law.Status = model.StatusFinalized
	law.Active = false

	if err := s.store.UpdateLaw(ctx, law); err != nil {
		out.Error = fmt.Sprintf("record outcome: %v", err)
		return out
	}
	out.FinalStatus = law.FinalStatus

	s.publish(ctx, events.TopicLawFinalized, events.LawFinalized{
		Key:         key,
		FinalStatus: law.FinalStatus,
		Tally:       law.Tally,
	})
	return out
}
