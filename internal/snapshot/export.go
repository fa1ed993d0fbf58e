// Package snapshot exports the projection as JSONL for audit and reporting
// consumers. The projection itself is rebuildable from the ledger; snapshots
// exist so downstream tools never need chain access.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/store"
)

// pageSize bounds each store read during export.
const pageSize = 500

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionCount int       `json:"session_count"`
	LawCount     int       `json:"law_count"`
	VoteCount    int       `json:"vote_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes all sessions, laws, and votes from the store as JSONL
// to w. Sessions are sorted by id, laws by (session_id, ledger_law_id).
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	sessions, err := allSessions(ctx, s)
	if err != nil {
		return err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})

	var laws []*model.Law
	for _, session := range sessions {
		sessionLaws, err := sessionLaws(ctx, s, session.ID)
		if err != nil {
			return err
		}
		laws = append(laws, sessionLaws...)
	}
	sort.Slice(laws, func(i, j int) bool {
		if laws[i].SessionID != laws[j].SessionID {
			return laws[i].SessionID < laws[j].SessionID
		}
		return laws[i].LedgerLawID < laws[j].LedgerLawID
	})

	var votes []*model.Vote
	for _, law := range laws {
		lawVotes, err := s.ListVotes(ctx, law.Key())
		if err != nil {
			return fmt.Errorf("list votes for %d/%d: %w", law.SessionID, law.LedgerLawID, err)
		}
		votes = append(votes, lawVotes...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionCount: len(sessions),
		LawCount:     len(laws),
		VoteCount:    len(votes),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, session := range sessions {
		if err := enc.Encode(record{Type: "session", Data: session}); err != nil {
			return fmt.Errorf("encode session %d: %w", session.ID, err)
		}
	}
	for _, law := range laws {
		if err := enc.Encode(record{Type: "law", Data: law}); err != nil {
			return fmt.Errorf("encode law %d/%d: %w", law.SessionID, law.LedgerLawID, err)
		}
	}
	for _, vote := range votes {
		if err := enc.Encode(record{Type: "vote", Data: vote}); err != nil {
			return fmt.Errorf("encode vote %d/%d/%s: %w", vote.SessionID, vote.LedgerLawID, vote.ActorAddress, err)
		}
	}

	return nil
}

func allSessions(ctx context.Context, s store.Store) ([]*model.Session, error) {
	var out []*model.Session
	for offset := 0; ; offset += pageSize {
		page, total, err := s.ListSessions(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
	}
}

func sessionLaws(ctx context.Context, s store.Store, sessionID uint64) ([]*model.Law, error) {
	var out []*model.Law
	for offset := 0; ; offset += pageSize {
		page, total, err := s.ListLaws(ctx, model.LawFilter{
			SessionID: &sessionID,
			Limit:     pageSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list laws for session %d: %w", sessionID, err)
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
	}
}
