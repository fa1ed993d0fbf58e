package model

import (
	"encoding/json"
	"time"
)

// LawStatus represents the debate state of a law within its session.
type LawStatus string

const (
	StatusPending   LawStatus = "pending"
	StatusInDebate  LawStatus = "in_debate"
	StatusFinalized LawStatus = "finalized"
)

// String returns the string representation of the status.
func (s LawStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s LawStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInDebate, StatusFinalized:
		return true
	}
	return false
}

// FinalStatus is the terminal outcome of a law. It is write-once: set during
// session finalization and never mutated afterward.
type FinalStatus string

const (
	FinalPending  FinalStatus = "pending"
	FinalApproved FinalStatus = "approved"
	FinalRejected FinalStatus = "rejected"
)

// String returns the string representation of the final status.
func (s FinalStatus) String() string {
	return string(s)
}

// IsValid checks whether the final status is a known value.
func (s FinalStatus) IsValid() bool {
	switch s {
	case FinalPending, FinalApproved, FinalRejected:
		return true
	}
	return false
}

// Tally holds the aggregated vote counts for a law as the ledger reports them.
type Tally struct {
	Favor       uint64 `json:"favor"`
	Contra      uint64 `json:"contra"`
	Abstentions uint64 `json:"abstentions"`
	Absent      uint64 `json:"absent"`
}

// Total returns the number of position votes cast (absences excluded).
func (t Tally) Total() uint64 {
	return t.Favor + t.Contra + t.Abstentions
}

// Law is the projection record for a law proposal. The ledger owns the
// authoritative copy of title, description, tally, and lifecycle flags;
// author, party, category, tags, and document refs are off-chain metadata
// managed only in the projection.
type Law struct {
	SessionID    uint64          `json:"session_id"`
	LedgerLawID  uint64          `json:"ledger_law_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Author       string          `json:"author,omitempty"`
	Party        string          `json:"party,omitempty"`
	Category     string          `json:"category,omitempty"`
	Status       LawStatus       `json:"status"`
	FinalStatus  FinalStatus     `json:"final_status"`
	Tally        Tally           `json:"tally"`
	Active       bool            `json:"active"`
	Tags         []string        `json:"tags,omitempty"`
	DocumentRefs json.RawMessage `json:"document_refs,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Key returns the composite projection key for the law.
func (l *Law) Key() LawKey {
	return LawKey{SessionID: l.SessionID, LedgerLawID: l.LedgerLawID}
}

// LawKey is the composite identifier of a law: the session it belongs to plus
// the ledger-assigned law index within that session.
type LawKey struct {
	SessionID   uint64 `json:"session_id"`
	LedgerLawID uint64 `json:"ledger_law_id"`
}
