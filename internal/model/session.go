package model

import "time"

// Session is a time-bounded voting session. The ledger assigns sequential,
// immutable ids; at most one session is active at a time (contract-enforced).
type Session struct {
	ID          uint64     `json:"id"`
	Date        string     `json:"date"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	LawCount    int        `json:"law_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
}
