package model

import (
	"fmt"
	"time"
)

// Choice is the five-value vote enumeration defined by the ledger contract.
// The numeric values are part of the wire format and must not change.
type Choice uint8

const (
	ChoiceAbsent  Choice = 0
	ChoicePresent Choice = 1
	ChoiceFavor   Choice = 2
	ChoiceAgainst Choice = 3
	ChoiceAbstain Choice = 4
)

// choiceLabels is the single mapping between human-readable action labels and
// ledger enum codes. Both the vote-cast path and the optimistic tally-delta
// path go through this table so the two can never drift apart.
var choiceLabels = map[Choice]string{
	ChoiceAbsent:  "absent",
	ChoicePresent: "present",
	ChoiceFavor:   "favor",
	ChoiceAgainst: "against",
	ChoiceAbstain: "abstain",
}

// String returns the action label for the choice, or "unknown(n)" for values
// outside the enumeration.
func (c Choice) String() string {
	if s, ok := choiceLabels[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// IsValid checks whether the choice is one of the five enumerated values.
func (c Choice) IsValid() bool {
	_, ok := choiceLabels[c]
	return ok
}

// ParseChoice maps an action label back to its ledger enum code.
func ParseChoice(s string) (Choice, error) {
	for c, label := range choiceLabels {
		if label == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown vote choice %q", s)
}

// TallyBucket identifies a counter within a Tally.
type TallyBucket string

const (
	BucketFavor       TallyBucket = "favor"
	BucketContra      TallyBucket = "contra"
	BucketAbstentions TallyBucket = "abstentions"
	BucketAbsent      TallyBucket = "absent"
)

// Bucket returns the tally counter the choice feeds, or false when the choice
// carries no count (PRESENT marks attendance without taking a position).
func (c Choice) Bucket() (TallyBucket, bool) {
	switch c {
	case ChoiceFavor:
		return BucketFavor, true
	case ChoiceAgainst:
		return BucketContra, true
	case ChoiceAbstain:
		return BucketAbstentions, true
	case ChoiceAbsent:
		return BucketAbsent, true
	}
	return "", false
}

// Apply increments the tally counter for the choice, if it has one.
func (t *Tally) Apply(c Choice) {
	switch c {
	case ChoiceFavor:
		t.Favor++
	case ChoiceAgainst:
		t.Contra++
	case ChoiceAbstain:
		t.Abstentions++
	case ChoiceAbsent:
		t.Absent++
	}
}

// Vote is the projection's audit record of a confirmed ledger vote. The ledger
// enforces at most one vote per (actor, session, law); the projection never
// second-guesses that.
type Vote struct {
	SessionID    uint64    `json:"session_id"`
	LedgerLawID  uint64    `json:"ledger_law_id"`
	ActorAddress string    `json:"actor_address"`
	Choice       Choice    `json:"choice"`
	ChoiceLabel  string    `json:"choice_label,omitempty"`
	TxRef        string    `json:"tx_ref"`
	BlockNumber  uint64    `json:"block_number,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
