package events

import (
	"context"

	"github.com/parlatech/plenum/internal/model"
)

// Event topic constants
const (
	TopicSessionCreated   = "plenum.session.created"
	TopicSessionFinalized = "plenum.session.finalized"
	TopicLawAdded         = "plenum.law.added"
	TopicLawFinalized     = "plenum.law.finalized"
	TopicVoteRegistered   = "plenum.vote.registered"
	TopicProjectionSynced = "plenum.projection.synced"
)

// Event types

type SessionCreated struct {
	Session *model.Session `json:"session"`
	TxRef   string         `json:"tx_ref,omitempty"`
}

type SessionFinalized struct {
	Session *model.Session `json:"session"`
	TxRef   string         `json:"tx_ref,omitempty"`
}

type LawAdded struct {
	Law   *model.Law `json:"law"`
	TxRef string     `json:"tx_ref,omitempty"`
}

type LawFinalized struct {
	Key         model.LawKey      `json:"key"`
	FinalStatus model.FinalStatus `json:"final_status"`
	Tally       model.Tally       `json:"tally"`
}

type VoteRegistered struct {
	Vote *model.Vote `json:"vote"`
}

// ProjectionSynced is emitted after a full session resync completes.
type ProjectionSynced struct {
	SessionID uint64 `json:"session_id"`
	LawCount  int    `json:"law_count"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
