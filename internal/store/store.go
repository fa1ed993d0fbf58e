package store

import (
	"context"

	"github.com/parlatech/plenum/internal/model"
)

// Store defines the projection persistence interface. The ledger contract is
// the source of truth; the projection holds a queryable copy plus off-chain
// metadata the contract never sees.
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id uint64) (*model.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*model.Session, int, error) // returns sessions, total count, error
	UpdateSession(ctx context.Context, session *model.Session) error

	// Laws
	UpsertLaw(ctx context.Context, law *model.Law) error
	GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error)
	ListLaws(ctx context.Context, filter model.LawFilter) ([]*model.Law, int, error) // returns laws, total count, error
	UpdateLaw(ctx context.Context, law *model.Law) error
	ApplyTallyDelta(ctx context.Context, key model.LawKey, bucket model.TallyBucket) error
	DeleteLaw(ctx context.Context, key model.LawKey) error

	// Votes
	RecordVote(ctx context.Context, vote *model.Vote) error
	ListVotes(ctx context.Context, key model.LawKey) ([]*model.Vote, error)

	// Lifecycle
	Close() error
}
