// Package client provides a transport-agnostic interface for the plenum
// service and an HTTP/JSON implementation that talks to the plenum REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/parlatech/plenum/internal/attendance"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/recon"
)

// EngineClient is the interface that all plenum CLI commands use to
// communicate with the engine server. It is implemented by HTTPClient
// (default) and can be backed by any transport.
type EngineClient interface {
	// Sessions
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*model.Session, error)
	GetSession(ctx context.Context, id uint64) (*model.Session, error)
	ListSessions(ctx context.Context, limit, offset int) (*ListSessionsResponse, error)
	ActiveSession(ctx context.Context) (*model.Session, error)
	FinalizeSession(ctx context.Context, id uint64) (*recon.FinalizeReport, error)
	SyncSession(ctx context.Context, id uint64) (*model.Session, error)
	RebuildSession(ctx context.Context, id uint64) (*model.Session, error)

	// Laws
	AddLaw(ctx context.Context, sessionID uint64, req *AddLawRequest) (*model.Law, error)
	GetLaw(ctx context.Context, key model.LawKey) (*model.Law, error)
	UpdateLawMetadata(ctx context.Context, key model.LawKey, req *AddLawRequest) (*model.Law, error)
	SyncLaw(ctx context.Context, key model.LawKey) (*model.Law, error)
	ListLaws(ctx context.Context, req *ListLawsRequest) (*ListLawsResponse, error)

	// Votes
	CastVote(ctx context.Context, key model.LawKey, choice, privateKeyHex string) (*model.Vote, error)
	ListVotes(ctx context.Context, key model.LawKey) (*ListVotesResponse, error)

	// Legislators
	Eligibility(ctx context.Context, address string) (bool, error)
	Attendance(ctx context.Context, sessionID uint64, staleThresholdSecs int) (*AttendanceResponse, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// CreateSessionRequest holds parameters for opening a plenary session.
type CreateSessionRequest struct {
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// AddLawRequest holds a new law's ledger fields plus off-chain metadata.
// It doubles as the metadata-update payload for PATCH.
type AddLawRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Author       string          `json:"author,omitempty"`
	Party        string          `json:"party,omitempty"`
	Category     string          `json:"category,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	DocumentRefs json.RawMessage `json:"document_refs,omitempty"`
}

// ListLawsRequest holds filter parameters for listing laws.
type ListLawsRequest struct {
	SessionID   *uint64
	Status      []string
	FinalStatus []string
	Category    []string
	Author      string
	Active      *bool
	Search      string
	Sort        string
	Limit       int
	Offset      int
}

// ListSessionsResponse is the response from ListSessions.
type ListSessionsResponse struct {
	Sessions []*model.Session `json:"sessions"`
	Total    int              `json:"total"`
}

// ListLawsResponse is the response from ListLaws.
type ListLawsResponse struct {
	Laws        []*model.Law `json:"laws"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"total_pages"`
	CurrentPage int          `json:"current_page"`
}

// ListVotesResponse is the response from ListVotes.
type ListVotesResponse struct {
	Votes []*model.Vote `json:"votes"`
	Total int           `json:"total"`
}

// AttendanceResponse is the response from Attendance.
type AttendanceResponse struct {
	Attendance []attendance.Entry `json:"attendance"`
	Total      int                `json:"total"`
}
