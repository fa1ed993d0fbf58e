// Package ledger is the client-side gateway to the voting contract: it submits
// transactions, waits for confirmation, reads contract state, and subscribes to
// contract events. The ledger is the system of record; everything read here is
// authoritative.
package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/parlatech/plenum/internal/model"
)

// Gateway is the contract surface the rest of the engine consumes. It is
// implemented by EthGateway and by test doubles.
type Gateway interface {
	// Writes. Each submits a transaction, waits for confirmation, and returns
	// only once the write is durable. Ids assigned by the contract are
	// recovered from the confirmed receipt's event logs.
	CreateSession(ctx context.Context, date, description string) (*TxResult, uint64, error)
	AddLaw(ctx context.Context, sessionID uint64, title, description string) (*TxResult, uint64, error)
	RegisterVote(ctx context.Context, signer Signer, sessionID, lawID uint64, choice model.Choice) (*TxResult, error)
	FinalizeSession(ctx context.Context, sessionID uint64) (*TxResult, error)

	// Reads. Always reflect the latest confirmed contract state.
	GetSession(ctx context.Context, sessionID uint64) (*SessionState, error)
	GetLaw(ctx context.Context, sessionID, lawID uint64) (*LawState, error)
	GetTally(ctx context.Context, sessionID, lawID uint64) (model.Tally, error)
	SessionCount(ctx context.Context) (uint64, error)
	LawCount(ctx context.Context, sessionID uint64) (uint64, error)
	IsLegislator(ctx context.Context, address string) (bool, error)

	// Subscribe delivers decoded contract events on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(ctx context.Context, kinds ...EventKind) (<-chan Event, func(), error)

	Close() error
}

// TxResult describes a confirmed transaction.
type TxResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}

// SessionState is the contract's view of a session.
type SessionState struct {
	ID          uint64
	Date        string
	Description string
	Active      bool
	LawCount    uint64
}

// LawState is the contract's view of a law.
type LawState struct {
	SessionID   uint64
	LawID       uint64
	Title       string
	Description string
	Active      bool
}

// Signer signs transactions for a specific actor address.
type Signer interface {
	Address() common.Address
	SignerFn(chainID *big.Int) bind.SignerFn
}

// EventKind discriminates contract events.
type EventKind string

const (
	EventSessionCreated   EventKind = "SessionCreated"
	EventLawAdded         EventKind = "LawAdded"
	EventVoteRegistered   EventKind = "VoteRegistered"
	EventSessionFinalized EventKind = "SessionFinalized"
)

// Event is a decoded contract event.
type Event struct {
	Kind        EventKind    `json:"kind"`
	SessionID   uint64       `json:"session_id"`
	LawID       uint64       `json:"law_id,omitempty"`
	Voter       string       `json:"voter,omitempty"`
	Choice      model.Choice `json:"choice,omitempty"`
	TxHash      string       `json:"tx_hash"`
	BlockNumber uint64       `json:"block_number"`
}

// Config holds the gateway's connection parameters.
type Config struct {
	// RPCURL is the websocket or IPC endpoint of a ledger node. Log
	// subscriptions require a streaming transport.
	RPCURL string
	// ContractAddress is the deployed voting contract, hex-encoded.
	ContractAddress string
	// ChainID of the target network.
	ChainID *big.Int
	// Admin signs administrative transactions (create/finalize session,
	// add law). Optional for read-only gateways.
	Admin Signer
	// GasMarginPercent is added on top of the node's gas estimate to reduce
	// spurious failures from underestimation. Defaults to 10.
	GasMarginPercent uint64
	// ConfirmTimeout bounds the wait for a submitted transaction to confirm.
	// Defaults to 90s.
	ConfirmTimeout time.Duration
	// MaxRetries bounds retry attempts for transient RPC failures.
	// Defaults to 3. Reverts are never retried.
	MaxRetries int
}

func (c Config) withDefaults() Config {
	if c.GasMarginPercent == 0 {
		c.GasMarginPercent = 10
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 90 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	return c
}
