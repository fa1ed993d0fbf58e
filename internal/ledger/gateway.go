package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/parlatech/plenum/internal/model"
)

// EthGateway talks to the voting contract over an Ethereum-compatible RPC
// endpoint. Each instance owns its connection and signer; there is no
// package-level connection state.
type EthGateway struct {
	cfg      Config
	client   *ethclient.Client
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
	logger   *slog.Logger
}

// Compile-time check that EthGateway implements Gateway.
var _ Gateway = (*EthGateway)(nil)

// Dial connects to the ledger node and binds the voting contract.
// Close must be called when the gateway is no longer needed.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*EthGateway, error) {
	cfg = cfg.withDefaults()
	if cfg.ContractAddress == "" {
		return nil, fmt.Errorf("ledger: contract address is required")
	}
	if cfg.ChainID == nil {
		return nil, fmt.Errorf("ledger: chain id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger node at %s: %w", cfg.RPCURL, err)
	}

	parsed, err := parseContractABI()
	if err != nil {
		client.Close()
		return nil, err
	}

	address := common.HexToAddress(cfg.ContractAddress)
	return &EthGateway{
		cfg:      cfg,
		client:   client,
		abi:      parsed,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		logger:   logger,
	}, nil
}

// Close releases the RPC connection. Outstanding subscriptions are dropped.
func (g *EthGateway) Close() error {
	g.client.Close()
	return nil
}

// CreateSession submits the session-creation transaction and returns the
// ledger-assigned session id from the confirmed SessionCreated log.
func (g *EthGateway) CreateSession(ctx context.Context, date, description string) (*TxResult, uint64, error) {
	res, logs, err := g.transact(ctx, g.cfg.Admin, "createSession", date, description)
	if err != nil {
		return nil, 0, err
	}
	ev, ok := g.findEvent(logs, EventSessionCreated)
	if !ok {
		return nil, 0, fmt.Errorf("createSession confirmed without a SessionCreated log (tx %s)", res.TxHash)
	}
	return res, ev.SessionID, nil
}

// AddLaw submits a law to an active session and returns the ledger-assigned
// law id from the confirmed LawAdded log.
func (g *EthGateway) AddLaw(ctx context.Context, sessionID uint64, title, description string) (*TxResult, uint64, error) {
	res, logs, err := g.transact(ctx, g.cfg.Admin, "addLaw", new(big.Int).SetUint64(sessionID), title, description)
	if err != nil {
		return nil, 0, err
	}
	ev, ok := g.findEvent(logs, EventLawAdded)
	if !ok {
		return nil, 0, fmt.Errorf("addLaw confirmed without a LawAdded log (tx %s)", res.TxHash)
	}
	return res, ev.LawID, nil
}

// RegisterVote submits a vote signed by the given actor. The contract enforces
// legislator registration, session/law activity, and single-vote semantics.
func (g *EthGateway) RegisterVote(ctx context.Context, signer Signer, sessionID, lawID uint64, choice model.Choice) (*TxResult, error) {
	if !choice.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}
	res, _, err := g.transact(ctx, signer, "registerVote",
		new(big.Int).SetUint64(sessionID), new(big.Int).SetUint64(lawID), uint8(choice))
	return res, err
}

// FinalizeSession marks the session inactive on the ledger. Terminal.
func (g *EthGateway) FinalizeSession(ctx context.Context, sessionID uint64) (*TxResult, error) {
	res, _, err := g.transact(ctx, g.cfg.Admin, "finalizeSession", new(big.Int).SetUint64(sessionID))
	return res, err
}

// GetSession reads a session's canonical state.
func (g *EthGateway) GetSession(ctx context.Context, sessionID uint64) (*SessionState, error) {
	var out []any
	err := g.call(ctx, &out, "getSession", new(big.Int).SetUint64(sessionID))
	if err != nil {
		return nil, err
	}
	if len(out) < 4 {
		return nil, fmt.Errorf("getSession returned %d values", len(out))
	}
	return &SessionState{
		ID:          sessionID,
		Date:        out[0].(string),
		Description: out[1].(string),
		Active:      out[2].(bool),
		LawCount:    toUint64(out[3]),
	}, nil
}

// GetLaw reads a law's canonical state.
func (g *EthGateway) GetLaw(ctx context.Context, sessionID, lawID uint64) (*LawState, error) {
	var out []any
	err := g.call(ctx, &out, "getLaw", new(big.Int).SetUint64(sessionID), new(big.Int).SetUint64(lawID))
	if err != nil {
		return nil, err
	}
	if len(out) < 3 {
		return nil, fmt.Errorf("getLaw returned %d values", len(out))
	}
	return &LawState{
		SessionID:   sessionID,
		LawID:       lawID,
		Title:       out[0].(string),
		Description: out[1].(string),
		Active:      out[2].(bool),
	}, nil
}

// GetTally reads the confirmed vote counts for a law.
func (g *EthGateway) GetTally(ctx context.Context, sessionID, lawID uint64) (model.Tally, error) {
	var out []any
	err := g.call(ctx, &out, "getTally", new(big.Int).SetUint64(sessionID), new(big.Int).SetUint64(lawID))
	if err != nil {
		return model.Tally{}, err
	}
	if len(out) < 4 {
		return model.Tally{}, fmt.Errorf("getTally returned %d values", len(out))
	}
	return model.Tally{
		Favor:       toUint64(out[0]),
		Contra:      toUint64(out[1]),
		Abstentions: toUint64(out[2]),
		Absent:      toUint64(out[3]),
	}, nil
}

// SessionCount returns the number of sessions ever created.
func (g *EthGateway) SessionCount(ctx context.Context) (uint64, error) {
	var out []any
	if err := g.call(ctx, &out, "sessionCount"); err != nil {
		return 0, err
	}
	if len(out) < 1 {
		return 0, fmt.Errorf("sessionCount returned no values")
	}
	return toUint64(out[0]), nil
}

// LawCount returns the number of laws under a session.
func (g *EthGateway) LawCount(ctx context.Context, sessionID uint64) (uint64, error) {
	state, err := g.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return state.LawCount, nil
}

// IsLegislator reports whether the address is in the contract's registry.
func (g *EthGateway) IsLegislator(ctx context.Context, address string) (bool, error) {
	var out []any
	if err := g.call(ctx, &out, "isLegislator", common.HexToAddress(address)); err != nil {
		return false, err
	}
	if len(out) < 1 {
		return false, fmt.Errorf("isLegislator returned no values")
	}
	return out[0].(bool), nil
}

// call performs a read with transient-error retry.
func (g *EthGateway) call(ctx context.Context, out *[]any, method string, args ...any) error {
	return withRetry(ctx, g.cfg.MaxRetries, g.logger, method, func() error {
		*out = (*out)[:0]
		if err := g.contract.Call(&bind.CallOpts{Context: ctx}, out, method, args...); err != nil {
			return classifySubmitError(err)
		}
		return nil
	})
}

// transact packs, prices, signs, submits, and waits for a contract write.
// A transaction passes through submitted and pending states; only the
// confirmed receipt returned here is durable. Transient failures before
// submission are retried; anything after submission is not.
func (g *EthGateway) transact(ctx context.Context, signer Signer, method string, args ...any) (*TxResult, []types.Log, error) {
	if signer == nil {
		return nil, nil, fmt.Errorf("ledger: no signer configured for %s", method)
	}

	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("pack %s: %w", method, err)
	}
	from := signer.Address()

	var (
		nonce    uint64
		gasPrice *big.Int
		gasLimit uint64
	)
	err = withRetry(ctx, g.cfg.MaxRetries, g.logger, method, func() error {
		var rerr error
		nonce, rerr = g.client.PendingNonceAt(ctx, from)
		if rerr != nil {
			return classifySubmitError(rerr)
		}
		gasPrice, rerr = g.client.SuggestGasPrice(ctx)
		if rerr != nil {
			return classifySubmitError(rerr)
		}
		est, rerr := g.client.EstimateGas(ctx, ethereum.CallMsg{
			From: from,
			To:   &g.address,
			Data: data,
		})
		if rerr != nil {
			return classifySubmitError(rerr)
		}
		gasLimit = withMargin(est, g.cfg.GasMarginPercent)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &g.address,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := signer.SignerFn(g.cfg.ChainID)(from, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("sign %s: %w", method, err)
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return nil, nil, classifySubmitError(err)
	}
	g.logger.Debug("transaction submitted",
		"method", method, "tx", signed.Hash().Hex(), "gas_limit", gasLimit)

	confirmCtx, cancel := context.WithTimeout(ctx, g.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(confirmCtx, g.client, signed)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: waiting for %s confirmation: %v", ErrNetworkTransient, method, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		reason := g.revertReason(ctx, signed, from, receipt.BlockNumber)
		return nil, nil, classifyRevert(reason)
	}

	res := &TxResult{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}
	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, *l)
	}
	g.logger.Info("transaction confirmed",
		"method", method, "tx", res.TxHash, "block", res.BlockNumber, "gas_used", res.GasUsed)
	return res, logs, nil
}

// revertReason replays a failed transaction as a call at its block to recover
// the contract's revert message. Best-effort: an empty string means the node
// would not disclose a reason.
func (g *EthGateway) revertReason(ctx context.Context, tx *types.Transaction, from common.Address, blockNumber *big.Int) string {
	msg := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	result, err := g.client.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return revertReasonFromError(err)
	}
	reason, err := abi.UnpackRevert(result)
	if err != nil {
		return ""
	}
	return reason
}

// findEvent returns the first decoded event of the given kind in a receipt's logs.
func (g *EthGateway) findEvent(logs []types.Log, kind EventKind) (Event, bool) {
	for _, l := range logs {
		ev, ok, err := decodeLog(g.abi, l)
		if err == nil && ok && ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

// withMargin adds the configured percentage on top of a gas estimate.
func withMargin(estimate, marginPercent uint64) uint64 {
	return estimate + estimate*marginPercent/100
}

// withRetry runs fn, retrying transient failures with capped exponential
// backoff. Permanent errors (reverts, authorization) return immediately.
func withRetry(ctx context.Context, attempts int, logger *slog.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 250 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		logger.Warn("transient ledger error, retrying", "op", op, "attempt", i+1, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 4*time.Second {
			backoff *= 2
		}
	}
	return err
}
