package ledger

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Typed failure taxonomy. Errors from contract writes wrap one of these
// sentinels so callers can branch with errors.Is.
var (
	// ErrUnauthorized: the caller is not in the contract's legislator
	// registry (or lacks admin rights for administrative calls).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrSessionNotActive: the target session is not the active one.
	ErrSessionNotActive = errors.New("session not active")
	// ErrLawNotActive: the target law has been finalized or disabled.
	ErrLawNotActive = errors.New("law not active")
	// ErrInvalidChoice: the vote choice is outside the five-value enumeration.
	ErrInvalidChoice = errors.New("invalid vote choice")
	// ErrUserRejected: the actor declined the signing step.
	ErrUserRejected = errors.New("user rejected signing")
	// ErrInsufficientFunds: the signer cannot cover the transaction fee.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNetworkTransient: a retryable RPC failure (timeout, dropped
	// connection). Safe to retry with backoff.
	ErrNetworkTransient = errors.New("transient network error")
	// ErrLedgerReverted: the contract rejected the transaction for a reason
	// outside the specific cases above. Never retried automatically.
	ErrLedgerReverted = errors.New("ledger reverted")
	// ErrNotFound: the (session, law) pair is unknown to the contract.
	ErrNotFound = errors.New("not found on ledger")
)

// revertMappings pairs substrings of contract revert reasons with the typed
// sentinel they represent. The contract's require() messages are part of its
// published interface.
var revertMappings = []struct {
	substr   string
	sentinel error
}{
	{"not a registered legislator", ErrUnauthorized},
	{"only the administrator", ErrUnauthorized},
	{"session is not active", ErrSessionNotActive},
	{"law is not active", ErrLawNotActive},
	{"invalid vote choice", ErrInvalidChoice},
	{"no such session", ErrNotFound},
	{"no such law", ErrNotFound},
}

// classifyRevert maps a contract revert reason onto the typed taxonomy.
// Unrecognized reasons become ErrLedgerReverted with the reason attached.
func classifyRevert(reason string) error {
	lower := strings.ToLower(reason)
	for _, m := range revertMappings {
		if strings.Contains(lower, m.substr) {
			return fmt.Errorf("%w: %s", m.sentinel, reason)
		}
	}
	if reason == "" {
		return ErrLedgerReverted
	}
	return fmt.Errorf("%w: %s", ErrLedgerReverted, reason)
}

// classifySubmitError maps an error returned while submitting or estimating a
// transaction onto the typed taxonomy.
func classifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case strings.Contains(msg, "execution reverted"):
		// Estimation replays the call, so reverts surface here too.
		return classifyRevert(revertReasonFromError(err))
	case isTransient(err):
		return fmt.Errorf("%w: %v", ErrNetworkTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrLedgerReverted, err)
}

// revertReasonFromError extracts the human-readable reason from an
// "execution reverted: ..." error string.
func revertReasonFromError(err error) string {
	const prefix = "execution reverted"
	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), prefix)
	if idx < 0 {
		return msg
	}
	reason := msg[idx+len(prefix):]
	return strings.TrimSpace(strings.TrimPrefix(reason, ":"))
}

// isTransient reports whether an RPC error is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"eof",
		"too many requests",
		"websocket: close",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Retryable reports whether the typed error may be retried. Reverts and
// authorization failures are permanent; only transient network errors qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetworkTransient)
}
