package server

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/parlatech/plenum/internal/ledger"
	"github.com/parlatech/plenum/internal/model"
	"github.com/parlatech/plenum/internal/registry"
)

// httpStatusFor maps engine errors to HTTP status codes. Ledger revert
// reasons carry precise meaning, so each sentinel gets its own status.
func httpStatusFor(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInvalidChoice):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUserRejected):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, registry.ErrNoActiveSession),
		errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrSessionNotActive),
		errors.Is(err, ledger.ErrLawNotActive):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrNetworkTransient):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrLedgerReverted):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeEngineError renders err with its mapped status.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, httpStatusFor(err), err.Error())
}
