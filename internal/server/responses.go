package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func mapError(err error) int {
	var consistency *ledger.ConsistencyError
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, ledger.ErrDebtorNotFound),
		errors.Is(err, ledger.ErrObligationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAccount),
		errors.Is(err, ledger.ErrDuplicateDebtor):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrStalePlan):
		// Caller should re-preview and retry.
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnbalancedEntry),
		errors.Is(err, ledger.ErrTooFewLines),
		errors.Is(err, ledger.ErrEmptyDescription),
		errors.Is(err, ledger.ErrInvalidSource),
		errors.Is(err, ledger.ErrInvalidLine),
		errors.Is(err, ledger.ErrNegativeAmount),
		errors.Is(err, ledger.ErrInvalidAccount),
		errors.Is(err, ledger.ErrInvalidAccountCode),
		errors.Is(err, ledger.ErrInvalidAccountType),
		errors.Is(err, ledger.ErrAccountInactive),
		errors.Is(err, ledger.ErrInvalidMonth),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrUnknownMethod):
		return http.StatusBadRequest
	case errors.As(err, &consistency):
		// The books are inconsistent; automated reporting halts for the
		// period until someone reconciles by hand.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseDate reads a YYYY-MM-DD query value, defaulting to now (UTC).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// parsePeriod reads from/to query values, defaulting to the current month.
func parsePeriod(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, err
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, err
		}
		to = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return from, to, nil
}
