package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAccount      = errors.New("invalid account")
	ErrInvalidAccountCode  = errors.New("invalid account code")
	ErrInvalidAccountType  = errors.New("invalid account type")
	ErrDuplicateAccount    = errors.New("account already exists")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrUnbalancedEntry     = errors.New("entry lines do not balance")
	ErrTooFewLines         = errors.New("entry must have at least 2 lines")
	ErrEmptyDescription    = errors.New("entry description is required")
	ErrInvalidSource       = errors.New("invalid entry source")
	ErrInvalidLine         = errors.New("line must have exactly one of debit or credit set")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrEntryNotFound       = errors.New("entry not found")
	ErrDebtorNotFound      = errors.New("debtor not found")
	ErrDuplicateDebtor     = errors.New("debtor already exists")
	ErrObligationNotFound  = errors.New("obligation not found")
	ErrInvalidMonth        = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidAmount       = errors.New("payment amount must be positive")
	ErrUnknownMethod       = errors.New("unknown payment method")
	ErrStalePlan           = errors.New("allocation plan is stale, obligations changed since preview")
)

// ConsistencyError reports a violated accounting identity. It is fatal for
// the report that detects it and requires manual reconciliation; it is never
// patched by posting synthetic adjustment entries.
type ConsistencyError struct {
	Identity string
	AsOf     time.Time
	Left     decimal.Decimal
	Right    decimal.Decimal
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("accounting identity %q violated as of %s: %s != %s (gap %s)",
		e.Identity, e.AsOf.Format("2006-01-02"), e.Left, e.Right, e.Left.Sub(e.Right).Abs())
}
