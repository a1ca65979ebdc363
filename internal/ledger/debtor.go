package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ObligationStatus string

const (
	ObligationUnpaid  ObligationStatus = "unpaid"
	ObligationPartial ObligationStatus = "partial"
	ObligationPaid    ObligationStatus = "paid"
)

type ObligationKind string

const (
	KindRent      ObligationKind = "rent"
	KindUtilities ObligationKind = "utilities"
)

// MonthlyObligation is one billing period's expected amount for a debtor.
// Created by the accrual engine, mutated only by the payment allocator,
// never deleted. Corrections go through ledger reversals.
type MonthlyObligation struct {
	ID        int64            `json:"id"`
	DebtorID  string           `json:"debtor_id"`
	Month     string           `json:"month"`
	Kind      ObligationKind   `json:"kind"`
	Expected  decimal.Decimal  `json:"expected_amount"`
	Paid      decimal.Decimal  `json:"paid_amount"`
	Status    ObligationStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// Remaining returns the unpaid portion, never negative.
func (o *MonthlyObligation) Remaining() decimal.Decimal {
	rem := o.Expected.Sub(o.Paid)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// Recalc derives the status from the paid amount.
func (o *MonthlyObligation) Recalc() {
	switch {
	case o.Paid.GreaterThanOrEqual(o.Expected):
		o.Status = ObligationPaid
	case o.Paid.IsPositive():
		o.Status = ObligationPartial
	default:
		o.Status = ObligationUnpaid
	}
}

// Debtor is a student's receivable account. AccountCode maps 1:1 to an
// asset account in the chart; balances are always re-derivable from the
// ledger, obligations are the allocation bookkeeping.
type Debtor struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	AccountCode string              `json:"account_code"`
	MonthlyRent decimal.Decimal     `json:"monthly_rent"`
	MoveIn      time.Time           `json:"move_in"`
	Active      bool                `json:"active"`
	Obligations []MonthlyObligation `json:"monthly_obligations,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Outstanding returns the debtor's obligations with status != paid, in
// FIFO order: ascending month, then creation order for same-month ties.
// Obligations are assumed already sorted that way by the repository.
func (d *Debtor) Outstanding() []MonthlyObligation {
	var out []MonthlyObligation
	for _, o := range d.Obligations {
		if o.Status != ObligationPaid {
			out = append(out, o)
		}
	}
	return out
}

// Advance is an overpayment remainder held against a future billing period.
// It is consumed when the accrual engine creates that period's obligation.
type Advance struct {
	ID            int64           `json:"id"`
	DebtorID      string          `json:"debtor_id"`
	Month         string          `json:"month"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentRef    string          `json:"payment_ref"`
	ConsumedBy    int64           `json:"consumed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

const monthLayout = "2006-01"

// ParseMonth parses a YYYY-MM billing period into the first day of that month (UTC).
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(monthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}

// MonthOf formats t's billing period as YYYY-MM.
func MonthOf(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// NextMonth returns the period following month. month must be valid.
func NextMonth(month string) string {
	t, err := ParseMonth(month)
	if err != nil {
		return month
	}
	return MonthOf(t.AddDate(0, 1, 0))
}

// DaysInMonth returns the number of calendar days in the given period.
func DaysInMonth(month string) (int, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return 0, err
	}
	return t.AddDate(0, 1, -1).Day(), nil
}
