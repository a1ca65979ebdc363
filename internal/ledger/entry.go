package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourcePayment        Source = "payment"
	SourceInvoice        Source = "invoice"
	SourceExpenseAccrual Source = "expense_accrual"
	SourceExpensePayment Source = "expense_payment"
	SourceTransfer       Source = "transfer"
	SourceManual         Source = "manual"
	SourceReversal       Source = "reversal"
)

var AllSources = []Source{
	SourcePayment,
	SourceInvoice,
	SourceExpenseAccrual,
	SourceExpensePayment,
	SourceTransfer,
	SourceManual,
	SourceReversal,
}

// CashSources are the sources that represent actual cash or bank movement.
// Cash-basis reports are restricted to these.
var CashSources = []Source{
	SourcePayment,
	SourceExpensePayment,
	SourceTransfer,
	SourceManual,
}

func ValidSource(s Source) bool {
	for _, src := range AllSources {
		if src == s {
			return true
		}
	}
	return false
}

func IsCashSource(s Source) bool {
	for _, src := range CashSources {
		if src == s {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPosted   Status = "posted"
	StatusReversed Status = "reversed"
)

// Line is one side of a double-entry. Exactly one of Debit or Credit is
// nonzero. AccountType is denormalized at write time so historic entries
// keep their classification even if the account is later recategorized.
type Line struct {
	ID          int64           `json:"id,omitempty"`
	AccountCode string          `json:"account_code"`
	AccountType AccountType     `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// Entry is an atomic, balanced financial event. Entries are immutable once
// posted; corrections are made with a compensating reversal entry.
type Entry struct {
	TransactionID string    `json:"transaction_id"`
	Date          time.Time `json:"date"`
	Description   string    `json:"description"`
	Reference     string    `json:"reference,omitempty"`
	Source        Source    `json:"source"`
	SourceID      string    `json:"source_id,omitempty"`
	Month         string    `json:"month,omitempty"`
	Status        Status    `json:"status"`
	Lines         []Line    `json:"lines"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Validate checks entry invariants: at least 2 lines, each line carries
// exactly one non-negative side, and debits equal credits.
func (e *Entry) Validate() error {
	if e.Description == "" {
		return ErrEmptyDescription
	}
	if !ValidSource(e.Source) {
		return fmt.Errorf("%w: %q", ErrInvalidSource, e.Source)
	}
	if len(e.Lines) < 2 {
		return ErrTooFewLines
	}

	debits := decimal.Zero
	credits := decimal.Zero
	for i, l := range e.Lines {
		if l.AccountCode == "" {
			return fmt.Errorf("%w: line %d has no account", ErrInvalidAccountCode, i)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d", ErrNegativeAmount, i)
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return fmt.Errorf("%w: line %d", ErrInvalidLine, i)
		}
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s, credits %s", ErrUnbalancedEntry, debits, credits)
	}
	return nil
}

// Total returns the entry total, i.e. the sum of debits (== sum of credits
// for a valid entry).
func (e *Entry) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// Reversal builds the compensating entry for e: every line's debit and
// credit swapped, tagged source=reversal and back-referencing the original
// transaction id. The original entry is not modified.
func (e *Entry) Reversal(date time.Time) *Entry {
	rev := &Entry{
		Date:        date,
		Description: "Reversal of " + e.Description,
		Reference:   e.Reference,
		Source:      SourceReversal,
		SourceID:    e.TransactionID,
		Month:       e.Month,
		Status:      StatusPosted,
	}
	for _, l := range e.Lines {
		rev.Lines = append(rev.Lines, Line{
			AccountCode: l.AccountCode,
			AccountType: l.AccountType,
			Debit:       l.Credit,
			Credit:      l.Debit,
			Description: l.Description,
		})
	}
	return rev
}

// EntryFilter narrows QueryEntries. Zero values mean "no constraint".
type EntryFilter struct {
	AccountCode string
	Source      Source
	Status      Status
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}
