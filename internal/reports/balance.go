package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

// EntrySource is the read-only view of the ledger store the reporting side
// consumes. Balances are always derived by replaying entries; no stored
// balance field is ever trusted as the system of record.
type EntrySource interface {
	QueryEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error)
}

// AccountSource resolves account metadata for report presentation.
type AccountSource interface {
	GetAccount(ctx context.Context, code string) (*ledger.Account, error)
}

// Aggregator computes account and debtor balances as of a date by replaying
// the ledger. Reversed entries and their compensating reversals are both
// included; they cancel, preserving the audit trail in every total.
type Aggregator struct {
	entries EntrySource
}

func NewAggregator(entries EntrySource) *Aggregator {
	return &Aggregator{entries: entries}
}

// signed converts a line into the account's natural sign: debit-normal for
// assets and expenses, credit-normal for liabilities, equity and income.
func signed(l ledger.Line) decimal.Decimal {
	switch l.AccountType {
	case ledger.TypeAsset, ledger.TypeExpense:
		return l.Debit.Sub(l.Credit)
	default:
		return l.Credit.Sub(l.Debit)
	}
}

// Balance returns the signed balance of one account as of a date.
func (a *Aggregator) Balance(ctx context.Context, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	entries, err := a.entries.QueryEntries(ctx, ledger.EntryFilter{AccountCode: accountCode, To: asOf})
	if err != nil {
		return decimal.Zero, err
	}

	balance := decimal.Zero
	for _, e := range entries {
		for _, l := range e.Lines {
			if l.AccountCode == accountCode {
				balance = balance.Add(signed(l))
			}
		}
	}
	return balance, nil
}

// TrialBalance returns the signed balance of every account touched by the
// ledger as of a date.
func (a *Aggregator) TrialBalance(ctx context.Context, asOf time.Time) (map[string]decimal.Decimal, error) {
	entries, err := a.entries.QueryEntries(ctx, ledger.EntryFilter{To: asOf})
	if err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal)
	for _, e := range entries {
		for _, l := range e.Lines {
			balances[l.AccountCode] = balances[l.AccountCode].Add(signed(l))
		}
	}
	return balances, nil
}

// CheckIdentity asserts the fundamental accounting identity
// assets = liabilities + equity + (income - expense) within Epsilon.
// A larger gap is a ConsistencyError: fatal, requiring manual
// reconciliation, never auto-corrected.
func (a *Aggregator) CheckIdentity(ctx context.Context, asOf time.Time) error {
	entries, err := a.entries.QueryEntries(ctx, ledger.EntryFilter{To: asOf})
	if err != nil {
		return err
	}

	byType := make(map[ledger.AccountType]decimal.Decimal)
	for _, e := range entries {
		for _, l := range e.Lines {
			byType[l.AccountType] = byType[l.AccountType].Add(signed(l))
		}
	}

	left := byType[ledger.TypeAsset]
	right := byType[ledger.TypeLiability].
		Add(byType[ledger.TypeEquity]).
		Add(byType[ledger.TypeIncome]).
		Sub(byType[ledger.TypeExpense])

	if !ledger.WithinEpsilon(left, right) {
		return &ledger.ConsistencyError{
			Identity: "assets = liabilities + equity + net income",
			AsOf:     asOf,
			Left:     left,
			Right:    right,
		}
	}
	return nil
}

// DebtorSummary is the recomputed financial position of one debtor. Any
// stored balance is a cache; this struct is always derived fresh from the
// obligations and the ledger.
type DebtorSummary struct {
	DebtorID       string                     `json:"debtor_id"`
	Name           string                     `json:"name"`
	TotalOwed      decimal.Decimal            `json:"total_owed"`
	TotalPaid      decimal.Decimal            `json:"total_paid"`
	CurrentBalance decimal.Decimal            `json:"current_balance"`
	Overpaid       bool                       `json:"overpaid"`
	AdvanceHeld    decimal.Decimal            `json:"advance_held"`
	LedgerBalance  decimal.Decimal            `json:"ledger_balance"`
	Reconciled     bool                       `json:"reconciled"`
	Obligations    []ledger.MonthlyObligation `json:"monthly_obligations"`
}

// Summarize recomputes a debtor's position and cross-checks it against the
// ledger-derived receivable balance. A negative computed balance flags an
// overpayment; it is reported, never clamped.
func (a *Aggregator) Summarize(ctx context.Context, d *ledger.Debtor, advances []ledger.Advance, asOf time.Time) (*DebtorSummary, error) {
	sum := &DebtorSummary{
		DebtorID:    d.ID,
		Name:        d.Name,
		Obligations: d.Obligations,
	}
	for _, o := range d.Obligations {
		sum.TotalOwed = sum.TotalOwed.Add(o.Expected)
		sum.TotalPaid = sum.TotalPaid.Add(o.Paid)
	}
	for _, adv := range advances {
		if adv.ConsumedBy == 0 {
			sum.AdvanceHeld = sum.AdvanceHeld.Add(adv.Amount)
		}
	}

	sum.CurrentBalance = sum.TotalOwed.Sub(sum.TotalPaid)
	sum.Overpaid = sum.CurrentBalance.IsNegative() || sum.AdvanceHeld.IsPositive()

	ledgerBalance, err := a.Balance(ctx, d.AccountCode, asOf)
	if err != nil {
		return nil, err
	}
	sum.LedgerBalance = ledgerBalance
	// The receivable account carries accruals minus full payments, so it
	// runs below the obligation balance by exactly the advances still held.
	sum.Reconciled = ledger.WithinEpsilon(ledgerBalance, sum.CurrentBalance.Sub(sum.AdvanceHeld))

	return sum, nil
}

// sortedCodes returns map keys in stable chart order.
func sortedCodes(m map[string]decimal.Decimal) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
