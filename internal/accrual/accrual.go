// Package accrual posts periodic obligation entries independent of cash
// movement: rent due on each billing cycle, recurring expenses on their
// due day. Cash settlement is the allocator's job.
package accrual

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/events"
	"github.com/dormbooks/dormbooks/internal/ledger"
)

type Store interface {
	GetDebtor(ctx context.Context, id string) (*ledger.Debtor, error)
	ListDebtors(ctx context.Context, activeOnly bool) ([]ledger.Debtor, error)
	PostAccrual(ctx context.Context, ob *ledger.MonthlyObligation, e *ledger.Entry) (*ledger.Entry, bool, error)
	AppendEntry(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error)
}

type Engine struct {
	store Store
	pub   events.Publisher
	log   *slog.Logger
}

func New(store Store, pub events.Publisher, log *slog.Logger) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, pub: pub, log: log}
}

// ProratedRent computes the first-month rent for a mid-month move-in:
// monthlyRent / daysInMonth * daysRemaining (move-in day inclusive),
// rounded to 2 decimals.
func ProratedRent(monthlyRent decimal.Decimal, moveIn time.Time) (decimal.Decimal, error) {
	month := ledger.MonthOf(moveIn)
	days, err := ledger.DaysInMonth(month)
	if err != nil {
		return decimal.Zero, err
	}
	remaining := days - moveIn.Day() + 1
	prorated := monthlyRent.
		Div(decimal.NewFromInt(int64(days))).
		Mul(decimal.NewFromInt(int64(remaining)))
	return ledger.RoundHalfUp2(prorated), nil
}

// PostRent creates the debtor's rent obligation for a billing period and
// posts the matching accrual entry: Debit receivable / Credit rental
// income. Idempotent per (debtor, month): a repeat call returns the
// already posted entry without creating anything.
func (en *Engine) PostRent(ctx context.Context, debtorID, month string) (*ledger.Entry, error) {
	start, err := ledger.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	d, err := en.store.GetDebtor(ctx, debtorID)
	if err != nil {
		return nil, err
	}
	if month < ledger.MonthOf(d.MoveIn) {
		return nil, fmt.Errorf("%w: %s predates move-in %s", ledger.ErrInvalidMonth, month, ledger.MonthOf(d.MoveIn))
	}

	amount := d.MonthlyRent
	date := start
	if month == ledger.MonthOf(d.MoveIn) && d.MoveIn.Day() > 1 {
		amount, err = ProratedRent(d.MonthlyRent, d.MoveIn)
		if err != nil {
			return nil, err
		}
		date = d.MoveIn
	}

	ob := &ledger.MonthlyObligation{
		DebtorID: debtorID,
		Month:    month,
		Kind:     ledger.KindRent,
		Expected: amount,
		Paid:     decimal.Zero,
		Status:   ledger.ObligationUnpaid,
	}

	entry := &ledger.Entry{
		Date:        date,
		Description: fmt.Sprintf("Rent accrual %s - %s", month, d.Name),
		Source:      ledger.SourceInvoice,
		SourceID:    debtorID,
		Month:       month,
		Status:      ledger.StatusPosted,
		Lines: []ledger.Line{
			{AccountCode: d.AccountCode, Debit: amount, Credit: decimal.Zero, Description: "Rent due"},
			{AccountCode: ledger.AccountRentalIncome, Debit: decimal.Zero, Credit: amount, Description: "Rental income earned"},
		},
	}

	posted, created, err := en.store.PostAccrual(ctx, ob, entry)
	if err != nil {
		return nil, err
	}
	if created {
		en.publish(ctx, posted)
		en.log.Info("rent accrued", "debtor", debtorID, "month", month, "amount", amount)
	}
	return posted, nil
}

// ExpenseParams describes one recurring expense accrual.
type ExpenseParams struct {
	AccountCode string
	Description string
	Amount      decimal.Decimal
	Month       string
	DueDay      int
}

// PostExpense accrues a recurring expense for a period: Debit expense /
// Credit accounts payable on the configured due day. Idempotent per
// (expense account, month).
func (en *Engine) PostExpense(ctx context.Context, p ExpenseParams) (*ledger.Entry, error) {
	start, err := ledger.ParseMonth(p.Month)
	if err != nil {
		return nil, err
	}
	if !p.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	day := p.DueDay
	if day < 1 {
		day = 1
	}

	entry := &ledger.Entry{
		Date:        start.AddDate(0, 0, day-1),
		Description: p.Description,
		Source:      ledger.SourceExpenseAccrual,
		SourceID:    p.AccountCode,
		Month:       p.Month,
		Status:      ledger.StatusPosted,
		Lines: []ledger.Line{
			{AccountCode: p.AccountCode, Debit: p.Amount, Credit: decimal.Zero, Description: "Expense incurred"},
			{AccountCode: ledger.AccountPayable, Debit: decimal.Zero, Credit: p.Amount, Description: "Payable accrued"},
		},
	}

	// Expense accruals have no obligation row; the entry's uniqueness on
	// (source, source_id, month) carries the idempotency.
	posted, err := en.store.AppendEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	if posted.TransactionID == entry.TransactionID {
		en.publish(ctx, posted)
		en.log.Info("expense accrued", "account", p.AccountCode, "month", p.Month, "amount", p.Amount)
	}
	return posted, nil
}

// RunCycle posts every rent obligation due up to asOf for all active
// debtors, from each debtor's move-in month forward. Already posted months
// are no-ops, so the cycle is safe to run on any schedule.
func (en *Engine) RunCycle(ctx context.Context, asOf time.Time) (int, error) {
	debtors, err := en.store.ListDebtors(ctx, true)
	if err != nil {
		return 0, err
	}

	current := ledger.MonthOf(asOf)
	posted := 0
	for _, d := range debtors {
		for month := ledger.MonthOf(d.MoveIn); month <= current; month = ledger.NextMonth(month) {
			before, err := en.store.GetDebtor(ctx, d.ID)
			if err != nil {
				return posted, err
			}
			exists := false
			for _, o := range before.Obligations {
				if o.Month == month && o.Kind == ledger.KindRent {
					exists = true
					break
				}
			}
			if exists {
				continue
			}
			if _, err := en.PostRent(ctx, d.ID, month); err != nil {
				return posted, fmt.Errorf("accrue %s %s: %w", d.ID, month, err)
			}
			posted++
		}
	}
	return posted, nil
}

func (en *Engine) publish(ctx context.Context, e *ledger.Entry) {
	err := en.pub.Publish(ctx, events.EntryPosted{
		TransactionID: e.TransactionID,
		Source:        e.Source,
		SourceID:      e.SourceID,
		Month:         e.Month,
		Amount:        e.Total(),
		Date:          e.Date,
	})
	if err != nil {
		en.log.Warn("publish entry event failed", "transaction_id", e.TransactionID, "err", err)
	}
}
