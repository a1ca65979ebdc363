// Package allocator applies incoming payments to a debtor's outstanding
// monthly obligations, oldest first. Preview is pure; Commit serializes per
// debtor and is idempotent per payment reference.
package allocator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/events"
	"github.com/dormbooks/dormbooks/internal/ledger"
)

// Store is the persistence the allocator needs: debtor lookup and the
// atomic commit primitive.
type Store interface {
	GetDebtor(ctx context.Context, id string) (*ledger.Debtor, error)
	ApplyAllocation(ctx context.Context, plan *ledger.AllocationPlan, e *ledger.Entry) (*ledger.Entry, error)
}

// MethodMap maps a human payment method to the cash/bank account it lands
// on. Built from configuration.
type MethodMap map[string]string

// DefaultMethods covers the payment methods the housing office accepts.
func DefaultMethods() MethodMap {
	return MethodMap{
		"cash":         ledger.AccountCash,
		"bank":         ledger.AccountBank,
		"transfer":     ledger.AccountBank,
		"mobile_money": ledger.AccountMobileMoney,
	}
}

// AccountFor resolves a payment method to its cash account code.
func (m MethodMap) AccountFor(method string) (string, error) {
	code, ok := m[method]
	if !ok {
		return "", fmt.Errorf("%w: %q", ledger.ErrUnknownMethod, method)
	}
	return code, nil
}

type Allocator struct {
	store   Store
	methods MethodMap
	pub     events.Publisher
	log     *slog.Logger

	// Per-debtor commit locks: at most one in-flight commit per debtor so
	// two simultaneous payments cannot both read the same remaining
	// balances. Previews never take these.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, methods MethodMap, pub events.Publisher, log *slog.Logger) *Allocator {
	if methods == nil {
		methods = DefaultMethods()
	}
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{
		store:   store,
		methods: methods,
		pub:     pub,
		log:     log,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (a *Allocator) debtorLock(debtorID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[debtorID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[debtorID] = l
	}
	return l
}

// Preview computes how a payment would be allocated: walk the outstanding
// obligations in FIFO order (ascending month, insertion order breaking
// ties), fill each up to its remaining amount, and record any excess as an
// advance against the earliest future period. Pure: no locks, no writes,
// deterministic for identical inputs.
func (a *Allocator) Preview(ctx context.Context, debtorID string, amount decimal.Decimal, method string, date time.Time, paymentRef string) (*ledger.AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	accountCode, err := a.methods.AccountFor(method)
	if err != nil {
		return nil, err
	}
	if paymentRef == "" {
		paymentRef = uuid.Must(uuid.NewV7()).String()
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	d, err := a.store.GetDebtor(ctx, debtorID)
	if err != nil {
		return nil, err
	}

	plan := &ledger.AllocationPlan{
		DebtorID:    debtorID,
		PaymentRef:  paymentRef,
		Method:      method,
		AccountCode: accountCode,
		Date:        date,
		Amount:      amount,
	}

	left := amount
	lastMonth := ""
	for _, o := range d.Obligations {
		if o.Month > lastMonth {
			lastMonth = o.Month
		}
		if o.ID > plan.LastObligationID {
			plan.LastObligationID = o.ID
		}
	}
	for _, o := range d.Outstanding() {
		if !left.IsPositive() {
			break
		}
		applied := decimal.Min(o.Remaining(), left)
		after := o.Paid.Add(applied)

		updated := o
		updated.Paid = after
		updated.Recalc()

		plan.Slices = append(plan.Slices, ledger.AllocationSlice{
			ObligationID: o.ID,
			Month:        o.Month,
			Kind:         o.Kind,
			Amount:       applied,
			PaidBefore:   o.Paid,
			PaidAfter:    after,
			NewStatus:    updated.Status,
		})
		left = left.Sub(applied)
	}

	if left.IsPositive() {
		plan.Advance = left
		if lastMonth != "" {
			plan.AdvanceMonth = ledger.NextMonth(lastMonth)
		} else {
			plan.AdvanceMonth = ledger.MonthOf(date)
		}
	}
	return plan, nil
}

// Commit applies a plan: exactly one ledger entry debiting the payment
// method's cash account and crediting the debtor's receivable for the full
// amount, with the per-obligation split kept as obligation bookkeeping.
// Serialized per debtor; idempotent per payment reference; a plan that no
// longer matches the stored obligation state is rejected with ErrStalePlan
// so the caller re-previews instead of over-allocating.
func (a *Allocator) Commit(ctx context.Context, plan *ledger.AllocationPlan) (*ledger.Entry, error) {
	if plan == nil || plan.PaymentRef == "" {
		return nil, fmt.Errorf("%w: missing payment reference", ledger.ErrInvalidAmount)
	}

	lock := a.debtorLock(plan.DebtorID)
	lock.Lock()
	defer lock.Unlock()

	d, err := a.store.GetDebtor(ctx, plan.DebtorID)
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		Date:        plan.Date,
		Description: fmt.Sprintf("Payment from %s (%s)", d.Name, plan.Method),
		Reference:   plan.PaymentRef,
		Source:      ledger.SourcePayment,
		SourceID:    plan.PaymentRef,
		Status:      ledger.StatusPosted,
		Lines: []ledger.Line{
			{AccountCode: plan.AccountCode, Debit: plan.Amount, Credit: decimal.Zero, Description: "Payment received"},
			{AccountCode: d.AccountCode, Debit: decimal.Zero, Credit: plan.Amount, Description: "Settles oldest obligations first"},
		},
	}

	posted, err := a.store.ApplyAllocation(ctx, plan, entry)
	if err != nil {
		return nil, err
	}

	if err := a.pub.Publish(ctx, events.EntryPosted{
		TransactionID: posted.TransactionID,
		Source:        posted.Source,
		SourceID:      posted.SourceID,
		Amount:        posted.Total(),
		Date:          posted.Date,
	}); err != nil {
		// The ledger write is the source of truth; a failed publish is
		// logged, not rolled back.
		a.log.Warn("publish entry event failed", "transaction_id", posted.TransactionID, "err", err)
	}

	a.log.Info("payment allocated",
		"debtor", plan.DebtorID,
		"amount", plan.Amount,
		"slices", len(plan.Slices),
		"advance", plan.Advance,
		"payment_ref", plan.PaymentRef,
	)
	return posted, nil
}

// Allocate previews and immediately commits, the one-call path used by the
// CLI. HTTP callers preview first, show the plan, then commit.
func (a *Allocator) Allocate(ctx context.Context, debtorID string, amount decimal.Decimal, method string, date time.Time, paymentRef string) (*ledger.AllocationPlan, *ledger.Entry, error) {
	plan, err := a.Preview(ctx, debtorID, amount, method, date, paymentRef)
	if err != nil {
		return nil, nil, err
	}
	entry, err := a.Commit(ctx, plan)
	if err != nil {
		return nil, nil, err
	}
	return plan, entry, nil
}
