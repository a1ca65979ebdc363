package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationSlice is one obligation's share of a payment. PaidBefore is the
// obligation's paid amount observed at preview time; commit revalidates it
// so a stale plan is rejected instead of over-allocating.
type AllocationSlice struct {
	ObligationID int64            `json:"obligation_id"`
	Month        string           `json:"month"`
	Kind         ObligationKind   `json:"kind"`
	Amount       decimal.Decimal  `json:"amount"`
	PaidBefore   decimal.Decimal  `json:"paid_before"`
	PaidAfter    decimal.Decimal  `json:"paid_after"`
	NewStatus    ObligationStatus `json:"new_status"`
}

// AllocationPlan is the outcome of previewing a payment against a debtor's
// outstanding obligations, oldest month first. It is pure data: producing a
// plan has no side effects, applying it is Allocator.Commit's job.
type AllocationPlan struct {
	DebtorID     string            `json:"debtor_id"`
	PaymentRef   string            `json:"payment_ref"`
	Method       string            `json:"method"`
	AccountCode  string            `json:"account_code"`
	Date         time.Time         `json:"date"`
	Amount       decimal.Decimal   `json:"amount"`
	Slices       []AllocationSlice `json:"slices"`
	Advance      decimal.Decimal   `json:"advance"`
	AdvanceMonth string            `json:"advance_month,omitempty"`

	// LastObligationID is the highest obligation id the preview observed,
	// paid or not. Obligations are insert-only, so a higher id at commit
	// time means one was created after the preview and the plan's advance
	// targeting may be wrong.
	LastObligationID int64 `json:"last_obligation_id"`
}

// Allocated returns the portion of the payment applied to obligations.
func (p *AllocationPlan) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, s := range p.Slices {
		total = total.Add(s.Amount)
	}
	return total
}
