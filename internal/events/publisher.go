package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

// Publisher pushes ledger events to downstream consumers (notifications,
// analytics). Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event any) error
	Close() error
}

// EntryPosted is emitted after a ledger entry is committed.
type EntryPosted struct {
	TransactionID string          `json:"transaction_id"`
	Source        ledger.Source   `json:"source"`
	SourceID      string          `json:"source_id,omitempty"`
	Month         string          `json:"month,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

// Nop is a Publisher that drops every event. Used when no broker is
// configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, any) error { return nil }
func (Nop) Close() error                       { return nil }
