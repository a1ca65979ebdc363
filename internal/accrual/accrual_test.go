package accrual

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
	"github.com/dormbooks/dormbooks/internal/store"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestEngine(t *testing.T) (*store.Store, *Engine) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.SeedChart(context.Background(), ledger.DefaultChartTable()); err != nil {
		t.Fatal(err)
	}
	return s, New(s, nil, nil)
}

func addDebtor(t *testing.T, s *store.Store, id string, rent string, moveIn time.Time) *ledger.Debtor {
	t.Helper()
	d := &ledger.Debtor{ID: id, Name: "Debtor " + id, MonthlyRent: dec(rent), MoveIn: moveIn, Active: true}
	if err := s.CreateDebtor(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	return d
}

func TestProratedRent(t *testing.T) {
	tests := []struct {
		rent   string
		moveIn time.Time
		want   string
	}{
		// 15 of 31 days: 500/31*15 = 241.935... -> 241.94
		{"500", time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC), "241.94"},
		// move-in on the 1st is the full month
		{"500", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "500"},
		// last day of February
		{"280", time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), "10"},
		// leap February, half the month
		{"290", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), "150"},
	}
	for _, tt := range tests {
		got, err := ProratedRent(dec(tt.rent), tt.moveIn)
		if err != nil {
			t.Fatalf("ProratedRent(%s, %s): %v", tt.rent, tt.moveIn, err)
		}
		if !got.Equal(dec(tt.want)) {
			t.Errorf("ProratedRent(%s, %s) = %s, want %s", tt.rent, tt.moveIn.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestPostRent(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()
	d := addDebtor(t, s, "alice", "500", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	entry, err := en.PostRent(ctx, "alice", "2025-02")
	if err != nil {
		t.Fatalf("PostRent: %v", err)
	}
	if entry.Source != ledger.SourceInvoice || entry.Month != "2025-02" {
		t.Fatalf("entry source/month = %s/%s", entry.Source, entry.Month)
	}
	if !entry.Total().Equal(dec("500")) {
		t.Fatalf("entry total = %s, want 500", entry.Total())
	}
	if entry.Lines[0].AccountCode != d.AccountCode || entry.Lines[1].AccountCode != ledger.AccountRentalIncome {
		t.Fatalf("entry lines hit %s / %s", entry.Lines[0].AccountCode, entry.Lines[1].AccountCode)
	}

	got, err := s.GetDebtor(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Obligations) != 1 || !got.Obligations[0].Expected.Equal(dec("500")) {
		t.Fatalf("obligations = %+v", got.Obligations)
	}
}

func TestPostRentIdempotent(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()
	addDebtor(t, s, "alice", "500", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	first, err := en.PostRent(ctx, "alice", "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	second, err := en.PostRent(ctx, "alice", "2025-01")
	if err != nil {
		t.Fatalf("repeat PostRent: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatal("repeat PostRent posted a second entry")
	}

	got, err := s.GetDebtor(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Obligations) != 1 {
		t.Fatalf("got %d obligations, want 1", len(got.Obligations))
	}
}

func TestPostRentProratesFirstMonth(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()
	moveIn := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	addDebtor(t, s, "alice", "500", moveIn)

	entry, err := en.PostRent(ctx, "alice", "2025-01")
	if err != nil {
		t.Fatal(err)
	}
	if !entry.Total().Equal(dec("241.94")) {
		t.Fatalf("prorated total = %s, want 241.94", entry.Total())
	}
	if !entry.Date.Equal(moveIn) {
		t.Fatalf("entry date = %s, want move-in", entry.Date)
	}

	// Following months bill in full.
	feb, err := en.PostRent(ctx, "alice", "2025-02")
	if err != nil {
		t.Fatal(err)
	}
	if !feb.Total().Equal(dec("500")) {
		t.Fatalf("feb total = %s, want 500", feb.Total())
	}
}

func TestPostRentBeforeMoveIn(t *testing.T) {
	s, en := newTestEngine(t)
	addDebtor(t, s, "alice", "500", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))

	if _, err := en.PostRent(context.Background(), "alice", "2025-02"); !errors.Is(err, ledger.ErrInvalidMonth) {
		t.Fatalf("pre-move-in rent: err = %v, want ErrInvalidMonth", err)
	}
}

func TestPostExpense(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()

	p := ExpenseParams{
		AccountCode: ledger.AccountUtilities,
		Description: "Water and electricity 2025-01",
		Amount:      dec("320.50"),
		Month:       "2025-01",
		DueDay:      15,
	}
	entry, err := en.PostExpense(ctx, p)
	if err != nil {
		t.Fatalf("PostExpense: %v", err)
	}
	if entry.Source != ledger.SourceExpenseAccrual {
		t.Fatalf("source = %s", entry.Source)
	}
	if entry.Date.Day() != 15 {
		t.Fatalf("entry date day = %d, want 15", entry.Date.Day())
	}
	if entry.Lines[0].AccountCode != ledger.AccountUtilities || entry.Lines[1].AccountCode != ledger.AccountPayable {
		t.Fatalf("entry lines hit %s / %s", entry.Lines[0].AccountCode, entry.Lines[1].AccountCode)
	}

	// Idempotent per (expense account, month).
	again, err := en.PostExpense(ctx, p)
	if err != nil {
		t.Fatalf("repeat PostExpense: %v", err)
	}
	if again.TransactionID != entry.TransactionID {
		t.Fatal("repeat PostExpense posted a second entry")
	}

	entries, err := s.QueryEntries(ctx, ledger.EntryFilter{Source: ledger.SourceExpenseAccrual})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger holds %d expense accruals, want 1", len(entries))
	}
}

func TestPostExpenseValidation(t *testing.T) {
	_, en := newTestEngine(t)
	ctx := context.Background()

	_, err := en.PostExpense(ctx, ExpenseParams{AccountCode: ledger.AccountUtilities, Description: "x", Amount: dec("0"), Month: "2025-01"})
	if !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("zero amount: err = %v", err)
	}
	_, err = en.PostExpense(ctx, ExpenseParams{AccountCode: ledger.AccountUtilities, Description: "x", Amount: dec("10"), Month: "January"})
	if !errors.Is(err, ledger.ErrInvalidMonth) {
		t.Fatalf("bad month: err = %v", err)
	}
}

func TestRunCycle(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()
	addDebtor(t, s, "alice", "500", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	addDebtor(t, s, "bob", "450", time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))

	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	posted, err := en.RunCycle(ctx, asOf)
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	// alice: Jan, Feb, Mar. bob: Feb (prorated), Mar.
	if posted != 5 {
		t.Fatalf("posted = %d, want 5", posted)
	}

	bob, err := s.GetDebtor(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(bob.Obligations) != 2 {
		t.Fatalf("bob has %d obligations, want 2", len(bob.Obligations))
	}
	// 19 of 28 days: 450/28*19 = 305.357... -> 305.36
	if !bob.Obligations[0].Expected.Equal(dec("305.36")) {
		t.Fatalf("bob feb expected = %s, want 305.36", bob.Obligations[0].Expected)
	}

	// Re-running posts nothing new.
	again, err := en.RunCycle(ctx, asOf)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Fatalf("second cycle posted %d, want 0", again)
	}
}

func TestRunCycleSkipsInactiveDebtors(t *testing.T) {
	s, en := newTestEngine(t)
	ctx := context.Background()
	d := &ledger.Debtor{
		ID: "gone", Name: "Moved Out", MonthlyRent: dec("500"),
		MoveIn: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Active: false,
	}
	if err := s.CreateDebtor(ctx, d); err != nil {
		t.Fatal(err)
	}

	posted, err := en.RunCycle(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if posted != 0 {
		t.Fatalf("posted = %d for inactive debtor, want 0", posted)
	}
}
