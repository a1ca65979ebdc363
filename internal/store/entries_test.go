package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

func rentEntry(month string) *ledger.Entry {
	return &ledger.Entry{
		Date:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "Rent accrual " + month,
		Source:      ledger.SourceInvoice,
		SourceID:    "alice",
		Month:       month,
		Lines: []ledger.Line{
			{AccountCode: ledger.AccountReceivable, Debit: dec("500"), Credit: decimal.Zero},
			{AccountCode: ledger.AccountRentalIncome, Debit: decimal.Zero, Credit: dec("500")},
		},
	}
}

func TestAppendEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := rentEntry("2025-01")
	posted, err := s.AppendEntry(ctx, e)
	if err != nil {
		t.Fatalf("AppendEntry: %v", err)
	}
	if posted.TransactionID == "" {
		t.Fatal("no transaction id assigned")
	}
	if posted.Status != ledger.StatusPosted {
		t.Fatalf("status = %s, want posted", posted.Status)
	}

	got, err := s.GetEntry(ctx, posted.TransactionID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("GetEntry returned %d lines, want 2", len(got.Lines))
	}
	// Account types are denormalized from the chart at write time.
	if got.Lines[0].AccountType != ledger.TypeAsset || got.Lines[1].AccountType != ledger.TypeIncome {
		t.Fatalf("line types = %s, %s", got.Lines[0].AccountType, got.Lines[1].AccountType)
	}
	if !got.Lines[0].Debit.Equal(dec("500")) {
		t.Fatalf("stored debit = %s, want 500", got.Lines[0].Debit)
	}
}

func TestAppendEntryRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := rentEntry("2025-01")
	e.Lines[1].Credit = dec("400")
	if _, err := s.AppendEntry(ctx, e); !errors.Is(err, ledger.ErrUnbalancedEntry) {
		t.Fatalf("unbalanced entry: err = %v", err)
	}

	e = rentEntry("2025-01")
	e.Lines[0].AccountCode = "9999"
	if _, err := s.AppendEntry(ctx, e); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("unknown account: err = %v", err)
	}

	// A failed entry leaves nothing behind.
	entries, err := s.QueryEntries(ctx, ledger.EntryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed appends persisted %d entries", len(entries))
	}
}

func TestAppendEntryDuplicateSourceIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.AppendEntry(ctx, rentEntry("2025-01"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.AppendEntry(ctx, rentEntry("2025-01"))
	if err != nil {
		t.Fatalf("duplicate append: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("duplicate created new entry %s, want %s", second.TransactionID, first.TransactionID)
	}

	// Same source id, different month is a distinct entry.
	third, err := s.AppendEntry(ctx, rentEntry("2025-02"))
	if err != nil {
		t.Fatal(err)
	}
	if third.TransactionID == first.TransactionID {
		t.Fatal("different month collapsed onto existing entry")
	}
}

func TestEntriesAreImmutable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.AppendEntry(ctx, rentEntry("2025-01"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.writer.ExecContext(ctx,
		`UPDATE entries SET description = 'tampered' WHERE transaction_id = ?`, e.TransactionID,
	); err == nil {
		t.Error("entry description update allowed")
	}
	if _, err := s.writer.ExecContext(ctx,
		`DELETE FROM entries WHERE transaction_id = ?`, e.TransactionID,
	); err == nil {
		t.Error("entry delete allowed")
	}
	if _, err := s.writer.ExecContext(ctx,
		`UPDATE lines SET debit = '999' WHERE transaction_id = ?`, e.TransactionID,
	); err == nil {
		t.Error("line update allowed")
	}
}

func TestReverseEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	orig, err := s.AppendEntry(ctx, rentEntry("2025-01"))
	if err != nil {
		t.Fatal(err)
	}

	revDate := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	rev, err := s.ReverseEntry(ctx, orig.TransactionID, revDate)
	if err != nil {
		t.Fatalf("ReverseEntry: %v", err)
	}
	if rev.Source != ledger.SourceReversal || rev.SourceID != orig.TransactionID {
		t.Fatalf("reversal source = %s/%s", rev.Source, rev.SourceID)
	}
	if !rev.Lines[0].Credit.Equal(dec("500")) || !rev.Lines[1].Debit.Equal(dec("500")) {
		t.Fatal("reversal lines not swapped")
	}

	// The only mutation a reversal makes to the original is the status flag.
	got, err := s.GetEntry(ctx, orig.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ledger.StatusReversed {
		t.Fatalf("original status = %s, want reversed", got.Status)
	}
	if !got.Lines[0].Debit.Equal(dec("500")) {
		t.Fatal("original lines mutated by reversal")
	}

	// Reversing again is a no-op returning the existing reversal.
	again, err := s.ReverseEntry(ctx, orig.TransactionID, revDate)
	if err != nil {
		t.Fatalf("second ReverseEntry: %v", err)
	}
	if again.TransactionID != rev.TransactionID {
		t.Fatalf("second reversal created %s, want %s", again.TransactionID, rev.TransactionID)
	}

	entries, err := s.QueryEntries(ctx, ledger.EntryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger holds %d entries, want original + reversal", len(entries))
	}
}

func TestReverseEntryNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReverseEntry(context.Background(), "no-such-txn", time.Now().UTC())
	if !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("err = %v, want ErrEntryNotFound", err)
	}
}

func TestQueryEntriesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AppendEntry(ctx, rentEntry("2025-01")); err != nil {
		t.Fatal(err)
	}
	payment := &ledger.Entry{
		Date:        time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		Description: "Payment from Alice",
		Source:      ledger.SourcePayment,
		SourceID:    "pay-1",
		Lines: []ledger.Line{
			{AccountCode: ledger.AccountCash, Debit: dec("300"), Credit: decimal.Zero},
			{AccountCode: ledger.AccountReceivable, Debit: decimal.Zero, Credit: dec("300")},
		},
	}
	if _, err := s.AppendEntry(ctx, payment); err != nil {
		t.Fatal(err)
	}

	bySource, err := s.QueryEntries(ctx, ledger.EntryFilter{Source: ledger.SourcePayment})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySource) != 1 || bySource[0].Source != ledger.SourcePayment {
		t.Fatalf("source filter returned %d entries", len(bySource))
	}

	byAccount, err := s.QueryEntries(ctx, ledger.EntryFilter{AccountCode: ledger.AccountCash})
	if err != nil {
		t.Fatal(err)
	}
	if len(byAccount) != 1 {
		t.Fatalf("account filter returned %d entries, want 1", len(byAccount))
	}

	byDate, err := s.QueryEntries(ctx, ledger.EntryFilter{
		From: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(byDate) != 1 || byDate[0].Source != ledger.SourcePayment {
		t.Fatalf("date filter returned %d entries", len(byDate))
	}

	limited, err := s.QueryEntries(ctx, ledger.EntryFilter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit 1 returned %d entries", len(limited))
	}
}

func TestQueryEntriesWithSingleReaderConnection(t *testing.T) {
	s := newTestStore(t)

	// The smallest possible pool: any nested query issued while a result
	// cursor is still open would wait on a free connection forever. The
	// deadline turns that hang into a failure.
	s.reader.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.AppendEntry(ctx, rentEntry("2025-01")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendEntry(ctx, rentEntry("2025-02")); err != nil {
		t.Fatal(err)
	}

	entries, err := s.QueryEntries(ctx, ledger.EntryFilter{})
	if err != nil {
		t.Fatalf("QueryEntries on single-connection pool: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if len(e.Lines) != 2 {
			t.Fatalf("entry %s has %d lines, want 2", e.TransactionID, len(e.Lines))
		}
	}

	// The account filter joins the lines table; same constraint applies.
	byAccount, err := s.QueryEntries(ctx, ledger.EntryFilter{AccountCode: ledger.AccountRentalIncome})
	if err != nil {
		t.Fatalf("filtered QueryEntries on single-connection pool: %v", err)
	}
	if len(byAccount) != 2 {
		t.Fatalf("account filter returned %d entries, want 2", len(byAccount))
	}
}

func TestFindEntryBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	posted, err := s.AppendEntry(ctx, rentEntry("2025-01"))
	if err != nil {
		t.Fatal(err)
	}

	found, err := s.FindEntryBySource(ctx, ledger.SourceInvoice, "alice", "2025-01")
	if err != nil {
		t.Fatalf("FindEntryBySource: %v", err)
	}
	if found.TransactionID != posted.TransactionID {
		t.Fatalf("found %s, want %s", found.TransactionID, posted.TransactionID)
	}

	if _, err := s.FindEntryBySource(ctx, ledger.SourceInvoice, "bob", "2025-01"); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("missing entry: err = %v", err)
	}
}
