package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestObligationRemaining(t *testing.T) {
	o := MonthlyObligation{Expected: dec("500"), Paid: dec("200")}
	if got := o.Remaining(); !got.Equal(dec("300")) {
		t.Fatalf("Remaining() = %s, want 300", got)
	}

	// Overpaid obligations clamp to zero rather than going negative.
	o.Paid = dec("600")
	if got := o.Remaining(); !got.IsZero() {
		t.Fatalf("Remaining() = %s, want 0", got)
	}
}

func TestObligationRecalc(t *testing.T) {
	tests := []struct {
		paid string
		want ObligationStatus
	}{
		{"0", ObligationUnpaid},
		{"0.01", ObligationPartial},
		{"499.99", ObligationPartial},
		{"500", ObligationPaid},
		{"600", ObligationPaid},
	}
	for _, tt := range tests {
		o := MonthlyObligation{Expected: dec("500"), Paid: dec(tt.paid)}
		o.Recalc()
		if o.Status != tt.want {
			t.Errorf("paid %s: status = %s, want %s", tt.paid, o.Status, tt.want)
		}
	}
}

func TestDebtorOutstanding(t *testing.T) {
	d := Debtor{
		Obligations: []MonthlyObligation{
			{Month: "2025-01", Status: ObligationPaid},
			{Month: "2025-02", Status: ObligationPartial},
			{Month: "2025-03", Status: ObligationUnpaid},
		},
	}
	out := d.Outstanding()
	if len(out) != 2 {
		t.Fatalf("Outstanding() returned %d obligations, want 2", len(out))
	}
	if out[0].Month != "2025-02" || out[1].Month != "2025-03" {
		t.Fatalf("Outstanding() order = %s, %s", out[0].Month, out[1].Month)
	}
}

func TestParseMonth(t *testing.T) {
	got, err := ParseMonth("2025-02")
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseMonth = %s, want %s", got, want)
	}

	for _, bad := range []string{"", "2025", "2025-13", "Feb 2025", "2025-02-01"} {
		if _, err := ParseMonth(bad); !errors.Is(err, ErrInvalidMonth) {
			t.Errorf("ParseMonth(%q) = %v, want ErrInvalidMonth", bad, err)
		}
	}
}

func TestNextMonth(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2025-01", "2025-02"},
		{"2025-12", "2026-01"},
	}
	for _, tt := range tests {
		if got := NextMonth(tt.in); got != tt.want {
			t.Errorf("NextMonth(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		month string
		want  int
	}{
		{"2025-01", 31},
		{"2025-02", 28},
		{"2024-02", 29},
		{"2025-04", 30},
	}
	for _, tt := range tests {
		got, err := DaysInMonth(tt.month)
		if err != nil {
			t.Fatalf("DaysInMonth(%s): %v", tt.month, err)
		}
		if got != tt.want {
			t.Errorf("DaysInMonth(%s) = %d, want %d", tt.month, got, tt.want)
		}
	}
}

func TestMonthsAreLexicallySortable(t *testing.T) {
	// FIFO ordering relies on YYYY-MM comparing correctly as strings.
	if !("2024-12" < "2025-01" && "2025-01" < "2025-02" && "2025-09" < "2025-10") {
		t.Fatal("month format does not sort lexically")
	}
}
