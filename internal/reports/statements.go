package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

type StatementLine struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// IncomeStatement is accrual basis: revenue recognized when earned,
// expenses when incurred, regardless of cash movement.
type IncomeStatement struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Income        []StatementLine `json:"income"`
	Expenses      []StatementLine `json:"expenses"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// CashFlowStatement is cash basis: only entries from cash-movement sources
// whose lines touch designated cash accounts, bucketed by the chart's
// classification table.
type CashFlowStatement struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	Operating      []StatementLine `json:"operating"`
	Investing      []StatementLine `json:"investing"`
	Financing      []StatementLine `json:"financing"`
	TotalOperating decimal.Decimal `json:"total_operating"`
	TotalInvesting decimal.Decimal `json:"total_investing"`
	TotalFinancing decimal.Decimal `json:"total_financing"`
	NetChange      decimal.Decimal `json:"net_change"`
	OpeningCash    decimal.Decimal `json:"opening_cash"`
	ClosingCash    decimal.Decimal `json:"closing_cash"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type BalanceSheet struct {
	AsOf             time.Time       `json:"as_of"`
	Assets           []StatementLine `json:"assets"`
	Liabilities      []StatementLine `json:"liabilities"`
	Equity           []StatementLine `json:"equity"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	NetIncome        decimal.Decimal `json:"net_income"`
	Balanced         bool            `json:"balanced"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// Engine derives financial statements from the ledger. It is a read-only
// consumer; a ConsistencyError from it halts the affected report and is
// never patched by posting adjustment entries.
type Engine struct {
	entries  EntrySource
	accounts AccountSource
	chart    *ledger.Chart
}

func NewEngine(entries EntrySource, accounts AccountSource, chart *ledger.Chart) *Engine {
	return &Engine{entries: entries, accounts: accounts, chart: chart}
}

func (en *Engine) accountName(ctx context.Context, code string) string {
	a, err := en.accounts.GetAccount(ctx, code)
	if err != nil {
		return code
	}
	return a.Name
}

func (en *Engine) lines(ctx context.Context, m map[string]decimal.Decimal) []StatementLine {
	var out []StatementLine
	for _, code := range sortedCodes(m) {
		if m[code].IsZero() {
			continue
		}
		out = append(out, StatementLine{
			AccountCode: code,
			AccountName: en.accountName(ctx, code),
			Amount:      m[code],
		})
	}
	return out
}

func sumLines(lines []StatementLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

// IncomeStatement aggregates every entry in the period regardless of
// source: accruals count the moment they are posted.
func (en *Engine) IncomeStatement(ctx context.Context, from, to time.Time) (*IncomeStatement, error) {
	entries, err := en.entries.QueryEntries(ctx, ledger.EntryFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	income := make(map[string]decimal.Decimal)
	expenses := make(map[string]decimal.Decimal)
	for _, e := range entries {
		for _, l := range e.Lines {
			switch l.AccountType {
			case ledger.TypeIncome:
				income[l.AccountCode] = income[l.AccountCode].Add(signed(l))
			case ledger.TypeExpense:
				expenses[l.AccountCode] = expenses[l.AccountCode].Add(signed(l))
			}
		}
	}

	st := &IncomeStatement{
		From:        from,
		To:          to,
		Income:      en.lines(ctx, income),
		Expenses:    en.lines(ctx, expenses),
		GeneratedAt: time.Now().UTC(),
	}
	st.TotalIncome = sumLines(st.Income)
	st.TotalExpenses = sumLines(st.Expenses)
	st.NetIncome = st.TotalIncome.Sub(st.TotalExpenses)
	return st, nil
}

// cashEntries filters the ledger down to actual cash movement: whitelisted
// sources whose lines touch a designated cash account.
func (en *Engine) cashEntries(ctx context.Context, from, to time.Time) ([]ledger.Entry, error) {
	all, err := en.entries.QueryEntries(ctx, ledger.EntryFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	var out []ledger.Entry
	for _, e := range all {
		if !ledger.IsCashSource(e.Source) && e.Source != ledger.SourceReversal {
			continue
		}
		touchesCash := false
		for _, l := range e.Lines {
			if en.chart.IsCashAccount(l.AccountCode) {
				touchesCash = true
				break
			}
		}
		if touchesCash {
			out = append(out, e)
		}
	}
	return out, nil
}

// CashFlowStatement classifies each cash entry's counterpart accounts into
// operating, investing and financing buckets. The classification table is
// total: unlisted codes default to operating.
func (en *Engine) CashFlowStatement(ctx context.Context, from, to time.Time) (*CashFlowStatement, error) {
	entries, err := en.cashEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}

	buckets := map[ledger.CashFlowBucket]map[string]decimal.Decimal{
		ledger.BucketOperating: {},
		ledger.BucketInvesting: {},
		ledger.BucketFinancing: {},
	}
	for _, e := range entries {
		for _, l := range e.Lines {
			if en.chart.IsCashAccount(l.AccountCode) {
				continue
			}
			// A credit on the counterpart side means cash flowed in.
			flow := l.Credit.Sub(l.Debit)
			bucket := en.chart.BucketFor(l.AccountCode)
			buckets[bucket][l.AccountCode] = buckets[bucket][l.AccountCode].Add(flow)
		}
	}

	opening, err := en.cashBalance(ctx, from.Add(-time.Nanosecond))
	if err != nil {
		return nil, err
	}

	st := &CashFlowStatement{
		From:        from,
		To:          to,
		Operating:   en.lines(ctx, buckets[ledger.BucketOperating]),
		Investing:   en.lines(ctx, buckets[ledger.BucketInvesting]),
		Financing:   en.lines(ctx, buckets[ledger.BucketFinancing]),
		OpeningCash: opening,
		GeneratedAt: time.Now().UTC(),
	}
	st.TotalOperating = sumLines(st.Operating)
	st.TotalInvesting = sumLines(st.Investing)
	st.TotalFinancing = sumLines(st.Financing)
	st.NetChange = st.TotalOperating.Add(st.TotalInvesting).Add(st.TotalFinancing)
	st.ClosingCash = st.OpeningCash.Add(st.NetChange)
	return st, nil
}

// cashBalance sums the designated cash accounts over cash entries to asOf.
func (en *Engine) cashBalance(ctx context.Context, asOf time.Time) (decimal.Decimal, error) {
	entries, err := en.cashEntries(ctx, time.Time{}, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, e := range entries {
		for _, l := range e.Lines {
			if en.chart.IsCashAccount(l.AccountCode) {
				balance = balance.Add(l.Debit.Sub(l.Credit))
			}
		}
	}
	return balance, nil
}

// BalanceSheet is cash basis: derived only from cash-movement entries up to
// asOf. It must satisfy assets = liabilities + equity + net income within
// Epsilon; a larger gap returns a ConsistencyError instead of a statement.
func (en *Engine) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	entries, err := en.cashEntries(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]decimal.Decimal)
	types := make(map[string]ledger.AccountType)
	for _, e := range entries {
		for _, l := range e.Lines {
			byCode[l.AccountCode] = byCode[l.AccountCode].Add(signed(l))
			types[l.AccountCode] = l.AccountType
		}
	}

	assets := make(map[string]decimal.Decimal)
	liabilities := make(map[string]decimal.Decimal)
	equity := make(map[string]decimal.Decimal)
	netIncome := decimal.Zero
	for code, bal := range byCode {
		switch types[code] {
		case ledger.TypeAsset:
			assets[code] = bal
		case ledger.TypeLiability:
			liabilities[code] = bal
		case ledger.TypeEquity:
			equity[code] = bal
		case ledger.TypeIncome:
			netIncome = netIncome.Add(bal)
		case ledger.TypeExpense:
			netIncome = netIncome.Sub(bal)
		}
	}

	bs := &BalanceSheet{
		AsOf:        asOf,
		Assets:      en.lines(ctx, assets),
		Liabilities: en.lines(ctx, liabilities),
		Equity:      en.lines(ctx, equity),
		NetIncome:   netIncome,
		GeneratedAt: time.Now().UTC(),
	}
	bs.TotalAssets = sumLines(bs.Assets)
	bs.TotalLiabilities = sumLines(bs.Liabilities)
	bs.TotalEquity = sumLines(bs.Equity)

	right := bs.TotalLiabilities.Add(bs.TotalEquity).Add(bs.NetIncome)
	bs.Balanced = ledger.WithinEpsilon(bs.TotalAssets, right)
	if !bs.Balanced {
		return nil, &ledger.ConsistencyError{
			Identity: "assets = liabilities + equity + net income (cash basis)",
			AsOf:     asOf,
			Left:     bs.TotalAssets,
			Right:    right,
		}
	}
	return bs, nil
}
