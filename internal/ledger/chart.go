package ledger

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type CashFlowBucket string

const (
	BucketOperating CashFlowBucket = "operating"
	BucketInvesting CashFlowBucket = "investing"
	BucketFinancing CashFlowBucket = "financing"
)

// ChartEntry is one account in the chart of accounts plus its reporting
// classification. Bucket and Cash are configuration consumed by the
// cash-flow statement; they are not core ledger state.
type ChartEntry struct {
	Code     string         `yaml:"code"`
	Name     string         `yaml:"name"`
	Type     AccountType    `yaml:"type"`
	Category string         `yaml:"category"`
	Bucket   CashFlowBucket `yaml:"bucket,omitempty"`
	Cash     bool           `yaml:"cash,omitempty"`
}

// DefaultChart is the built-in chart of accounts for a student-housing
// operation. Codes follow the usual 1xxx assets / 2xxx liabilities /
// 3xxx equity / 4xxx income / 5xxx expenses convention.
var DefaultChart = []ChartEntry{
	// Assets (1xxx)
	{Code: "1000", Name: "Cash on Hand", Type: TypeAsset, Category: "cash", Cash: true},
	{Code: "1010", Name: "Bank Account", Type: TypeAsset, Category: "bank", Cash: true},
	{Code: "1020", Name: "Mobile Money", Type: TypeAsset, Category: "bank", Cash: true},
	{Code: "1100", Name: "Accounts Receivable", Type: TypeAsset, Category: "accounts_receivable"},
	{Code: "1500", Name: "Furniture & Equipment", Type: TypeAsset, Category: "fixed_asset", Bucket: BucketInvesting},
	{Code: "1510", Name: "Buildings & Improvements", Type: TypeAsset, Category: "fixed_asset", Bucket: BucketInvesting},

	// Liabilities (2xxx)
	{Code: "2000", Name: "Accounts Payable", Type: TypeLiability, Category: "accounts_payable"},
	{Code: "2100", Name: "Security Deposits Held", Type: TypeLiability, Category: "deposits", Bucket: BucketFinancing},
	{Code: "2500", Name: "Loans Payable", Type: TypeLiability, Category: "loans", Bucket: BucketFinancing},

	// Equity (3xxx)
	{Code: "3000", Name: "Owner Capital", Type: TypeEquity, Category: "capital", Bucket: BucketFinancing},
	{Code: "3100", Name: "Retained Earnings", Type: TypeEquity, Category: "retained_earnings", Bucket: BucketFinancing},

	// Income (4xxx)
	{Code: "4000", Name: "Rental Income", Type: TypeIncome, Category: "rent"},
	{Code: "4100", Name: "Other Income", Type: TypeIncome, Category: "other"},

	// Expenses (5xxx)
	{Code: "5000", Name: "Utilities Expense", Type: TypeExpense, Category: "utilities"},
	{Code: "5100", Name: "Maintenance Expense", Type: TypeExpense, Category: "maintenance"},
	{Code: "5200", Name: "Management Expense", Type: TypeExpense, Category: "management"},
}

// Well-known account codes used by the engines.
const (
	AccountCash            = "1000"
	AccountBank            = "1010"
	AccountMobileMoney     = "1020"
	AccountReceivable      = "1100"
	AccountPayable         = "2000"
	AccountDepositsHeld    = "2100"
	AccountRentalIncome    = "4000"
	AccountUtilities       = "5000"
)

// ReceivableCode returns the per-debtor accounts-receivable account code.
func ReceivableCode(debtorID string) string {
	return AccountReceivable + "-" + debtorID
}

// Chart is the classification table built once from the chart of accounts:
// every account code maps to exactly one cash-flow bucket, with operating
// as the defined default for codes not listed.
type Chart struct {
	entries map[string]ChartEntry
	order   []string
}

// NewChart builds a Chart from entries, validating codes and types.
func NewChart(entries []ChartEntry) (*Chart, error) {
	c := &Chart{entries: make(map[string]ChartEntry, len(entries))}
	for i, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("chart entry %d: %w", i, ErrInvalidAccountCode)
		}
		if !ValidAccountType(e.Type) {
			return nil, fmt.Errorf("chart entry %s: %w: %q", e.Code, ErrInvalidAccountType, e.Type)
		}
		if _, dup := c.entries[e.Code]; dup {
			return nil, fmt.Errorf("chart entry %s: %w", e.Code, ErrDuplicateAccount)
		}
		if e.Bucket == "" {
			e.Bucket = BucketOperating
		}
		switch e.Bucket {
		case BucketOperating, BucketInvesting, BucketFinancing:
		default:
			return nil, fmt.Errorf("chart entry %s: invalid cash-flow bucket %q", e.Code, e.Bucket)
		}
		c.entries[e.Code] = e
		c.order = append(c.order, e.Code)
	}
	return c, nil
}

// DefaultChartTable returns the Chart built from DefaultChart.
func DefaultChartTable() *Chart {
	c, err := NewChart(DefaultChart)
	if err != nil {
		panic(err) // the built-in chart is checked by tests
	}
	return c
}

type chartFile struct {
	Accounts []ChartEntry `yaml:"accounts"`
}

// LoadChart reads a chart-of-accounts YAML file. An empty path returns the
// default chart.
func LoadChart(path string) (*Chart, error) {
	if path == "" {
		return DefaultChartTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chart: %w", err)
	}
	var f chartFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse chart: %w", err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("chart %s defines no accounts", path)
	}
	return NewChart(f.Accounts)
}

// Lookup returns the chart entry for an exact account code.
func (c *Chart) Lookup(code string) (ChartEntry, bool) {
	e, ok := c.entries[code]
	return e, ok
}

// BucketFor classifies an account code into a cash-flow bucket. The table
// is total: codes outside the chart (per-debtor receivable accounts, for
// example) fall back to operating.
func (c *Chart) BucketFor(code string) CashFlowBucket {
	if e, ok := c.entries[code]; ok {
		return e.Bucket
	}
	return BucketOperating
}

// IsCashAccount reports whether code is a designated cash/bank account.
func (c *Chart) IsCashAccount(code string) bool {
	return c.entries[code].Cash
}

// Accounts returns the chart as Account records, in chart order, for
// seeding the account repository.
func (c *Chart) Accounts() []Account {
	accounts := make([]Account, 0, len(c.order))
	for _, code := range c.order {
		e := c.entries[code]
		accounts = append(accounts, Account{
			Code:     e.Code,
			Name:     e.Name,
			Type:     e.Type,
			Category: e.Category,
			Active:   true,
		})
	}
	return accounts
}
