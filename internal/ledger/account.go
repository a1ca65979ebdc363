package ledger

import (
	"fmt"
	"time"
)

type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
)

var AllAccountTypes = []AccountType{
	TypeAsset,
	TypeLiability,
	TypeEquity,
	TypeIncome,
	TypeExpense,
}

type Account struct {
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	Category  string      `json:"category"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate checks all account invariants.
func (a *Account) Validate() error {
	if a.Code == "" {
		return ErrInvalidAccountCode
	}
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrInvalidAccount)
	}
	if !ValidAccountType(a.Type) {
		return fmt.Errorf("%w: %s", ErrInvalidAccountType, a.Type)
	}
	return nil
}

// NormalBalance returns "Debit" or "Credit" for the account's type.
// Assets and Expenses are debit-normal; Liabilities, Equity, and Income are credit-normal.
func NormalBalance(t AccountType) string {
	switch t {
	case TypeAsset, TypeExpense:
		return "Debit"
	default:
		return "Credit"
	}
}

// ValidAccountType checks if an account type string is valid.
func ValidAccountType(t AccountType) bool {
	for _, at := range AllAccountTypes {
		if at == t {
			return true
		}
	}
	return false
}

// TypeLabel returns a human-readable label for an account type.
func TypeLabel(t AccountType) string {
	switch t {
	case TypeAsset:
		return "Assets"
	case TypeLiability:
		return "Liabilities"
	case TypeEquity:
		return "Equity"
	case TypeIncome:
		return "Income"
	case TypeExpense:
		return "Expenses"
	default:
		return string(t)
	}
}
