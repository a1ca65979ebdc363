package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

type AccountFilter struct {
	Type   ledger.AccountType
	Active *bool
}

func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO accounts (code, name, type, category, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.Code, a.Name, string(a.Type), a.Category, boolToInt(a.Active), a.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateAccount, a.Code)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// SeedChart inserts every chart account that does not exist yet. Existing
// accounts are left untouched: once referenced by a posted entry they are
// immutable.
func (s *Store) SeedChart(ctx context.Context, chart *ledger.Chart) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range chart.Accounts() {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO accounts (code, name, type, category, active) VALUES (?, ?, ?, ?, 1)`,
			a.Code, a.Name, string(a.Type), a.Category,
		)
		if err != nil {
			return fmt.Errorf("seed account %s: %w", a.Code, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetAccount(ctx context.Context, code string) (*ledger.Account, error) {
	var a ledger.Account
	var typ, createdAt string
	var active int

	err := s.reader.QueryRowContext(ctx,
		`SELECT code, name, type, category, active, created_at FROM accounts WHERE code = ?`, code,
	).Scan(&a.Code, &a.Name, &typ, &a.Category, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	a.Type = ledger.AccountType(typ)
	a.Active = active == 1
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT code, name, type, category, active, created_at FROM accounts WHERE 1=1`
	args := []any{}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Active != nil {
		query += ` AND active = ?`
		args = append(args, boolToInt(*filter.Active))
	}
	query += ` ORDER BY code`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		var typ, createdAt string
		var active int
		if err := rows.Scan(&a.Code, &a.Name, &typ, &a.Category, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = ledger.AccountType(typ)
		a.Active = active == 1
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
