package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return tx.Commit()
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		// Chart of accounts
		`CREATE TABLE IF NOT EXISTS accounts (
			code       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			type       TEXT NOT NULL CHECK (type IN ('asset','liability','equity','income','expense')),
			category   TEXT NOT NULL DEFAULT '',
			active     INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(type)`,

		// Ledger entries (header). Append-only: status is the single mutable
		// column, flipped posted -> reversed when a compensating entry lands.
		`CREATE TABLE IF NOT EXISTS entries (
			transaction_id TEXT PRIMARY KEY,
			date           TEXT NOT NULL,
			description    TEXT NOT NULL,
			reference      TEXT NOT NULL DEFAULT '',
			source         TEXT NOT NULL CHECK (source IN ('payment','invoice','expense_accrual','expense_payment','transfer','manual','reversal')),
			source_id      TEXT NOT NULL DEFAULT '',
			month          TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL DEFAULT 'posted' CHECK (status IN ('posted','reversed')),
			created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source)`,
		// Idempotency: one entry per originating business object per period.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_source_unique
			ON entries(source, source_id, month) WHERE source_id != ''`,

		// Entry lines
		`CREATE TABLE IF NOT EXISTS lines (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_id TEXT NOT NULL REFERENCES entries(transaction_id),
			account_code   TEXT NOT NULL REFERENCES accounts(code),
			account_type   TEXT NOT NULL,
			debit          TEXT NOT NULL,
			credit         TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_txn ON lines(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_account ON lines(account_code)`,

		// Debtors and their billing obligations
		`CREATE TABLE IF NOT EXISTS debtors (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			account_code TEXT NOT NULL UNIQUE REFERENCES accounts(code),
			monthly_rent TEXT NOT NULL,
			move_in      TEXT NOT NULL,
			active       INTEGER NOT NULL DEFAULT 1,
			created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS obligations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			debtor_id  TEXT NOT NULL REFERENCES debtors(id),
			month      TEXT NOT NULL,
			kind       TEXT NOT NULL DEFAULT 'rent',
			expected   TEXT NOT NULL,
			paid       TEXT NOT NULL DEFAULT '0',
			status     TEXT NOT NULL DEFAULT 'unpaid' CHECK (status IN ('unpaid','partial','paid')),
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			UNIQUE(debtor_id, month, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_obligations_debtor ON obligations(debtor_id, month, id)`,

		// Overpayment remainders awaiting a future obligation
		`CREATE TABLE IF NOT EXISTS advances (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			debtor_id   TEXT NOT NULL REFERENCES debtors(id),
			month       TEXT NOT NULL,
			amount      TEXT NOT NULL,
			payment_ref TEXT NOT NULL DEFAULT '',
			consumed_by INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_advances_debtor ON advances(debtor_id, consumed_by)`,

		// Trigger: entries never change except posted -> reversed
		`CREATE TRIGGER IF NOT EXISTS trg_entries_status_only
		BEFORE UPDATE ON entries
		WHEN OLD.transaction_id != NEW.transaction_id
			OR OLD.date != NEW.date
			OR OLD.description != NEW.description
			OR OLD.reference != NEW.reference
			OR OLD.source != NEW.source
			OR OLD.source_id != NEW.source_id
			OR OLD.month != NEW.month
			OR (OLD.status = 'reversed' AND NEW.status != 'reversed')
		BEGIN
			SELECT RAISE(ABORT, 'posted entries are immutable except status posted->reversed');
		END`,

		// Trigger: entries are never deleted
		`CREATE TRIGGER IF NOT EXISTS trg_entries_no_delete
		BEFORE DELETE ON entries
		BEGIN
			SELECT RAISE(ABORT, 'posted entries cannot be deleted');
		END`,

		// Trigger: lines are never modified
		`CREATE TRIGGER IF NOT EXISTS trg_lines_no_update
		BEFORE UPDATE ON lines
		BEGIN
			SELECT RAISE(ABORT, 'posted lines cannot be modified');
		END`,

		// Trigger: lines are never deleted
		`CREATE TRIGGER IF NOT EXISTS trg_lines_no_delete
		BEFORE DELETE ON lines
		BEGIN
			SELECT RAISE(ABORT, 'posted lines cannot be deleted');
		END`,

		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}
