package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

// AppendEntry validates and persists a ledger entry with all of its lines
// as one atomic unit. Line account types are denormalized from the chart at
// write time. If an entry with the same (source, source_id, month) already
// exists the call is a no-op returning the existing entry.
func (s *Store) AppendEntry(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if e.SourceID != "" {
		existing, err := findBySource(ctx, tx, e.Source, e.SourceID, e.Month)
		if err != nil {
			return nil, err
		}
		if existing != "" {
			return s.GetEntry(ctx, existing)
		}
	}

	if err := insertEntry(ctx, tx, e); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// insertEntry writes an entry and its lines inside tx. It resolves every
// referenced account, rejecting unknown or inactive codes, and stamps each
// line with the account's type.
func insertEntry(ctx context.Context, tx *sql.Tx, e *ledger.Entry) error {
	if e.TransactionID == "" {
		e.TransactionID = uuid.Must(uuid.NewV7()).String()
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = ledger.StatusPosted
	}

	if err := e.Validate(); err != nil {
		return err
	}

	for i := range e.Lines {
		var typ string
		var active int
		err := tx.QueryRowContext(ctx,
			`SELECT type, active FROM accounts WHERE code = ?`, e.Lines[i].AccountCode,
		).Scan(&typ, &active)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, e.Lines[i].AccountCode)
		}
		if err != nil {
			return fmt.Errorf("resolve account %s: %w", e.Lines[i].AccountCode, err)
		}
		if active != 1 {
			return fmt.Errorf("%w: %s", ledger.ErrAccountInactive, e.Lines[i].AccountCode)
		}
		e.Lines[i].AccountType = ledger.AccountType(typ)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO entries (transaction_id, date, description, reference, source, source_id, month, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TransactionID, e.Date.UTC().Format(time.RFC3339Nano), e.Description, e.Reference,
		string(e.Source), e.SourceID, e.Month, string(e.Status),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for i := range e.Lines {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO lines (transaction_id, account_code, account_type, debit, credit, description)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.TransactionID, e.Lines[i].AccountCode, string(e.Lines[i].AccountType),
			e.Lines[i].Debit.String(), e.Lines[i].Credit.String(), e.Lines[i].Description,
		)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", i, err)
		}
		e.Lines[i].ID, _ = res.LastInsertId()
	}
	return nil
}

// findBySource returns the transaction id of the entry matching the
// idempotency key, or "" when none exists.
func findBySource(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, source ledger.Source, sourceID, month string) (string, error) {
	var id string
	err := q.QueryRowContext(ctx,
		`SELECT transaction_id FROM entries WHERE source = ? AND source_id = ? AND month = ?`,
		string(source), sourceID, month,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find entry by source: %w", err)
	}
	return id, nil
}

// FindEntryBySource looks up the entry posted for a business object, used
// by the engines for idempotency checks outside a write transaction.
func (s *Store) FindEntryBySource(ctx context.Context, source ledger.Source, sourceID, month string) (*ledger.Entry, error) {
	id, err := findBySource(ctx, s.reader, source, sourceID, month)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ledger.ErrEntryNotFound
	}
	return s.GetEntry(ctx, id)
}

func (s *Store) GetEntry(ctx context.Context, transactionID string) (*ledger.Entry, error) {
	var e ledger.Entry
	var date, source, status, createdAt string

	err := s.reader.QueryRowContext(ctx,
		`SELECT transaction_id, date, description, reference, source, source_id, month, status, created_at
		FROM entries WHERE transaction_id = ?`, transactionID,
	).Scan(&e.TransactionID, &date, &e.Description, &e.Reference, &source, &e.SourceID, &e.Month, &status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, transactionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	e.Source = ledger.Source(source)
	e.Status = ledger.Status(status)
	e.Date, _ = time.Parse(time.RFC3339Nano, date)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	lines, err := s.linesForEntry(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	e.Lines = lines
	return &e, nil
}

// QueryEntries is the read side of the ledger: it never blocks writers and
// only ever observes fully committed entries.
func (s *Store) QueryEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, error) {
	query := `SELECT DISTINCT e.transaction_id, e.date, e.description, e.reference, e.source, e.source_id, e.month, e.status, e.created_at
		FROM entries e`
	args := []any{}

	if filter.AccountCode != "" {
		query += ` JOIN lines l ON l.transaction_id = e.transaction_id WHERE l.account_code = ?`
		args = append(args, filter.AccountCode)
	} else {
		query += ` WHERE 1=1`
	}

	if filter.Source != "" {
		query += ` AND e.source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.Status != "" {
		query += ` AND e.status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.From.IsZero() {
		query += ` AND e.date >= ?`
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if !filter.To.IsZero() {
		query += ` AND e.date <= ?`
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}

	query += ` ORDER BY e.date, e.created_at`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	// Drain and close the header cursor before fetching any lines: a nested
	// query while rows still pins a reader connection deadlocks once the
	// pool is exhausted (guaranteed on a single-connection pool).
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var date, source, status, createdAt string
		if err := rows.Scan(&e.TransactionID, &date, &e.Description, &e.Reference, &source, &e.SourceID, &e.Month, &status, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Source = ledger.Source(source)
		e.Status = ledger.Status(status)
		e.Date, _ = time.Parse(time.RFC3339Nano, date)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range entries {
		lines, err := s.linesForEntry(ctx, entries[i].TransactionID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

// ReverseEntry posts a compensating entry with every line's debit and
// credit swapped, and flips the original's status to reversed. The
// original's lines are untouched. Reversing an already reversed entry is a
// no-op returning the existing reversal.
func (s *Store) ReverseEntry(ctx context.Context, transactionID string, date time.Time) (*ledger.Entry, error) {
	orig, err := s.GetEntry(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if orig.Status == ledger.StatusReversed {
		return s.FindEntryBySource(ctx, ledger.SourceReversal, transactionID, orig.Month)
	}

	rev := orig.Reversal(date)

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEntry(ctx, tx, rev); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE entries SET status = 'reversed' WHERE transaction_id = ?`, transactionID,
	); err != nil {
		return nil, fmt.Errorf("mark reversed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rev, nil
}

func (s *Store) linesForEntry(ctx context.Context, transactionID string) ([]ledger.Line, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, account_code, account_type, debit, credit, description
		FROM lines WHERE transaction_id = ? ORDER BY id`, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	defer rows.Close()

	var lines []ledger.Line
	for rows.Next() {
		var l ledger.Line
		var typ string
		if err := rows.Scan(&l.ID, &l.AccountCode, &typ, &l.Debit, &l.Credit, &l.Description); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.AccountType = ledger.AccountType(typ)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
