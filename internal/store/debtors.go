package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dormbooks/dormbooks/internal/ledger"
)

// CreateDebtor registers a debtor together with its dedicated accounts
// receivable account, atomically.
func (s *Store) CreateDebtor(ctx context.Context, d *ledger.Debtor) error {
	if d.ID == "" {
		return fmt.Errorf("%w: debtor id is required", ledger.ErrInvalidAccount)
	}
	if d.AccountCode == "" {
		d.AccountCode = ledger.ReceivableCode(d.ID)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.MoveIn.IsZero() {
		d.MoveIn = d.CreatedAt
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (code, name, type, category, active) VALUES (?, ?, 'asset', 'accounts_receivable', 1)`,
		d.AccountCode, "Accounts Receivable - "+d.Name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateDebtor, d.ID)
		}
		return fmt.Errorf("insert receivable account: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO debtors (id, name, account_code, monthly_rent, move_in, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.AccountCode, d.MonthlyRent.String(),
		d.MoveIn.UTC().Format(time.RFC3339Nano), boolToInt(d.Active), d.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateDebtor, d.ID)
		}
		return fmt.Errorf("insert debtor: %w", err)
	}

	return tx.Commit()
}

// GetDebtor loads a debtor with obligations in FIFO order: ascending month,
// then insertion order for same-month ties.
func (s *Store) GetDebtor(ctx context.Context, id string) (*ledger.Debtor, error) {
	var d ledger.Debtor
	var moveIn, createdAt string
	var active int

	err := s.reader.QueryRowContext(ctx,
		`SELECT id, name, account_code, monthly_rent, move_in, active, created_at FROM debtors WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.AccountCode, &d.MonthlyRent, &moveIn, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ledger.ErrDebtorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get debtor: %w", err)
	}

	d.Active = active == 1
	d.MoveIn, _ = time.Parse(time.RFC3339Nano, moveIn)
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := s.reader.QueryContext(ctx,
		`SELECT id, debtor_id, month, kind, expected, paid, status, created_at
		FROM obligations WHERE debtor_id = ? ORDER BY month, id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o ledger.MonthlyObligation
		var kind, status, oCreated string
		if err := rows.Scan(&o.ID, &o.DebtorID, &o.Month, &kind, &o.Expected, &o.Paid, &status, &oCreated); err != nil {
			return nil, fmt.Errorf("scan obligation: %w", err)
		}
		o.Kind = ledger.ObligationKind(kind)
		o.Status = ledger.ObligationStatus(status)
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, oCreated)
		d.Obligations = append(d.Obligations, o)
	}
	return &d, rows.Err()
}

func (s *Store) ListDebtors(ctx context.Context, activeOnly bool) ([]ledger.Debtor, error) {
	query := `SELECT id, name, account_code, monthly_rent, move_in, active, created_at FROM debtors`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var debtors []ledger.Debtor
	for rows.Next() {
		var d ledger.Debtor
		var moveIn, createdAt string
		var active int
		if err := rows.Scan(&d.ID, &d.Name, &d.AccountCode, &d.MonthlyRent, &moveIn, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan debtor: %w", err)
		}
		d.Active = active == 1
		d.MoveIn, _ = time.Parse(time.RFC3339Nano, moveIn)
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		debtors = append(debtors, d)
	}
	return debtors, rows.Err()
}

// ListAdvances returns a debtor's advances, oldest first. With
// unconsumedOnly set, only remainders not yet applied to an obligation.
func (s *Store) ListAdvances(ctx context.Context, debtorID string, unconsumedOnly bool) ([]ledger.Advance, error) {
	query := `SELECT id, debtor_id, month, amount, payment_ref, consumed_by, created_at
		FROM advances WHERE debtor_id = ?`
	if unconsumedOnly {
		query += ` AND consumed_by = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.reader.QueryContext(ctx, query, debtorID)
	if err != nil {
		return nil, fmt.Errorf("list advances: %w", err)
	}
	defer rows.Close()

	var advances []ledger.Advance
	for rows.Next() {
		var a ledger.Advance
		var createdAt string
		if err := rows.Scan(&a.ID, &a.DebtorID, &a.Month, &a.Amount, &a.PaymentRef, &a.ConsumedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan advance: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		advances = append(advances, a)
	}
	return advances, rows.Err()
}

// ApplyAllocation commits an allocation plan: re-validates the debtor's
// obligation set and every targeted obligation against the state observed
// at preview time, updates the obligations, records any advance remainder,
// and appends the single
// payment entry, all in one transaction. A plan whose payment reference
// was already committed is a no-op returning the existing entry.
func (s *Store) ApplyAllocation(ctx context.Context, plan *ledger.AllocationPlan, e *ledger.Entry) (*ledger.Entry, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := findBySource(ctx, tx, ledger.SourcePayment, plan.PaymentRef, "")
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return s.GetEntry(ctx, existing)
	}

	// Obligations created after the preview (a concurrent accrual cycle)
	// invalidate the plan: its amounts would land as an advance instead of
	// settling the new period.
	var lastID int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM obligations WHERE debtor_id = ?`, plan.DebtorID,
	).Scan(&lastID)
	if err != nil {
		return nil, fmt.Errorf("check obligation set: %w", err)
	}
	if lastID != plan.LastObligationID {
		return nil, fmt.Errorf("%w: obligation set changed since preview", ledger.ErrStalePlan)
	}

	for _, slice := range plan.Slices {
		var paid decimal.Decimal
		err := tx.QueryRowContext(ctx,
			`SELECT paid FROM obligations WHERE id = ? AND debtor_id = ?`,
			slice.ObligationID, plan.DebtorID,
		).Scan(&paid)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: obligation %d", ledger.ErrObligationNotFound, slice.ObligationID)
		}
		if err != nil {
			return nil, fmt.Errorf("load obligation %d: %w", slice.ObligationID, err)
		}
		if !paid.Equal(slice.PaidBefore) {
			return nil, fmt.Errorf("%w: obligation %d paid %s, plan saw %s",
				ledger.ErrStalePlan, slice.ObligationID, paid, slice.PaidBefore)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE obligations SET paid = ?, status = ? WHERE id = ?`,
			slice.PaidAfter.String(), string(slice.NewStatus), slice.ObligationID,
		)
		if err != nil {
			return nil, fmt.Errorf("update obligation %d: %w", slice.ObligationID, err)
		}
	}

	if plan.Advance.IsPositive() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO advances (debtor_id, month, amount, payment_ref) VALUES (?, ?, ?, ?)`,
			plan.DebtorID, plan.AdvanceMonth, plan.Advance.String(), plan.PaymentRef,
		)
		if err != nil {
			return nil, fmt.Errorf("record advance: %w", err)
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

// PostAccrual creates a billing obligation and its accrual entry
// atomically. Unconsumed advances for the period (or earlier) are drained
// into the new obligation's paid amount, oldest first; an advance larger
// than the need keeps its excess, re-targeted at the following period.
// If the (debtor, month, kind) obligation already exists the call is a
// no-op returning the previously posted entry.
func (s *Store) PostAccrual(ctx context.Context, ob *ledger.MonthlyObligation, e *ledger.Entry) (*ledger.Entry, bool, error) {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM obligations WHERE debtor_id = ? AND month = ? AND kind = ?`,
		ob.DebtorID, ob.Month, string(ob.Kind),
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("check obligation: %w", err)
	}
	if err == nil {
		prior, err := s.FindEntryBySource(ctx, e.Source, e.SourceID, e.Month)
		if err != nil {
			return nil, false, err
		}
		return prior, false, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO obligations (debtor_id, month, kind, expected, paid, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ob.DebtorID, ob.Month, string(ob.Kind), ob.Expected.String(), ob.Paid.String(), string(ob.Status),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert obligation: %w", err)
	}
	ob.ID, _ = res.LastInsertId()

	if err := drainAdvances(ctx, tx, ob); err != nil {
		return nil, false, err
	}

	if err := insertEntry(ctx, tx, e); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return e, true, nil
}

// drainAdvances applies unconsumed advances targeting ob's period or
// earlier to ob.Paid, in creation order, until the obligation is covered.
func drainAdvances(ctx context.Context, tx *sql.Tx, ob *ledger.MonthlyObligation) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, amount FROM advances
		WHERE debtor_id = ? AND consumed_by = 0 AND month <= ? ORDER BY id`,
		ob.DebtorID, ob.Month,
	)
	if err != nil {
		return fmt.Errorf("load advances: %w", err)
	}

	type adv struct {
		id     int64
		amount decimal.Decimal
	}
	var advances []adv
	for rows.Next() {
		var a adv
		if err := rows.Scan(&a.id, &a.amount); err != nil {
			rows.Close()
			return fmt.Errorf("scan advance: %w", err)
		}
		advances = append(advances, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, a := range advances {
		need := ob.Remaining()
		if !need.IsPositive() {
			break
		}
		applied := decimal.Min(a.amount, need)
		ob.Paid = ob.Paid.Add(applied)
		ob.Recalc()

		if a.amount.LessThanOrEqual(need) {
			_, err = tx.ExecContext(ctx,
				`UPDATE advances SET consumed_by = ? WHERE id = ?`, ob.ID, a.id)
		} else {
			// Keep the excess waiting for the next period.
			_, err = tx.ExecContext(ctx,
				`UPDATE advances SET amount = ?, month = ? WHERE id = ?`,
				a.amount.Sub(applied).String(), ledger.NextMonth(ob.Month), a.id)
		}
		if err != nil {
			return fmt.Errorf("consume advance %d: %w", a.id, err)
		}
	}

	if len(advances) > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE obligations SET paid = ?, status = ? WHERE id = ?`,
			ob.Paid.String(), string(ob.Status), ob.ID)
		if err != nil {
			return fmt.Errorf("apply advances to obligation: %w", err)
		}
	}
	return nil
}
