package cashier

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Store persists shifts and movements through any Querier.
// Movements are insert-only; there is no update or delete.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const shiftColumns = `id, tenant_id, branch_id, status, opened_by, opening_float, opened_at, closed_by, closed_at, declared_closing, expected_closing, difference`

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	var status string
	var declared, expected, difference decimal.NullDecimal
	if err := row.Scan(&s.ID, &s.TenantID, &s.BranchID, &status, &s.OpenedBy, &s.OpeningFloat, &s.OpenedAt,
		&s.ClosedBy, &s.ClosedAt, &declared, &expected, &difference); err != nil {
		return Shift{}, err
	}
	s.Status = ShiftStatus(status)
	s.DeclaredClosing = nullable(declared)
	s.ExpectedClosing = nullable(expected)
	s.Difference = nullable(difference)
	return s, nil
}

func nullable(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

// FindOpenShift returns the single open shift of the branch.
func (s *Store) FindOpenShift(ctx context.Context, tenantID, branchID int64) (Shift, error) {
	return s.findOpen(ctx, tenantID, branchID, "")
}

// FindOpenShiftForUpdate locks the open shift row until the transaction ends.
func (s *Store) FindOpenShiftForUpdate(ctx context.Context, tenantID, branchID int64) (Shift, error) {
	return s.findOpen(ctx, tenantID, branchID, " FOR UPDATE")
}

func (s *Store) findOpen(ctx context.Context, tenantID, branchID int64, lock string) (Shift, error) {
	rows, err := s.q.Query(ctx, `SELECT `+shiftColumns+` FROM cash_shifts
WHERE tenant_id = $1 AND branch_id = $2 AND status = 'OPEN' ORDER BY id LIMIT 2`+lock, tenantID, branchID)
	if err != nil {
		return Shift{}, err
	}
	defer rows.Close()
	var shifts []Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return Shift{}, err
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return Shift{}, err
	}
	return pickOpen(shifts, branchID)
}

func pickOpen(shifts []Shift, branchID int64) (Shift, error) {
	switch len(shifts) {
	case 0:
		return Shift{}, fmt.Errorf("%w: branch %d", ErrNoOpenShift, branchID)
	case 1:
		return shifts[0], nil
	default:
		return Shift{}, fmt.Errorf("%w: branch %d", ErrMultipleOpenShifts, branchID)
	}
}

// InsertShift opens a new shift. The partial unique index on open shifts
// surfaces a concurrent open as ErrShiftAlreadyOpen.
func (s *Store) InsertShift(ctx context.Context, shift Shift) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO cash_shifts (tenant_id, branch_id, status, opened_by, opening_float, opened_at)
VALUES ($1, $2, 'OPEN', $3, $4, $5) RETURNING id`,
		shift.TenantID, shift.BranchID, shift.OpenedBy, shift.OpeningFloat, shift.OpenedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: branch %d", ErrShiftAlreadyOpen, shift.BranchID)
		}
		return 0, err
	}
	return id, nil
}

// CloseShift stores the closing figures of an open shift.
func (s *Store) CloseShift(ctx context.Context, shift Shift) error {
	tag, err := s.q.Exec(ctx, `UPDATE cash_shifts SET status = 'CLOSED', closed_by = $2, closed_at = $3,
declared_closing = $4, expected_closing = $5, difference = $6
WHERE id = $1 AND status = 'OPEN'`,
		shift.ID, shift.ClosedBy, shift.ClosedAt, shift.DeclaredClosing, shift.ExpectedClosing, shift.Difference)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("open cash shift %d not found", shift.ID)
	}
	return nil
}

// InsertMovement appends a ledger entry.
func (s *Store) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO cash_movements (tenant_id, branch_id, shift_id, direction, type, method, amount, sale_payment_id, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		m.TenantID, m.BranchID, m.ShiftID, string(m.Direction), string(m.Type), m.Method, m.Amount,
		m.SalePaymentID, m.Note, m.CreatedBy, m.CreatedAt).Scan(&id)
	return id, err
}

// ListMovements returns the ledger of a shift in insertion order.
func (s *Store) ListMovements(ctx context.Context, shiftID int64) ([]Movement, error) {
	rows, err := s.q.Query(ctx, `SELECT id, tenant_id, branch_id, shift_id, direction, type, method, amount, sale_payment_id, note, created_by, created_at
FROM cash_movements WHERE shift_id = $1 ORDER BY id`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var (
			m              Movement
			direction, typ string
		)
		if err := rows.Scan(&m.ID, &m.TenantID, &m.BranchID, &m.ShiftID, &direction, &typ, &m.Method, &m.Amount,
			&m.SalePaymentID, &m.Note, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Direction = Direction(direction)
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}
