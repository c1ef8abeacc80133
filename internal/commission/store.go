package commission

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Store persists accruals through any Querier.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// SellerRate returns the seller's configured percentage, nil when unset.
func (s *Store) SellerRate(ctx context.Context, tenantID, sellerID int64) (*decimal.Decimal, error) {
	var rate decimal.NullDecimal
	err := s.q.QueryRow(ctx, `SELECT commission_percent FROM users WHERE tenant_id = $1 AND id = $2`, tenantID, sellerID).Scan(&rate)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.NotFoundf("seller %d not found", sellerID)
		}
		return nil, err
	}
	if !rate.Valid {
		return nil, nil
	}
	return &rate.Decimal, nil
}

// Insert stores one accrual; a second accrual for the same sale and seller is a duplicate.
func (s *Store) Insert(ctx context.Context, a Accrual) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO commissions (tenant_id, sale_id, seller_id, base_amount, percentage, amount, status, period_month, period_year, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		a.TenantID, a.SaleID, a.SellerID, a.BaseAmount, a.Percentage, a.Amount, string(a.Status), a.PeriodMonth, a.PeriodYear, a.CreatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: commission for sale %d seller %d", shared.ErrDuplicate, a.SaleID, a.SellerID)
		}
		return 0, err
	}
	return id, nil
}

// ListBySeller returns accruals of a seller for a period.
func (s *Store) ListBySeller(ctx context.Context, tenantID, sellerID int64, month, year int) ([]Accrual, error) {
	rows, err := s.q.Query(ctx, `SELECT id, tenant_id, sale_id, seller_id, base_amount, percentage, amount, status, period_month, period_year, created_at
FROM commissions WHERE tenant_id = $1 AND seller_id = $2 AND period_month = $3 AND period_year = $4 ORDER BY id`,
		tenantID, sellerID, month, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Accrual
	for rows.Next() {
		var a Accrual
		var status string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.SaleID, &a.SellerID, &a.BaseAmount, &a.Percentage, &a.Amount,
			&status, &a.PeriodMonth, &a.PeriodYear, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
