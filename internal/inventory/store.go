package inventory

import (
	"context"
	"fmt"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Store reads and mutates product stock through any Querier, so callers
// can enlist it in their own transaction.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const selectLevel = `SELECT tenant_id, id, name, stock_quantity, updated_at FROM products WHERE tenant_id = $1 AND id = $2`

// Get returns the current level without locking.
func (s *Store) Get(ctx context.Context, tenantID, productID int64) (Level, error) {
	return s.scanLevel(ctx, selectLevel, tenantID, productID)
}

// GetForUpdate locks the product row until the surrounding transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, tenantID, productID int64) (Level, error) {
	return s.scanLevel(ctx, selectLevel+` FOR UPDATE`, tenantID, productID)
}

func (s *Store) scanLevel(ctx context.Context, query string, tenantID, productID int64) (Level, error) {
	var lvl Level
	err := s.q.QueryRow(ctx, query, tenantID, productID).
		Scan(&lvl.TenantID, &lvl.ProductID, &lvl.ProductName, &lvl.Quantity, &lvl.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Level{}, shared.NotFoundf("product %d not found", productID)
		}
		return Level{}, err
	}
	return lvl, nil
}

// Decrement removes qty units. The guard in the WHERE clause keeps the
// floor at zero even without a prior lock.
func (s *Store) Decrement(ctx context.Context, tenantID, productID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var remaining int
	err := s.q.QueryRow(ctx, `UPDATE products SET stock_quantity = stock_quantity - $3, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND stock_quantity >= $3
RETURNING stock_quantity`, tenantID, productID, qty).Scan(&remaining)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, fmt.Errorf("%w: product %d", ErrNegativeStock, productID)
		}
		return 0, err
	}
	return remaining, nil
}

// Increment returns qty units to stock.
func (s *Store) Increment(ctx context.Context, tenantID, productID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	var remaining int
	err := s.q.QueryRow(ctx, `UPDATE products SET stock_quantity = stock_quantity + $3, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2
RETURNING stock_quantity`, tenantID, productID, qty).Scan(&remaining)
	if err != nil {
		if db.IsNoRows(err) {
			return 0, shared.NotFoundf("product %d not found", productID)
		}
		return 0, err
	}
	return remaining, nil
}

// SetQuantity overwrites the on-hand quantity.
func (s *Store) SetQuantity(ctx context.Context, tenantID, productID int64, qty int) error {
	tag, err := s.q.Exec(ctx, `UPDATE products SET stock_quantity = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2`, tenantID, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("product %d not found", productID)
	}
	return nil
}
