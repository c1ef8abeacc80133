package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// RepositoryPort abstracts persistence for the stock service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID, productID int64) (Level, error)
}

// TxRepository exposes the transactional stock operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, tenantID, productID int64) (Level, error)
	SetQuantity(ctx context.Context, tenantID, productID int64, qty int) error
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}

// Get reads a stock level outside any transaction.
func (r *Repository) Get(ctx context.Context, tenantID, productID int64) (Level, error) {
	return NewStore(r.pool).Get(ctx, tenantID, productID)
}
