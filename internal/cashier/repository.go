package cashier

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// RepositoryPort abstracts persistence for the cashier service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindOpenShift(ctx context.Context, tenantID, branchID int64) (Shift, error)
	ListMovements(ctx context.Context, shiftID int64) ([]Movement, error)
}

// TxRepository exposes transactional shift operations.
type TxRepository interface {
	FindOpenShiftForUpdate(ctx context.Context, tenantID, branchID int64) (Shift, error)
	InsertShift(ctx context.Context, shift Shift) (int64, error)
	CloseShift(ctx context.Context, shift Shift) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	ListMovements(ctx context.Context, shiftID int64) ([]Movement, error)
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn at READ COMMITTED; shift rows are locked explicitly.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("cashier repository not initialised")
	}
	return db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}

// FindOpenShift reads the open shift without locking.
func (r *Repository) FindOpenShift(ctx context.Context, tenantID, branchID int64) (Shift, error) {
	return NewStore(r.pool).FindOpenShift(ctx, tenantID, branchID)
}

// ListMovements reads a shift ledger.
func (r *Repository) ListMovements(ctx context.Context, shiftID int64) ([]Movement, error) {
	return NewStore(r.pool).ListMovements(ctx, shiftID)
}
