package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// RepositoryPort abstracts persistence for the quote service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, tenantID, quoteID int64) (Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, error)
	StatsRows(ctx context.Context, filter StatsFilter) ([]StatsRow, error)
}

// TxRepository exposes transactional quote operations.
type TxRepository interface {
	GetForUpdate(ctx context.Context, tenantID, quoteID int64) (Quote, error)
	Insert(ctx context.Context, q Quote) (int64, error)
	UpdateHeader(ctx context.Context, q Quote) error
	ReplaceItems(ctx context.Context, quoteID int64, items []Item) error
	ExpireStale(ctx context.Context, tenantID int64, cutoff, now time.Time) (int64, error)
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn at READ COMMITTED; quote rows are locked explicitly so an
// edit racing a conversion waits and then sees the new status.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("quotes repository not initialised")
	}
	return db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}

// Get returns a hydrated quote.
func (r *Repository) Get(ctx context.Context, tenantID, quoteID int64) (Quote, error) {
	return NewStore(r.pool).Get(ctx, tenantID, quoteID)
}

// List returns quote headers.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	return NewStore(r.pool).List(ctx, filter)
}

// StatsRows loads rows for statistics.
func (r *Repository) StatsRows(ctx context.Context, filter StatsFilter) ([]StatsRow, error) {
	return NewStore(r.pool).StatsRows(ctx, filter)
}
