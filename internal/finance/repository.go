package finance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
)

// RepositoryPort abstracts persistence for provisioning.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListChart(ctx context.Context, tenantID int64) ([]ChartNode, error)
	ListAccounts(ctx context.Context, tenantID int64) ([]FinanceAccount, error)
	ListTenantIDs(ctx context.Context) ([]int64, error)
}

// TxRepository exposes the idempotent upserts used by provisioning.
type TxRepository interface {
	UpsertChartNode(ctx context.Context, tenantID int64, node SeedNode, parentID *int64) (int64, error)
	UpsertFinanceAccount(ctx context.Context, tenantID int64, branchID *int64, seed SeedAccount) (FinanceAccount, bool, error)
}

// Repository persists finance entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs fn at READ COMMITTED so concurrent provisioning of the same
// tenant resolves through ON CONFLICT instead of serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("finance repository not initialised")
	}
	return db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// UpsertChartNode inserts or repairs a node. Kind and is_system never change
// after creation.
func (r *txRepository) UpsertChartNode(ctx context.Context, tenantID int64, node SeedNode, parentID *int64) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO chart_of_accounts (tenant_id, code, name, kind, parent_id, is_system)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id, updated_at = NOW()
RETURNING id`, tenantID, node.Code, node.Name, string(node.Kind), parentID).Scan(&id)
	return id, err
}

// UpsertFinanceAccount creates the account with its opening balance or leaves
// an existing one untouched. The bool reports whether a row was inserted.
func (r *txRepository) UpsertFinanceAccount(ctx context.Context, tenantID int64, branchID *int64, seed SeedAccount) (FinanceAccount, bool, error) {
	acc := FinanceAccount{TenantID: tenantID, Name: seed.Name}
	var (
		typ      string
		inserted bool
	)
	err := r.tx.QueryRow(ctx, `INSERT INTO finance_accounts (tenant_id, branch_id, name, type, is_default, balance)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tenant_id, name) DO UPDATE SET updated_at = NOW()
RETURNING id, branch_id, type, is_default, balance, created_at, (xmax = 0)`,
		tenantID, branchID, seed.Name, string(seed.Type), seed.IsDefault, seed.OpeningBalance).
		Scan(&acc.ID, &acc.BranchID, &typ, &acc.IsDefault, &acc.Balance, &acc.CreatedAt, &inserted)
	if err != nil {
		return FinanceAccount{}, false, err
	}
	acc.Type = FinanceAccountType(typ)
	return acc, inserted, nil
}

// ListChart returns the tenant chart ordered by code.
func (r *Repository) ListChart(ctx context.Context, tenantID int64) ([]ChartNode, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, code, name, kind, parent_id, is_system, created_at
FROM chart_of_accounts WHERE tenant_id = $1 ORDER BY code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []ChartNode
	for rows.Next() {
		var n ChartNode
		var kind string
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Code, &n.Name, &kind, &n.ParentID, &n.IsSystem, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Kind = AccountKind(kind)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ListAccounts returns the tenant finance accounts.
func (r *Repository) ListAccounts(ctx context.Context, tenantID int64) ([]FinanceAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, branch_id, name, type, is_default, balance, created_at
FROM finance_accounts WHERE tenant_id = $1 ORDER BY is_default DESC, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []FinanceAccount
	for rows.Next() {
		var a FinanceAccount
		var typ string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.BranchID, &a.Name, &typ, &a.IsDefault, &a.Balance, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = FinanceAccountType(typ)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListTenantIDs returns every active tenant.
func (r *Repository) ListTenantIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM companies WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
