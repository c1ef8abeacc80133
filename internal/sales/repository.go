package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/cashier"
	"github.com/optica-erp/optica-erp/internal/commission"
	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/quotes"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// RepositoryPort abstracts persistence for the sale service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, tenantID, saleID int64) (Sale, error)
	GetQuote(ctx context.Context, tenantID, quoteID int64) (quotes.Quote, error)
}

// TxRepository is every write a conversion or cancellation performs. All of
// it runs on one transaction so a failure anywhere leaves no trace.
type TxRepository interface {
	GetQuoteForUpdate(ctx context.Context, tenantID, quoteID int64) (quotes.Quote, error)
	MarkQuoteConverted(ctx context.Context, tenantID, quoteID, saleID int64, at time.Time) error

	FindOpenShiftForUpdate(ctx context.Context, tenantID, branchID int64) (cashier.Shift, error)
	InsertMovement(ctx context.Context, m cashier.Movement) (int64, error)

	GetStockForUpdate(ctx context.Context, tenantID, productID int64) (inventory.Level, error)
	DecrementStock(ctx context.Context, tenantID, productID int64, qty int) (int, error)
	IncrementStock(ctx context.Context, tenantID, productID int64, qty int) (int, error)

	SellerRate(ctx context.Context, tenantID, sellerID int64) (*decimal.Decimal, error)
	InsertCommission(ctx context.Context, a commission.Accrual) (int64, error)

	GetSaleForUpdate(ctx context.Context, tenantID, saleID int64) (Sale, error)
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertItem(ctx context.Context, it Item) (int64, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	MarkPaymentRefunded(ctx context.Context, paymentID int64) error
	MarkCanceled(ctx context.Context, sale Sale) error

	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn at READ COMMITTED. Quote, shift and product rows are locked
// with FOR UPDATE, so a second conversion of the same quote blocks and then
// reads CONVERTED.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, newTxRepo(tx))
	})
}

// GetSale returns a hydrated sale.
func (r *Repository) GetSale(ctx context.Context, tenantID, saleID int64) (Sale, error) {
	return NewStore(r.pool).Get(ctx, tenantID, saleID)
}

// GetQuote returns a hydrated quote.
func (r *Repository) GetQuote(ctx context.Context, tenantID, quoteID int64) (quotes.Quote, error) {
	return quotes.NewStore(r.pool).Get(ctx, tenantID, quoteID)
}

type txRepo struct {
	sales       *Store
	quotes      *quotes.Store
	cash        *cashier.Store
	stock       *inventory.Store
	commissions *commission.Store
	audit       *shared.AuditLogger
}

func newTxRepo(tx pgx.Tx) *txRepo {
	return &txRepo{
		sales:       NewStore(tx),
		quotes:      quotes.NewStore(tx),
		cash:        cashier.NewStore(tx),
		stock:       inventory.NewStore(tx),
		commissions: commission.NewStore(tx),
		audit:       shared.NewAuditLogger(tx),
	}
}

func (t *txRepo) GetQuoteForUpdate(ctx context.Context, tenantID, quoteID int64) (quotes.Quote, error) {
	return t.quotes.GetForUpdate(ctx, tenantID, quoteID)
}

func (t *txRepo) MarkQuoteConverted(ctx context.Context, tenantID, quoteID, saleID int64, at time.Time) error {
	return t.quotes.MarkConverted(ctx, tenantID, quoteID, saleID, at)
}

func (t *txRepo) FindOpenShiftForUpdate(ctx context.Context, tenantID, branchID int64) (cashier.Shift, error) {
	return t.cash.FindOpenShiftForUpdate(ctx, tenantID, branchID)
}

func (t *txRepo) InsertMovement(ctx context.Context, m cashier.Movement) (int64, error) {
	return t.cash.InsertMovement(ctx, m)
}

func (t *txRepo) GetStockForUpdate(ctx context.Context, tenantID, productID int64) (inventory.Level, error) {
	return t.stock.GetForUpdate(ctx, tenantID, productID)
}

func (t *txRepo) DecrementStock(ctx context.Context, tenantID, productID int64, qty int) (int, error) {
	return t.stock.Decrement(ctx, tenantID, productID, qty)
}

func (t *txRepo) IncrementStock(ctx context.Context, tenantID, productID int64, qty int) (int, error) {
	return t.stock.Increment(ctx, tenantID, productID, qty)
}

func (t *txRepo) SellerRate(ctx context.Context, tenantID, sellerID int64) (*decimal.Decimal, error) {
	return t.commissions.SellerRate(ctx, tenantID, sellerID)
}

func (t *txRepo) InsertCommission(ctx context.Context, a commission.Accrual) (int64, error) {
	return t.commissions.Insert(ctx, a)
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, tenantID, saleID int64) (Sale, error) {
	return t.sales.GetForUpdate(ctx, tenantID, saleID)
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	return t.sales.Insert(ctx, sale)
}

func (t *txRepo) InsertItem(ctx context.Context, it Item) (int64, error) {
	return t.sales.InsertItem(ctx, it)
}

func (t *txRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	return t.sales.InsertPayment(ctx, p)
}

func (t *txRepo) MarkPaymentRefunded(ctx context.Context, paymentID int64) error {
	return t.sales.MarkPaymentRefunded(ctx, paymentID)
}

func (t *txRepo) MarkCanceled(ctx context.Context, sale Sale) error {
	return t.sales.MarkCanceled(ctx, sale)
}

func (t *txRepo) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, log)
}
