package sales

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Store persists sales, their items and payments through any Querier.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const saleSelect = `SELECT s.id, s.tenant_id, s.branch_id, s.customer_id, s.customer_name, s.seller_id,
s.subtotal, s.discount_total, s.discount_percent, s.discount_mode, s.total, s.status, s.converted_from_quote_id, s.notes,
s.canceled_at, s.canceled_by, s.cancel_reason, s.created_at, s.updated_at,
COALESCE(c.name, s.customer_name, ''), COALESCE(u.name, ''), COALESCE(b.name, '')
FROM sales s
LEFT JOIN customers c ON c.id = s.customer_id
LEFT JOIN users u ON u.id = s.seller_id
LEFT JOIN branches b ON b.id = s.branch_id`

func scanSale(row pgx.Row) (Sale, error) {
	var (
		s      Sale
		status string
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.BranchID, &s.CustomerID, &s.CustomerName, &s.SellerID,
		&s.Subtotal, &s.DiscountTotal, &s.DiscountPercent, &s.DiscountMode, &s.Total, &status, &s.ConvertedFromQuoteID, &s.Notes,
		&s.CanceledAt, &s.CanceledBy, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt,
		&s.CustomerLabel, &s.SellerName, &s.BranchName)
	if err != nil {
		return Sale{}, err
	}
	s.Status = Status(status)
	return s, nil
}

// Get returns a sale with items and payments.
func (s *Store) Get(ctx context.Context, tenantID, saleID int64) (Sale, error) {
	return s.get(ctx, tenantID, saleID, "")
}

// GetForUpdate locks the sale row until the surrounding transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, tenantID, saleID int64) (Sale, error) {
	return s.get(ctx, tenantID, saleID, " FOR UPDATE OF s")
}

func (s *Store) get(ctx context.Context, tenantID, saleID int64, lock string) (Sale, error) {
	sale, err := scanSale(s.q.QueryRow(ctx, saleSelect+` WHERE s.tenant_id = $1 AND s.id = $2`+lock, tenantID, saleID))
	if err != nil {
		if db.IsNoRows(err) {
			return Sale{}, shared.NotFoundf("sale %d not found", saleID)
		}
		return Sale{}, err
	}
	if sale.Items, err = s.items(ctx, sale.ID); err != nil {
		return Sale{}, err
	}
	if sale.Payments, err = s.payments(ctx, sale.ID); err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (s *Store) items(ctx context.Context, saleID int64) ([]Item, error) {
	rows, err := s.q.Query(ctx, `SELECT id, sale_id, product_id, description, quantity, unit_price, discount, line_total
FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Description, &it.Quantity,
			&it.UnitPrice, &it.Discount, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) payments(ctx context.Context, saleID int64) ([]Payment, error) {
	rows, err := s.q.Query(ctx, `SELECT id, sale_id, method, amount, installments, status, received_at, received_by
FROM sale_payments WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var (
			p              Payment
			method, status string
		)
		if err := rows.Scan(&p.ID, &p.SaleID, &method, &p.Amount, &p.Installments, &status, &p.ReceivedAt, &p.ReceivedBy); err != nil {
			return nil, err
		}
		p.Method = PaymentMethod(method)
		p.Status = PaymentStatus(status)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// Insert stores a sale header. The unique index on the quote backlink
// rejects a second sale for the same quote.
func (s *Store) Insert(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO sales (tenant_id, branch_id, customer_id, customer_name, seller_id,
subtotal, discount_total, discount_percent, discount_mode, total, status, converted_from_quote_id, notes,
created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14) RETURNING id`,
		sale.TenantID, sale.BranchID, sale.CustomerID, sale.CustomerName, sale.SellerID,
		sale.Subtotal, sale.DiscountTotal, sale.DiscountPercent, saleDiscountMode(sale.DiscountMode), sale.Total,
		string(sale.Status), sale.ConvertedFromQuoteID, sale.Notes,
		sale.CreatedAt).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.Rulef("quote already converted to a sale")
		}
		return 0, err
	}
	return id, nil
}

// InsertItem stores a sale line.
func (s *Store) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, description, quantity, unit_price, discount, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		it.SaleID, it.ProductID, it.Description, it.Quantity, it.UnitPrice, it.Discount, it.LineTotal).Scan(&id)
	return id, err
}

// InsertPayment stores a payment.
func (s *Store) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO sale_payments (sale_id, method, amount, installments, status, received_at, received_by)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.SaleID, string(p.Method), p.Amount, p.Installments, string(p.Status), p.ReceivedAt, p.ReceivedBy).Scan(&id)
	return id, err
}

// MarkPaymentRefunded flags a payment as returned to the customer.
func (s *Store) MarkPaymentRefunded(ctx context.Context, paymentID int64) error {
	tag, err := s.q.Exec(ctx, `UPDATE sale_payments SET status = 'REFUNDED' WHERE id = $1 AND status = 'RECEIVED'`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("received payment %d not found", paymentID)
	}
	return nil
}

// MarkCanceled records the cancellation of a completed sale.
func (s *Store) MarkCanceled(ctx context.Context, sale Sale) error {
	tag, err := s.q.Exec(ctx, `UPDATE sales SET status = 'CANCELED', canceled_at = $3, canceled_by = $4, cancel_reason = $5, updated_at = $3
WHERE tenant_id = $1 AND id = $2 AND status = 'COMPLETED'`,
		sale.TenantID, sale.ID, sale.CanceledAt, sale.CanceledBy, sale.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleCanceled
	}
	return nil
}

func saleDiscountMode(mode string) string {
	if mode == "" {
		return "SEQUENTIAL"
	}
	return mode
}
