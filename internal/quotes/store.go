package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Store persists quotes through any Querier. The sale converter enlists it
// in its own transaction.
type Store struct {
	q db.Querier
}

// NewStore builds a Store over the given pool or transaction.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const quoteSelect = `SELECT q.id, q.tenant_id, q.branch_id, q.seller_id, q.customer_id, q.customer_name, q.status,
q.subtotal, q.discount_total, q.discount_percent, q.discount_mode, q.total,
q.valid_until, q.follow_up_date, q.notes, q.follow_up_count, q.last_follow_up_at, q.sent_at, q.lost_reason,
q.converted_to_sale_id, q.converted_at, q.created_at, q.updated_at,
COALESCE(c.name, q.customer_name, ''), COALESCE(u.name, '')
FROM quotes q
LEFT JOIN customers c ON c.id = q.customer_id
LEFT JOIN users u ON u.id = q.seller_id`

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q            Quote
		status, mode string
	)
	err := row.Scan(&q.ID, &q.TenantID, &q.BranchID, &q.SellerID, &q.CustomerID, &q.CustomerName, &status,
		&q.Subtotal, &q.DiscountTotal, &q.DiscountPercent, &mode, &q.Total,
		&q.ValidUntil, &q.FollowUpDate, &q.Notes, &q.FollowUpCount, &q.LastFollowUpAt, &q.SentAt, &q.LostReason,
		&q.ConvertedToSaleID, &q.ConvertedAt, &q.CreatedAt, &q.UpdatedAt,
		&q.CustomerLabel, &q.SellerName)
	if err != nil {
		return Quote{}, err
	}
	if q.Status, err = ParseStatus(status); err != nil {
		return Quote{}, err
	}
	q.DiscountMode = DiscountMode(mode)
	return q, nil
}

// Get returns a quote with its items.
func (s *Store) Get(ctx context.Context, tenantID, quoteID int64) (Quote, error) {
	return s.get(ctx, tenantID, quoteID, "")
}

// GetForUpdate locks the quote row until the surrounding transaction ends.
func (s *Store) GetForUpdate(ctx context.Context, tenantID, quoteID int64) (Quote, error) {
	return s.get(ctx, tenantID, quoteID, " FOR UPDATE OF q")
}

func (s *Store) get(ctx context.Context, tenantID, quoteID int64, lock string) (Quote, error) {
	q, err := scanQuote(s.q.QueryRow(ctx, quoteSelect+` WHERE q.tenant_id = $1 AND q.id = $2`+lock, tenantID, quoteID))
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, shared.NotFoundf("quote %d not found", quoteID)
		}
		return Quote{}, err
	}
	if q.Items, err = s.items(ctx, q.ID); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (s *Store) items(ctx context.Context, quoteID int64) ([]Item, error) {
	rows, err := s.q.Query(ctx, `SELECT id, quote_id, position, product_id, description, quantity, unit_price, discount, line_total, item_type, prescription, notes
FROM quote_items WHERE quote_id = $1 ORDER BY position, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var (
			it       Item
			itemType string
			rx       []byte
		)
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.Position, &it.ProductID, &it.Description, &it.Quantity,
			&it.UnitPrice, &it.Discount, &it.LineTotal, &itemType, &rx, &it.Notes); err != nil {
			return nil, err
		}
		it.ItemType = ItemType(itemType)
		it.Prescription = rx
		items = append(items, it)
	}
	return items, rows.Err()
}

// Insert stores a new quote header and returns its id.
func (s *Store) Insert(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO quotes (tenant_id, branch_id, seller_id, customer_id, customer_name, status,
subtotal, discount_total, discount_percent, discount_mode, total, valid_until, follow_up_date, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15) RETURNING id`,
		q.TenantID, q.BranchID, q.SellerID, q.CustomerID, q.CustomerName, string(q.Status),
		q.Subtotal, q.DiscountTotal, q.DiscountPercent, string(q.DiscountMode), q.Total, q.ValidUntil, q.FollowUpDate, q.Notes,
		q.CreatedAt).Scan(&id)
	return id, err
}

// UpdateHeader writes every mutable header column.
func (s *Store) UpdateHeader(ctx context.Context, q Quote) error {
	tag, err := s.q.Exec(ctx, `UPDATE quotes SET customer_id = $3, customer_name = $4, status = $5,
subtotal = $6, discount_total = $7, discount_percent = $8, discount_mode = $9, total = $10,
valid_until = $11, follow_up_date = $12, notes = $13, follow_up_count = $14, last_follow_up_at = $15,
sent_at = $16, lost_reason = $17, updated_at = $18
WHERE tenant_id = $1 AND id = $2`,
		q.TenantID, q.ID, q.CustomerID, q.CustomerName, string(q.Status),
		q.Subtotal, q.DiscountTotal, q.DiscountPercent, string(q.DiscountMode), q.Total,
		q.ValidUntil, q.FollowUpDate, q.Notes, q.FollowUpCount, q.LastFollowUpAt,
		q.SentAt, q.LostReason, q.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("quote %d not found", q.ID)
	}
	return nil
}

// ReplaceItems deletes every line of the quote and inserts items in order.
func (s *Store) ReplaceItems(ctx context.Context, quoteID int64, items []Item) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID); err != nil {
		return err
	}
	for _, it := range items {
		var rx any
		if len(it.Prescription) > 0 {
			rx = []byte(it.Prescription)
		}
		if _, err := s.q.Exec(ctx, `INSERT INTO quote_items (quote_id, position, product_id, description, quantity, unit_price, discount, line_total, item_type, prescription, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			quoteID, it.Position, it.ProductID, it.Description, it.Quantity, it.UnitPrice, it.Discount, it.LineTotal,
			string(it.ItemType), rx, it.Notes); err != nil {
			return err
		}
	}
	return nil
}

// MarkConverted moves an APPROVED quote to CONVERTED and sets its sale link.
// The status guard makes a second conversion a no-op that reports failure.
func (s *Store) MarkConverted(ctx context.Context, tenantID, quoteID, saleID int64, at time.Time) error {
	tag, err := s.q.Exec(ctx, `UPDATE quotes SET status = 'CONVERTED', converted_to_sale_id = $3, converted_at = $4,
follow_up_count = follow_up_count + 1, last_follow_up_at = $4, updated_at = $4
WHERE tenant_id = $1 AND id = $2 AND status = 'APPROVED' AND converted_to_sale_id IS NULL`,
		tenantID, quoteID, saleID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: quote %d is no longer APPROVED", ErrInvalidTransition, quoteID)
	}
	return nil
}

// ExpireStale moves active quotes valid until before cutoff to EXPIRED.
func (s *Store) ExpireStale(ctx context.Context, tenantID int64, cutoff, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `UPDATE quotes SET status = 'EXPIRED', updated_at = $3
WHERE tenant_id = $1 AND status IN ('PENDING', 'SENT', 'OPEN') AND valid_until IS NOT NULL AND valid_until < $2`,
		tenantID, cutoff, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns quote headers matching filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Quote, error) {
	clauses := []string{"q.tenant_id = $1"}
	args := []any{filter.TenantID}
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.BranchID != nil {
		add("q.branch_id = $%d", *filter.BranchID)
	}
	if filter.Status != nil {
		switch *filter.Status {
		case StatusPending:
			add("q.status IN ('OPEN', $%d)", string(StatusPending))
		case StatusCancelled:
			add("q.status IN ('CANCELED', $%d)", string(StatusCancelled))
		default:
			add("q.status = $%d", string(*filter.Status))
		}
	}
	if filter.CustomerID != nil {
		add("q.customer_id = $%d", *filter.CustomerID)
	}
	if filter.SellerID != nil {
		add("q.seller_id = $%d", *filter.SellerID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, max(filter.Offset, 0))
	query := quoteSelect + ` WHERE ` + strings.Join(clauses, " AND ") +
		fmt.Sprintf(` ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// StatsRows loads the columns statistics are computed from.
func (s *Store) StatsRows(ctx context.Context, filter StatsFilter) ([]StatsRow, error) {
	clauses := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		clauses = append(clauses, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	rows, err := s.q.Query(ctx, `SELECT status, created_at, converted_at, lost_reason, sent_at, follow_up_date
FROM quotes WHERE `+strings.Join(clauses, " AND "), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatsRow
	for rows.Next() {
		var (
			r      StatsRow
			status string
		)
		if err := rows.Scan(&status, &r.CreatedAt, &r.ConvertedAt, &r.LostReason, &r.SentAt, &r.FollowUpDate); err != nil {
			return nil, err
		}
		if r.Status, err = ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
