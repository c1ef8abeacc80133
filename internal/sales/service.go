package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/cashier"
	"github.com/optica-erp/optica-erp/internal/commission"
	"github.com/optica-erp/optica-erp/internal/quotes"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// StatsInvalidator drops cached quote statistics after a conversion.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context, tenantID int64)
}

// ConversionObserver counts conversion outcomes.
type ConversionObserver interface {
	ObserveConversion(outcome string)
}

// ServiceConfig tunes the converter.
type ServiceConfig struct {
	// DefaultCommissionPercent applies to sellers without a configured rate.
	DefaultCommissionPercent decimal.Decimal
	// Location defines "today" for quote validity.
	Location *time.Location
}

// Service converts quotes into sales.
type Service struct {
	repo     RepositoryPort
	stats    StatsInvalidator
	observer ConversionObserver
	logger   *slog.Logger
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService constructs the sale service. stats and observer may be nil.
func NewService(repo RepositoryPort, stats StatsInvalidator, observer ConversionObserver, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.DefaultCommissionPercent.IsPositive() {
		cfg.DefaultCommissionPercent = commission.DefaultPercent
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{repo: repo, stats: stats, observer: observer, logger: logger, cfg: cfg, now: time.Now}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ConvertQuote turns an APPROVED quote into a COMPLETED sale. Every
// precondition is checked under row locks before the first write, and every
// write shares one transaction.
func (s *Service) ConvertQuote(ctx context.Context, input ConvertInput) (ConversionResult, error) {
	if err := validateConvertInput(input); err != nil {
		s.observe(err)
		return ConversionResult{}, err
	}
	correlationID := uuid.NewString()
	now := s.now().UTC()
	today := shared.Today(s.now(), s.cfg.Location)

	var saleID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.GetQuoteForUpdate(ctx, input.TenantID, input.QuoteID)
		if err != nil {
			return err
		}
		if quote.Status != quotes.StatusApproved {
			return fmt.Errorf("%w: quote %d is %s", ErrQuoteNotApproved, quote.ID, quote.Status)
		}
		if quote.ValidUntil != nil && shared.CivilDate(*quote.ValidUntil).Before(today) {
			return fmt.Errorf("%w: quote %d expired on %s", ErrQuoteExpired, quote.ID, quote.ValidUntil.Format("02/01/2006"))
		}
		shift, err := tx.FindOpenShiftForUpdate(ctx, input.TenantID, input.BranchID)
		if err != nil {
			if errors.Is(err, cashier.ErrNoOpenShift) {
				return fmt.Errorf("%w %d: open the register before converting", ErrNoOpenShift, input.BranchID)
			}
			return err
		}
		if err := s.checkStock(ctx, tx, input.TenantID, quote.Items); err != nil {
			return err
		}
		payments, err := normalizePayments(input.Payments)
		if err != nil {
			return err
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		if !shared.MoneyEqual(paid, quote.Total) {
			return fmt.Errorf("%w: paid %s, total %s", ErrPaymentMismatch, shared.FormatMoney(paid), shared.FormatMoney(quote.Total))
		}

		sale := Sale{
			TenantID:             input.TenantID,
			BranchID:             input.BranchID,
			CustomerID:           quote.CustomerID,
			CustomerName:         quote.CustomerName,
			SellerID:             input.ActorID,
			Subtotal:             quote.Subtotal,
			DiscountTotal:        quote.DiscountTotal,
			DiscountPercent:      quote.DiscountPercent,
			DiscountMode:         string(quote.DiscountMode),
			Total:                quote.Total,
			Status:               StatusCompleted,
			ConvertedFromQuoteID: &quote.ID,
			Notes:                quote.Notes,
			CreatedAt:            now,
		}
		if saleID, err = tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, it := range quote.Items {
			if _, err := tx.InsertItem(ctx, Item{
				SaleID:      saleID,
				ProductID:   it.ProductID,
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Discount:    it.Discount,
				LineTotal:   it.LineTotal,
			}); err != nil {
				return err
			}
			if it.ProductID != nil {
				if _, err := tx.DecrementStock(ctx, input.TenantID, *it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		note := fmt.Sprintf("Venda #%d (orçamento #%d)", saleID, quote.ID)
		for _, p := range payments {
			p.SaleID = saleID
			p.Status = PaymentReceived
			p.ReceivedAt = &now
			p.ReceivedBy = &input.ActorID
			paymentID, err := tx.InsertPayment(ctx, p)
			if err != nil {
				return err
			}
			if _, err := tx.InsertMovement(ctx, cashier.Movement{
				TenantID:      input.TenantID,
				BranchID:      input.BranchID,
				ShiftID:       shift.ID,
				Direction:     cashier.DirectionIn,
				Type:          cashier.MovementSalePayment,
				Method:        string(p.Method),
				Amount:        p.Amount,
				SalePaymentID: &paymentID,
				Note:          note,
				CreatedBy:     input.ActorID,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}
		rate, err := tx.SellerRate(ctx, input.TenantID, input.ActorID)
		if err != nil {
			return err
		}
		accrual := commission.NewAccrual(input.TenantID, saleID, input.ActorID, quote.Total,
			commission.Rate(rate, s.cfg.DefaultCommissionPercent), now)
		if _, err := tx.InsertCommission(ctx, accrual); err != nil {
			return err
		}
		if err := tx.MarkQuoteConverted(ctx, input.TenantID, quote.ID, saleID, now); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID:      input.TenantID,
			ActorID:       input.ActorID,
			Action:        "quote.converted",
			Entity:        "sale",
			EntityID:      strconv.FormatInt(saleID, 10),
			CorrelationID: correlationID,
			Meta: map[string]any{
				"quote_id":   quote.ID,
				"total":      quote.Total.StringFixed(2),
				"payments":   len(payments),
				"commission": accrual.Amount.String(),
			},
			At: now,
		})
	})
	s.observe(err)
	if err != nil {
		s.logger.Info("quote conversion rejected",
			slog.Int64("tenant_id", input.TenantID),
			slog.Int64("quote_id", input.QuoteID),
			slog.String("correlation_id", correlationID),
			slog.Any("error", err))
		return ConversionResult{}, err
	}
	if s.stats != nil {
		s.stats.InvalidateStats(ctx, input.TenantID)
	}
	s.logger.Info("quote converted",
		slog.Int64("tenant_id", input.TenantID),
		slog.Int64("quote_id", input.QuoteID),
		slog.Int64("sale_id", saleID),
		slog.String("correlation_id", correlationID))

	sale, err := s.repo.GetSale(ctx, input.TenantID, saleID)
	if err != nil {
		return ConversionResult{}, err
	}
	quote, err := s.repo.GetQuote(ctx, input.TenantID, input.QuoteID)
	if err != nil {
		return ConversionResult{}, err
	}
	return ConversionResult{Sale: sale, Quote: quote}, nil
}

// checkStock locks product rows in id order, summing repeated products, and
// reports the first shortfall.
func (s *Service) checkStock(ctx context.Context, tx TxRepository, tenantID int64, items []quotes.Item) error {
	needed := make(map[int64]int)
	for _, it := range items {
		if it.ProductID != nil {
			needed[*it.ProductID] += it.Quantity
		}
	}
	ids := make([]int64, 0, len(needed))
	for id := range needed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		level, err := tx.GetStockForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if level.Quantity < needed[id] {
			return fmt.Errorf("%w for %q: available=%d, requested=%d",
				ErrInsufficientStock, level.ProductName, level.Quantity, needed[id])
		}
	}
	return nil
}

func validateConvertInput(input ConvertInput) error {
	if input.TenantID <= 0 || input.BranchID <= 0 || input.ActorID <= 0 || input.QuoteID <= 0 {
		return shared.Validationf("tenant, branch, actor and quote are required")
	}
	return nil
}

// normalizePayments runs after the stock check so lookup failures on the
// quote, shift or products are reported before malformed payments.
func normalizePayments(inputs []PaymentInput) ([]Payment, error) {
	out := make([]Payment, 0, len(inputs))
	for i, p := range inputs {
		method := PaymentMethod(strings.ToUpper(strings.TrimSpace(string(p.Method))))
		if !method.Valid() {
			return nil, shared.Validationf("payment %d: unknown method %q", i+1, p.Method)
		}
		if !p.Amount.IsPositive() {
			return nil, shared.Validationf("payment %d: amount must be > 0", i+1)
		}
		installments := p.Installments
		if installments <= 0 {
			installments = 1
		}
		out = append(out, Payment{Method: method, Amount: p.Amount, Installments: installments})
	}
	return out, nil
}

func (s *Service) observe(err error) {
	if s.observer == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrBusinessRule):
		outcome = "rejected"
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrNotFound):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.observer.ObserveConversion(outcome)
}

// CancelSale cancels a completed sale: stock returns to the shelf and every
// CASH payment is refunded through an OUT movement on the open shift.
// Accrued commission is left in place.
func (s *Service) CancelSale(ctx context.Context, input CancelInput) (Sale, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return Sale{}, shared.Validationf("a cancellation reason is required")
	}
	now := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.TenantID, input.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != StatusCompleted {
			return fmt.Errorf("%w: sale %d is %s", ErrSaleCanceled, sale.ID, sale.Status)
		}
		var shift cashier.Shift
		if hasCash(sale.Payments) {
			if shift, err = tx.FindOpenShiftForUpdate(ctx, input.TenantID, sale.BranchID); err != nil {
				if errors.Is(err, cashier.ErrNoOpenShift) {
					return fmt.Errorf("%w %d: open the register to refund cash", ErrNoOpenShift, sale.BranchID)
				}
				return err
			}
		}
		for _, it := range sale.Items {
			if it.ProductID == nil {
				continue
			}
			if _, err := tx.IncrementStock(ctx, input.TenantID, *it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		note := fmt.Sprintf("Estorno da venda #%d", sale.ID)
		for _, p := range sale.Payments {
			if p.Method != MethodCash || p.Status != PaymentReceived {
				continue
			}
			if err := tx.MarkPaymentRefunded(ctx, p.ID); err != nil {
				return err
			}
			paymentID := p.ID
			if _, err := tx.InsertMovement(ctx, cashier.Movement{
				TenantID:      input.TenantID,
				BranchID:      sale.BranchID,
				ShiftID:       shift.ID,
				Direction:     cashier.DirectionOut,
				Type:          cashier.MovementRefund,
				Method:        string(p.Method),
				Amount:        p.Amount,
				SalePaymentID: &paymentID,
				Note:          note,
				CreatedBy:     input.ActorID,
				CreatedAt:     now,
			}); err != nil {
				return err
			}
		}
		sale.CanceledAt = &now
		sale.CanceledBy = &input.ActorID
		sale.CancelReason = &reason
		if err := tx.MarkCanceled(ctx, sale); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			TenantID: input.TenantID,
			ActorID:  input.ActorID,
			Action:   "sale.canceled",
			Entity:   "sale",
			EntityID: strconv.FormatInt(sale.ID, 10),
			Meta:     map[string]any{"reason": reason},
			At:       now,
		})
	})
	if err != nil {
		return Sale{}, err
	}
	s.logger.Info("sale canceled", slog.Int64("tenant_id", input.TenantID), slog.Int64("sale_id", input.SaleID))
	return s.repo.GetSale(ctx, input.TenantID, input.SaleID)
}

func hasCash(payments []Payment) bool {
	for _, p := range payments {
		if p.Method == MethodCash && p.Status == PaymentReceived {
			return true
		}
	}
	return false
}

// GetSale returns a hydrated sale.
func (s *Service) GetSale(ctx context.Context, tenantID, saleID int64) (Sale, error) {
	return s.repo.GetSale(ctx, tenantID, saleID)
}
