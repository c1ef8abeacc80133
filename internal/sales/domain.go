// Package sales turns approved quotes into committed sales and handles their
// cancellation.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/quotes"
)

// Status enumerates sale states.
type Status string

const (
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

// PaymentMethod identifies how a payment was taken.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "CASH"
	MethodPix        PaymentMethod = "PIX"
	MethodDebitCard  PaymentMethod = "DEBIT_CARD"
	MethodCreditCard PaymentMethod = "CREDIT_CARD"
	MethodOther      PaymentMethod = "OTHER"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodPix, MethodDebitCard, MethodCreditCard, MethodOther:
		return true
	}
	return false
}

// PaymentStatus tracks a payment after it is taken.
type PaymentStatus string

const (
	PaymentReceived PaymentStatus = "RECEIVED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Sale is a committed transaction.
type Sale struct {
	ID                   int64
	TenantID             int64
	BranchID             int64
	CustomerID           *int64
	CustomerName         *string
	SellerID             int64
	Subtotal             decimal.Decimal
	DiscountTotal        decimal.Decimal
	DiscountPercent      decimal.Decimal
	DiscountMode         string
	Total                decimal.Decimal
	Status               Status
	ConvertedFromQuoteID *int64
	Notes                *string
	CanceledAt           *time.Time
	CanceledBy           *int64
	CancelReason         *string
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Items    []Item
	Payments []Payment

	CustomerLabel string
	SellerName    string
	BranchName    string
}

// PercentDiscount is the amount taken off by DiscountPercent, the part of
// Subtotal - Total not covered by the flat DiscountTotal.
func (s Sale) PercentDiscount() decimal.Decimal {
	amount := s.Subtotal.Sub(s.DiscountTotal).Sub(s.Total)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Item is a sold line. ProductID is nil for service lines.
type Item struct {
	ID          int64
	SaleID      int64
	ProductID   *int64
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	LineTotal   decimal.Decimal
}

// Payment is money received for a sale.
type Payment struct {
	ID           int64
	SaleID       int64
	Method       PaymentMethod
	Amount       decimal.Decimal
	Installments int
	Status       PaymentStatus
	ReceivedAt   *time.Time
	ReceivedBy   *int64
}

// PaymentInput is one tender offered at conversion.
type PaymentInput struct {
	Method       PaymentMethod
	Amount       decimal.Decimal
	Installments int
}

// ConvertInput requests the conversion of a quote.
type ConvertInput struct {
	QuoteID  int64
	TenantID int64
	BranchID int64
	ActorID  int64
	Payments []PaymentInput
}

// ConversionResult holds both sides of a successful conversion.
type ConversionResult struct {
	Sale  Sale
	Quote quotes.Quote
}

// CancelInput requests the cancellation of a completed sale.
type CancelInput struct {
	TenantID int64
	BranchID int64
	SaleID   int64
	ActorID  int64
	Reason   string
}
