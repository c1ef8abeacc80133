// Package commission accrues seller commissions on completed sales.
package commission

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Status tracks the payout state of an accrual.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
)

// DefaultPercent applies when the seller has no configured rate.
var DefaultPercent = decimal.NewFromInt(5)

// Accrual is one commission line owed to a seller for a sale.
type Accrual struct {
	ID          int64
	TenantID    int64
	SaleID      int64
	SellerID    int64
	BaseAmount  decimal.Decimal
	Percentage  decimal.Decimal
	Amount      decimal.Decimal
	Status      Status
	PeriodMonth int
	PeriodYear  int
	CreatedAt   time.Time
}

// Rate picks the seller rate, falling back to fallback and then DefaultPercent.
func Rate(sellerRate *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if sellerRate != nil && !sellerRate.IsNegative() {
		return *sellerRate
	}
	if fallback.IsPositive() {
		return fallback
	}
	return DefaultPercent
}

// Calculate returns base × percent / 100 without intermediate rounding.
func Calculate(base, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).Div(shared.Hundred)
}

// NewAccrual builds a PENDING accrual for the calendar period of at.
func NewAccrual(tenantID, saleID, sellerID int64, base, percent decimal.Decimal, at time.Time) Accrual {
	return Accrual{
		TenantID:    tenantID,
		SaleID:      saleID,
		SellerID:    sellerID,
		BaseAmount:  base,
		Percentage:  percent,
		Amount:      Calculate(base, percent),
		Status:      StatusPending,
		PeriodMonth: int(at.Month()),
		PeriodYear:  at.Year(),
		CreatedAt:   at,
	}
}
