// Package quotes manages price quotations from draft to approval, including
// CRM follow-up bookkeeping and conversion statistics.
package quotes

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ItemType distinguishes stocked products from services such as lens fitting.
type ItemType string

const (
	ItemProduct ItemType = "PRODUCT"
	ItemService ItemType = "SERVICE"
)

// DiscountMode controls what the percentage discount applies to.
type DiscountMode string

const (
	// DiscountSequential applies the percentage after the flat discount.
	DiscountSequential DiscountMode = "SEQUENTIAL"
	// DiscountIndependent applies the percentage to the raw subtotal.
	DiscountIndependent DiscountMode = "INDEPENDENT"
)

// Quote is a priced offer to a customer.
type Quote struct {
	ID       int64
	TenantID int64
	BranchID int64
	SellerID int64
	// Exactly one of CustomerID and CustomerName is set.
	CustomerID   *int64
	CustomerName *string
	Status       Status

	Subtotal        decimal.Decimal
	DiscountTotal   decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountMode    DiscountMode
	Total           decimal.Decimal

	// ValidUntil and FollowUpDate are civil dates (midnight UTC).
	ValidUntil   *time.Time
	FollowUpDate *time.Time
	Notes        *string

	FollowUpCount  int
	LastFollowUpAt *time.Time
	SentAt         *time.Time
	LostReason     *string

	ConvertedToSaleID *int64
	ConvertedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Items []Item

	// Read-side enrichment.
	CustomerLabel string
	SellerName    string
}

// Item is one quote line. ProductID is nil for free-text service lines.
type Item struct {
	ID           int64
	QuoteID      int64
	Position     int
	ProductID    *int64
	Description  string
	Quantity     int
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	LineTotal    decimal.Decimal
	ItemType     ItemType
	Prescription json.RawMessage
	Notes        *string
}

// ItemInput describes a line to create.
type ItemInput struct {
	ProductID    *int64
	Description  string
	Quantity     int
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	ItemType     ItemType
	Prescription json.RawMessage
	Notes        *string
}

// Draft carries the fields of a new quote.
type Draft struct {
	CustomerID      *int64
	CustomerName    *string
	Items           []ItemInput
	DiscountTotal   decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountMode    DiscountMode
	ValidUntil      *time.Time
	FollowUpDate    *time.Time
	Notes           *string
}

// Patch carries optional changes to an editable quote. A non-nil Items
// replaces every existing line.
type Patch struct {
	CustomerID      *int64
	CustomerName    *string
	Items           *[]ItemInput
	DiscountTotal   *decimal.Decimal
	DiscountPercent *decimal.Decimal
	DiscountMode    *DiscountMode
	ValidUntil      *time.Time
	FollowUpDate    *time.Time
	Notes           *string
}

// ListFilter narrows quote listings.
type ListFilter struct {
	TenantID   int64
	BranchID   *int64
	Status     *Status
	CustomerID *int64
	SellerID   *int64
	Limit      int
	Offset     int
}

// ExpireResult reports an expiry sweep.
type ExpireResult struct {
	TenantID     int64
	ExpiredCount int64
}
