package inventory

import (
	"errors"
	"time"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Level is the on-hand quantity of one product for a tenant.
type Level struct {
	TenantID    int64
	ProductID   int64
	ProductName string
	Quantity    int
	UpdatedAt   time.Time
}

// ErrNegativeStock triggered when movement would result negative qty.
var ErrNegativeStock = shared.RuleError("inventory: negative stock not allowed")

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ApplyDelta returns the level after adding delta units, refusing to go below zero.
func ApplyDelta(level Level, delta int) (Level, error) {
	next := level.Quantity + delta
	if next < 0 {
		return level, ErrNegativeStock
	}
	level.Quantity = next
	return level, nil
}

// AdjustInput sets the counted quantity for a product.
type AdjustInput struct {
	TenantID  int64
	ProductID int64
	Counted   int
	ActorID   int64
	Reason    string
}
