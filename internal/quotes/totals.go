package quotes

import (
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Totals is the computed money breakdown of a quote.
type Totals struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	PercentAmount decimal.Decimal
	Total         decimal.Decimal
}

// LineTotal is qty × unitPrice − discount.
func LineTotal(qty int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Sub(discount)
}

// ComputeTotals derives subtotal and total from lines and header discounts.
// Sequential mode applies the percentage to subtotal − flat discount;
// independent mode applies it to the subtotal. Total is rounded to cents.
func ComputeTotals(items []Item, flat, percent decimal.Decimal, mode DiscountMode) (Totals, error) {
	if flat.IsNegative() {
		return Totals{}, shared.Validationf("discount total must be >= 0")
	}
	if percent.IsNegative() || percent.GreaterThan(shared.Hundred) {
		return Totals{}, shared.Validationf("discount percent must be between 0 and 100")
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	base := subtotal
	if mode != DiscountIndependent {
		base = subtotal.Sub(flat)
	}
	percentAmount := base.Mul(percent).Div(shared.Hundred)
	total := subtotal.Sub(flat).Sub(percentAmount).Round(2)
	if total.IsNegative() {
		return Totals{}, shared.Validationf("discounts exceed subtotal (total %s)", shared.FormatMoney(total))
	}
	return Totals{Subtotal: subtotal, DiscountTotal: flat, PercentAmount: percentAmount, Total: total}, nil
}

func buildItems(inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, shared.Validationf("quote requires at least one item")
	}
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if in.Quantity <= 0 {
			return nil, shared.Validationf("item %d: quantity must be > 0", i+1)
		}
		if in.UnitPrice.IsNegative() {
			return nil, shared.Validationf("item %d: unit price must be >= 0", i+1)
		}
		if in.Discount.IsNegative() {
			return nil, shared.Validationf("item %d: discount must be >= 0", i+1)
		}
		itemType := in.ItemType
		if itemType == "" {
			itemType = ItemProduct
			if in.ProductID == nil {
				itemType = ItemService
			}
		}
		if itemType != ItemProduct && itemType != ItemService {
			return nil, shared.Validationf("item %d: unknown item type %q", i+1, in.ItemType)
		}
		if itemType == ItemProduct && in.ProductID == nil {
			return nil, shared.Validationf("item %d: product item requires a product", i+1)
		}
		line := LineTotal(in.Quantity, in.UnitPrice, in.Discount)
		if line.IsNegative() {
			return nil, shared.Validationf("item %d: discount exceeds line value", i+1)
		}
		items = append(items, Item{
			Position:     i + 1,
			ProductID:    in.ProductID,
			Description:  in.Description,
			Quantity:     in.Quantity,
			UnitPrice:    in.UnitPrice,
			Discount:     in.Discount,
			LineTotal:    line,
			ItemType:     itemType,
			Prescription: in.Prescription,
			Notes:        in.Notes,
		})
	}
	return items, nil
}
