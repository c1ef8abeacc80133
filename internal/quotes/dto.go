package quotes

import (
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/shared"
)

type itemRequest struct {
	ProductID    *int64          `json:"product_id" validate:"omitempty,gt=0"`
	Description  string          `json:"description" validate:"max=255"`
	Quantity     int             `json:"quantity" validate:"gte=1"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	ItemType     string          `json:"item_type" validate:"omitempty,oneof=PRODUCT SERVICE"`
	Prescription json.RawMessage `json:"prescription,omitempty"`
	Notes        *string         `json:"notes"`
}

func (r itemRequest) input() ItemInput {
	return ItemInput{
		ProductID:    r.ProductID,
		Description:  r.Description,
		Quantity:     r.Quantity,
		UnitPrice:    r.UnitPrice,
		Discount:     r.Discount,
		ItemType:     ItemType(r.ItemType),
		Prescription: r.Prescription,
		Notes:        r.Notes,
	}
}

func itemInputs(reqs []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.input())
	}
	return out
}

type createRequest struct {
	CustomerID      *int64          `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName    *string         `json:"customer_name" validate:"omitempty,max=200"`
	Items           []itemRequest   `json:"items" validate:"required,min=1,dive"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountMode    string          `json:"discount_mode" validate:"omitempty,oneof=SEQUENTIAL INDEPENDENT"`
	ValidUntil      *string         `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	FollowUpDate    *string         `json:"follow_up_date" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string         `json:"notes" validate:"omitempty,max=2000"`
}

func (r createRequest) draft() (Draft, error) {
	validUntil, err := parseDate(r.ValidUntil)
	if err != nil {
		return Draft{}, err
	}
	followUp, err := parseDate(r.FollowUpDate)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		CustomerID:      r.CustomerID,
		CustomerName:    r.CustomerName,
		Items:           itemInputs(r.Items),
		DiscountTotal:   r.DiscountTotal,
		DiscountPercent: r.DiscountPercent,
		DiscountMode:    DiscountMode(r.DiscountMode),
		ValidUntil:      validUntil,
		FollowUpDate:    followUp,
		Notes:           r.Notes,
	}, nil
}

type updateRequest struct {
	CustomerID      *int64           `json:"customer_id" validate:"omitempty,gt=0"`
	CustomerName    *string          `json:"customer_name" validate:"omitempty,max=200"`
	Items           *[]itemRequest   `json:"items" validate:"omitempty,min=1,dive"`
	DiscountTotal   *decimal.Decimal `json:"discount_total"`
	DiscountPercent *decimal.Decimal `json:"discount_percent"`
	DiscountMode    *string          `json:"discount_mode" validate:"omitempty,oneof=SEQUENTIAL INDEPENDENT"`
	ValidUntil      *string          `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	FollowUpDate    *string          `json:"follow_up_date" validate:"omitempty,datetime=2006-01-02"`
	Notes           *string          `json:"notes" validate:"omitempty,max=2000"`
}

func (r updateRequest) patch() (Patch, error) {
	validUntil, err := parseDate(r.ValidUntil)
	if err != nil {
		return Patch{}, err
	}
	followUp, err := parseDate(r.FollowUpDate)
	if err != nil {
		return Patch{}, err
	}
	p := Patch{
		CustomerID:      r.CustomerID,
		CustomerName:    r.CustomerName,
		DiscountTotal:   r.DiscountTotal,
		DiscountPercent: r.DiscountPercent,
		ValidUntil:      validUntil,
		FollowUpDate:    followUp,
		Notes:           r.Notes,
	}
	if r.Items != nil {
		items := itemInputs(*r.Items)
		p.Items = &items
	}
	if r.DiscountMode != nil {
		mode := DiscountMode(*r.DiscountMode)
		p.DiscountMode = &mode
	}
	return p, nil
}

type transitionRequest struct {
	Status     string  `json:"status" validate:"required"`
	LostReason *string `json:"lost_reason" validate:"omitempty,max=500"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type itemResponse struct {
	ID           int64           `json:"id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	Description  string          `json:"description"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	LineTotal    decimal.Decimal `json:"line_total"`
	ItemType     ItemType        `json:"item_type"`
	Prescription json.RawMessage `json:"prescription,omitempty"`
}

// Response is the JSON shape of a quote.
type Response struct {
	ID                int64           `json:"id"`
	BranchID          int64           `json:"branch_id"`
	SellerID          int64           `json:"seller_id"`
	SellerName        string          `json:"seller_name,omitempty"`
	CustomerID        *int64          `json:"customer_id,omitempty"`
	Customer          string          `json:"customer"`
	Status            Status          `json:"status"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DiscountTotal     decimal.Decimal `json:"discount_total"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
	DiscountMode      DiscountMode    `json:"discount_mode"`
	Total             decimal.Decimal `json:"total"`
	TotalDisplay      string          `json:"total_display"`
	ValidUntil        *string         `json:"valid_until,omitempty"`
	FollowUpDate      *string         `json:"follow_up_date,omitempty"`
	FollowUpCount     int             `json:"follow_up_count"`
	LastFollowUpAt    *time.Time      `json:"last_follow_up_at,omitempty"`
	SentAt            *time.Time      `json:"sent_at,omitempty"`
	LostReason        *string         `json:"lost_reason,omitempty"`
	ConvertedToSaleID *int64          `json:"converted_to_sale_id,omitempty"`
	ConvertedAt       *time.Time      `json:"converted_at,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	Items             []itemResponse  `json:"items,omitempty"`
}

// ToResponse renders a quote for the API.
func ToResponse(q Quote) Response {
	customer := q.CustomerLabel
	if customer == "" && q.CustomerName != nil {
		customer = *q.CustomerName
	}
	resp := Response{
		ID:                q.ID,
		BranchID:          q.BranchID,
		SellerID:          q.SellerID,
		SellerName:        q.SellerName,
		CustomerID:        q.CustomerID,
		Customer:          customer,
		Status:            q.Status,
		Subtotal:          q.Subtotal,
		DiscountTotal:     q.DiscountTotal,
		DiscountPercent:   q.DiscountPercent,
		DiscountMode:      q.DiscountMode,
		Total:             q.Total,
		TotalDisplay:      shared.FormatMoney(q.Total),
		ValidUntil:        formatDate(q.ValidUntil),
		FollowUpDate:      formatDate(q.FollowUpDate),
		FollowUpCount:     q.FollowUpCount,
		LastFollowUpAt:    q.LastFollowUpAt,
		SentAt:            q.SentAt,
		LostReason:        q.LostReason,
		ConvertedToSaleID: q.ConvertedToSaleID,
		ConvertedAt:       q.ConvertedAt,
		Notes:             q.Notes,
		CreatedAt:         q.CreatedAt,
	}
	for _, it := range q.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			Description:  it.Description,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Discount:     it.Discount,
			LineTotal:    it.LineTotal,
			ItemType:     it.ItemType,
			Prescription: it.Prescription,
		})
	}
	return resp
}

func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *raw)
	if err != nil {
		return nil, shared.Validationf("invalid date %q", *raw)
	}
	return &t, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func optionalID(values url.Values, key string) (*int64, error) {
	raw := values.Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.Validationf("invalid %s", key)
	}
	return &id, nil
}
