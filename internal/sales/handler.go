package sales

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/quotes"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes conversion and sale endpoints.
type Handler struct {
	service *Service
	rbac    rbac.Middleware
	logger  *slog.Logger
}

// NewHandler builds the handler.
func NewHandler(service *Service, guard rbac.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, rbac: guard, logger: logger}
}

// MountRoutes registers sale endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAll(shared.PermQuoteConvert)).Post("/quotes/{quoteID}/convert", h.convert)
	r.With(h.rbac.RequireAny(shared.PermSaleView)).Get("/sales/{saleID}", h.show)
	r.With(h.rbac.RequireAll(shared.PermSaleCancel)).Post("/sales/{saleID}/cancel", h.cancel)
}

type paymentRequest struct {
	Method       string          `json:"method" validate:"required,oneof=CASH PIX DEBIT_CARD CREDIT_CARD OTHER"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments" validate:"gte=0,lte=24"`
}

type convertRequest struct {
	Payments []paymentRequest `json:"payments" validate:"dive"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type itemResponse struct {
	ID          int64           `json:"id"`
	ProductID   *int64          `json:"product_id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type paymentResponse struct {
	ID           int64           `json:"id"`
	Method       PaymentMethod   `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
	Status       PaymentStatus   `json:"status"`
	ReceivedAt   *time.Time      `json:"received_at,omitempty"`
}

type saleResponse struct {
	ID                   int64             `json:"id"`
	Status               Status            `json:"status"`
	BranchID             int64             `json:"branch_id"`
	Branch               string            `json:"branch"`
	SellerID             int64             `json:"seller_id"`
	Seller               string            `json:"seller"`
	CustomerID           *int64            `json:"customer_id,omitempty"`
	Customer             string            `json:"customer"`
	Subtotal             decimal.Decimal   `json:"subtotal"`
	DiscountTotal        decimal.Decimal   `json:"discount_total"`
	DiscountPercent      decimal.Decimal   `json:"discount_percent"`
	PercentDiscount      decimal.Decimal   `json:"percent_discount"`
	DiscountMode         string            `json:"discount_mode,omitempty"`
	Total                decimal.Decimal   `json:"total"`
	TotalDisplay         string            `json:"total_display"`
	ConvertedFromQuoteID *int64            `json:"converted_from_quote_id,omitempty"`
	CanceledAt           *time.Time        `json:"canceled_at,omitempty"`
	CancelReason         *string           `json:"cancel_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	Items                []itemResponse    `json:"items"`
	Payments             []paymentResponse `json:"payments"`
}

type conversionResponse struct {
	Sale  saleResponse    `json:"sale"`
	Quote quotes.Response `json:"quote"`
}

func toSaleResponse(s Sale) saleResponse {
	resp := saleResponse{
		ID:                   s.ID,
		Status:               s.Status,
		BranchID:             s.BranchID,
		Branch:               s.BranchName,
		SellerID:             s.SellerID,
		Seller:               s.SellerName,
		CustomerID:           s.CustomerID,
		Customer:             s.CustomerLabel,
		Subtotal:             s.Subtotal,
		DiscountTotal:        s.DiscountTotal,
		DiscountPercent:      s.DiscountPercent,
		PercentDiscount:      s.PercentDiscount(),
		DiscountMode:         s.DiscountMode,
		Total:                s.Total,
		TotalDisplay:         shared.FormatMoney(s.Total),
		ConvertedFromQuoteID: s.ConvertedFromQuoteID,
		CanceledAt:           s.CanceledAt,
		CancelReason:         s.CancelReason,
		CreatedAt:            s.CreatedAt,
		Items:                make([]itemResponse, 0, len(s.Items)),
		Payments:             make([]paymentResponse, 0, len(s.Payments)),
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID: it.ID, ProductID: it.ProductID, Description: it.Description, Quantity: it.Quantity,
			UnitPrice: it.UnitPrice, Discount: it.Discount, LineTotal: it.LineTotal,
		})
	}
	for _, p := range s.Payments {
		resp.Payments = append(resp.Payments, paymentResponse{
			ID: p.ID, Method: p.Method, Amount: p.Amount, Installments: p.Installments,
			Status: p.Status, ReceivedAt: p.ReceivedAt,
		})
	}
	return resp
}

func (h *Handler) convert(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	quoteID, err := httpx.PathID(r, "quoteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req convertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := ConvertInput{
		QuoteID:  quoteID,
		TenantID: actor.TenantID,
		BranchID: actor.BranchID,
		ActorID:  actor.UserID,
	}
	for _, p := range req.Payments {
		input.Payments = append(input.Payments, PaymentInput{
			Method:       PaymentMethod(p.Method),
			Amount:       p.Amount,
			Installments: p.Installments,
		})
	}
	res, err := h.service.ConvertQuote(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, conversionResponse{
		Sale:  toSaleResponse(res.Sale),
		Quote: quotes.ToResponse(res.Quote),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := httpx.PathID(r, "saleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.GetSale(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := httpx.PathID(r, "saleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.CancelSale(r.Context(), CancelInput{
		TenantID: actor.TenantID,
		BranchID: actor.BranchID,
		SaleID:   id,
		ActorID:  actor.UserID,
		Reason:   req.Reason,
	})
	if err != nil {
		h.logger.Warn("sale cancel failed", slog.Int64("sale_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}
