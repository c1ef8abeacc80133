package commission

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Lister reads accruals of one seller and period.
type Lister interface {
	ListBySeller(ctx context.Context, tenantID, sellerID int64, month, year int) ([]Accrual, error)
}

// Handler exposes commission statements.
type Handler struct {
	store  Lister
	rbac   rbac.Middleware
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewHandler builds the handler. loc defines the default period.
func NewHandler(store Lister, guard rbac.Middleware, logger *slog.Logger, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{store: store, rbac: guard, logger: logger, loc: loc, now: time.Now}
}

// MountRoutes registers commission endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermCommissionView, shared.PermCommissionViewAll)).Get("/commissions", h.statement)
}

type accrualResponse struct {
	ID         int64           `json:"id"`
	SaleID     int64           `json:"sale_id"`
	BaseAmount decimal.Decimal `json:"base_amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type statementResponse struct {
	SellerID     int64             `json:"seller_id"`
	Month        int               `json:"month"`
	Year         int               `json:"year"`
	Total        decimal.Decimal   `json:"total"`
	TotalDisplay string            `json:"total_display"`
	Accruals     []accrualResponse `json:"accruals"`
}

func (h *Handler) statement(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	query := r.URL.Query()
	sellerID := actor.UserID
	if raw := query.Get("seller_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.Validationf("invalid seller_id"))
			return
		}
		sellerID = id
	}
	if sellerID != actor.UserID && h.rbac.Gate != nil {
		granted, err := h.rbac.Gate.EffectivePermissions(r.Context(), actor)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if !rbac.Has(granted, shared.PermCommissionViewAll) {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
	}

	today := h.now().In(h.loc)
	month, year := int(today.Month()), today.Year()
	if raw := query.Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			httpx.RespondError(w, shared.Validationf("month must be within 1..12"))
			return
		}
		month = m
	}
	if raw := query.Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 2000 {
			httpx.RespondError(w, shared.Validationf("invalid year"))
			return
		}
		year = y
	}

	accruals, err := h.store.ListBySeller(r.Context(), actor.TenantID, sellerID, month, year)
	if err != nil {
		h.logger.Error("list commissions", slog.Int64("seller_id", sellerID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := statementResponse{SellerID: sellerID, Month: month, Year: year, Total: decimal.Zero, Accruals: make([]accrualResponse, 0, len(accruals))}
	for _, a := range accruals {
		if a.Status != StatusCanceled {
			resp.Total = resp.Total.Add(a.Amount)
		}
		resp.Accruals = append(resp.Accruals, accrualResponse{
			ID: a.ID, SaleID: a.SaleID, BaseAmount: a.BaseAmount, Percentage: a.Percentage,
			Amount: a.Amount, Status: a.Status, CreatedAt: a.CreatedAt,
		})
	}
	resp.TotalDisplay = shared.FormatMoney(resp.Total)
	httpx.JSON(w, http.StatusOK, resp)
}
