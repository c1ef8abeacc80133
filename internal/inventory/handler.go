package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes stock endpoints.
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

// MountRoutes registers stock endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermStockView)).Get("/products/{productID}/stock", h.getLevel)
	r.With(h.rbac.RequireAll(shared.PermStockAdjust)).Post("/products/{productID}/stock/adjust", h.adjust)
}

type levelResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Display     string `json:"display"`
}

func toLevelResponse(lvl Level) levelResponse {
	return levelResponse{ProductID: lvl.ProductID, ProductName: lvl.ProductName, Quantity: lvl.Quantity, Display: shared.FormatQuantity(lvl.Quantity)}
}

func (h *Handler) getLevel(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lvl, err := h.service.Level(r.Context(), actor.TenantID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLevelResponse(lvl))
}

type adjustRequest struct {
	Counted *int   `json:"counted" validate:"required,gte=0"`
	Reason  string `json:"reason" validate:"required,max=255"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	productID, err := httpx.PathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lvl, err := h.service.Adjust(r.Context(), AdjustInput{
		TenantID:  actor.TenantID,
		ProductID: productID,
		Counted:   *req.Counted,
		ActorID:   actor.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.logger.Warn("stock adjust failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLevelResponse(lvl))
}
