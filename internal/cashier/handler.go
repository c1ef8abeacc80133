package cashier

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes register shift endpoints.
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

// MountRoutes registers cash endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermCashView)).Get("/cash/shift", h.current)
	r.With(h.rbac.RequireAll(shared.PermCashOpen)).Post("/cash/shift/open", h.open)
	r.With(h.rbac.RequireAll(shared.PermCashClose)).Post("/cash/shift/close", h.close)
	r.With(h.rbac.RequireAll(shared.PermCashMove)).Post("/cash/movements", h.movement)
}

type shiftResponse struct {
	ID              int64                      `json:"id"`
	BranchID        int64                      `json:"branch_id"`
	Status          ShiftStatus                `json:"status"`
	OpeningFloat    decimal.Decimal            `json:"opening_float"`
	OpenedAt        time.Time                  `json:"opened_at"`
	ClosedAt        *time.Time                 `json:"closed_at,omitempty"`
	DeclaredClosing *decimal.Decimal           `json:"declared_closing,omitempty"`
	Difference      *decimal.Decimal           `json:"difference,omitempty"`
	TotalIn         decimal.Decimal            `json:"total_in"`
	TotalOut        decimal.Decimal            `json:"total_out"`
	Expected        decimal.Decimal            `json:"expected"`
	NonCash         map[string]decimal.Decimal `json:"non_cash,omitempty"`
	Movements       int                        `json:"movements"`
}

func toShiftResponse(sum ShiftSummary) shiftResponse {
	return shiftResponse{
		ID:              sum.Shift.ID,
		BranchID:        sum.Shift.BranchID,
		Status:          sum.Shift.Status,
		OpeningFloat:    sum.Shift.OpeningFloat,
		OpenedAt:        sum.Shift.OpenedAt,
		ClosedAt:        sum.Shift.ClosedAt,
		DeclaredClosing: sum.Shift.DeclaredClosing,
		Difference:      sum.Shift.Difference,
		TotalIn:         sum.Totals.In,
		TotalOut:        sum.Totals.Out,
		Expected:        sum.Expected,
		NonCash:         sum.Totals.NonCash,
		Movements:       len(sum.Movements),
	}
}

func branchActor(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.Actor{}, shared.ErrUnauthorized
	}
	if actor.BranchID <= 0 {
		return shared.Actor{}, shared.Validationf("branch header is required for cash operations")
	}
	return actor, nil
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	actor, err := branchActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.CurrentShift(r.Context(), actor.TenantID, actor.BranchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toShiftResponse(sum))
}

type openRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	actor, err := branchActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	shift, err := h.service.OpenShift(r.Context(), OpenShiftInput{
		TenantID:     actor.TenantID,
		BranchID:     actor.BranchID,
		ActorID:      actor.UserID,
		OpeningFloat: req.OpeningFloat,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toShiftResponse(ShiftSummary{Shift: shift, Expected: shift.OpeningFloat}))
}

type closeRequest struct {
	Declared decimal.Decimal `json:"declared"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	actor, err := branchActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.CloseShift(r.Context(), CloseShiftInput{
		TenantID: actor.TenantID,
		BranchID: actor.BranchID,
		ActorID:  actor.UserID,
		Declared: req.Declared,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toShiftResponse(sum))
}

type movementRequest struct {
	Type   string          `json:"type" validate:"required,oneof=SUPPLY WITHDRAWAL"`
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note" validate:"required,max=500"`
}

func (h *Handler) movement(w http.ResponseWriter, r *http.Request) {
	actor, err := branchActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.RecordMovement(r.Context(), ManualMovementInput{
		TenantID: actor.TenantID,
		BranchID: actor.BranchID,
		ActorID:  actor.UserID,
		Type:     MovementType(req.Type),
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if err != nil {
		h.logger.Warn("cash movement rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": m.ID, "direction": m.Direction, "amount": m.Amount})
}
