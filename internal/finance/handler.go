package finance

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes ledger provisioning endpoints.
type Handler struct {
	provisioner *Provisioner
	rbac        rbac.Middleware
	logger      *slog.Logger
}

// NewHandler builds the handler.
func NewHandler(provisioner *Provisioner, guard rbac.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{provisioner: provisioner, rbac: guard, logger: logger}
}

// MountRoutes registers finance endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermFinanceView))
		r.Get("/finance/chart", h.chart)
		r.Get("/finance/accounts", h.accounts)
	})
	r.With(h.rbac.RequireAll(shared.PermFinanceProvision)).Post("/finance/provision", h.provision)
}

type chartNodeResponse struct {
	ID       int64       `json:"id"`
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Kind     AccountKind `json:"kind"`
	ParentID *int64      `json:"parent_id,omitempty"`
}

type accountResponse struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Type      FinanceAccountType `json:"type"`
	IsDefault bool               `json:"is_default"`
	Balance   decimal.Decimal    `json:"balance"`
	Display   string             `json:"display"`
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	nodes, err := h.provisioner.ListChart(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]chartNodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, chartNodeResponse{ID: n.ID, Code: n.Code, Name: n.Name, Kind: n.Kind, ParentID: n.ParentID})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) accounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	accounts, err := h.provisioner.ListAccounts(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Name: a.Name, Type: a.Type, IsDefault: a.IsDefault, Balance: a.Balance, Display: shared.FormatMoney(a.Balance)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type provisionRequest struct {
	BranchID *int64 `json:"branch_id" validate:"omitempty,gt=0"`
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req provisionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.provisioner.Provision(r.Context(), actor.TenantID, req.BranchID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	nodes, err := h.provisioner.ListChart(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	codes := make([]string, 0, len(nodes))
	for _, n := range nodes {
		codes = append(codes, n.Code)
	}
	sort.Strings(codes)
	httpx.JSON(w, http.StatusOK, map[string]any{"tenant_id": actor.TenantID, "chart_codes": codes})
}
