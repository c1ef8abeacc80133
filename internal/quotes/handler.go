package quotes

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/optica-erp/optica-erp/internal/platform/httpx"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Handler exposes quote endpoints.
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

// MountRoutes registers quote endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermQuoteView))
		r.Get("/quotes", h.list)
		r.Get("/quotes/{quoteID}", h.show)
	})
	r.With(h.rbac.RequireAny(shared.PermQuoteStats)).Get("/quotes/stats", h.stats)
	r.With(h.rbac.RequireAll(shared.PermQuoteCreate)).Post("/quotes", h.create)
	r.With(h.rbac.RequireAll(shared.PermQuoteEdit)).Put("/quotes/{quoteID}", h.update)
	r.With(h.rbac.RequireAny(shared.PermQuoteEdit, shared.PermQuoteApprove)).Post("/quotes/{quoteID}/transition", h.transition)
	r.With(h.rbac.RequireAll(shared.PermQuoteCancel)).Post("/quotes/{quoteID}/cancel", h.cancel)
	r.With(h.rbac.RequireAll(shared.PermQuoteMaintain)).Post("/quotes/expire", h.expire)
}

func actorFrom(r *http.Request) (shared.Actor, error) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		return shared.Actor{}, shared.ErrUnauthorized
	}
	return actor, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query := r.URL.Query()
	filter := ListFilter{TenantID: actor.TenantID}
	if filter.BranchID, err = optionalID(query, "branch_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.CustomerID, err = optionalID(query, "customer_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if raw := query.Get("status"); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Status = &status
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))
	quotes, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]Response, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, ToResponse(q))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "quoteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Get(r.Context(), actor.TenantID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(q))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	draft, err := req.draft()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Create(r.Context(), actor, draft)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ToResponse(q))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "quoteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Update(r.Context(), actor.TenantID, id, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(q))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "quoteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Transition(r.Context(), actor.TenantID, id, target, req.LostReason)
	if err != nil {
		h.logger.Info("quote transition rejected", slog.Int64("quote_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(q))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "quoteID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := h.service.Cancel(r.Context(), actor.TenantID, id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(q))
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.ExpireStale(r.Context(), actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"expired": res.ExpiredCount})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	query := r.URL.Query()
	filter := StatsFilter{TenantID: actor.TenantID}
	if filter.BranchID, err = optionalID(query, "branch_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, to := query.Get("from"), query.Get("to")
	if filter.From, err = parseDate(&from); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = parseDate(&to); err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Stats(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
