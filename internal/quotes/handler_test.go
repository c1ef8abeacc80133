package quotes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

func newTestRouter(t *testing.T, actor shared.Actor) (*memoryRepo, http.Handler) {
	t.Helper()
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	h := NewHandler(svc, rbac.Middleware{Gate: rbac.DefaultRoles()}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	h.MountRoutes(r)
	return repo, r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"customer_name":"Joana","items":[{"product_id":10,"description":"Armação","quantity":1,"unit_price":"250.00"}],"discount_total":"0","discount_percent":"0"}`

func TestHandlerCreateAndShow(t *testing.T) {
	_, h := newTestRouter(t, seller)

	rec := do(t, h, http.MethodPost, "/quotes", createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, StatusPending, created.Status)
	assert.Equal(t, "Joana", created.Customer)
	assert.Equal(t, "R$ 250,00", created.TotalDisplay)
	require.NotNil(t, created.ValidUntil)
	assert.Equal(t, "2024-03-25", *created.ValidUntil)

	rec = do(t, h, http.MethodGet, "/quotes/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/quotes/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejectsUnknownFields(t *testing.T) {
	_, h := newTestRouter(t, seller)
	rec := do(t, h, http.MethodPost, "/quotes", `{"customer_name":"x","items":[],"bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerTransitionMapsBusinessRule(t *testing.T) {
	_, h := newTestRouter(t, shared.Actor{TenantID: 1, BranchID: 3, UserID: 2, Role: "MANAGER"})
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/quotes", createBody).Code)

	rec := do(t, h, http.MethodPost, "/quotes/1/transition", `{"status":"CONVERTED"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes/1/transition", `{"status":"OPEN"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "PENDING -> PENDING is not a transition")

	rec = do(t, h, http.MethodPost, "/quotes/1/transition", `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/quotes/1/cancel", `{"reason":"achou mais barato"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestHandlerEnforcesPermissions(t *testing.T) {
	_, h := newTestRouter(t, seller)
	rec := do(t, h, http.MethodPost, "/quotes/expire", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/quotes/stats", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerListFiltersByLegacyStatus(t *testing.T) {
	repo, h := newTestRouter(t, seller)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/quotes", createBody).Code)
	_, _ = repo.Insert(context.Background(), Quote{TenantID: 1, Status: StatusApproved})

	rec := do(t, h, http.MethodGet, "/quotes?status=open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, StatusPending, out[0].Status)

	rec = do(t, h, http.MethodGet, "/quotes?branch_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
