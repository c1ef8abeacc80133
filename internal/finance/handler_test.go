package finance

import (
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

func financeRouter(repo *memoryRepo, role string) http.Handler {
	h := NewHandler(NewProvisioner(repo, nil, ProvisionerConfig{}), rbac.Middleware{Gate: rbac.DefaultRoles()}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.Actor{TenantID: 5, UserID: 1, Role: role}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
		})
	})
	h.MountRoutes(r)
	return r
}

func TestProvisionEndpointSeedsTenant(t *testing.T) {
	repo := newMemoryRepo()
	router := financeRouter(repo, "MANAGER")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/finance/provision", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		TenantID   int64    `json:"tenant_id"`
		ChartCodes []string `json:"chart_codes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.TenantID)
	assert.Len(t, body.ChartCodes, len(DefaultChart()))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/finance/accounts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []accountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	assert.Len(t, accounts, len(DefaultAccounts()))
	for _, a := range accounts {
		assert.True(t, strings.HasPrefix(a.Display, "R$"), a.Display)
	}
}

func TestProvisionEndpointValidatesBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/finance/provision", strings.NewReader(`{"branch_id":0,"extra":1}`))
	financeRouter(newMemoryRepo(), "ADMIN").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFinanceEndpointsRequirePermissions(t *testing.T) {
	router := financeRouter(newMemoryRepo(), "SELLER")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/finance/provision", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/finance/chart", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
