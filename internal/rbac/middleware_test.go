package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optica-erp/optica-erp/internal/shared"
)

type failingGate struct{}

func (failingGate) EffectivePermissions(context.Context, shared.Actor) ([]string, error) {
	return nil, errors.New("gate down")
}

func serve(m Middleware, guard func(Middleware) func(http.Handler) http.Handler, actor *shared.Actor) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rr := httptest.NewRecorder()
	guard(m)(next).ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireAnyAndAll(t *testing.T) {
	m := Middleware{Gate: DefaultRoles()}
	seller := &shared.Actor{TenantID: 1, UserID: 2, Role: "seller"}
	admin := &shared.Actor{TenantID: 1, UserID: 1, Role: "ADMIN"}

	convert := func(m Middleware) func(http.Handler) http.Handler { return m.RequireAny(shared.PermQuoteConvert) }
	provision := func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAll(shared.PermFinanceProvision, shared.PermFinanceView)
	}

	assert.Equal(t, http.StatusNoContent, serve(m, convert, seller))
	assert.Equal(t, http.StatusForbidden, serve(m, provision, seller))
	assert.Equal(t, http.StatusNoContent, serve(m, provision, admin))
	assert.Equal(t, http.StatusUnauthorized, serve(m, convert, nil))
}

func TestGateFailureIsInternalError(t *testing.T) {
	m := Middleware{Gate: failingGate{}}
	guard := func(m Middleware) func(http.Handler) http.Handler { return m.RequireAny("x") }
	assert.Equal(t, http.StatusInternalServerError, serve(m, guard, &shared.Actor{TenantID: 1, UserID: 1}))
}

func TestHas(t *testing.T) {
	roles := DefaultRoles()
	seller, _ := roles.EffectivePermissions(context.Background(), shared.Actor{Role: "seller"})
	manager, _ := roles.EffectivePermissions(context.Background(), shared.Actor{Role: "MANAGER"})

	assert.True(t, Has(seller, shared.PermCommissionView))
	assert.False(t, Has(seller, shared.PermCommissionViewAll))
	assert.True(t, Has(manager, shared.PermCommissionViewAll))
	assert.False(t, Has(nil, shared.PermQuoteView))
}
