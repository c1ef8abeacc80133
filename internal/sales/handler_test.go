package sales

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/quotes"
	"github.com/optica-erp/optica-erp/internal/rbac"
	"github.com/optica-erp/optica-erp/internal/shared"
)

func newTestRouter(t *testing.T, role string) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t)
	h := NewHandler(f.svc, rbac.Middleware{Gate: rbac.DefaultRoles()}, nil)
	actor := shared.Actor{TenantID: tenantID, BranchID: branchID, UserID: actorID, Role: role}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	h.MountRoutes(r)
	return f, r
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerConvert(t *testing.T) {
	_, h := newTestRouter(t, "CASHIER")

	rec := post(h, "/quotes/50/convert", `{"payments":[{"method":"CASH","amount":"999.90"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body conversionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusCompleted, body.Sale.Status)
	assert.Equal(t, "R$ 999,90", body.Sale.TotalDisplay)
	assert.Equal(t, quotes.StatusConverted, body.Quote.Status)
	require.Len(t, body.Sale.Payments, 1)

	rec = post(h, "/quotes/50/convert", `{"payments":[{"method":"CASH","amount":"999.90"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerConvertMapsErrors(t *testing.T) {
	_, h := newTestRouter(t, "CASHIER")

	rec := post(h, "/quotes/50/convert", `{"payments":[{"method":"CASH","amount":"900.00"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = post(h, "/quotes/50/convert", `{"payments":[{"method":"BOLETO","amount":"999.90"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h, "/quotes/404/convert", `{"payments":[]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCancelRequiresPermission(t *testing.T) {
	f, h := newTestRouter(t, "CASHIER")
	require.Equal(t, http.StatusCreated, post(h, "/quotes/50/convert", `{"payments":[{"method":"PIX","amount":"999.90"}]}`).Code)

	var saleID int64
	for id := range f.store.sales {
		saleID = id
	}
	rec := post(h, "/sales/"+strconv.FormatInt(saleID, 10)+"/cancel", `{"reason":"erro"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
