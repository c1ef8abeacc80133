package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: quote 1", shared.RuleError("quote is not approved")), http.StatusUnprocessableEntity},
		{shared.Validationf("bad"), http.StatusBadRequest},
		{shared.NotFoundf("quote 9"), http.StatusNotFound},
		{shared.ErrDuplicate, http.StatusConflict},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Empty(t, body.Detail)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
}

type sampleRequest struct {
	Name string `json:"name" validate:"required"`
	Qty  int    `json:"qty" validate:"gte=1"`
}

func TestDecodeJSONValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","qty":0}`))
	var target sampleRequest
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "sampleRequest.Name failed required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"lens","qty":2}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, 2, target.Qty)
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","qty":1,"extra":true}`))
	var target sampleRequest
	require.ErrorIs(t, DecodeJSON(req, &target), shared.ErrValidation)
}
