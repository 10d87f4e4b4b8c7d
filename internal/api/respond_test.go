package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorpresa-shop/backend/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", domain.Validationf("bad input"), http.StatusBadRequest},
		{"insufficient stock", &domain.InsufficientStockError{ProductID: "p1", Available: 2, Requested: 5}, http.StatusBadRequest},
		{"total mismatch", domain.ErrTotalMismatch, http.StatusBadRequest},
		{"wrapped total mismatch", fmt.Errorf("checkout: %w", domain.ErrTotalMismatch), http.StatusBadRequest},
		{"invalid address", domain.ErrInvalidAddress, http.StatusBadRequest},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusBadRequest},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"empty cart", domain.ErrEmptyCart, http.StatusNotFound},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"payment", &domain.PaymentError{GatewayOrderID: "GW-1", Err: errors.New("declined")}, http.StatusBadGateway},
		{"reconciliation", &domain.ReconciliationError{GatewayOrderID: "GW-1", Err: errors.New("db down")}, http.StatusInternalServerError},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(discardLogger(), rec, tc.err, false)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestWriteDomainErrorReconciliationWinsOverCause(t *testing.T) {
	err := &domain.ReconciliationError{
		GatewayOrderID: "GW-1",
		UserID:         "user-1",
		CapturedAmount: 299,
		Err:            &domain.InsufficientStockError{ProductID: "p1", Requested: 2},
	}

	rec := httptest.NewRecorder()
	WriteDomainError(discardLogger(), rec, err, false)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "GW-1", body["reference"])
	assert.NotContains(t, body["error"], "stock")
}

func TestWriteDomainErrorStockDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(discardLogger(), rec, &domain.InsufficientStockError{ProductID: "p1", Available: 3, Requested: 7}, false)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(3), body["available_stock"])
}

func TestWriteDomainErrorDetailOnlyOutsideProduction(t *testing.T) {
	err := errors.New("pq: connection refused")

	rec := httptest.NewRecorder()
	WriteDomainError(discardLogger(), rec, err, true)
	var dev map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dev))
	assert.Equal(t, "pq: connection refused", dev["error"])

	rec = httptest.NewRecorder()
	WriteDomainError(discardLogger(), rec, err, false)
	var prod map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&prod))
	assert.Equal(t, "internal server error", prod["error"])
}

func TestRequireUser(t *testing.T) {
	var gotUserID string
	var gotAdmin bool
	handler := RequireUser(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = UserID(r.Context())
		gotAdmin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserRole, RoleAdmin)
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUserID)
	assert.True(t, gotAdmin)

	req = httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set(HeaderUserID, "user-2")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, "user-2", gotUserID)
	assert.False(t, gotAdmin, "missing role header must not grant admin")
}
