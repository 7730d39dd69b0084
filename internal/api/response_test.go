package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RoyceAzure/lab/storefront/internal/apperror"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteErrorMapsCodes(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   apperror.Code
	}{
		{name: "not found", err: apperror.NotFound("x"), status: http.StatusNotFound, code: apperror.NotFoundCode},
		{name: "balance", err: apperror.InsufficientBalance(1, 2), status: http.StatusPaymentRequired, code: apperror.InsufficientBalanceCode},
		{name: "conflict", err: apperror.ConcurrencyConflict(errors.New("lock")), status: http.StatusConflict, code: apperror.ConcurrencyConflictCode},
		{name: "already settled", err: apperror.AlreadySettled(1), status: http.StatusOK, code: apperror.AlreadySettledCode},
		{name: "plain error", err: errors.New("db down"), status: http.StatusInternalServerError, code: apperror.InternalCode},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			require.Equal(t, float64(tc.code), body["code"])
		})
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperror.Internal(errors.New("password=secret")))
	body := decode(t, rec)
	require.Equal(t, apperror.ErrStrMap[apperror.InternalCode], body["message"])
}

func TestWriteErrorIncludesRetryAndDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperror.InsufficientStock(apperror.StockShortage{ProductID: 3, Requested: 2, Available: 1}).AsRetryable())
	body := decode(t, rec)
	data := body["data"].(map[string]any)
	require.Equal(t, true, data["retryable"])
	require.Equal(t, float64(1), data["detail"].(map[string]any)["available"])
}

func TestSuccessJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	SuccessJSON(rec, map[string]int{"n": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	require.Equal(t, float64(SuccessCode), body["code"])
}
