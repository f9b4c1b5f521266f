package responses

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccessFlattensObjects(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, struct {
		PaymentURL string `json:"paymentUrl"`
	}{PaymentURL: "https://pay.example/x"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "https://pay.example/x", body["paymentUrl"])
	assert.NotContains(t, body, "data")
}

func TestWriteSuccessWrapsNonObjects(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, []string{"a", "b"})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{"a", "b"}, body["data"])
}

func TestWriteSuccessNilPayload(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, nil)
	assert.Equal(t, map[string]any{"success": true}, decode(t, w))
}

func TestWriteFailureKeepsPayload(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFailure(w, http.StatusOK, "Payment was cancelled", map[string]any{"responseCode": "24"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment was cancelled", body["message"])
	assert.Equal(t, "24", body["responseCode"])
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMessage(w, http.StatusOK, "Address deleted")
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Address deleted", body["message"])
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "This coupon has expired").
		WithDetails(map[string]string{"field": "code"})
	WriteError(t.Context(), nil, w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "This coupon has expired", body["message"])
	assert.Equal(t, string(pkgerrors.CodeValidation), body["code"])
	assert.NotNil(t, body["details"])
}

func TestWriteErrorSessionExpiredKeepsMessage(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(t.Context(), nil, w, pkgerrors.New(pkgerrors.CodeSessionExpired, "Your session has expired"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decode(t, w)
	assert.Equal(t, "SESSION_EXPIRED", body["code"])
	assert.Equal(t, "Your session has expired", body["message"])
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(t.Context(), nil, w, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, string(pkgerrors.CodeInternal), body["code"])
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, body, "details")
}
