package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesProblemJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/orders/abc", nil)
	req.Header.Set("X-Trace-ID", "trace-123")

	Write(rec, req, http.StatusConflict, Type("order/invalid-transition"), "", "cannot start a completed order")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var details Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "https://errors.richboost.gg/order/invalid-transition", details.Type)
	assert.Equal(t, "Conflict", details.Title)
	assert.Equal(t, http.StatusConflict, details.Status)
	assert.Equal(t, "cannot start a completed order", details.Detail)
	assert.Equal(t, "/v1/orders/abc", details.Instance)
	assert.Equal(t, "trace-123", details.RequestID)
}

func TestWriteDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)

	Write(rec, req, http.StatusNotFound, "", "", "nothing here")

	var details Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, "about:blank", details.Type)
	assert.Equal(t, "Not Found", details.Title)
	assert.Empty(t, details.RequestID)
}
