package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHandleHealth(t *testing.T) {
	server := NewServer("8080", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	server.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UP", resp.Status)
}

func TestHandleReady_NoProbes(t *testing.T) {
	server := NewServer("8080", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	server.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "READY", resp.Status)
	assert.Contains(t, resp.Details, "timestamp")
}

func TestHandleReady_AllProbesPass(t *testing.T) {
	server := NewServer("8080", zaptest.NewLogger(t))
	server.RegisterReadinessProbe("postgres", func(ctx context.Context) error { return nil })
	server.RegisterReadinessProbe("nats", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	server.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "READY", resp.Status)
	assert.Equal(t, "ok", resp.Details["postgres"])
	assert.Equal(t, "ok", resp.Details["nats"])
}

func TestHandleReady_FailingProbe(t *testing.T) {
	server := NewServer("8080", zaptest.NewLogger(t))
	server.RegisterReadinessProbe("postgres", func(ctx context.Context) error { return nil })
	server.RegisterReadinessProbe("nats", func(ctx context.Context) error {
		return errors.New("nats connection is down")
	})

	rec := httptest.NewRecorder()
	server.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_READY", resp.Status)
	assert.Equal(t, "ok", resp.Details["postgres"])
	assert.Equal(t, "nats connection is down", resp.Details["nats"])
}
