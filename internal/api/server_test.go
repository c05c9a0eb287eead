package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdmxkit/catalog-builder/internal/extractor"
)

type staticStatus struct {
	s extractor.Status
}

func (f staticStatus) Status() extractor.Status {
	return f.s
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := NewServer(staticStatus{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunStatus(t *testing.T) {
	t.Parallel()

	srv := NewServer(staticStatus{s: extractor.Status{
		RunID:     "run-1",
		State:     extractor.StateExtracting,
		Total:     100,
		Processed: 40,
		Remaining: 60,
		Extracted: 37,
		Failed:    3,
	}}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/run/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got extractor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, extractor.StateExtracting, got.State)
	require.Equal(t, 60, got.Remaining)
}

func TestRunStatusWithoutSource(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/run/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := NewServer(staticStatus{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
