package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

type staticStatus struct {
	summary catalog.RunSummary
}

func (s staticStatus) Summary() catalog.RunSummary { return s.summary }

func TestHealthz(t *testing.T) {
	srv := NewServer(staticStatus{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunStatus(t *testing.T) {
	srv := NewServer(staticStatus{summary: catalog.RunSummary{
		RunID: "run-1",
		State: catalog.StateExtracting,
		Counters: catalog.RunCounters{
			Discovered: 10,
			Succeeded:  4,
		},
	}}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var summary catalog.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "run-1", summary.RunID)
	require.Equal(t, catalog.StateExtracting, summary.State)
	require.Equal(t, 10, summary.Counters.Discovered)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := NewServer(staticStatus{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}
