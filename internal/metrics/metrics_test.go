package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	// Recording against initialized collectors must not panic.
	ObserveFetch(200, 150*time.Millisecond)
	ObserveRetry()
	ObserveProduct("succeeded")
	ObserveEmbedding("failed")
	ObserveUpsert("succeeded")
	ObserveStaleDeleted(3)
	ObserveRun("done")
	ObserveRateLimitWait(50 * time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveFetch(200, time.Second)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "catalogsync_pages_fetched_total")
}
