package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
)

func TestNewPrometheusReader_ServesOTelInstruments(t *testing.T) {
	t.Parallel()

	reader, handler, err := observability.NewPrometheusReader()
	require.NoError(t, err)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { assert.NoError(t, mp.Shutdown(context.Background())) })

	im, err := observability.NewIndexMetrics(mp.Meter("test"))
	require.NoError(t, err)

	im.RecordInsert(context.Background(), "genes", 2)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Contains(t, body, "target_info")
	assert.Contains(t, body, "ivtree_index_inserts")
	assert.Contains(t, body, "go_goroutines")
}
