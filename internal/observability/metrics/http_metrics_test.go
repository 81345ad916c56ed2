package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/a/:shortCode", func(c *gin.Context) { c.Status(http.StatusFound) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/abc", nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/a/:shortCode", http.MethodGet, "302"))
	assert.Equal(t, float64(2), got)
}

func TestHTTPMetricsReuseRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := newHTTPMetrics(registry, Config{})
	require.NoError(t, err)
	second, err := newHTTPMetrics(registry, Config{})
	require.NoError(t, err)
	assert.Same(t, first.requests, second.requests)
}
