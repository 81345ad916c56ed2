package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/kolaffiliate/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsVisitorIdentity(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/a/:shortCode"),
		attribute.String("ip_address", "203.0.113.0"),
		attribute.String("http.user_agent", "curl"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	err := SafeError(errors.New(strings.Repeat("x", 400)))
	assert.Len(t, err.Error(), 256)
}

func TestMiddlewareWithDisabledProvider(t *testing.T) {
	_, err := NewProvider(nil, Config{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func TestMiddlewareTagsAffiliateSpan(t *testing.T) {
	recorder := withRecorder(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/a/:shortCode", func(c *gin.Context) {
		ctx := obscontext.WithKolID(c.Request.Context(), "7")
		c.Request = c.Request.WithContext(obscontext.WithActor(ctx, "kol", "7"))
		c.Status(http.StatusFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/abc12345", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /a/:shortCode", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "7", attrs["affiliate.kol_id"].AsString())
	assert.Equal(t, "kol", attrs["enduser.role"].AsString())
	assert.Equal(t, "abc12345", attrs["affiliate.short_code"].AsString())
	assert.Equal(t, int64(http.StatusFound), attrs["http.status_code"].AsInt64())
}

func TestMiddlewareSkipsProbes(t *testing.T) {
	recorder := withRecorder(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, recorder.Ended())
}
