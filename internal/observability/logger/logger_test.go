package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/kolaffiliate/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithActor(ctx, "kol", "15")
	ctx = obscontext.WithKolID(ctx, "15")

	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "kol", fields["actor_type"])
	assert.Equal(t, "15", fields["actor_id"])
	assert.Equal(t, "15", fields["kol_id"])
}

func TestWithContextOmitsMissingFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	WithContext(obscontext.WithRequestID(context.Background(), "req-1"), zap.New(core)).Info("click recorded")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.NotContains(t, fields, "kol_id")
	assert.NotContains(t, fields, "actor_type")
	assert.NotContains(t, fields, "trace_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGinMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))

	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = obscontext.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
}

func TestGinMiddlewareKeepsInboundRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Header().Get("X-Request-Id"))
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("update affiliate_links set click_count = click_count + 1"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestDescribeSQL(t *testing.T) {
	op, table := describeSQL(`INSERT INTO "affiliate_orders" ("id","kol_id") VALUES (1,2)`)
	assert.Equal(t, "INSERT", op)
	assert.Equal(t, "affiliate_orders", table)

	op, table = describeSQL("SELECT count(*) FROM affiliate_clicks WHERE kol_id = 7")
	assert.Equal(t, "SELECT", op)
	assert.Equal(t, "affiliate_clicks", table)
}

func TestGormLoggerDowngradesDuplicates(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	l := NewGormLogger(DefaultGormLoggerConfig())
	sql := func() (string, int64) { return "INSERT INTO affiliate_orders (id) VALUES (1)", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrDuplicatedKey)
	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "affiliate_orders", entries[1].ContextMap()["table"])
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, requestLevel(true, http.StatusBadGateway, ""))
	assert.Equal(t, zapcore.InfoLevel, requestLevel(false, http.StatusFound, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel(true, http.StatusFound, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel(true, http.StatusTooManyRequests, "rate_limited"))
	assert.Equal(t, zapcore.DebugLevel, requestLevel(true, http.StatusBadRequest, "validation_error"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel(true, http.StatusNotFound, "not_found"))
}

func TestGinMiddlewareLogsQuietRouteAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/a/:shortCode", func(c *gin.Context) { c.Redirect(http.StatusFound, "/p/1") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/a/abc123?aff=1", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc123", fields["short_code"])
	assert.Equal(t, "/a/abc123", fields["path"])
}
