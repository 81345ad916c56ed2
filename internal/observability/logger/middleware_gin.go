package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/kolaffiliate/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// Redirects and click beacons dominate traffic; their routine outcomes log
// at debug.
var defaultQuietRoutes = []string{"/a/:shortCode", "/affiliate/track", "/metrics"}

type MiddlewareConfig struct {
	Debug           bool
	ErrorClassifier func(err error) (errorType string, errorCode string)
	// QuietRoutes replaces the default set of high-volume routes.
	QuietRoutes []string
}

// GinMiddleware writes one http_request line per request. The query string
// is left out because tracking URLs carry visitor attribution.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	quiet := make(map[string]struct{})
	routes := cfg.QuietRoutes
	if routes == nil {
		routes = defaultQuietRoutes
	}
	for _, r := range routes {
		quiet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := requestFields(c, route, status, time.Since(start))

		errorType := ""
		if last := c.Errors.Last(); last != nil {
			var errorCode string
			if cfg.ErrorClassifier != nil {
				errorType, errorCode = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", errorCode))
			if cfg.Debug {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		_, isQuiet := quiet[route]
		log := FromContext(c.Request.Context())
		if ce := log.Check(requestLevel(isQuiet, status, errorType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(requestIDHeader)); id != "" {
		return id
	}
	return uuid.NewString()
}

func requestFields(c *gin.Context, route string, status int, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}
	if code := c.Param("shortCode"); code != "" {
		fields = append(fields, zap.String("short_code", code))
	}
	return fields
}

// requestLevel keeps server faults at error everywhere. On quiet routes
// successes, throttling and visitor input errors drop to debug.
func requestLevel(quiet bool, status int, errorType string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case !quiet:
		return zapcore.InfoLevel
	case status < http.StatusBadRequest,
		status == http.StatusTooManyRequests,
		errorType == "validation_error":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}
