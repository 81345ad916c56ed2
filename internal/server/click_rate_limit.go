package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/kolaffiliate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kolaffiliate/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonClientIP = "client-ip-rate"

// ClickRateLimit throttles click recording per client IP. A denied click is
// answered with 429 before anything is stored.
func (s *Server) ClickRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.clickLimiter == nil || !s.clickLimiter.Enabled() {
			c.Next()
			return
		}

		allowed, retryAfter := s.clickLimiter.Allow(c.Request.Context(), c.ClientIP())
		if !allowed {
			denyClickRateLimit(c, normalizeRateLimitEndpoint(c), rateLimitReasonClientIP, retryAfter, s.obsMetrics)
			return
		}
		c.Next()
	}
}

func denyClickRateLimit(c *gin.Context, endpoint, reason string, retryAfter time.Duration, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("click rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", retryAfterSeconds(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
