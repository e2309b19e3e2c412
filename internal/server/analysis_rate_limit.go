package server

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/reviewmeter/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"go.uber.org/zap"
)

const rateLimitReasonSubscriberRate = "subscriber-rate"

// AnalysisRateLimit applies the per-subscriber token bucket to job
// submissions. A limiter outage fails closed.
func (s *Server) AnalysisRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.analysisLimiter.Enabled() {
			c.Next()
			return
		}

		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		res, err := s.analysisLimiter.AllowSubscriber(ctx, principal.SubscriberID)
		if err != nil {
			logger.FromContext(ctx).Warn("analysis rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyAnalysisRateLimit(c, endpoint, rateLimitReasonSubscriberRate, res.RetryAfter.Seconds(), s.obsMetrics)
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Next()
	}
}

func denyAnalysisRateLimit(c *gin.Context, endpoint, reason string, retryAfterSeconds float64, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("analysis rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	retryAfter := int64(math.Ceil(retryAfterSeconds))
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
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
