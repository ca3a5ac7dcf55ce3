package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-cantina-online/internal/metrics"
	"github.com/oksasatya/go-cantina-online/pkg/apperror"
	"github.com/oksasatya/go-cantina-online/pkg/helpers"
	"github.com/oksasatya/go-cantina-online/pkg/response"
)

var errRateLimited = apperror.New(apperror.KindRateLimited, apperror.ReasonRateLimited, "rate limit exceeded")

// ClientIP returns the address set by RealIP, falling back to gin's view of it.
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(CtxRealIPKey); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

type AllowFunc func(*gin.Context) bool // return true for bypass limit

// RateLimit is a fixed-window limiter keyed by scope and client IP.
// A nil client, or a redis error, lets the request through.
func RateLimit(rdb redis.Cmdable, scope string, max int, window time.Duration, allow AllowFunc) gin.HandlerFunc {
	if rdb == nil || max <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if allow != nil && allow(c) {
			c.Next()
			return
		}
		if strings.EqualFold(c.Request.Method, http.MethodOptions) {
			c.Next()
			return
		}

		key := helpers.KeyRateLimit(scope, ClientIP(c))
		count, ttl, err := helpers.RedisIncrWindow(c.Request.Context(), rdb, key, window)
		if err != nil {
			if l := loggerFrom(c); l != nil {
				l.WithError(err).WithField("scope", scope).Warn("rate limiter unavailable")
			}
			c.Next()
			return
		}

		resetSec := int(ttl.Seconds())
		remaining := max - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))

		if int(count) > max {
			if resetSec > 0 {
				c.Header("Retry-After", strconv.Itoa(resetSec))
			}
			metrics.RateLimited.WithLabelValues(scope).Inc()
			response.Fail(c, errRateLimited)
			return
		}
		c.Next()
	}
}
