package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Logger attaches logger to the context so response.Fail can report internal
// errors. When access is true every request is logged after it completes.
func Logger(logger *logrus.Logger, access bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxLoggerKey, logger)
		if !access {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString(CtxRequestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    time.Since(start).String(),
			"ip":         ClientIP(c),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

func loggerFrom(c *gin.Context) *logrus.Logger {
	v, ok := c.Get(CtxLoggerKey)
	if !ok {
		return nil
	}
	l, _ := v.(*logrus.Logger)
	return l
}
