package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request once the handler chain is done.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithField("ip", GetIPFromContext(c)).
			WithField("method", c.Request.Method).
			WithField("path", c.Request.URL.Path).
			WithField("status", c.Writer.Status()).
			WithField("user-agent", c.Request.UserAgent()).
			WithField("latency", time.Since(start))
		if id, ok := IdentityFrom(c); ok {
			entry = entry.WithField("user_id", id.UserID)
		}

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("http request processed")
		case c.Writer.Status() >= 400:
			entry.Warn("http request processed")
		default:
			entry.Info("http request processed")
		}
	}
}
