package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/soonlist/soonlist-backend/internal/apperr"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiter limits requests per authenticated user, or per IP before
// authentication. rate uses the limiter format, e.g. "20-M".
func RateLimiter(rate string) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	instance := limiter.New(memory.NewStore(), r)

	return ginlimiter.NewMiddleware(instance,
		ginlimiter.WithKeyGetter(func(c *gin.Context) string {
			if id, ok := IdentityFrom(c); ok {
				return "user:" + id.UserID
			}
			return "ip:" + GetIPFromContext(c)
		}),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(429, gin.H{"error": gin.H{"code": "TOO_MANY_REQUESTS", "message": "rate limit exceeded"}})
		}),
		ginlimiter.WithErrorHandler(func(c *gin.Context, err error) {
			logrus.WithError(err).Error("rate limiter store failed")
			apperr.Respond(c, apperr.Internal("ratelimit", "rate limiter unavailable", err))
		}),
	), nil
}
