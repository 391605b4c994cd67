package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/soonlist/soonlist-backend/internal/apperr"
)

// RequireRole lets the request through only for the listed roles.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			apperr.Respond(c, apperr.Unauthorized("rbac", "unauthenticated"))
			return
		}
		for _, role := range allowedRoles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		apperr.Respond(c, apperr.Forbidden("rbac", "insufficient role"))
	}
}
