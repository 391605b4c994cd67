package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/soonlist/soonlist-backend/internal/apperr"
)

const identityKey = "identity"

// Identity is the caller as asserted by the upstream identity provider.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

func (i Identity) IsAdmin() bool { return i.Role == "admin" }

// Claims carried by access tokens. The subject is the user id.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var errNoSecret = errors.New("no signing secret configured")

// AuthMiddleware verifies the HS256 bearer token and stores the Identity.
// With an empty secret every request is rejected.
func AuthMiddleware(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	key := []byte(secret)

	return func(c *gin.Context) {
		if len(key) == 0 {
			apperr.Respond(c, apperr.Internal("auth", "authentication is not configured", errNoSecret))
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			apperr.Respond(c, apperr.Unauthorized("auth", "missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			apperr.Respond(c, apperr.Unauthorized("auth", "invalid Authorization header"))
			return
		}

		var claims Claims
		token, err := parser.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			apperr.Respond(c, apperr.Unauthorized("auth", msg))
			return
		}
		if claims.Subject == "" {
			apperr.Respond(c, apperr.Unauthorized("auth", "subject missing in token"))
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}
		c.Set(identityKey, Identity{UserID: claims.Subject, Username: claims.Username, Role: role})
		c.Next()
	}
}

// IdentityFrom returns the Identity stored by AuthMiddleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// SignToken issues a token in the format AuthMiddleware accepts. Used by the
// CLI and tests; production tokens come from the identity provider.
func SignToken(secret string, claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
