package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func sign(t *testing.T, claims Claims) string {
	t.Helper()
	tok, err := SignToken(testSecret, claims)
	require.NoError(t, err)
	return tok
}

func serve(r http.Handler, auth string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func whoRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append(mw, func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user": id.UserID, "role": id.Role, "ip": GetIPFromContext(c)})
	})
	r.GET("/who", handlers...)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	r := whoRouter(AuthMiddleware(testSecret))

	valid := sign(t, Claims{Username: "ana", RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}})
	w := serve(r, "Bearer "+valid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"user_1","role":"user","ip":"192.0.2.10"}`, w.Body.String())

	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + valid},
		{"garbage", "Bearer abc.def.ghi"},
		{"wrong secret", "Bearer " + func() string {
			tok, _ := SignToken("other", Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}})
			return tok
		}()},
		{"expired", "Bearer " + sign(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user_1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}})},
		{"no subject", "Bearer " + sign(t, Claims{Username: "ana"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.auth, nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
		})
	}
}

// emptyKeyToken is an HS256 token whose MAC was computed with an empty key.
func emptyKeyToken() string {
	enc := base64.RawURLEncoding
	unsigned := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." +
		enc.EncodeToString([]byte(`{"sub":"victim","role":"admin"}`))
	mac := hmac.New(sha256.New, nil)
	mac.Write([]byte(unsigned))
	return unsigned + "." + enc.EncodeToString(mac.Sum(nil))
}

func TestAuthMiddleware_EmptySecretRejectsEverything(t *testing.T) {
	r := whoRouter(AuthMiddleware(""), RequireRole("admin"))

	w := serve(r, "Bearer "+emptyKeyToken(), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "victim")
}

func TestAuthMiddleware_EmptyKeyTokenAgainstRealSecret(t *testing.T) {
	w := serve(whoRouter(AuthMiddleware(testSecret)), "Bearer "+emptyKeyToken(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	r := whoRouter(AuthMiddleware(testSecret), RequireRole("admin"))

	user := sign(t, Claims{Role: "user", RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}})
	admin := sign(t, Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "user_2"}})

	assert.Equal(t, http.StatusForbidden, serve(r, "Bearer "+user, nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "Bearer "+admin, nil).Code)
}

func TestClientIP(t *testing.T) {
	r := whoRouter(ClientIP())

	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"remote addr", nil, "192.0.2.10"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"invalid forwarded falls through", map[string]string{"X-Forwarded-For": "nonsense", "X-Real-Ip": "198.51.100.4"}, "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, "", tt.header)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), `"ip":"`+tt.want+`"`)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limit, err := RateLimiter("2-M")
	require.NoError(t, err)
	r := whoRouter(ClientIP(), limit)

	assert.Equal(t, http.StatusOK, serve(r, "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "", nil).Code)

	// a different client has its own budget
	assert.Equal(t, http.StatusOK, serve(r, "", map[string]string{"X-Real-Ip": "198.51.100.9"}).Code)

	_, err = RateLimiter("often")
	assert.Error(t, err)
}
