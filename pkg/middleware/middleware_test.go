package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/jwt"
	"ai-bot-network/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthEngine(tokens *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(errors.ErrorHandler())

	auth := JWTAuthMiddleware(tokens, logger.Nop())
	r.GET("/me", auth, func(c *gin.Context) {
		c.String(http.StatusOK, OwnerID(c))
	})
	r.GET("/admin", auth, RequireRole(jwt.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	tokens := jwt.NewService("middleware-secret", time.Hour)
	r := newAuthEngine(tokens)

	w := get(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_REQUIRED")

	w = get(r, "/me", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")

	token, err := tokens.GenerateToken("user-1", "ada@example.com", jwt.RoleUser)
	require.NoError(t, err)
	w = get(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestRequireRole(t *testing.T) {
	tokens := jwt.NewService("middleware-secret", time.Hour)
	r := newAuthEngine(tokens)

	user, err := tokens.GenerateToken("user-1", "ada@example.com", jwt.RoleUser)
	require.NoError(t, err)
	admin, err := tokens.GenerateToken("root-1", "root@example.com", jwt.RoleAdmin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", user).Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/admin", admin).Code)
}

func TestRateLimiterKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(logger.Nop(), RateLimiterOptions{
		Limit:          0.001,
		Burst:          1,
		ExpiryDuration: time.Minute,
	})

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.GET("/", func(c *gin.Context) {
		c.Set(UserIDKey, c.GetHeader("X-User"))
		c.Next()
	}, limiter.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("a"))
	assert.Equal(t, http.StatusTooManyRequests, do("a"))
	assert.Equal(t, http.StatusOK, do("b"))

	limiter.sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, http.StatusOK, do("a"))
}
