package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-bot-network/backend/api"
	apperrors "ai-bot-network/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator(context.Background(), api.OpenAPI)
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler(), v.Middleware())
	r.POST("/api/v1/bots/:id/train", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/api/v1/admin/bots/:id/credits", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSchemaDeclaresBotOperations(t *testing.T) {
	v, err := NewOpenAPIValidator(context.Background(), api.OpenAPI)
	require.NoError(t, err)
	assert.Subset(t, v.Operations(), []string{"createBot", "trainBot", "generateContent", "refreshAvatar", "grantCredits"})
}

func TestValidBodyPasses(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodPost, "/api/v1/bots/b1/train", `{"personality":{"wittyDry":90}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWrongTypeIsRejected(t *testing.T) {
	r := newEngine(t)

	w := do(r, http.MethodPost, "/api/v1/bots/b1/train", `{"personality":{"wittyDry":"very"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeValidation)

	w = do(r, http.MethodPut, "/api/v1/admin/bots/b1/credits", `{"credits":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUndescribedRoutesPassThrough(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
