package errors

import (
	"fmt"
	"runtime/debug"

	"ai-bot-network/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler returns a middleware that renders errors attached to the gin
// context (mostly by auth and rate-limit middleware) in the envelope shape.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := FromError(c.Errors[0].Err)

		logger.FromContext(c).Warn("Request error",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"status_code", appErr.StatusCode,
			"error_code", appErr.Code,
			"message", appErr.Message,
		)

		c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
			"success": false,
			"error": Body{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: appErr.Details,
			},
		})
	}
}

// RecoveryWithLogger returns a middleware that recovers from any panics
// and logs the error with the request ID and user ID if available
func RecoveryWithLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())

				logger.FromContext(c).Error("Panic recovered",
					"error", r,
					"stack", stack,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				appErr := NewInternalServerError(CodeInternal, "The server encountered an unexpected error")
				if gin.Mode() == gin.DebugMode {
					appErr.WithDetails(fmt.Sprintf("Panic: %v", r))
				}

				c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
					"success": false,
					"error":   ToBody(appErr),
				})
			}
		}()

		c.Next()
	}
}
