package api

import (
	"net/http"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/service"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles owner registration and login
type AuthHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.UserService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the auth routes. me needs the JWT middleware.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, jwtAuth gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", jwtAuth, h.Me)
	}
}

// Register handles owner registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.CreateUserRequest
	if !bind(c, &req) {
		return
	}

	user, token, err := h.service.CreateUser(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("Owner registered", "userID", user.ID, "role", user.Role)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    models.AuthResponse{User: user.ToResponse(), Token: token},
	})
}

// Login handles owner authentication
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bind(c, &req) {
		return
	}

	user, token, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	h.logger.Info("User logged in successfully",
		"userID", user.ID,
		"role", user.Role,
	)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    models.AuthResponse{User: user.ToResponse(), Token: token},
	})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.GetUserByID(c.Request.Context(), middleware.OwnerID(c))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user.ToResponse()})
}
