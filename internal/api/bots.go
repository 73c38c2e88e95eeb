package api

import (
	"net/http"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/tier"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// BotHandler exposes bot operations through the tier dispatcher. Every
// response is an envelope naming the tier that produced it.
type BotHandler struct {
	dispatcher *tier.Dispatcher
}

// NewBotHandler creates a bot handler
func NewBotHandler(dispatcher *tier.Dispatcher) *BotHandler {
	return &BotHandler{dispatcher: dispatcher}
}

// RegisterRoutes registers bot routes on an authenticated group
func (h *BotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bots := rg.Group("/bots")
	{
		bots.POST("", h.CreateBot)
		bots.GET("", h.ListBots)
		bots.GET("/:id", h.GetBot)
		bots.DELETE("/:id", h.DeleteBot)
		bots.POST("/:id/train", h.TrainBot)
		bots.POST("/:id/generate", h.Generate)
		bots.POST("/:id/avatar", h.RefreshAvatar)
		bots.GET("/:id/quota", h.Quota)
	}
}

// RegisterAdminRoutes registers operator routes on an admin-only group
func (h *BotHandler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.PUT("/bots/:id/credits", h.GrantCredits)
	rg.POST("/bots/:id/reset", h.ResetBot)
}

func respond(c *gin.Context, env tier.Envelope) {
	c.Header("X-Served-Tier", string(env.Tier))
	c.JSON(env.Status(), env)
}

// bind decodes a JSON body, attaching a validation error when it is malformed
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.Error(apperrors.Wrap(apperrors.ErrValidation, err, "Invalid request format"))
		c.Abort()
		return false
	}
	return true
}

func (h *BotHandler) CreateBot(c *gin.Context) {
	var req models.CreateBotRequest
	if !bind(c, &req) {
		return
	}
	req.OwnerID = middleware.OwnerID(c)

	env := h.dispatcher.CreateBot(c.Request.Context(), req)
	if env.Success {
		c.Header("X-Served-Tier", string(env.Tier))
		c.JSON(http.StatusCreated, env)
		return
	}
	respond(c, env)
}

func (h *BotHandler) ListBots(c *gin.Context) {
	respond(c, h.dispatcher.ListBots(c.Request.Context(), middleware.OwnerID(c)))
}

func (h *BotHandler) GetBot(c *gin.Context) {
	respond(c, h.dispatcher.GetBot(c.Request.Context(), middleware.OwnerID(c), c.Param("id")))
}

func (h *BotHandler) DeleteBot(c *gin.Context) {
	respond(c, h.dispatcher.DeleteBot(c.Request.Context(), middleware.OwnerID(c), c.Param("id")))
}

func (h *BotHandler) TrainBot(c *gin.Context) {
	var req models.TrainRequest
	if !bind(c, &req) {
		return
	}
	respond(c, h.dispatcher.TrainBot(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req))
}

func (h *BotHandler) Generate(c *gin.Context) {
	var req models.GenerationRequest
	if !bind(c, &req) {
		return
	}
	req.BotID = c.Param("id")
	req.RequestedBy = middleware.OwnerID(c)

	respond(c, h.dispatcher.GenerateContent(c.Request.Context(), req))
}

func (h *BotHandler) RefreshAvatar(c *gin.Context) {
	var req models.AvatarRequest
	// an empty body reuses the stored description
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	respond(c, h.dispatcher.RefreshAvatar(c.Request.Context(), middleware.OwnerID(c), c.Param("id"), req))
}

func (h *BotHandler) Quota(c *gin.Context) {
	respond(c, h.dispatcher.Quota(c.Request.Context(), middleware.OwnerID(c), c.Param("id")))
}

func (h *BotHandler) GrantCredits(c *gin.Context) {
	var req models.GrantRequest
	if !bind(c, &req) {
		return
	}
	respond(c, h.dispatcher.GrantCredits(c.Request.Context(), c.Param("id"), req.Credits))
}

func (h *BotHandler) ResetBot(c *gin.Context) {
	respond(c, h.dispatcher.ResetBot(c.Request.Context(), c.Param("id")))
}
