package router

import (
	"context"
	"net/http"

	"ai-bot-network/backend/api"
	handlers "ai-bot-network/backend/internal/api"
	"ai-bot-network/backend/internal/ws"
	"ai-bot-network/backend/pkg/di"
	"ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/jwt"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/middleware"
	"ai-bot-network/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Version is reported by the health endpoint
var Version = "dev"

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256" viewBox="0 0 256 256">` +
	`<rect width="256" height="256" rx="32" fill="#2d3748"/>` +
	`<text x="128" y="160" font-size="120" text-anchor="middle">🤖</text></svg>`

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	RateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// the logger middleware comes first so every later middleware has a request logger
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.Tracing(cfg.Observability.ServiceName))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware())
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(cfg.Security.RateLimit)
	opts.Burst = cfg.Security.RateLimitBurst

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		RateLimiter: middleware.NewRateLimiter(container.Logger, opts),
	}
}

// SetupRoutes registers all application routes. ctx bounds background work
// started for the routes, such as the feed hub.
func (r *Router) SetupRoutes(ctx context.Context) error {
	c := r.Container

	v, err := r.openAPIValidator(ctx)
	if err != nil {
		return err
	}

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)
	authHandler := handlers.NewAuthHandler(c.UserService, r.Logger)
	botHandler := handlers.NewBotHandler(c.Dispatcher)
	healthHandler := handlers.NewHealthHandler(c.Health, c.Dispatcher, c.Breakers, Version)

	healthHandler.RegisterHealthRoutes(r.Engine)
	r.Engine.GET("/metrics", gin.WrapH(c.MetricsHandler))
	r.Engine.GET("/static/avatars/placeholder.svg", placeholderAvatar)
	r.Engine.GET("/api/docs/openapi.yaml", func(gc *gin.Context) {
		gc.Data(http.StatusOK, "application/yaml", api.OpenAPI)
	})

	v1 := r.Engine.Group("/api/v1")
	v1.Use(v.Middleware())
	healthHandler.RegisterHealthRoutes(v1)

	authHandler.RegisterRoutes(v1, jwtAuth)

	// the limiter runs after auth so it can key on the user
	protected := v1.Group("/")
	protected.Use(jwtAuth, r.RateLimiter.Middleware())
	botHandler.RegisterRoutes(protected)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(jwt.RoleAdmin))
	botHandler.RegisterAdminRoutes(admin)

	if c.Feed != nil {
		go c.Feed.Run(ctx)
		r.Engine.GET("/ws/feed", func(gc *gin.Context) {
			ws.ServeWs(ctx, c.Feed, gc)
		})
	}

	go r.RateLimiter.Cleanup(ctx)
	c.Health.Start(ctx)

	return nil
}

// openAPIValidator uses the embedded schema unless a schema file is configured
func (r *Router) openAPIValidator(ctx context.Context) (*validator.OpenAPIValidator, error) {
	path := r.Container.Config.OpenAPI.SchemaPath
	if path == "" {
		return validator.NewOpenAPIValidator(ctx, api.OpenAPI)
	}
	v, err := validator.NewOpenAPIValidatorFromFile(ctx, path)
	if err != nil {
		return nil, err
	}
	r.Logger.Info("OpenAPI validation enabled", "schema", path)
	return v, nil
}

func placeholderAvatar(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", []byte(placeholderSVG))
}

func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

// Enhance CORS middleware to explicitly allow WebSocket-specific headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection, X-Request-ID, X-Trace-ID, X-Served-Tier")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
