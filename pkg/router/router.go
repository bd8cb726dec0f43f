package router

import (
	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/internal/api"
	"ensemble-chat/backend/pkg/config"
	"ensemble-chat/backend/pkg/di"
	"ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/logger"
	"ensemble-chat/backend/pkg/middleware"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger first so every later middleware can pull the request logger
	// from the context.
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger)
	engine.Use(rateLimiter.Middleware())

	go container.Hub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	jwtAuth := middleware.JWTAuth(r.Container.JWTService)

	authHandler := api.NewAuthHandler(r.Container.JWTService)
	healthHandler := api.NewHealthHandler(r.Container.Health)
	sessionHandler := api.NewSessionHandler(r.Container.SessionService)
	characterHandler := api.NewCharacterHandler(r.Container.CharacterService)
	galleryHandler := api.NewGalleryHandler(r.Container.GalleryService)
	speechHandler := api.NewSpeechHandler(r.Container.SpeechService)

	v1 := r.Engine.Group("/api/v1")

	// Public routes (no auth required)
	public := v1.Group("/")
	{
		authHandler.RegisterRoutes(public)
		healthHandler.RegisterRoutes(public)
	}

	// Protected routes (require a guest token)
	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		sessionHandler.RegisterRoutes(protected)
		characterHandler.RegisterRoutes(protected)
		galleryHandler.RegisterRoutes(protected)
		speechHandler.RegisterRoutes(protected)
	}

	// WebSocket subscription per session. Browsers cannot set an
	// Authorization header on the upgrade request, so this route stays
	// outside the JWT group.
	r.Engine.GET("/ws/:sessionId", r.Container.Hub.ServeWS)
}

// corsMiddleware allows the browser client, including websocket upgrades.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
