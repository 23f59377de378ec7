package router

import (
	"fun-friday-chat/backend/internal/api"
	"fun-friday-chat/backend/internal/ws"
	"fun-friday-chat/backend/pkg/di"
	"fun-friday-chat/backend/pkg/errors"
	"fun-friday-chat/backend/pkg/logger"
	"fun-friday-chat/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Hub       *ws.Hub
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: middleware.DefaultRateLimiterOptions().ExpiryDuration,
		KeyFunc:        middleware.DefaultRateLimiterOptions().KeyFunc,
	})
	engine.Use(rateLimiter.Middleware())

	hub := ws.NewHub(
		container.Resolver,
		container.Registry,
		container.Relay,
		cfg.Relay.DefaultRoom,
		container.Logger,
	)
	go hub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Hub:       hub,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware())

	cfg := r.Container.Config

	authHandler := api.NewAuthHandler(r.Container.AuthService, r.Container.JWTService, r.Logger)
	historyHandler := api.NewHistoryHandler(r.Container.History, r.Logger)
	healthHandler := api.NewHealthHandler(r.Container.DB, r.Container.Cache)

	r.Engine.GET("/health", healthHandler.Health)

	apiRoutes := r.Engine.Group("/api")
	{
		apiRoutes.POST("/register", authHandler.Register)
		apiRoutes.POST("/login", authHandler.Login)
		apiRoutes.GET("/rooms/:room/messages", historyHandler.Messages)
	}

	r.Engine.GET("/ws", func(c *gin.Context) {
		ws.ServeWs(r.Hub, cfg.Relay.SubmitRate, cfg.Relay.SubmitBurst, c)
	})
}

// CORS with the headers a browser WebSocket upgrade needs
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
