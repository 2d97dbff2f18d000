package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/regrant/regrant-auth/logging"
	"github.com/regrant/regrant-auth/metrics"
	"github.com/regrant/regrant-auth/service"
)

// RouterConfig holds the optional pieces of the router
type RouterConfig struct {
	APIPrefix   string
	Logger      logging.Logger
	Metrics     metrics.Recorder
	Gatherer    prometheus.Gatherer // Serves /metrics when set
	RateLimiter *RateLimiter        // Guards /auth/siwe when set
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(cfg.Logger))

	handlers := NewAuthHandlers(authService, cfg.Logger)

	router.GET("/healthz", handlers.Health)
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(cfg.Gatherer)))
	}

	api := router.Group(cfg.APIPrefix)

	// SIWE routes
	siwe := api.Group("/auth/siwe")
	if cfg.RateLimiter != nil {
		siwe.Use(cfg.RateLimiter.Middleware(cfg.Metrics))
	}
	{
		siwe.GET("/nonce", handlers.Nonce)
		siwe.POST("/login", handlers.Login)
	}

	// Protected user routes
	users := api.Group("/users")
	users.Use(AuthMiddleware(authService))
	{
		users.GET("/me", handlers.Me)
		users.PATCH("/me", handlers.UpdateMe)
		users.GET("/:id", RequireSuperuser(), handlers.GetUser)
	}

	return router
}
