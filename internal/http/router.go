package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookshelf/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(auth.SecurityHeadersMiddleware())

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.Tokens))
	}
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	authMiddleware := auth.NewMiddleware(cfg.AuthService, cfg.SessionManager, cfg.Tokens)
	router.Use(authMiddleware.Handler())

	health := NewHealthController(cfg.Database, cfg.Version, cfg.TaskClient != nil)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	authController := auth.NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.Tokens, cfg.RateLimiter)
	authController.RegisterRoutes(router.Group("/api/auth"), authMiddleware.RequireAuth())

	api := router.Group("/api", authMiddleware.RequireAuth(), bindLibrary(cfg))
	NewBooksController(cfg.CoverCache).RegisterRoutes(api)
	if cfg.CoverCache != nil {
		api.GET("/books/:id/cover", NewCoversController(cfg.CoverCache).GetCover)
	}
	NewLookupController(cfg.TaskClient, cfg.CoverSync).RegisterRoutes(api)

	if cfg.TaskClient != nil {
		api.GET("/tasks/:id", NewTasksController(cfg.TaskClient).GetTaskStatus)
	}

	return router
}
