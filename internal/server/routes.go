package server

import (
	"github.com/gin-gonic/gin"
	"github.com/nulzo/completion-gateway/internal/server/middleware"
	v1 "github.com/nulzo/completion-gateway/internal/server/v1"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func (s *Server) SetupRoutes() {
	// 1. Global Middleware
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler())
	s.router.Use(otelgin.Middleware("completion-gateway"))

	// 2. Liveness + metrics (public)
	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)
	s.router.GET("/metrics", func(c *gin.Context) {
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	// 3. API V1 Group
	api := s.router.Group("/v1")
	api.Use(middleware.Auth(s.config.Server.APIKeys)) // Require API Key for everything below
	{
		completionHandler := v1.NewCompletionHandler(s.service)
		api.POST("/completions", completionHandler.CreateCompletion)

		providerHandler := v1.NewProviderHandler(s.service, s.checker)
		api.GET("/providers", providerHandler.ListProviders)
		api.GET("/providers/:id/health", providerHandler.CheckHealth)
	}
}
