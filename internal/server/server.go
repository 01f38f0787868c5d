package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/gateway"
	"github.com/nulzo/completion-gateway/internal/health"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	config  *config.Config
	logger  *zap.Logger
	service gateway.Service
	checker *health.Checker
}

func New(cfg *config.Config, logger *zap.Logger, service gateway.Service, checker *health.Checker) *Server {

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))

	s := &Server{
		router:  engine,
		config:  cfg,
		logger:  logger,
		service: service,
		checker: checker,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
