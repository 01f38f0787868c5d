package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/completion-gateway/internal/gateway"
	"github.com/nulzo/completion-gateway/internal/health"
	"github.com/nulzo/completion-gateway/pkg/api"
)

type ProviderHandler struct {
	service gateway.Service
	checker *health.Checker
}

func NewProviderHandler(service gateway.Service, checker *health.Checker) *ProviderHandler {
	return &ProviderHandler{service: service, checker: checker}
}

func (h *ProviderHandler) ListProviders(c *gin.Context) {
	filter := api.ProviderFilter{
		Status:     api.ProviderStatus(c.Query("status")),
		Capability: api.Capability(c.Query("capability")),
		Name:       c.Query("name"),
		Offset:     intQuery(c, "offset", 0),
		Limit:      intQuery(c, "limit", 0),
	}

	page, err := h.service.ListProviders(c.Request.Context(), filter)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *ProviderHandler) CheckHealth(c *gin.Context) {
	providerID := c.Param("id")
	includeModels := c.Query("include_models") == "true"
	forceRefresh := c.Query("force_refresh") == "true"

	result, err := h.checker.Check(c.Request.Context(), providerID, includeModels, forceRefresh)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
