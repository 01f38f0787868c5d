package gateway

import (
	"context"
	"time"

	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
)

// Snapshot converts the configured provider list into the registry's catalog
// shape. Model declaration order is preserved.
func Snapshot(providers []config.ProviderConfig) []api.Provider {
	snapshot := make([]api.Provider, 0, len(providers))

	for _, pCfg := range providers {
		provider := api.Provider{
			ID:       pCfg.ID,
			Name:     pCfg.Name,
			Status:   api.ProviderAvailable,
			Priority: pCfg.Priority,
			Enabled:  pCfg.Enabled,
		}

		for _, mCfg := range pCfg.Models {
			status := api.ModelAvailable
			if !mCfg.Enabled {
				status = api.ModelUnavailable
			}

			capabilities := make([]api.Capability, 0, len(mCfg.Capabilities))
			for _, c := range mCfg.Capabilities {
				capabilities = append(capabilities, api.Capability(c))
			}

			provider.Models = append(provider.Models, api.Model{
				Name:            mCfg.Name,
				DisplayName:     mCfg.DisplayName,
				MaxTokens:       mCfg.MaxTokens,
				Capabilities:    capabilities,
				Status:          status,
				InputCostPer1K:  mCfg.InputCostPer1K,
				OutputCostPer1K: mCfg.OutputCostPer1K,
			})
		}

		snapshot = append(snapshot, provider)
	}

	return snapshot
}

// BootstrapProviders initializes and registers all enabled provider gateways
// from configuration. Returns the active gateways by provider id.
func BootstrapProviders(ctx context.Context, service Service, providers []config.ProviderConfig, log *zap.Logger) map[string]llm.Provider {
	active := make(map[string]llm.Provider)

	for _, pCfg := range providers {
		if !pCfg.Enabled {
			continue
		}

		factoryFunc, err := llm.Get(pCfg.Type)
		if err != nil {
			log.Error("Unknown provider type", zap.String("type", pCfg.Type))
			continue
		}

		providerInstance, err := factoryFunc(pCfg)
		if err != nil {
			log.Error("Failed to initialize provider",
				zap.String("id", pCfg.ID),
				zap.Error(err),
			)
			continue
		}

		// Perform initial health probe
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if _, err := providerInstance.Health(healthCtx); err != nil {
			cancel()
			log.Error("Provider unhealthy, skipping registration",
				zap.String("id", pCfg.ID),
				zap.Error(err))
			continue
		}
		cancel()

		service.RegisterProvider(providerInstance)
		active[pCfg.ID] = providerInstance
	}

	if len(active) == 0 {
		log.Warn("No providers were registered. API will not function correctly.")
	}

	return active
}
