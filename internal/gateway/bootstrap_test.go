package gateway

import (
	"context"
	"testing"

	"github.com/nulzo/completion-gateway/internal/config"
	_ "github.com/nulzo/completion-gateway/internal/llm/echo"
	"github.com/nulzo/completion-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSnapshot(t *testing.T) {
	snapshot := Snapshot([]config.ProviderConfig{
		{
			ID: "echo-dev", Name: "Echo", Type: "echo", Priority: 1, Enabled: true,
			Models: []config.ModelConfig{
				{Name: "echo-1", DisplayName: "Echo One", MaxTokens: 4096,
					Capabilities: []string{"streaming"}, InputCostPer1K: 0.1, OutputCostPer1K: 0.2, Enabled: true},
				{Name: "echo-2", MaxTokens: 2048, Enabled: false},
			},
		},
	})

	assert.Len(t, snapshot, 1)
	p := snapshot[0]
	assert.Equal(t, "echo-dev", p.ID)
	assert.Equal(t, api.ProviderAvailable, p.Status)
	assert.True(t, p.Enabled)

	assert.Len(t, p.Models, 2)
	assert.Equal(t, "echo-1", p.Models[0].Name)
	assert.Equal(t, api.ModelAvailable, p.Models[0].Status)
	assert.True(t, p.Models[0].HasCapability(api.CapabilityStreaming))
	assert.Equal(t, 0.1, p.Models[0].InputCostPer1K)

	// Disabled models are carried but marked unavailable.
	assert.Equal(t, api.ModelUnavailable, p.Models[1].Status)
}

func TestBootstrapProviders(t *testing.T) {
	p := &MockProvider{ID: "mock"}
	svc := newTestService(p, defaultOptions())

	active := BootstrapProviders(context.Background(), svc, []config.ProviderConfig{
		{ID: "echo-dev", Name: "Echo", Type: "echo", Enabled: true},
		{ID: "echo-off", Name: "Echo Off", Type: "echo", Enabled: false},
		{ID: "mystery", Name: "Mystery", Type: "no-such-type", Enabled: true},
	}, zap.NewNop())

	assert.Len(t, active, 1)
	assert.Contains(t, active, "echo-dev")
	assert.Equal(t, "echo", active["echo-dev"].Type())
}
