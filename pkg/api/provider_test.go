package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModel_Cost(t *testing.T) {
	m := Model{InputCostPer1K: 0.5, OutputCostPer1K: 1.5}

	assert.InDelta(t, 2.0, m.Cost(1000, 1000), 1e-9)
	assert.InDelta(t, 0.25, m.Cost(500, 0), 1e-9)
	assert.Equal(t, float64(0), m.Cost(0, 0))
}

func TestModel_HasCapability(t *testing.T) {
	m := Model{Capabilities: []Capability{CapabilityStreaming, CapabilityVision}}

	assert.True(t, m.HasCapability(CapabilityStreaming))
	assert.True(t, m.HasCapability(CapabilityVision))
	assert.False(t, m.HasCapability(CapabilityTools))
}

func TestProvider_ModelLookup(t *testing.T) {
	p := Provider{Models: []Model{{Name: "a"}, {Name: "b"}}}

	m, ok := p.Model("b")
	assert.True(t, ok)
	assert.Equal(t, "b", m.Name)

	_, ok = p.Model("c")
	assert.False(t, ok)
}

func TestProviderStatus_Healthy(t *testing.T) {
	assert.True(t, ProviderAvailable.Healthy())
	assert.True(t, ProviderDegraded.Healthy())
	assert.False(t, ProviderRateLimited.Healthy())
	assert.False(t, ProviderError.Healthy())
}

func TestProviderFilter_Matches(t *testing.T) {
	p := Provider{
		ID: "openai", Name: "OpenAI", Status: ProviderAvailable,
		Models: []Model{{Name: "gpt", Capabilities: []Capability{CapabilityStreaming}}},
	}

	assert.True(t, ProviderFilter{}.Matches(p))
	assert.True(t, ProviderFilter{Status: ProviderAvailable}.Matches(p))
	assert.False(t, ProviderFilter{Status: ProviderError}.Matches(p))

	// Name substring matches id or display name, case-insensitive.
	assert.True(t, ProviderFilter{Name: "open"}.Matches(p))
	assert.True(t, ProviderFilter{Name: "AI"}.Matches(p))
	assert.False(t, ProviderFilter{Name: "anthropic"}.Matches(p))

	assert.True(t, ProviderFilter{Capability: CapabilityStreaming}.Matches(p))
	assert.False(t, ProviderFilter{Capability: CapabilityVision}.Matches(p))
}

func TestProviderHealthResult_Stale(t *testing.T) {
	now := time.Now()
	h := ProviderHealthResult{CheckedAt: now.Add(-2 * time.Minute)}

	assert.False(t, h.Stale(5*time.Minute, now))
	assert.True(t, h.Stale(time.Minute, now))
}

func TestCompletionResult_IsFallback(t *testing.T) {
	assert.False(t, (&CompletionResult{}).IsFallback())
	assert.False(t, (&CompletionResult{Metadata: map[string]any{"fallback": "yes"}}).IsFallback())
	assert.True(t, (&CompletionResult{Metadata: map[string]any{"fallback": true}}).IsFallback())
}
