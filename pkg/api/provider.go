package api

import (
	"strings"
	"time"
)

// ProviderStatus is the health-derived state of a backend.
type ProviderStatus string

const (
	ProviderAvailable   ProviderStatus = "available"
	ProviderDegraded    ProviderStatus = "degraded"
	ProviderRateLimited ProviderStatus = "rate_limited"
	ProviderError       ProviderStatus = "error"
)

// Healthy reports whether the status counts as usable.
func (s ProviderStatus) Healthy() bool {
	return s == ProviderAvailable || s == ProviderDegraded
}

// ModelStatus is the configured availability of a single model.
type ModelStatus string

const (
	ModelAvailable   ModelStatus = "available"
	ModelUnavailable ModelStatus = "unavailable"
)

// Capability is a feature a model supports.
type Capability string

const (
	CapabilityStreaming Capability = "streaming"
	CapabilityVision    Capability = "vision"
	CapabilityTools     Capability = "tools"
	CapabilityJSON      Capability = "json"
)

// Model is one generation target within a provider.
type Model struct {
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	MaxTokens    int          `json:"max_tokens"`
	Capabilities []Capability `json:"capabilities"`
	Status       ModelStatus  `json:"status"`

	// Cost per 1k tokens in USD.
	InputCostPer1K  float64 `json:"input_cost_per_1k"`
	OutputCostPer1K float64 `json:"output_cost_per_1k"`
}

// HasCapability reports whether the model supports the given capability.
func (m Model) HasCapability(c Capability) bool {
	for _, have := range m.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Cost computes the request cost for the given token counts.
func (m Model) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*m.InputCostPer1K + float64(outputTokens)/1000*m.OutputCostPer1K
}

// Provider is one configured backend and its models. Models keep declaration
// order; selection tie-breaks walk them in that order.
type Provider struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Status   ProviderStatus `json:"status"`
	Priority int            `json:"priority"`
	Enabled  bool           `json:"enabled"`
	Models   []Model        `json:"models"`

	LastHealthCheck time.Time `json:"last_health_check,omitzero"`
}

// Model looks a model up by name.
func (p Provider) Model(name string) (Model, bool) {
	for _, m := range p.Models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// ProviderFilter narrows a provider listing.
type ProviderFilter struct {
	Status     ProviderStatus
	Capability Capability
	Name       string
	Offset     int
	Limit      int
}

// Matches applies the filter's predicates (pagination excluded).
func (f ProviderFilter) Matches(p Provider) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) &&
		!strings.Contains(strings.ToLower(p.ID), strings.ToLower(f.Name)) {
		return false
	}
	if f.Capability != "" {
		found := false
		for _, m := range p.Models {
			if m.HasCapability(f.Capability) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ProviderPage is one page of a provider listing.
type ProviderPage struct {
	Providers []Provider        `json:"providers"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
	Aggregate ProviderAggregate `json:"aggregate"`
}

// ProviderAggregate carries coarse counts across the unpaged result set.
type ProviderAggregate struct {
	Available int `json:"available"`
	Degraded  int `json:"degraded"`
	Unhealthy int `json:"unhealthy"`
	Models    int `json:"models"`
}
