package api

import "time"

// FinishReason values emitted by the gateway.
const (
	FinishStop   = "stop"
	FinishLength = "length"
	FinishError  = "error"
)

// CompletionResult is the outcome of one synchronous completion. Produced once
// and never mutated afterwards.
type CompletionResult struct {
	Content      string         `json:"content"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
	Cost         float64        `json:"cost"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	FinishReason string         `json:"finish_reason"`
	CacheHit     bool           `json:"cache_hit"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// IsFallback reports whether the result was substituted by the fault guard
// instead of coming from a backend.
func (r *CompletionResult) IsFallback() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["fallback"].(bool)
	return ok && v
}

// CompletionChunk is one unit of a streamed completion. Within a stream, Index
// strictly increases and exactly one chunk has Last=true.
type CompletionChunk struct {
	RequestID    string            `json:"request_id"`
	StreamID     string            `json:"stream_id"`
	Index        int               `json:"index"`
	Content      string            `json:"content"`
	Delta        bool              `json:"delta"`
	Last         bool              `json:"last"`
	FinishReason string            `json:"finish_reason,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Model        string            `json:"model,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ModelHealth is the per-model slice of a provider health check.
type ModelHealth struct {
	Name    string      `json:"name"`
	Status  ModelStatus `json:"status"`
	Healthy bool        `json:"healthy"`
}

// HealthMetrics carries coarse probe statistics for a provider.
type HealthMetrics struct {
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int64   `json:"total_checks"`
	FailedChecks  int64   `json:"failed_checks"`
}

// ProviderHealthResult is the outcome of one health check (possibly served
// from the checker's cache).
type ProviderHealthResult struct {
	ProviderID   string                 `json:"provider_id"`
	Status       ProviderStatus         `json:"status"`
	Healthy      bool                   `json:"healthy"`
	ResponseTime time.Duration          `json:"response_time_ms"`
	Error        string                 `json:"error,omitempty"`
	Warning      string                 `json:"warning,omitempty"`
	RetryAfter   *time.Duration         `json:"retry_after,omitempty"`
	Models       map[string]ModelHealth `json:"models,omitempty"`
	Metrics      HealthMetrics          `json:"metrics"`
	CheckedAt    time.Time              `json:"checked_at"`
}

// Stale reports whether the result is older than the given ttl.
func (h *ProviderHealthResult) Stale(ttl time.Duration, now time.Time) bool {
	return now.Sub(h.CheckedAt) >= ttl
}
