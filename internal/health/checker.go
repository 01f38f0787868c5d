package health

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/internal/registry"
	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
)

const defaultRetryAfter = 5 * time.Minute

// Checker probes provider health, caches results with a TTL, and writes the
// derived status back into the registry. It is the registry's only status
// writer.
type Checker struct {
	registry  *registry.Registry
	providers map[string]llm.Provider
	logger    *zap.Logger

	ttl          time.Duration
	probeTimeout time.Duration

	mu      sync.Mutex
	results map[string]*api.ProviderHealthResult
	stats   map[string]*probeStats
}

type probeStats struct {
	total  int64
	failed int64
}

func NewChecker(reg *registry.Registry, providers map[string]llm.Provider, ttl, probeTimeout time.Duration, logger *zap.Logger) *Checker {
	return &Checker{
		registry:     reg,
		providers:    providers,
		logger:       logger,
		ttl:          ttl,
		probeTimeout: probeTimeout,
		results:      make(map[string]*api.ProviderHealthResult),
		stats:        make(map[string]*probeStats),
	}
}

// Check returns the provider's health. Results younger than the TTL are
// served from the cache unless forceRefresh is set.
func (c *Checker) Check(ctx context.Context, providerID string, includeModels, forceRefresh bool) (*api.ProviderHealthResult, error) {
	provider, err := c.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if cached := c.cached(providerID); cached != nil {
			result := *cached
			c.attachModels(&result, provider, includeModels)
			return &result, nil
		}
	}

	result := c.probe(ctx, provider)
	c.attachModels(result, provider, includeModels)

	c.mu.Lock()
	stored := *result
	stored.Models = nil // model view is derived per call
	c.results[providerID] = &stored
	c.mu.Unlock()

	if err := c.registry.UpdateStatus(providerID, result.Status, result.CheckedAt); err != nil {
		c.logger.Warn("Failed to write health status back", zap.String("provider", providerID), zap.Error(err))
	}

	return result, nil
}

func (c *Checker) cached(providerID string) *api.ProviderHealthResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, ok := c.results[providerID]
	if !ok || cached.Stale(c.ttl, time.Now()) {
		return nil
	}
	return cached
}

func (c *Checker) probe(ctx context.Context, provider *api.Provider) *api.ProviderHealthResult {
	gw, ok := c.providers[provider.ID]
	result := &api.ProviderHealthResult{
		ProviderID: provider.ID,
		CheckedAt:  time.Now(),
	}

	if !ok {
		result.Status = api.ProviderError
		result.Error = "provider configured but not active/loaded"
		c.record(provider.ID, result, false)
		return result
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	report, err := gw.Health(probeCtx)
	result.ResponseTime = time.Since(start)

	if err != nil {
		result.Status = api.ProviderError
		result.Error = err.Error()
		c.record(provider.ID, result, false)
		return result
	}

	switch report.Status {
	case api.ProviderAvailable:
		result.Status = api.ProviderAvailable
	case api.ProviderDegraded:
		result.Status = api.ProviderDegraded
		result.Warning = fmt.Sprintf("provider degraded: %s", report.Message)
	case api.ProviderRateLimited:
		result.Status = api.ProviderRateLimited
		retryAfter := ParseRetryAfter(report.Message)
		result.RetryAfter = &retryAfter
	default:
		result.Status = api.ProviderError
		result.Error = fmt.Sprintf("unhealthy status %q: %s", report.Status, report.Message)
	}

	c.record(provider.ID, result, result.Status.Healthy())
	return result
}

// record updates probe statistics and derives the healthy flag and metrics.
func (c *Checker) record(providerID string, result *api.ProviderHealthResult, healthy bool) {
	result.Healthy = healthy

	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.stats[providerID]
	if !ok {
		stats = &probeStats{}
		c.stats[providerID] = stats
	}
	stats.total++
	if !healthy {
		stats.failed++
	}

	result.Metrics = api.HealthMetrics{
		UptimePercent: 100 * float64(stats.total-stats.failed) / float64(stats.total),
		TotalChecks:   stats.total,
		FailedChecks:  stats.failed,
	}
}

// attachModels derives per-model health: an unhealthy provider makes every
// model unhealthy; otherwise each model's own status decides.
func (c *Checker) attachModels(result *api.ProviderHealthResult, provider *api.Provider, includeModels bool) {
	if !includeModels {
		return
	}

	models := make(map[string]api.ModelHealth, len(provider.Models))
	for _, m := range provider.Models {
		health := api.ModelHealth{
			Name:    m.Name,
			Status:  m.Status,
			Healthy: result.Healthy && m.Status == api.ModelAvailable,
		}
		if !result.Healthy {
			health.Status = api.ModelUnavailable
		}
		models[m.Name] = health
	}
	result.Models = models
}

var retryAfterPattern = regexp.MustCompile(`(\d+)\s*(s|sec|seconds?|m|min|minutes?|h|hours?)?`)

// ParseRetryAfter extracts a retry-after duration from free-form probe text.
// Best-effort: anything unparsable falls back to 5 minutes.
func ParseRetryAfter(message string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return defaultRetryAfter
	}

	value, err := strconv.Atoi(match[1])
	if err != nil || value <= 0 {
		return defaultRetryAfter
	}

	switch {
	case match[2] == "" || match[2][0] == 's':
		return time.Duration(value) * time.Second
	case match[2][0] == 'm':
		return time.Duration(value) * time.Minute
	case match[2][0] == 'h':
		return time.Duration(value) * time.Hour
	}
	return defaultRetryAfter
}
