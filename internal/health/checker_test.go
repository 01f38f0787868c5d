package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/internal/registry"
	"github.com/nulzo/completion-gateway/pkg/api"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubProvider lets each test script the probe outcome.
type stubProvider struct {
	id     string
	report *llm.HealthReport
	err    error
	probes atomic.Int32
}

func (s *stubProvider) Name() string { return s.id }
func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.StreamResult, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvider) Health(ctx context.Context) (*llm.HealthReport, error) {
	s.probes.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.report, nil
}

func healthRegistry() *registry.Registry {
	return registry.New([]api.Provider{
		{
			ID: "stub", Name: "Stub", Status: api.ProviderAvailable, Priority: 1, Enabled: true,
			Models: []api.Model{
				{Name: "stub-1", Status: api.ModelAvailable},
				{Name: "stub-2", Status: api.ModelUnavailable},
			},
		},
	})
}

func newTestChecker(reg *registry.Registry, p llm.Provider, ttl time.Duration) *Checker {
	return NewChecker(reg, map[string]llm.Provider{"stub": p}, ttl, time.Second, zap.NewNop())
}

func TestChecker_HealthyProbe(t *testing.T) {
	reg := healthRegistry()
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(reg, p, 5*time.Minute)

	result, err := c.Check(context.Background(), "stub", false, false)
	assert.NoError(t, err)
	assert.Equal(t, api.ProviderAvailable, result.Status)
	assert.True(t, result.Healthy)
	assert.Equal(t, int64(1), result.Metrics.TotalChecks)
	assert.Equal(t, float64(100), result.Metrics.UptimePercent)

	// Status written back into the registry.
	stored, _ := reg.Get("stub")
	assert.Equal(t, api.ProviderAvailable, stored.Status)
	assert.Equal(t, result.CheckedAt, stored.LastHealthCheck)
}

func TestChecker_CacheWithinTTL(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	first, err := c.Check(context.Background(), "stub", false, false)
	assert.NoError(t, err)

	second, err := c.Check(context.Background(), "stub", false, false)
	assert.NoError(t, err)

	assert.Equal(t, int32(1), p.probes.Load(), "cached result must not re-probe")
	assert.Equal(t, first.CheckedAt, second.CheckedAt)
}

func TestChecker_ForceRefreshBypassesCache(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	_, _ = c.Check(context.Background(), "stub", false, false)
	_, err := c.Check(context.Background(), "stub", false, true)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), p.probes.Load())
}

func TestChecker_StaleCacheReprobes(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, 10*time.Millisecond)

	_, _ = c.Check(context.Background(), "stub", false, false)
	time.Sleep(20 * time.Millisecond)
	_, err := c.Check(context.Background(), "stub", false, false)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), p.probes.Load())
}

func TestChecker_ProbeErrorMapsToError(t *testing.T) {
	reg := healthRegistry()
	p := &stubProvider{id: "stub", err: errors.New("connection refused")}
	c := newTestChecker(reg, p, 5*time.Minute)

	result, err := c.Check(context.Background(), "stub", false, false)
	assert.NoError(t, err)
	assert.Equal(t, api.ProviderError, result.Status)
	assert.False(t, result.Healthy)
	assert.Equal(t, "connection refused", result.Error)

	stored, _ := reg.Get("stub")
	assert.Equal(t, api.ProviderError, stored.Status)
}

func TestChecker_DegradedCarriesWarning(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderDegraded, Message: "high latency"}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	result, _ := c.Check(context.Background(), "stub", false, false)
	assert.Equal(t, api.ProviderDegraded, result.Status)
	assert.True(t, result.Healthy)
	assert.Contains(t, result.Warning, "high latency")
}

func TestChecker_RateLimitedCarriesRetryAfter(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderRateLimited, Message: "rate limited, retry after 30 seconds"}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	result, _ := c.Check(context.Background(), "stub", false, false)
	assert.Equal(t, api.ProviderRateLimited, result.Status)
	assert.False(t, result.Healthy)
	assert.NotNil(t, result.RetryAfter)
	assert.Equal(t, 30*time.Second, *result.RetryAfter)
}

func TestChecker_ModelHealthDerivation(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	result, _ := c.Check(context.Background(), "stub", true, false)
	assert.Len(t, result.Models, 2)
	assert.True(t, result.Models["stub-1"].Healthy)
	assert.False(t, result.Models["stub-2"].Healthy)
}

func TestChecker_UnhealthyProviderMakesAllModelsUnhealthy(t *testing.T) {
	p := &stubProvider{id: "stub", err: errors.New("down")}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	result, _ := c.Check(context.Background(), "stub", true, false)
	assert.Len(t, result.Models, 2)
	for name, m := range result.Models {
		assert.False(t, m.Healthy, "model %s", name)
		assert.Equal(t, api.ModelUnavailable, m.Status)
	}
}

func TestChecker_UnknownProvider(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, 5*time.Minute)

	_, err := c.Check(context.Background(), "missing", false, false)
	assert.Error(t, err)
	assert.True(t, api.IsNotFound(err))
}

func TestChecker_ConfiguredButInactive(t *testing.T) {
	reg := registry.New([]api.Provider{{ID: "ghost", Enabled: true}})
	c := NewChecker(reg, map[string]llm.Provider{}, 5*time.Minute, time.Second, zap.NewNop())

	result, err := c.Check(context.Background(), "ghost", false, false)
	assert.NoError(t, err)
	assert.Equal(t, api.ProviderError, result.Status)
	assert.False(t, result.Healthy)
}

func TestChecker_UptimeAccumulates(t *testing.T) {
	p := &stubProvider{id: "stub", report: &llm.HealthReport{Status: api.ProviderAvailable}}
	c := newTestChecker(healthRegistry(), p, time.Nanosecond)

	_, _ = c.Check(context.Background(), "stub", false, true)
	p.err = errors.New("down")
	result, _ := c.Check(context.Background(), "stub", false, true)

	assert.Equal(t, int64(2), result.Metrics.TotalChecks)
	assert.Equal(t, int64(1), result.Metrics.FailedChecks)
	assert.Equal(t, float64(50), result.Metrics.UptimePercent)
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		message string
		want    time.Duration
	}{
		{"retry after 30 seconds", 30 * time.Second},
		{"retry after 45s", 45 * time.Second},
		{"try again in 2 minutes", 2 * time.Minute},
		{"back off for 1 hour", time.Hour},
		{"wait 90", 90 * time.Second},
		{"rate limited", defaultRetryAfter},
		{"", defaultRetryAfter},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseRetryAfter(tc.message), "message: %q", tc.message)
	}
}
