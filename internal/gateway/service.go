package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/completion-gateway/internal/cache"
	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/faultguard"
	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/internal/metrics"
	"github.com/nulzo/completion-gateway/internal/ratelimit"
	"github.com/nulzo/completion-gateway/internal/registry"
	"github.com/nulzo/completion-gateway/internal/selection"
	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
)

// Service is the completion gateway: the system's primary entry point for
// synchronous and streaming completions, plus provider listing.
type Service interface {
	// RegisterProvider attaches a backend gateway for a configured provider.
	RegisterProvider(p llm.Provider)

	Generate(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResult, error)
	Stream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionChunk, error)
	ListProviders(ctx context.Context, filter api.ProviderFilter) (*api.ProviderPage, error)
}

type service struct {
	logger    *zap.Logger
	registry  *registry.Registry
	selector  *selection.Service
	limiter   *ratelimit.Limiter
	cache     cache.CacheService
	guard     *faultguard.Guard
	metrics   *metrics.Metrics
	cacheTTL  time.Duration
	streamCfg config.StreamConfig

	mu        sync.RWMutex
	providers map[string]llm.Provider
}

func NewService(
	logger *zap.Logger,
	reg *registry.Registry,
	selector *selection.Service,
	limiter *ratelimit.Limiter,
	cacheStore cache.CacheService,
	guard *faultguard.Guard,
	m *metrics.Metrics,
	cacheTTL time.Duration,
	streamCfg config.StreamConfig,
) Service {
	return &service{
		logger:    logger,
		registry:  reg,
		selector:  selector,
		limiter:   limiter,
		cache:     cacheStore,
		guard:     guard,
		metrics:   m,
		cacheTTL:  cacheTTL,
		streamCfg: streamCfg,
		providers: make(map[string]llm.Provider),
	}
}

func (s *service) RegisterProvider(p llm.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[p.Name()] = p
}

func (s *service) gatewayFor(providerID string) (llm.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, exists := s.providers[providerID]; exists {
		return p, nil
	}
	return nil, api.ProviderUnavailableError(
		fmt.Sprintf("provider '%s' configured but not active/loaded", providerID), nil)
}

// Generate runs one synchronous completion: rate limit, selection, cache,
// then the guarded backend call.
func (s *service) Generate(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResult, error) {
	// When the caller pinned a provider, admission control runs before
	// selection; otherwise it runs against whichever provider was picked.
	if req.Provider != nil {
		if err := s.limiter.Check(*req.Provider); err != nil {
			s.metrics.RateLimited.WithLabelValues(*req.Provider).Inc()
			return nil, err
		}
	}

	provider, model, err := s.selector.SelectBest(api.SelectionCriteria{
		RequiredTokens:    req.MaxTokens,
		PreferredProvider: req.Provider,
		PreferredModel:    req.Model,
	})
	if err != nil {
		return nil, err
	}

	if req.Provider == nil {
		if err := s.limiter.Check(provider.ID); err != nil {
			s.metrics.RateLimited.WithLabelValues(provider.ID).Inc()
			return nil, err
		}
	}

	key := cache.Key(req.Prompt, provider.ID, model.Name, req.MaxTokens, req.Temperature)

	var cached api.CompletionResult
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.metrics.CacheHits.Inc()
		s.metrics.Requests.WithLabelValues(provider.ID, "cache_hit").Inc()
		cached.CacheHit = true
		return &cached, nil
	}
	s.metrics.CacheMisses.Inc()

	gw, err := s.gatewayFor(provider.ID)
	if err != nil {
		return nil, err
	}

	if err := req.Transition(api.StatusProcessing); err != nil {
		return nil, err
	}

	start := time.Now()
	outcome, err := s.guard.Do(ctx, provider.ID, func(callCtx context.Context) (*llm.Response, error) {
		return gw.Complete(callCtx, &llm.Request{
			Model:       model.Name,
			Prompt:      req.Prompt,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
	})
	s.metrics.ProviderCalls.WithLabelValues(provider.ID).Observe(time.Since(start).Seconds())

	if err != nil {
		_ = req.Transition(api.StatusFailed)
		s.metrics.Requests.WithLabelValues(provider.ID, "error").Inc()
		s.logger.Warn("Completion failed",
			zap.String("request_id", req.ID),
			zap.String("provider", provider.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if err := req.Transition(api.StatusCompleted); err != nil {
		return nil, err
	}

	result := s.buildResult(req, provider, model, outcome)

	if outcome.Fallback {
		s.metrics.Fallbacks.WithLabelValues(provider.ID).Inc()
		s.metrics.Requests.WithLabelValues(provider.ID, "fallback").Inc()
		return result, nil
	}
	s.metrics.Requests.WithLabelValues(provider.ID, "success").Inc()

	// Cache writes are best-effort and never fail the request.
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("Cache write failed",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}

	return result, nil
}

func (s *service) buildResult(req *api.CompletionRequest, provider *api.Provider, model *api.Model, outcome *faultguard.Outcome) *api.CompletionResult {
	resp := outcome.Response
	result := &api.CompletionResult{
		Content:      resp.Content,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         model.Cost(resp.InputTokens, resp.OutputTokens),
		Provider:     provider.ID,
		Model:        model.Name,
		FinishReason: resp.FinishReason,
	}
	if outcome.Fallback {
		result.Cost = 0
		result.Metadata = map[string]any{"fallback": true}
	}
	return result
}

// Stream runs one streaming completion. The cache is skipped; raw chunks
// flow through the buffering transformer.
func (s *service) Stream(ctx context.Context, req *api.CompletionRequest) (<-chan api.CompletionChunk, error) {
	provider, model, err := s.selector.SelectBest(api.SelectionCriteria{
		RequiredTokens:       req.MaxTokens,
		PreferredProvider:    req.Provider,
		PreferredModel:       req.Model,
		RequiredCapabilities: []api.Capability{api.CapabilityStreaming},
	})
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Check(provider.ID); err != nil {
		s.metrics.RateLimited.WithLabelValues(provider.ID).Inc()
		return nil, err
	}

	gw, err := s.gatewayFor(provider.ID)
	if err != nil {
		return nil, err
	}

	if err := req.Transition(api.StatusProcessing); err != nil {
		return nil, err
	}

	raw, err := s.guard.OpenStream(ctx, provider.ID, func(openCtx context.Context) (<-chan llm.StreamResult, error) {
		return gw.Stream(openCtx, &llm.Request{
			Model:       model.Name,
			Prompt:      req.Prompt,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
	})
	if err != nil {
		_ = req.Transition(api.StatusFailed)
		s.metrics.Requests.WithLabelValues(provider.ID, "stream_error").Inc()
		return nil, err
	}

	s.metrics.Requests.WithLabelValues(provider.ID, "stream").Inc()

	transformer := newTransformer(transformerConfig{
		RequestID:  req.ID,
		StreamID:   uuid.NewString(),
		Provider:   provider.ID,
		Model:      model.Name,
		Delta:      !req.FullChunks,
		BufferSize: s.streamCfg.BufferSize,
		Window:     s.streamCfg.Window,
		MaxPending: s.streamCfg.MaxPending,
		Metrics:    s.metrics,
		Logger:     s.logger,
	})

	return transformer.Run(ctx, raw), nil
}

// ListProviders pages through the registry with filters and aggregates.
func (s *service) ListProviders(_ context.Context, filter api.ProviderFilter) (*api.ProviderPage, error) {
	var matched []api.Provider
	var agg api.ProviderAggregate

	for _, p := range s.registry.List() {
		if !filter.Matches(p) {
			continue
		}
		matched = append(matched, p)

		switch p.Status {
		case api.ProviderAvailable:
			agg.Available++
		case api.ProviderDegraded:
			agg.Degraded++
		default:
			agg.Unhealthy++
		}
		agg.Models += len(p.Models)
	}

	total := len(matched)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = total - offset
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &api.ProviderPage{
		Providers: matched[offset:end],
		Total:     total,
		Offset:    offset,
		Limit:     limit,
		Aggregate: agg,
	}, nil
}
