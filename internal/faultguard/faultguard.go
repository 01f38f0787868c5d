package faultguard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/nulzo/completion-gateway/internal/config"
	"github.com/nulzo/completion-gateway/internal/llm"
	"github.com/nulzo/completion-gateway/pkg/api"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// FallbackContent is returned verbatim when a provider's circuit is open.
const FallbackContent = "We're sorry, this provider is temporarily unavailable. Please try again in a moment."

// Outcome is the tagged result of a guarded call: a real response, or the
// static fallback. Callers branch on Fallback instead of catching errors.
type Outcome struct {
	Response *llm.Response
	Fallback bool
}

// Guard wraps outbound provider calls with a per-provider circuit breaker and
// bounded retry. An open circuit short-circuits to the fallback without any
// backend round trip.
type Guard struct {
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
	cfg      config.FaultConfig
	logger   *zap.Logger
}

func New(cfg config.FaultConfig, logger *zap.Logger) *Guard {
	return &Guard{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		cfg:      cfg,
		logger:   logger,
	}
}

// breaker returns the circuit breaker for the given provider id.
func (g *Guard) breaker(providerID string) *gobreaker.CircuitBreaker {
	g.mu.RLock()
	cb, exists := g.breakers[providerID]
	g.mu.RUnlock()

	if exists {
		return cb
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = g.breakers[providerID]; exists {
		return cb
	}

	threshold := g.cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        providerID,
		MaxRequests: 1, // one half-open trial call
		Timeout:     g.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("Circuit breaker state change",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	cb = gobreaker.NewCircuitBreaker(settings)
	g.breakers[providerID] = cb
	return cb
}

// Do runs the call through the provider's breaker with bounded retry. While
// the circuit is closed or half-open, transient failures are retried with
// exponential backoff; once the circuit opens, the static fallback is
// returned immediately.
func (g *Guard) Do(ctx context.Context, providerID string, call func(ctx context.Context) (*llm.Response, error)) (*Outcome, error) {
	cb := g.breaker(providerID)

	attempt := func() (*llm.Response, error) {
		result, err := cb.Execute(func() (interface{}, error) {
			callCtx := ctx
			if g.cfg.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, g.cfg.CallTimeout)
				defer cancel()
			}
			return call(callCtx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// Circuit is open; retrying would only hammer the breaker.
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		return result.(*llm.Response), nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	resp, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(g.cfg.MaxRetries)),
	)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.logger.Warn("Serving fallback, circuit open", zap.String("provider", providerID))
			return &Outcome{
				Response: &llm.Response{
					Content:      FallbackContent,
					FinishReason: api.FinishError,
				},
				Fallback: true,
			}, nil
		}
		return nil, api.ProviderUnavailableError("provider call failed", err)
	}

	return &Outcome{Response: resp}, nil
}

// OpenStream opens a raw provider stream through the breaker. An open
// circuit rejects immediately; an open failure counts against the breaker.
func (g *Guard) OpenStream(ctx context.Context, providerID string, open func(ctx context.Context) (<-chan llm.StreamResult, error)) (<-chan llm.StreamResult, error) {
	cb := g.breaker(providerID)

	result, err := cb.Execute(func() (interface{}, error) {
		return open(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, api.ProviderUnavailableError("provider circuit open", err)
		}
		return nil, api.ProviderUnavailableError("provider stream failed to open", err)
	}
	return result.(<-chan llm.StreamResult), nil
}

// State exposes the breaker state for observability.
func (g *Guard) State(providerID string) gobreaker.State {
	return g.breaker(providerID).State()
}
