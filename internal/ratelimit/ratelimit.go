package ratelimit

import (
	"fmt"
	"sync"

	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter manages per-provider token buckets. Buckets are created lazily on
// first use and refill continuously; a bucket never blocks checks against a
// different provider.
type Limiter struct {
	buckets    map[string]*rate.Limiter
	mu         sync.RWMutex
	defaultRPM int
	overrides  map[string]int
	logger     *zap.Logger
}

// New creates a limiter with a default requests-per-minute budget and
// optional per-provider overrides.
func New(defaultRPM int, overrides map[string]int, logger *zap.Logger) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*rate.Limiter),
		defaultRPM: defaultRPM,
		overrides:  overrides,
		logger:     logger,
	}
}

// getBucket returns the bucket for the given provider id.
func (l *Limiter) getBucket(providerID string) *rate.Limiter {
	l.mu.RLock()
	bucket, exists := l.buckets[providerID]
	l.mu.RUnlock()

	if exists {
		return bucket
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists = l.buckets[providerID]; exists {
		return bucket
	}

	rpm := l.defaultRPM
	if override, ok := l.overrides[providerID]; ok {
		rpm = override
	}

	// Burst equals the per-minute budget; refill is continuous.
	bucket = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
	l.buckets[providerID] = bucket

	return bucket
}

// Check atomically consumes one token for the provider, or fails with a
// rate-limit error.
func (l *Limiter) Check(providerID string) error {
	if !l.getBucket(providerID).Allow() {
		l.logger.Warn("Rate limit exceeded", zap.String("provider", providerID))
		return api.RateLimitError(fmt.Sprintf("rate limit exceeded for provider %s", providerID))
	}
	return nil
}
