package store

import (
	"context"

	"github.com/nulzo/completion-gateway/pkg/api"
)

// Repository is the contract for the external catalog store. The gateway
// reads one snapshot from it at startup and never again.
type Repository interface {
	Catalog() CatalogRepository

	Close() error
}

// CatalogRepository owns the persisted provider/model catalog and the
// per-provider rate-limit overrides.
type CatalogRepository interface {
	// ListProviders returns the full catalog, models in declaration order.
	ListProviders(ctx context.Context) ([]api.Provider, error)
	// RateLimitOverrides returns provider id → requests per minute.
	RateLimitOverrides(ctx context.Context) (map[string]int, error)
	// SyncProviders replaces the stored catalog with the given snapshot.
	SyncProviders(ctx context.Context, providers []api.Provider) error
	// SyncRateLimits replaces the stored overrides.
	SyncRateLimits(ctx context.Context, overrides map[string]int) error
}
