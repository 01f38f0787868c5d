package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nulzo/completion-gateway/pkg/api"
)

// Registry is the in-memory provider catalog. It is built once at startup
// from a configuration snapshot; afterwards the only writer is the health
// checker's status update.
type Registry struct {
	providers map[string]api.Provider
	order     []string // provider ids sorted by priority
	mu        sync.RWMutex
}

// New builds a registry from a loaded snapshot. Provider priority decides
// iteration order (lower value first); model declaration order is preserved.
func New(providers []api.Provider) *Registry {
	index := make(map[string]api.Provider, len(providers))
	order := make([]string, 0, len(providers))

	sorted := make([]api.Provider, len(providers))
	copy(sorted, providers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, p := range sorted {
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = p
		order = append(order, p.ID)
	}

	return &Registry{providers: index, order: order}
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (*api.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[id]; ok {
		return &p, nil
	}
	return nil, api.NotFoundError(fmt.Sprintf("provider not found: %s", id))
}

// List returns all providers in priority order.
func (r *Registry) List() []api.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]api.Provider, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.providers[id])
	}
	return list
}

// ListEnabled returns enabled providers in priority order.
func (r *Registry) ListEnabled() []api.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]api.Provider, 0, len(r.order))
	for _, id := range r.order {
		if p := r.providers[id]; p.Enabled {
			list = append(list, p)
		}
	}
	return list
}

// UpdateStatus records a health-check outcome. Single writer: only the
// health checker calls this.
func (r *Registry) UpdateStatus(id string, status api.ProviderStatus, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return api.NotFoundError(fmt.Sprintf("provider not found: %s", id))
	}
	p.Status = status
	p.LastHealthCheck = checkedAt
	r.providers[id] = p
	return nil
}
