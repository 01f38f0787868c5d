package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/completion-gateway/internal/config"
)

type Factory func(cfg config.ProviderConfig) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider type constructible by name. Adapters call this
// from init().
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerType))
	}
	factories[providerType] = f
}

// Get looks a factory up by provider type.
func Get(providerType string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[providerType]
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", providerType)
	}
	return f, nil
}
