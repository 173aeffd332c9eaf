package provider

import (
	"fmt"
	"log/slog"
	"sync"
)

// Factory builds a provider instance from decrypted credentials.
type Factory func(logger *slog.Logger, creds Credentials) NotificationProvider

// Registry resolves provider instances by name + credentials. Factories are
// registered at startup; Resolve is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "provider_registry"),
	}
}

// Register adds a named provider factory, replacing any previous registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve builds a provider instance by name with the given credentials.
func (r *Registry) Resolve(name string, creds Credentials) (NotificationProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider '%s' is not registered", name)
	}
	return factory(r.logger, creds), nil
}
