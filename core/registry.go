package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderRegistry struct {
	mu                sync.RWMutex
	providers         map[string]Provider
	clientCredentials map[string]ClientCredentialsProvider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers:         make(map[string]Provider),
		clientCredentials: make(map[string]ClientCredentialsProvider),
	}
}

func (r *ProviderRegistry) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("core: provider is nil")
	}
	id := normalizeProviderID(provider.ID())
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[id]; exists {
		return fmt.Errorf("core: provider already registered: %s", id)
	}
	r.providers[id] = provider
	return nil
}

func (r *ProviderRegistry) RegisterClientCredentials(provider ClientCredentialsProvider) error {
	if provider == nil {
		return fmt.Errorf("core: client credentials provider is nil")
	}
	id := normalizeProviderID(provider.ID())
	if id == "" {
		return fmt.Errorf("core: provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.clientCredentials[id]; exists {
		return fmt.Errorf("core: client credentials provider already registered: %s", id)
	}
	r.clientCredentials[id] = provider
	return nil
}

func (r *ProviderRegistry) Get(providerID string) (Provider, bool) {
	id := normalizeProviderID(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[id]
	r.mu.RUnlock()
	return provider, ok
}

func (r *ProviderRegistry) GetClientCredentials(providerID string) (ClientCredentialsProvider, bool) {
	id := normalizeProviderID(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.clientCredentials[id]
	r.mu.RUnlock()
	return provider, ok
}

// List returns every registered provider id, sorted and deduplicated.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(r.providers)+len(r.clientCredentials))
	for id := range r.providers {
		seen[id] = struct{}{}
	}
	for id := range r.clientCredentials {
		seen[id] = struct{}{}
	}
	r.mu.RUnlock()

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeProviderID(id string) string {
	return strings.TrimSpace(strings.ToLower(id))
}
