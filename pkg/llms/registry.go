package llms

import (
	"fmt"
	"sync"

	"github.com/lexlanka/gavel/pkg/config"
)

// NewProviderFromConfig constructs the provider selected by the
// configuration.
func NewProviderFromConfig(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.LLMProviderGemini:
		return NewGemini(cfg)
	case config.LLMProviderOpenAICompat:
		return NewOpenAICompat(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Registry holds named provider instances so auxiliary pipelines
// (summaries, recommendations) can share or override the default.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register stores a provider under name, replacing any previous one.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Close closes every registered provider, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for name, p := range r.providers {
		if err := p.Close(); err != nil && first == nil {
			first = fmt.Errorf("closing provider %s: %w", name, err)
		}
	}
	r.providers = make(map[string]Provider)
	return first
}
