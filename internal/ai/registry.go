package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/suPer8Hu/support-desk/internal/config"
)

// ProviderNone disables the text oracle; callers fall back to canned replies.
const ProviderNone = "none"

type ProviderFactory func(ctx context.Context) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Get builds the named provider. The "none" provider and the empty name
// return a nil Provider and no error.
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == ProviderNone {
		return nil, nil
	}
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx)
}

// NewRegistryFromConfig registers every provider the service knows about with
// the settings from cfg.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register("ollama", func(ctx context.Context) (Provider, error) {
		p := NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
		return p, nil
	})
	r.Register("openrouter", func(ctx context.Context) (Provider, error) {
		return NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	r.Register("gemini", func(ctx context.Context) (Provider, error) {
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	})
	return r
}
