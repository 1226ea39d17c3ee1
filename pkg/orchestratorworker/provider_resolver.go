package orchestratorworker

import (
	"fmt"
	"sync"

	"github.com/forgekit/autoforge/pkg/config"
	"github.com/forgekit/autoforge/pkg/sandboxprovider"
)

// Registry resolves a template's named sandbox provider against a
// config.SandboxProviderRegistry, building and caching one
// sandboxprovider.Provider per provider name so repeated CreateSandbox
// calls against the same provider reuse its connection pool.
type Registry struct {
	providers *config.SandboxProviderRegistry

	mu   sync.Mutex
	live map[string]sandboxprovider.Provider
}

// NewRegistry builds a ProviderResolver backed by a sandbox provider config registry.
func NewRegistry(providers *config.SandboxProviderRegistry) *Registry {
	return &Registry{providers: providers, live: make(map[string]sandboxprovider.Provider)}
}

// Resolve implements ProviderResolver.
func (r *Registry) Resolve(template *config.AgentTemplateConfig) (sandboxprovider.Provider, error) {
	name := template.SandboxProvider

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.live[name]; ok {
		return p, nil
	}

	cfg, err := r.providers.Get(name)
	if err != nil {
		return nil, fmt.Errorf("lookup sandbox provider %q: %w", name, err)
	}
	p, err := sandboxprovider.New(*cfg)
	if err != nil {
		return nil, fmt.Errorf("build sandbox provider %q: %w", name, err)
	}
	r.live[name] = p
	return p, nil
}
