package sso

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Provider is one configured identity provider instance.
type Provider interface {
	// Name returns the registry name of this instance.
	Name() string

	// Type returns the protocol the provider speaks.
	Type() ProviderType

	// InitiateLogin redirects the browser to the IdP, carrying state as
	// relay state.
	InitiateLogin(w http.ResponseWriter, r *http.Request, state string) error

	// HandleCallback validates the IdP's response and returns the
	// asserted principal.
	HandleCallback(w http.ResponseWriter, r *http.Request) (*Principal, error)

	// Logout initiates provider-side logout where the protocol supports
	// it. A nil return with no redirect means local-only logout.
	Logout(w http.ResponseWriter, r *http.Request, sessionIndex string) error

	// Validate checks the provider's configuration.
	Validate() error
}

// NewProvider builds a provider from config. baseURL is this service's
// external URL, used for ACS and metadata addresses.
func NewProvider(ctx context.Context, cfg *Config, baseURL string) (Provider, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("provider %q: %w", cfg.Name, ErrProviderDisabled)
	}

	switch cfg.Type {
	case ProviderTypeSAML:
		return NewSAMLProvider(cfg, baseURL)
	case ProviderTypeOIDC:
		return NewOIDCProvider(ctx, cfg)
	case ProviderTypeOAuth2:
		return NewOAuth2Provider(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Type)
	}
}

// Registry holds live providers keyed by name. Register replaces any
// existing entry atomically, which is how the certificate watcher swaps
// in a rebuilt SAML provider without a restart.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider under its name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, ErrProviderNotFound)
	}
	return p, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
