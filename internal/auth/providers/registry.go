package providers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charlesng35/authapp/internal/models"
)

var (
	// ErrProviderExists is returned when attempting to register a provider more than once.
	ErrProviderExists = errors.New("provider registry: provider already registered")
	// ErrProviderNotConfigured is returned for supported providers without client credentials.
	ErrProviderNotConfigured = errors.New("provider registry: provider is not configured")
)

// Factory builds a provider from its client registration.
type Factory func(cfg Config, opts Options) (Provider, error)

// Factories maps every supported provider to its constructor.
var Factories = map[models.Provider]Factory{
	models.ProviderGoogle: NewGoogle,
	models.ProviderNaver:  NewNaver,
}

// Metadata describes a provider in the public catalogue.
type Metadata struct {
	Provider    models.Provider `json:"provider"`
	DisplayName string          `json:"displayName"`
	Available   bool            `json:"available"`
	LoginPath   string          `json:"loginUrl"`
}

// Registry holds the configured providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.Provider]Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.Provider]Provider)}
}

// Build registers every provider that has client credentials in configs.
func Build(configs map[models.Provider]Config, opts Options) (*Registry, error) {
	reg := NewRegistry()
	for _, kind := range models.SupportedProviders {
		cfg, ok := configs[kind]
		if !ok || !cfg.Configured() {
			continue
		}
		provider, err := Factories[kind](cfg, opts)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(provider); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a provider, enforcing uniqueness by kind.
func (r *Registry) Register(provider Provider) error {
	if provider == nil {
		return errors.New("provider registry: provider is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[provider.Kind()]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, provider.Kind())
	}
	r.providers[provider.Kind()] = provider
	return nil
}

// Get resolves a registration id case-insensitively.
func (r *Registry) Get(registrationID string) (Provider, error) {
	kind, ok := models.ParseProvider(registrationID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, registrationID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, kind)
	}
	return provider, nil
}

// Catalogue lists every supported provider in a stable order with its availability.
func (r *Registry) Catalogue() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]Metadata, 0, len(models.SupportedProviders))
	for _, kind := range models.SupportedProviders {
		meta := Metadata{
			Provider:    kind,
			DisplayName: displayNames[kind],
			LoginPath:   LoginPath(kind),
		}
		if _, ok := r.providers[kind]; ok {
			meta.Available = true
		}
		items = append(items, meta)
	}
	return items
}

var displayNames = map[models.Provider]string{
	models.ProviderGoogle: "Google",
	models.ProviderNaver:  "Naver",
}

// LoginPath is the local path that starts the authorization-code flow for kind.
func LoginPath(kind models.Provider) string {
	return "/oauth2/authorization/" + string(kind)
}
