package providers

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/derek/church-finder/internal/config"
)

// ErrProviderNotConfigured reports a request for a provider the manager
// does not hold, either by name or because no default exists.
type ErrProviderNotConfigured struct {
	Name string
}

func (e *ErrProviderNotConfigured) Error() string {
	if e.Name == "" {
		return "no search provider configured"
	}
	return fmt.Sprintf("search provider %q not configured", e.Name)
}

// Manager routes search requests to registered providers by name.
type Manager struct {
	providers   map[string]Provider
	defaultName string
}

func NewManager(defaultName string, provs ...Provider) *Manager {
	m := &Manager{
		providers:   make(map[string]Provider, len(provs)),
		defaultName: defaultName,
	}
	for _, p := range provs {
		m.providers[p.Name()] = p
	}
	return m
}

// FromConfig builds a manager with every provider the config has
// credentials for. Overpass needs no key, so it is always registered.
func FromConfig(cfg *config.Config) *Manager {
	var provs []Provider
	if cfg.GooglePlacesAPIKey != "" {
		provs = append(provs, NewGooglePlacesProvider(cfg.GooglePlacesAPIKey))
	}
	provs = append(provs, NewOverpassProvider(cfg.OverpassBaseURL))

	defaultName := cfg.DefaultProvider
	if defaultName == "" {
		defaultName = provs[len(provs)-1].Name()
	}
	return NewManager(defaultName, provs...)
}

// Get returns the named provider, or the default when name is empty.
func (m *Manager) Get(name string) (Provider, error) {
	if name == "" {
		name = m.defaultName
	}
	p, ok := m.providers[name]
	if !ok {
		return nil, &ErrProviderNotConfigured{Name: name}
	}
	return p, nil
}

func (m *Manager) Search(ctx context.Context, name string, params SearchParams, cursor string) (*SearchResult, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, params, cursor)
}

// ProviderResult pairs one provider's page with its name, for callers
// fanning a search across every registered provider.
type ProviderResult struct {
	Provider string
	Result   *SearchResult
	Err      error
}

// SearchAll runs the same search against every registered provider. A
// failing provider is logged and reported in its slot; it never aborts the
// others.
func (m *Manager) SearchAll(ctx context.Context, params SearchParams) []ProviderResult {
	names := m.Available()
	results := make([]ProviderResult, 0, len(names))
	for _, name := range names {
		res, err := m.providers[name].Search(ctx, params, "")
		if err != nil {
			log.Printf("[Manager] Provider %s search failed: %v", name, err)
		}
		results = append(results, ProviderResult{Provider: name, Result: res, Err: err})
	}
	return results
}

func (m *Manager) GetByID(ctx context.Context, name, externalID string) (*RawChurch, error) {
	p, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return p.GetByID(ctx, externalID)
}

// Available lists registered provider names in sorted order.
func (m *Manager) Available() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default provider's name.
func (m *Manager) Default() string { return m.defaultName }
