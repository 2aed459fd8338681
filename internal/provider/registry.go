package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// Registry routes model requests to registered providers. The first provider
// registered for a model serves it unless a request names another one.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	serving   map[ModelType][]string // registration order, first is the default
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		serving:   make(map[ModelType][]string),
	}
}

// Register adds p, replacing any provider registered under the same name.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = p
	for _, model := range p.SupportedModels() {
		if !slices.Contains(r.serving[model], name) {
			r.serving[model] = append(r.serving[model], name)
		}
	}
	return nil
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns provider metadata sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	r.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ModelCoverage describes which providers can serve one model.
type ModelCoverage struct {
	Model     ModelType `json:"model"`
	Default   string    `json:"default"`
	Providers []string  `json:"providers"`
}

// Coverage lists every served model in AllModels order.
func (r *Registry) Coverage() []ModelCoverage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelCoverage, 0, len(r.serving))
	for _, model := range AllModels {
		names := r.serving[model]
		if len(names) == 0 {
			continue
		}
		out = append(out, ModelCoverage{
			Model:     model,
			Default:   names[0],
			Providers: slices.Clone(names),
		})
	}
	return out
}

// resolve picks the fetcher for model, honouring an explicit provider name.
func (r *Registry) resolve(model ModelType, name string) (string, Fetcher, error) {
	r.mu.RLock()
	if name == "" && len(r.serving[model]) > 0 {
		name = r.serving[model][0]
	}
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return name, nil, &ErrProviderNotFound{Name: name}
	}
	f := p.Fetcher(model)
	if f == nil {
		return name, nil, &ErrModelNotSupported{Provider: name, Model: model}
	}
	return name, f, nil
}

// Fetch validates params and runs the fetcher serving model. The provider
// named by ParamProvider wins over the default.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	name, fetcher, err := r.resolve(model, params[ParamProvider])
	if err != nil {
		return nil, err
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider %q fetch %s: %w", name, model, err)
	}
	result.Provider = name
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

var global = NewRegistry()

// Global returns the process-wide registry used by the server and CLI.
func Global() *Registry { return global }
