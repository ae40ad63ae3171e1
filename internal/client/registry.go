package client

import (
	"context"
	"fmt"

	"github.com/openkcm/auth-gateway/internal/clientconfig"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

// Factory constructs a client from its stored configuration.
type Factory func(config clientconfig.Config) (Client, error)

// Registry resolves a client name to an instance: it loads the stored
// configuration and hands it to the factory registered for the
// configuration's plugin. Resolution failure is serviceerr.ErrNotFound,
// which the callback processor treats as "flow not recognised".
type Registry struct {
	configs   clientconfig.Repository
	factories map[string]Factory
}

func NewRegistry(configs clientconfig.Repository) *Registry {
	return &Registry{
		configs:   configs,
		factories: make(map[string]Factory),
	}
}

// Register installs the factory for a plugin name. Registration happens
// during wiring, before any request is served.
func (r *Registry) Register(plugin string, factory Factory) {
	r.factories[plugin] = factory
}

func (r *Registry) Resolve(ctx context.Context, name string) (Client, error) {
	if name == "" {
		return nil, serviceerr.ErrNotFound
	}

	config, err := r.configs.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading client configuration %q: %w", name, err)
	}

	if !config.Enabled {
		return nil, fmt.Errorf("client %q is disabled: %w", name, serviceerr.ErrNotFound)
	}

	factory, ok := r.factories[config.Plugin]
	if !ok {
		return nil, fmt.Errorf("no factory for plugin %q: %w", config.Plugin, serviceerr.ErrNotFound)
	}

	instance, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("constructing client %q: %w", name, err)
	}

	return instance, nil
}
