package clientconfigmock

import (
	"context"

	"github.com/openkcm/auth-gateway/internal/clientconfig"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

type Repository struct {
	Configs map[string]clientconfig.Config

	GetCalls int

	getErr, listErr, upsertErr, deleteErr error
}

func NewInMemRepository(getErr, listErr, upsertErr, deleteErr error) *Repository {
	return &Repository{
		Configs:   make(map[string]clientconfig.Config),
		getErr:    getErr,
		listErr:   listErr,
		upsertErr: upsertErr,
		deleteErr: deleteErr,
	}
}

func (r *Repository) Add(config clientconfig.Config) {
	r.Configs[config.Name] = config
}

func (r *Repository) Get(ctx context.Context, name string) (clientconfig.Config, error) {
	r.GetCalls++

	if r.getErr != nil {
		return clientconfig.Config{}, r.getErr
	}

	if config, ok := r.Configs[name]; ok {
		return config, nil
	}

	return clientconfig.Config{}, serviceerr.ErrNotFound
}

func (r *Repository) List(ctx context.Context) ([]clientconfig.Config, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}

	configs := make([]clientconfig.Config, 0, len(r.Configs))
	for _, config := range r.Configs {
		configs = append(configs, config)
	}

	return configs, nil
}

func (r *Repository) Upsert(ctx context.Context, config clientconfig.Config) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}

	r.Configs[config.Name] = config

	return nil
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}

	if _, ok := r.Configs[name]; !ok {
		return serviceerr.ErrNotFound
	}

	delete(r.Configs, name)

	return nil
}
