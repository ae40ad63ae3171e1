package clientconfig

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const cacheTTL = 5 * time.Minute

// CachedRepository is a read-through decorator over a Repository. Client
// configurations change rarely and are read on every started flow.
type CachedRepository struct {
	inner Repository
	cache *gocache.Cache
}

func NewCachedRepository(inner Repository) *CachedRepository {
	return &CachedRepository{
		inner: inner,
		cache: gocache.New(cacheTTL, 2*cacheTTL),
	}
}

func (r *CachedRepository) Get(ctx context.Context, name string) (Config, error) {
	if cached, ok := r.cache.Get(name); ok {
		//nolint:forcetypeassert
		return cached.(Config), nil
	}

	config, err := r.inner.Get(ctx, name)
	if err != nil {
		return Config{}, err
	}

	r.cache.Set(name, config, 0)

	return config, nil
}

func (r *CachedRepository) List(ctx context.Context) ([]Config, error) {
	return r.inner.List(ctx)
}

func (r *CachedRepository) Upsert(ctx context.Context, config Config) error {
	if err := r.inner.Upsert(ctx, config); err != nil {
		return err
	}

	r.cache.Delete(config.Name)

	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, name string) error {
	if err := r.inner.Delete(ctx, name); err != nil {
		return err
	}

	r.cache.Delete(name)

	return nil
}
