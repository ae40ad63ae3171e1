package clientconfig

import "context"

// Repository allows to read and administer the stored client configurations.
type Repository interface {
	Get(ctx context.Context, name string) (Config, error)
	List(ctx context.Context) ([]Config, error)
	Upsert(ctx context.Context, config Config) error
	Delete(ctx context.Context, name string) error
}
