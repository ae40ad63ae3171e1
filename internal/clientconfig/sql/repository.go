package clientconfigsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openkcm/auth-gateway/internal/clientconfig"
	"github.com/openkcm/auth-gateway/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

const selectColumns = `name, plugin, display_name, authorization_endpoint, token_endpoint, client_id, client_secret, scopes, enabled`

func (r *Repository) Get(ctx context.Context, name string) (clientconfig.Config, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM clients WHERE name = $1;`, name)

	config, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return clientconfig.Config{}, serviceerr.ErrNotFound
		}

		return clientconfig.Config{}, fmt.Errorf("scanning client row: %w", err)
	}

	return config, nil
}

func (r *Repository) List(ctx context.Context) ([]clientconfig.Config, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM clients ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	defer rows.Close()

	var configs []clientconfig.Config
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning client row: %w", err)
		}

		configs = append(configs, config)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating client rows: %w", err)
	}

	return configs, nil
}

func (r *Repository) Upsert(ctx context.Context, config clientconfig.Config) error {
	// The scopes value is optional, so we use COALESCE to default to an empty array if it's nil
	_, err := r.db.Exec(ctx,
		`INSERT INTO clients (name, plugin, display_name, authorization_endpoint, token_endpoint, client_id, client_secret, scopes, enabled)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, '{}'::text[]), $9)
			 ON CONFLICT (name) DO UPDATE SET
				plugin = EXCLUDED.plugin,
				display_name = EXCLUDED.display_name,
				authorization_endpoint = EXCLUDED.authorization_endpoint,
				token_endpoint = EXCLUDED.token_endpoint,
				client_id = EXCLUDED.client_id,
				client_secret = EXCLUDED.client_secret,
				scopes = EXCLUDED.scopes,
				enabled = EXCLUDED.enabled;`,
		config.Name, config.Plugin, config.DisplayName, config.AuthorizationEndpoint,
		config.TokenEndpoint, config.ClientID, config.ClientSecret, config.Scopes, config.Enabled)
	if err != nil {
		return fmt.Errorf("upserting client: %w", err)
	}

	return nil
}

func (r *Repository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE name = $1;`, name)
	if err != nil {
		return fmt.Errorf("deleting client: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	return nil
}

func scanConfig(row pgx.Row) (clientconfig.Config, error) {
	var config clientconfig.Config
	err := row.Scan(&config.Name, &config.Plugin, &config.DisplayName,
		&config.AuthorizationEndpoint, &config.TokenEndpoint,
		&config.ClientID, &config.ClientSecret, &config.Scopes, &config.Enabled)

	return config, err
}
