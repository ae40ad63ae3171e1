package business

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	"github.com/openkcm/auth-gateway/internal/business/server"
	"github.com/openkcm/auth-gateway/internal/client"
	"github.com/openkcm/auth-gateway/internal/clientconfig"
	clientconfigsql "github.com/openkcm/auth-gateway/internal/clientconfig/sql"
	"github.com/openkcm/auth-gateway/internal/config"
	"github.com/openkcm/auth-gateway/internal/flow"
	"github.com/openkcm/auth-gateway/internal/identity"
	identitysql "github.com/openkcm/auth-gateway/internal/identity/sql"
	"github.com/openkcm/auth-gateway/internal/notice"
	"github.com/openkcm/auth-gateway/internal/sessionstore/valkeystore"
)

// Main starts the public HTTP API server.
func Main(ctx context.Context, cfg *config.Config) error {
	gateway, closeFn, err := initGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the auth gateway: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, gateway)
}

func initGateway(ctx context.Context, cfg *config.Config) (_ *server.GatewayServer, closeFn func(), _ error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("making dsn from config: %w", err)
	}

	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	baseURL, err := url.Parse(cfg.Gateway.BaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing gateway base URL: %w", err)
	}

	clientConfigs, err := loadClientConfigRepo(cfg, db)
	if err != nil {
		return nil, nil, fmt.Errorf("loading client config repository: %w", err)
	}

	registry := client.NewRegistry(clientConfigs)
	registry.Register(client.PluginOIDC, client.OIDCFactory(cfg.Gateway.CallbackURL, http.DefaultClient))

	sessions := valkeystore.New(valkeyClient, cfg.ValKey.Prefix, cfg.Gateway.SessionDuration)

	tokens := flow.NewStateToken(sessions)
	pending := flow.NewPendingAuthorization(sessions)
	notices := notice.NewSessionQueue(sessions)
	identities := identity.NewService(identitysql.NewRepository(db), sessions)

	processor := flow.NewProcessor(registry, pending, notices, identities, identities, baseURL)

	gateway := server.NewGatewayServer(
		tokens,
		pending,
		flow.NewRedirectGate(tokens),
		processor,
		registry,
		notices,
		identities,
	)

	return gateway, valkeyClient.Close, nil
}

// loadClientConfigRepo builds the cached DB-backed client configuration
// repository. A client secret from the deployment config, when set, takes
// precedence over the stored one, so secrets can live in a mounted file or
// env var instead of the database.
func loadClientConfigRepo(cfg *config.Config, db *pgxpool.Pool) (clientconfig.Repository, error) {
	var repo clientconfig.Repository = clientconfigsql.NewRepository(db)

	if cfg.Gateway.ClientSecret.Source != "" {
		secret, err := commoncfg.LoadValueFromSourceRef(cfg.Gateway.ClientSecret)
		if err != nil {
			return nil, fmt.Errorf("loading client secret: %w", err)
		}

		repo = &secretOverrideRepo{next: repo, secret: string(secret)}
	}

	return clientconfig.NewCachedRepository(repo), nil
}

type secretOverrideRepo struct {
	next   clientconfig.Repository
	secret string
}

func (r *secretOverrideRepo) Get(ctx context.Context, name string) (clientconfig.Config, error) {
	cfg, err := r.next.Get(ctx, name)
	if err != nil {
		return clientconfig.Config{}, err
	}

	cfg.ClientSecret = r.secret

	return cfg, nil
}

func (r *secretOverrideRepo) List(ctx context.Context) ([]clientconfig.Config, error) {
	configs, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}

	for i := range configs {
		configs[i].ClientSecret = r.secret
	}

	return configs, nil
}

func (r *secretOverrideRepo) Upsert(ctx context.Context, cfg clientconfig.Config) error {
	return r.next.Upsert(ctx, cfg)
}

func (r *secretOverrideRepo) Delete(ctx context.Context, name string) error {
	return r.next.Delete(ctx, name)
}
