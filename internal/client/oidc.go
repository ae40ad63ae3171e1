package client

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/openkcm/auth-gateway/internal/clientconfig"
)

// PluginOIDC is the plugin name of the generic authorization code client.
const PluginOIDC = "oidc"

// OIDCFactory returns the factory for the generic client. Every instance
// shares the callback URL registered with the authorization servers and the
// injected HTTP client, which also bounds the token exchange in time.
func OIDCFactory(callbackURL string, httpClient *http.Client) Factory {
	return func(config clientconfig.Config) (Client, error) {
		return &oidcClient{
			name:        config.Name,
			displayName: config.DisplayName,
			httpClient:  httpClient,
			oauth: oauth2.Config{
				ClientID:     config.ClientID,
				ClientSecret: config.ClientSecret,
				RedirectURL:  callbackURL,
				Scopes:       config.Scopes,
				Endpoint: oauth2.Endpoint{
					AuthURL:  config.AuthorizationEndpoint,
					TokenURL: config.TokenEndpoint,
				},
			},
		}, nil
	}
}

type oidcClient struct {
	name        string
	displayName string
	httpClient  *http.Client
	oauth       oauth2.Config
}

func (c *oidcClient) Name() string {
	return c.name
}

func (c *oidcClient) DisplayName() string {
	if c.displayName == "" {
		return c.name
	}

	return c.displayName
}

func (c *oidcClient) AuthorizationURL(_ context.Context, state string) (string, error) {
	return c.oauth.AuthCodeURL(state), nil
}

func (c *oidcClient) RetrieveTokens(ctx context.Context, code string) (*TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	tokens := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		tokens.IDToken = idToken
	}
	if expiresIn, ok := token.Extra("expires_in").(float64); ok {
		tokens.ExpiresIn = int64(expiresIn)
	}

	return tokens, nil
}
