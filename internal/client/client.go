// Package client defines the OIDC client capability the authentication flow
// depends on, and a registry resolving named, stored client configurations
// into client instances.
package client

import "context"

// TokenSet is the result of exchanging an authorization code.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Client is one configured authorization server the gateway can send users
// to. The flow treats it as an opaque collaborator.
type Client interface {
	// Name returns the client name the instance was resolved under.
	Name() string

	// DisplayName returns the human-readable provider name for notices.
	DisplayName() string

	// AuthorizationURL builds the authorization redirect carrying the given
	// state token and the client's configured scopes.
	AuthorizationURL(ctx context.Context, state string) (string, error)

	// RetrieveTokens exchanges an authorization code for tokens.
	RetrieveTokens(ctx context.Context, code string) (*TokenSet, error)
}
