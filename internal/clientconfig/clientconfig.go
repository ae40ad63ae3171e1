// Package clientconfig holds the stored configuration of the named OIDC
// clients this gateway can authenticate against.
package clientconfig

// Config is one named client as administered in the database.
type Config struct {
	// Name identifies the client in routes and in the session context.
	Name string

	// Plugin selects the client implementation in the registry. Currently
	// only the generic "oidc" plugin ships.
	Plugin string

	DisplayName string

	AuthorizationEndpoint string
	TokenEndpoint         string

	ClientID     string
	ClientSecret string
	Scopes       []string

	// Disabled clients do not resolve; flows referencing them are treated
	// as not recognised.
	Enabled bool
}
