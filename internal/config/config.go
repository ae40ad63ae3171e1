// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Database Database `yaml:"database"`
	ValKey   ValKey   `yaml:"valkey"`
	Migrate  Migrate  `yaml:"migrate"`
	Gateway  Gateway  `yaml:"gateway"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix"`
}

// Gateway configures the relying-party side of the authorization code flow.
type Gateway struct {
	// CallbackURL is the absolute redirect URI registered with the
	// authorization servers, e.g. https://gw.example.com/auth/callback.
	CallbackURL string `yaml:"callbackURL"`

	// BaseURL is the public base of this deployment. Post-flow destinations
	// are resolved relative to it.
	BaseURL string `yaml:"baseURL"`

	// SessionDuration bounds the server-side session entries, including the
	// anti-forgery state token of a flow that is never completed.
	SessionDuration time.Duration `yaml:"sessionDuration" default:"12h"`

	// ClientSecret overrides the secret of the stored client configuration
	// when set, so it can be sourced from a file or env instead of the DB.
	ClientSecret commoncfg.SourceRef `yaml:"clientSecret"`

	SessionCookieTemplate CookieTemplate `yaml:"sessionCookie"`
}

type Migrate struct {
	Source string `yaml:"source" default:"file://./sql"`
}
