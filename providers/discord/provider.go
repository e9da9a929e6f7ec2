package discord

import (
	"net/http"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const ProviderID = core.ServiceDiscord

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	AuthURL             string
	TokenURL            string
	DefaultScopes       []string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       endpoints.Discord.AuthURL,
		TokenURL:      endpoints.Discord.TokenURL,
		DefaultScopes: []string{"identify", "email", "guilds"},
	}
}

func New(cfg Config) (*providers.OAuth2Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = defaults.DefaultScopes
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                  ProviderID,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURI:         cfg.RedirectURI,
		DefaultScopes:       cfg.DefaultScopes,
		AuthStyle:           oauth2.AuthStyleInParams,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
