package jira

import (
	"net/http"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
	"golang.org/x/oauth2"
)

const (
	ProviderID = core.ServiceJira
	AuthURL    = "https://auth.atlassian.com/authorize"
	TokenURL   = "https://auth.atlassian.com/oauth/token"
	Audience   = "api.atlassian.com"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	AuthURL             string
	TokenURL            string
	Audience            string
	DefaultScopes       []string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:  AuthURL,
		TokenURL: TokenURL,
		Audience: Audience,
		DefaultScopes: []string{
			"read:jira-work",
			"write:jira-work",
			"read:jira-user",
			"offline_access",
		},
	}
}

// New builds the Atlassian 3LO provider. Consent is always re-prompted so a
// refresh token is issued on every grant.
func New(cfg Config) (*providers.OAuth2Provider, error) {
	defaults := DefaultConfig()
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaults.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaults.TokenURL
	}
	if cfg.Audience == "" {
		cfg.Audience = defaults.Audience
	}
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = defaults.DefaultScopes
	}
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:            ProviderID,
		AuthURL:       cfg.AuthURL,
		TokenURL:      cfg.TokenURL,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		RedirectURI:   cfg.RedirectURI,
		DefaultScopes: cfg.DefaultScopes,
		AuthParams: map[string]string{
			"audience": cfg.Audience,
			"prompt":   "consent",
		},
		AuthStyle:           oauth2.AuthStyleInParams,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
