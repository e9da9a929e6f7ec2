package calendar

import (
	"net/http"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
	"github.com/goliatone/go-integrations/providers/google/common"
	"golang.org/x/oauth2/google"
)

const (
	ProviderID = core.ServiceGoogleCalendar

	ScopeCalendar       = "https://www.googleapis.com/auth/calendar"
	ScopeCalendarEvents = "https://www.googleapis.com/auth/calendar.events"
)

type Config struct {
	ClientID              string
	ClientSecret          string
	RedirectURI           string
	AuthURL               string
	TokenURL              string
	DefaultScopes         []string
	DisableIdentityScopes bool
	TokenRequestTimeout   time.Duration
	HTTPClient            *http.Client
}

func DefaultConfig() Config {
	return Config{
		AuthURL:       google.Endpoint.AuthURL,
		TokenURL:      google.Endpoint.TokenURL,
		DefaultScopes: []string{ScopeCalendar, ScopeCalendarEvents},
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
	cfg.DefaultScopes = common.WithIdentityScopes(cfg.DefaultScopes, !cfg.DisableIdentityScopes)
	return providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:                  ProviderID,
		AuthURL:             cfg.AuthURL,
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		RedirectURI:         cfg.RedirectURI,
		DefaultScopes:       cfg.DefaultScopes,
		AuthParams:          common.IncrementalAuthParams(),
		AuthStyle:           google.Endpoint.AuthStyle,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
