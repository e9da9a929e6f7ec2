package paypal

import (
	"net/http"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers"
	"golang.org/x/oauth2"
)

const (
	ProviderID      = core.ServicePayPal
	TokenURL        = "https://api-m.paypal.com/v1/oauth2/token"
	SandboxTokenURL = "https://api-m.sandbox.paypal.com/v1/oauth2/token"
)

type Config struct {
	ClientID            string
	ClientSecret        string
	TokenURL            string
	Sandbox             bool
	Scopes              []string
	TokenRequestTimeout time.Duration
	HTTPClient          *http.Client
}

func DefaultConfig() Config {
	return Config{TokenURL: TokenURL}
}

// New builds the PayPal client-credentials provider. Credentials travel in
// the Authorization header as HTTP Basic.
func New(cfg Config) (*providers.ClientCredentialsProvider, error) {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultConfig().TokenURL
		if cfg.Sandbox {
			cfg.TokenURL = SandboxTokenURL
		}
	}
	return providers.NewClientCredentialsProvider(providers.ClientCredentialsConfig{
		ID:                  ProviderID,
		TokenURL:            cfg.TokenURL,
		ClientID:            cfg.ClientID,
		ClientSecret:        cfg.ClientSecret,
		Scopes:              cfg.Scopes,
		AuthStyle:           oauth2.AuthStyleInHeader,
		TokenRequestTimeout: cfg.TokenRequestTimeout,
		HTTPClient:          cfg.HTTPClient,
	})
}
