package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type ClientCredentialsConfig struct {
	ID                  string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	Scopes              []string
	EndpointParams      map[string]string
	AuthStyle           oauth2.AuthStyle
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          *http.Client
}

// ClientCredentialsProvider mints application tokens with the
// client_credentials grant.
type ClientCredentialsProvider struct {
	cfg        ClientCredentialsConfig
	httpClient *http.Client
}

func NewClientCredentialsProvider(cfg ClientCredentialsConfig) (*ClientCredentialsProvider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("providers: client id and secret are required for provider %q", cfg.ID)
	}
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.Scopes = NormalizeScopes(cfg.Scopes)
	cfg.EndpointParams = cloneParams(cfg.EndpointParams)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}
	return &ClientCredentialsProvider{cfg: cfg, httpClient: httpClient}, nil
}

func (p *ClientCredentialsProvider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *ClientCredentialsProvider) ClientCredentialsToken(ctx context.Context) (core.TokenResult, error) {
	if p == nil {
		return core.TokenResult{}, fmt.Errorf("providers: client credentials provider is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ctx, cancel := context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	defer cancel()

	params := url.Values{}
	for key, value := range p.cfg.EndpointParams {
		params.Set(key, value)
	}
	conf := &clientcredentials.Config{
		ClientID:       p.cfg.ClientID,
		ClientSecret:   p.cfg.ClientSecret,
		TokenURL:       p.cfg.TokenURL,
		Scopes:         append([]string(nil), p.cfg.Scopes...),
		EndpointParams: params,
		AuthStyle:      p.cfg.AuthStyle,
	}
	token, err := conf.Token(ctx)
	if err != nil {
		return core.TokenResult{}, describeTokenError(p.cfg.ID, "client credentials", err)
	}
	return TokenResultFromOAuth2(token, p.cfg.Now()), nil
}

var _ core.ClientCredentialsProvider = (*ClientCredentialsProvider)(nil)
