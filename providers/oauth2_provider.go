package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/oauth2"
)

const defaultTokenRequestTimeout = 30 * time.Second

// rawTokenFields are copied from the token response into TokenResult.Raw
// when the provider returns them.
var rawTokenFields = []string{
	"id_token",
	"refresh_token_expires_in",
	"bot_id",
	"workspace_id",
	"guild",
}

type OAuth2Config struct {
	ID                  string
	AuthURL             string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	DefaultScopes       []string
	AuthParams          map[string]string
	AuthStyle           oauth2.AuthStyle
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          *http.Client
}

// OAuth2Provider runs the authorization-code grant through golang.org/x/oauth2.
// An oauth2.Config is built for every call so concurrent requests never share
// mutable client state.
type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient *http.Client
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("providers: client id is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.RedirectURI = strings.TrimSpace(cfg.RedirectURI)
	cfg.DefaultScopes = NormalizeScopes(cfg.DefaultScopes)
	cfg.AuthParams = cloneParams(cfg.AuthParams)
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

	return &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (p *OAuth2Provider) DefaultScopes() []string {
	if p == nil {
		return []string{}
	}
	return append([]string(nil), p.cfg.DefaultScopes...)
}

// AuthorizationURL builds the consent URL. Requested scopes are appended to
// the provider defaults.
func (p *OAuth2Provider) AuthorizationURL(_ context.Context, req core.AuthorizationRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("providers: oauth2 provider is nil")
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return "", fmt.Errorf("providers: state is required for provider %q", p.cfg.ID)
	}

	scopes := NormalizeScopes(append(p.DefaultScopes(), req.Scopes...))
	conf := p.oauthConfig(req.RedirectURI, scopes)

	keys := make([]string, 0, len(p.cfg.AuthParams))
	for key := range p.cfg.AuthParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	opts := make([]oauth2.AuthCodeOption, 0, len(keys))
	for _, key := range keys {
		opts = append(opts, oauth2.SetAuthURLParam(key, p.cfg.AuthParams[key]))
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (p *OAuth2Provider) Exchange(ctx context.Context, req core.ExchangeRequest) (core.TokenResult, error) {
	if p == nil {
		return core.TokenResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.TokenResult{}, fmt.Errorf("providers: auth code is required")
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	token, err := p.oauthConfig(req.RedirectURI, p.cfg.DefaultScopes).Exchange(requestCtx, code)
	if err != nil {
		return core.TokenResult{}, describeTokenError(p.cfg.ID, "exchange", err)
	}
	return p.tokenResult(token), nil
}

func (p *OAuth2Provider) Refresh(ctx context.Context, refreshToken string) (core.TokenResult, error) {
	if p == nil {
		return core.TokenResult{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return core.TokenResult{}, fmt.Errorf("providers: refresh token is required")
	}

	requestCtx, cancel := p.requestContext(ctx)
	defer cancel()

	source := p.oauthConfig("", p.cfg.DefaultScopes).TokenSource(requestCtx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return core.TokenResult{}, describeTokenError(p.cfg.ID, "refresh", err)
	}
	return p.tokenResult(token), nil
}

func (p *OAuth2Provider) oauthConfig(redirectURI string, scopes []string) *oauth2.Config {
	redirect := strings.TrimSpace(redirectURI)
	if redirect == "" {
		redirect = p.cfg.RedirectURI
	}
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.cfg.AuthURL,
			TokenURL:  p.cfg.TokenURL,
			AuthStyle: p.cfg.AuthStyle,
		},
		RedirectURL: redirect,
		Scopes:      append([]string(nil), scopes...),
	}
}

func (p *OAuth2Provider) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	return context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
}

func (p *OAuth2Provider) tokenResult(token *oauth2.Token) core.TokenResult {
	return TokenResultFromOAuth2(token, p.cfg.Now())
}

// TokenResultFromOAuth2 maps an oauth2.Token onto the provider-neutral result.
func TokenResultFromOAuth2(token *oauth2.Token, now time.Time) core.TokenResult {
	if token == nil {
		return core.TokenResult{}
	}
	result := core.TokenResult{
		AccessToken:  strings.TrimSpace(token.AccessToken),
		RefreshToken: strings.TrimSpace(token.RefreshToken),
		TokenType:    strings.TrimSpace(token.TokenType),
		ExpiresIn:    token.ExpiresIn,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		result.Scope = strings.Join(parseScopeList(scope), " ")
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry.UTC()
		result.ExpiresAt = &expiresAt
	}
	if result.ExpiresIn <= 0 {
		result.ExpiresIn = rawExpiresIn(token)
	}
	if result.ExpiresIn <= 0 && result.ExpiresAt != nil {
		// oauth2 stamps Expiry a little before now is read; round, don't truncate.
		if remaining := int64(math.Round(result.ExpiresAt.Sub(now.UTC()).Seconds())); remaining > 0 {
			result.ExpiresIn = remaining
		}
	}
	for _, key := range rawTokenFields {
		if value := token.Extra(key); value != nil {
			if result.Raw == nil {
				result.Raw = map[string]any{}
			}
			result.Raw[key] = value
		}
	}
	return result
}

// rawExpiresIn reads expires_in from the token response body, which may
// carry it as a number or a string.
func rawExpiresIn(token *oauth2.Token) int64 {
	switch value := token.Extra("expires_in").(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	case json.Number:
		n, _ := value.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		return n
	default:
		return 0
	}
}

// describeTokenError keeps the provider's error code visible without leaking
// the response body.
func describeTokenError(providerID, operation string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		detail := strings.TrimSpace(retrieveErr.ErrorCode)
		if description := strings.TrimSpace(retrieveErr.ErrorDescription); description != "" {
			if detail != "" {
				detail += ": "
			}
			detail += description
		}
		if detail == "" {
			detail = "token endpoint rejected the request"
		}
		return fmt.Errorf("providers: %s %s failed (%d): %s: %w", providerID, operation, status, detail, err)
	}
	return fmt.Errorf("providers: %s %s failed: %w", providerID, operation, err)
}

// NormalizeScopes trims, drops empties and de-duplicates while keeping order.
func NormalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := map[string]struct{}{}
	result := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func parseScopeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ','
	})
	return NormalizeScopes(fields)
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out[trimmed] = value
	}
	return out
}

var _ core.Provider = (*OAuth2Provider)(nil)
