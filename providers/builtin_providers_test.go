package providers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/discord"
	"github.com/goliatone/go-integrations/providers/github"
	"github.com/goliatone/go-integrations/providers/google/calendar"
	"github.com/goliatone/go-integrations/providers/jira"
	"github.com/goliatone/go-integrations/providers/paypal"
	"github.com/goliatone/go-integrations/providers/zoom"
)

type providerFactory struct {
	name    string
	factory func(tokenURL string) (core.Provider, error)
}

func builtInFactories() []providerFactory {
	return []providerFactory{
		{name: calendar.ProviderID, factory: func(tokenURL string) (core.Provider, error) {
			return calendar.New(calendar.Config{ClientID: "client", ClientSecret: "secret", TokenURL: tokenURL})
		}},
		{name: github.ProviderID, factory: func(tokenURL string) (core.Provider, error) {
			return github.New(github.Config{ClientID: "client", ClientSecret: "secret", TokenURL: tokenURL})
		}},
		{name: discord.ProviderID, factory: func(tokenURL string) (core.Provider, error) {
			return discord.New(discord.Config{ClientID: "client", ClientSecret: "secret", TokenURL: tokenURL})
		}},
		{name: jira.ProviderID, factory: func(tokenURL string) (core.Provider, error) {
			return jira.New(jira.Config{ClientID: "client", ClientSecret: "secret", TokenURL: tokenURL})
		}},
		{name: zoom.ProviderID, factory: func(tokenURL string) (core.Provider, error) {
			return zoom.New(zoom.Config{ClientID: "client", ClientSecret: "secret", TokenURL: tokenURL})
		}},
	}
}

func TestBuiltInProviders_ExchangeAuthorizationCode(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("grant_type") != "authorization_code" {
			http.Error(w, "unsupported grant type", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenServer.Close()

	for _, item := range builtInFactories() {
		t.Run(item.name, func(t *testing.T) {
			provider, err := item.factory(tokenServer.URL)
			if err != nil {
				t.Fatalf("new provider: %v", err)
			}
			if provider.ID() != item.name {
				t.Fatalf("expected id %q, got %q", item.name, provider.ID())
			}
			tokens, err := provider.Exchange(context.Background(), core.ExchangeRequest{
				Code:        "code",
				RedirectURI: "https://app.example/callback",
			})
			if err != nil {
				t.Fatalf("exchange: %v", err)
			}
			if tokens.AccessToken != "access" || tokens.RefreshToken != "refresh" {
				t.Fatalf("unexpected tokens: %#v", tokens)
			}
		})
	}
}

func authQuery(t *testing.T, provider core.Provider) url.Values {
	t.Helper()
	raw, err := provider.AuthorizationURL(context.Background(), core.AuthorizationRequest{
		State:       "csrf",
		RedirectURI: "https://app.example/callback",
	})
	if err != nil {
		t.Fatalf("authorization url: %v", err)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if parsed.Query().Get("state") != "csrf" {
		t.Fatalf("expected state to be embedded")
	}
	return parsed.Query()
}

func TestGoogleCalendar_RequestsOnlineIncrementalAccess(t *testing.T) {
	provider, err := calendar.New(calendar.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	query := authQuery(t, provider)
	if query.Get("access_type") != "online" {
		t.Fatalf("expected access_type=online, got %q", query.Get("access_type"))
	}
	if query.Get("include_granted_scopes") != "true" {
		t.Fatalf("expected incremental scopes")
	}
	if !strings.Contains(query.Get("scope"), calendar.ScopeCalendar) {
		t.Fatalf("expected calendar scope, got %q", query.Get("scope"))
	}
}

func TestJira_ForcesConsentWithAudience(t *testing.T) {
	provider, err := jira.New(jira.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	query := authQuery(t, provider)
	if query.Get("audience") != jira.Audience {
		t.Fatalf("expected audience %q, got %q", jira.Audience, query.Get("audience"))
	}
	if query.Get("prompt") != "consent" {
		t.Fatalf("expected prompt=consent, got %q", query.Get("prompt"))
	}
	if !strings.Contains(query.Get("scope"), "offline_access") {
		t.Fatalf("expected offline_access scope")
	}
}

func TestDiscordAndGitHub_DefaultScopes(t *testing.T) {
	discordProvider, err := discord.New(discord.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("new discord: %v", err)
	}
	if got := authQuery(t, discordProvider).Get("scope"); got != "identify email guilds" {
		t.Fatalf("unexpected discord scopes %q", got)
	}
	githubProvider, err := github.New(github.Config{ClientID: "client"})
	if err != nil {
		t.Fatalf("new github: %v", err)
	}
	if got := authQuery(t, githubProvider).Get("scope"); got != "repo read:user" {
		t.Fatalf("unexpected github scopes %q", got)
	}
}

func TestPayPal_SandboxTokenURL(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if _, _, ok := r.BasicAuth(); !ok {
			t.Fatalf("expected basic auth")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"app","token_type":"Bearer","expires_in":32400}`))
	}))
	defer server.Close()

	provider, err := paypal.New(paypal.Config{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL})
	if err != nil {
		t.Fatalf("new paypal: %v", err)
	}
	if provider.ID() != core.ServicePayPal {
		t.Fatalf("expected paypal id, got %q", provider.ID())
	}
	if _, err := provider.ClientCredentialsToken(context.Background()); err != nil {
		t.Fatalf("client credentials: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one token request, got %d", hits)
	}

	if _, err := paypal.New(paypal.Config{ClientID: "id", ClientSecret: "secret", Sandbox: true}); err != nil {
		t.Fatalf("new sandbox paypal: %v", err)
	}
}
