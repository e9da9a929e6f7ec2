package integrations

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/discord"
	"github.com/goliatone/go-integrations/providers/github"
	"github.com/goliatone/go-integrations/providers/google/calendar"
	"github.com/goliatone/go-integrations/providers/jira"
	"github.com/goliatone/go-integrations/providers/paypal"
	"github.com/goliatone/go-integrations/providers/zoom"
)

func GoogleCalendarProvider(cfg calendar.Config) (core.Provider, error) {
	return calendar.New(cfg)
}

func GitHubProvider(cfg github.Config) (core.Provider, error) {
	return github.New(cfg)
}

func DiscordProvider(cfg discord.Config) (core.Provider, error) {
	return discord.New(cfg)
}

func JiraProvider(cfg jira.Config) (core.Provider, error) {
	return jira.New(cfg)
}

func ZoomProvider(cfg zoom.Config) (core.Provider, error) {
	return zoom.New(cfg)
}

func PayPalProvider(cfg paypal.Config) (core.ClientCredentialsProvider, error) {
	return paypal.New(cfg)
}

// NewProviderRegistry registers one provider per entry of cfg.Providers.
// Entries are keyed by service id; unknown ids fail.
func NewProviderRegistry(cfg core.Config, client *http.Client) (*core.ProviderRegistry, error) {
	registry := core.NewProviderRegistry()
	ids := make([]string, 0, len(cfg.Providers))
	for id := range cfg.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, rawID := range ids {
		id := strings.TrimSpace(strings.ToLower(rawID))
		pc := cfg.Providers[rawID]
		if id == core.ServicePayPal {
			provider, err := PayPalProvider(paypal.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				Sandbox:      pc.Sandbox,
				Scopes:       pc.Scopes,
				HTTPClient:   client,
			})
			if err != nil {
				return nil, err
			}
			if err := registry.RegisterClientCredentials(provider); err != nil {
				return nil, err
			}
			continue
		}

		provider, err := buildOAuthProvider(id, pc, client)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildOAuthProvider(id string, pc core.ProviderConfig, client *http.Client) (core.Provider, error) {
	switch id {
	case core.ServiceGoogleCalendar:
		return GoogleCalendarProvider(calendar.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			RedirectURI:   pc.RedirectURI,
			DefaultScopes: pc.Scopes,
			HTTPClient:    client,
		})
	case core.ServiceGitHub:
		return GitHubProvider(github.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			RedirectURI:   pc.RedirectURI,
			DefaultScopes: pc.Scopes,
			HTTPClient:    client,
		})
	case core.ServiceDiscord:
		return DiscordProvider(discord.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			RedirectURI:   pc.RedirectURI,
			DefaultScopes: pc.Scopes,
			HTTPClient:    client,
		})
	case core.ServiceJira:
		return JiraProvider(jira.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			RedirectURI:   pc.RedirectURI,
			DefaultScopes: pc.Scopes,
			HTTPClient:    client,
		})
	case core.ServiceZoom:
		return ZoomProvider(zoom.Config{
			ClientID:      pc.ClientID,
			ClientSecret:  pc.ClientSecret,
			RedirectURI:   pc.RedirectURI,
			DefaultScopes: pc.Scopes,
			HTTPClient:    client,
		})
	default:
		return nil, fmt.Errorf("integrations: unsupported provider %q", id)
	}
}
