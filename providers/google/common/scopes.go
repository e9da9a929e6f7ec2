package common

import "github.com/goliatone/go-integrations/providers"

const (
	ScopeOpenID  = "openid"
	ScopeEmail   = "email"
	ScopeProfile = "profile"
)

func WithIdentityScopes(scopes []string, include bool) []string {
	normalized := providers.NormalizeScopes(scopes)
	if !include {
		return normalized
	}
	return providers.NormalizeScopes(append(normalized, ScopeOpenID, ScopeProfile, ScopeEmail))
}

// IncrementalAuthParams requests an online token and lets Google merge scopes
// granted in earlier consents into the new grant.
func IncrementalAuthParams() map[string]string {
	return map[string]string{
		"access_type":            "online",
		"include_granted_scopes": "true",
	}
}
