// Package providers contains the OAuth2 provider implementations used by the
// integrations service. Per-service packages only pin endpoints, scopes and
// authorize-URL parameters; token traffic goes through golang.org/x/oauth2.
package providers
