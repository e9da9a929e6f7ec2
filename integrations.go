package integrations

import "github.com/goliatone/go-integrations/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type CredentialStore = core.CredentialStore
type CredentialRecord = core.CredentialRecord
type TokenCipher = core.TokenCipher
type OAuthStateStore = core.OAuthStateStore
type MetricsRecorder = core.MetricsRecorder

type BuildAuthorizationURLRequest = core.BuildAuthorizationURLRequest
type ExchangeCodeRequest = core.ExchangeCodeRequest
type RefreshTokensRequest = core.RefreshTokensRequest
type UpdateIntegrationRequest = core.UpdateIntegrationRequest
type UpdateFieldsInput = core.UpdateFieldsInput
type DeauthorizeRequest = core.DeauthorizeRequest
type Integration = core.Integration

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithOAuthStateStore = core.WithOAuthStateStore
	WithTokenCipher     = core.WithTokenCipher
	WithRegistry        = core.WithRegistry
	WithCredentialStore = core.WithCredentialStore
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
