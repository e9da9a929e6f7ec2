package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	oauthStateStore OAuthStateStore
	tokenCipher     TokenCipher
	registry        Registry
	credentialStore CredentialStore
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	OAuthStateStore OAuthStateStore
	TokenCipher     TokenCipher
	Registry        Registry
	CredentialStore CredentialStore
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if err := RequireTokenCipher(finalConfig, builder.registry, builder.tokenCipher); err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		oauthStateStore: builder.oauthStateStore,
		tokenCipher:     builder.tokenCipher,
		registry:        builder.registry,
		credentialStore: builder.credentialStore,
		now:             builder.clock,
	}, nil
}

// RequireTokenCipher fails when a registered service stores encrypted tokens
// and no cipher is available.
func RequireTokenCipher(cfg Config, registry Registry, cipher TokenCipher) error {
	if cipher != nil || registry == nil {
		return nil
	}
	for _, id := range registry.List() {
		if cfg.EncryptsService(id) {
			return fmt.Errorf("%w: provider %q stores encrypted tokens", ErrTokenCipherUnavailable, id)
		}
	}
	return nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	if strings.TrimSpace(mapped.TextCode) == "" || mapped.TextCode == IntegrationErrorBadInput {
		mapped.TextCode = IntegrationErrorConfigInvalid
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		OAuthStateStore: s.oauthStateStore,
		TokenCipher:     s.tokenCipher,
		Registry:        s.registry,
		CredentialStore: s.credentialStore,
	}
}

func (s *Service) resolveProvider(service string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	service = normalizeProviderID(service)
	provider, ok := s.registry.Get(service)
	if ok {
		return provider, nil
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("provider %q is not registered", service),
		goerrors.CategoryNotFound,
	).WithTextCode(IntegrationErrorProviderNotFound)
	return nil, ensureIntegrationErrorEnvelope(wrapped.WithMetadata(map[string]any{"service": service}))
}

func (s *Service) resolveClientCredentialsProvider(service string) (ClientCredentialsProvider, error) {
	if s == nil || s.registry == nil {
		return nil, s.mapError(fmt.Errorf("core: registry unavailable"))
	}
	service = normalizeProviderID(service)
	provider, ok := s.registry.GetClientCredentials(service)
	if ok {
		return provider, nil
	}
	if _, exists := s.registry.Get(service); exists {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrClientCredentialsUnsupported, service))
	}
	wrapped := s.errorFactory(
		fmt.Sprintf("client credentials provider %q is not registered", service),
		goerrors.CategoryNotFound,
	).WithTextCode(IntegrationErrorProviderNotFound)
	return nil, ensureIntegrationErrorEnvelope(wrapped.WithMetadata(map[string]any{"service": service}))
}

func (s *Service) requireStore() (CredentialStore, error) {
	if s == nil || s.credentialStore == nil {
		return nil, s.mapError(ErrCredentialStoreUnavailable)
	}
	return s.credentialStore, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// persistenceError keeps typed store errors and classifies everything else
// as a persistence failure.
func (s *Service) persistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && strings.TrimSpace(richErr.TextCode) != "" {
		return ensureIntegrationErrorEnvelope(richErr)
	}
	if goerrors.Is(err, ErrCredentialNotFound) {
		return s.mapError(err)
	}
	return NewPersistenceError(operation, err)
}

func (s *Service) currentTime() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
