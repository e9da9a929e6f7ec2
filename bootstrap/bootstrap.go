// Package bootstrap assembles a ready-to-serve integration runtime from a
// core.Config: providers, token cipher, credential store, service, command
// facade and the Zoom webhook handler.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	integrations "github.com/goliatone/go-integrations"
	"github.com/goliatone/go-integrations/adapters/gologger"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/security"
	"github.com/goliatone/go-integrations/webhooks"
)

type Option func(*options)

type options struct {
	httpClient     *http.Client
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	store          core.CredentialStore
	stateStore     core.OAuthStateStore
	zoomEvents     webhooks.EventHandler
	serviceOptions []core.Option
	sqlDebug       bool
}

// WithHTTPClient is used for token endpoints and the GraphQL store.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *options) {
		o.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(o *options) {
		o.metrics = recorder
	}
}

// WithCredentialStore skips driver based store construction.
func WithCredentialStore(store core.CredentialStore) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithOAuthStateStore(store core.OAuthStateStore) Option {
	return func(o *options) {
		o.stateStore = store
	}
}

// WithZoomEventHandler receives verified Zoom events other than
// app_deauthorized, which is always routed to Deauthorize.
func WithZoomEventHandler(handler webhooks.EventHandler) Option {
	return func(o *options) {
		o.zoomEvents = handler
	}
}

func WithServiceOptions(opts ...core.Option) Option {
	return func(o *options) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

func WithSQLDebug(debug bool) Option {
	return func(o *options) {
		o.sqlDebug = debug
	}
}

type Runtime struct {
	Config      core.Config
	Service     *core.Service
	Facade      *integrations.Facade
	Registry    *core.ProviderRegistry
	Cipher      *security.TokenCipher
	Store       core.CredentialStore
	ZoomWebhook *webhooks.ZoomHandler
	Logger      core.Logger

	closers []func() error
}

// Close releases the resources Setup opened.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func Setup(ctx context.Context, cfg core.Config, opts ...Option) (*Runtime, error) {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.NewConfigInvalidError("invalid integrations config", err)
	}
	if strings.TrimSpace(cfg.Zoom.WebhookSecret) == "" {
		return nil, core.NewConfigInvalidError("bootstrap: zoom webhook_secret is required", nil)
	}

	_, logger := gologger.Resolve(gologger.LoggerName, o.loggerProvider, o.logger)
	runtime := &Runtime{Config: cfg, Logger: logger}

	registry, err := integrations.NewProviderRegistry(cfg, o.httpClient)
	if err != nil {
		return nil, core.NewConfigInvalidError("invalid provider config", err)
	}
	runtime.Registry = registry

	serviceOpts := []core.Option{
		core.WithRegistry(registry),
		core.WithLogger(logger),
	}
	if o.loggerProvider != nil {
		serviceOpts = append(serviceOpts, core.WithLoggerProvider(o.loggerProvider))
	}
	if o.metrics != nil {
		serviceOpts = append(serviceOpts, core.WithMetricsRecorder(o.metrics))
	}
	if o.stateStore != nil {
		serviceOpts = append(serviceOpts, core.WithOAuthStateStore(o.stateStore))
	}

	var tokenCipher core.TokenCipher
	if cfg.Cipher.Configured() {
		cipher, cipherErr := security.NewTokenCipher(cfg.Cipher)
		if cipherErr != nil {
			return nil, core.NewConfigInvalidError("invalid cipher config", cipherErr)
		}
		runtime.Cipher = cipher
		tokenCipher = cipher
		serviceOpts = append(serviceOpts, core.WithTokenCipher(cipher))
	}
	if err := core.RequireTokenCipher(cfg, registry, tokenCipher); err != nil {
		return nil, core.NewConfigInvalidError("token cipher is required", err)
	}

	store := o.store
	if store == nil {
		store, err = openStore(ctx, runtime, cfg.CredentialStore, o)
		if err != nil {
			return nil, err
		}
	}
	runtime.Store = store
	serviceOpts = append(serviceOpts, core.WithCredentialStore(store))
	serviceOpts = append(serviceOpts, o.serviceOptions...)

	service, err := core.NewService(cfg, serviceOpts...)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}
	runtime.Service = service

	facade, err := integrations.NewFacade(service)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}
	runtime.Facade = facade

	router := webhooks.NewEventRouter().
		Handle(webhooks.ZoomEventAppDeauthorized, webhooks.NewDeauthorizationHandler(service))
	router.Fallback = o.zoomEvents
	handlerOpts := []webhooks.HandlerOption{webhooks.WithHandlerLogger(logger)}
	if o.metrics != nil {
		handlerOpts = append(handlerOpts, webhooks.WithHandlerMetrics(o.metrics))
	}
	runtime.ZoomWebhook = webhooks.NewZoomHandler(webhooks.NewZoomVerifier(cfg.Zoom), router, handlerOpts...)

	logger.Info("integrations runtime ready",
		"store", storeDriver(cfg.CredentialStore),
		"providers", strings.Join(registry.List(), ","),
		"encryption", runtime.Cipher != nil,
	)
	return runtime, nil
}

func openStore(ctx context.Context, runtime *Runtime, cfg core.CredentialStoreConfig, o options) (core.CredentialStore, error) {
	switch storeDriver(cfg) {
	case core.CredentialStoreDriverGraphQL:
		store, err := openGraphQLStore(cfg, o.httpClient)
		if err != nil {
			return nil, core.NewConfigInvalidError("invalid graphql credential store config", err)
		}
		return store, nil
	case core.CredentialStoreDriverSQL:
		store, closeFn, err := openSQLStore(ctx, cfg, o.sqlDebug, runtime.Logger)
		if err != nil {
			return nil, err
		}
		runtime.closers = append(runtime.closers, closeFn)
		return store, nil
	default:
		return nil, core.NewConfigInvalidError(fmt.Sprintf("bootstrap: unsupported credential store driver %q", cfg.Driver), nil)
	}
}

func storeDriver(cfg core.CredentialStoreConfig) string {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	if driver == "" {
		return core.CredentialStoreDriverGraphQL
	}
	return driver
}
