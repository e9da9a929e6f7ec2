package gocommand

import (
	"context"
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

// IntegrationService is everything the command and query handlers call into.
type IntegrationService interface {
	integrationscommand.MutatingService
	integrationsquery.IntegrationReader
	integrationsquery.AuthorizationURLBuilder
}

// Subscriptions groups dispatcher subscriptions so they can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterIntegrationHandlers registers every integration command and query
// with the registry and subscribes them on the default dispatcher.
func RegisterIntegrationHandlers(
	adapter *RegistryAdapter,
	svc IntegrationService,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, fmt.Errorf("gocommand: integration service is required")
	}

	var subs Subscriptions
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.ExchangeCodeMessage](adapter, integrationscommand.NewExchangeCodeCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.ClientCredentialsMessage](adapter, integrationscommand.NewClientCredentialsCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.RefreshTokensMessage](adapter, integrationscommand.NewRefreshTokensCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.UpdateIntegrationMessage](adapter, integrationscommand.NewUpdateIntegrationCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.DeauthorizeMessage](adapter, integrationscommand.NewDeauthorizeCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe[integrationscommand.DeauthorizeUserMessage](adapter, integrationscommand.NewDeauthorizeUserCommand(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[integrationsquery.GetIntegrationMessage, core.Integration](adapter, integrationsquery.NewGetIntegrationQuery(svc), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery[integrationsquery.BuildAuthorizationURLMessage, core.BuildAuthorizationURLResponse](
				adapter, integrationsquery.NewBuildAuthorizationURLQuery(svc), runnerOpts...,
			)
		},
	}
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// ExchangeCode dispatches an ExchangeCodeMessage and returns the stored
// credential with its token set.
func ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.ExchangeCodeResponse, error) {
	return DispatchResult[integrationscommand.ExchangeCodeMessage, core.ExchangeCodeResponse](
		ctx, integrationscommand.ExchangeCodeMessage{Request: req},
	)
}

// Deauthorize dispatches a DeauthorizeMessage and reports how many records
// were removed.
func Deauthorize(ctx context.Context, req core.DeauthorizeRequest) (core.DeauthorizeResponse, error) {
	return DispatchResult[integrationscommand.DeauthorizeMessage, core.DeauthorizeResponse](
		ctx, integrationscommand.DeauthorizeMessage{Request: req},
	)
}
