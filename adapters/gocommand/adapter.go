package gocommand

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// DefaultQueueResolverKey names the resolver that mirrors integration
// commands into a go-job queue registry.
const DefaultQueueResolverKey = "integrations.queue"

var errRegistryNotConfigured = errors.New("gocommand: integrations registry is not configured")

// RegistryAdapter owns the go-command registry integration handlers are
// recorded in, so resolvers see them on Initialize.
type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) ready() error {
	if a == nil || a.registry == nil {
		return errRegistryNotConfigured
	}
	return nil
}

// RegisterCommand records a handler without subscribing it on the dispatcher.
func (a *RegistryAdapter) RegisterCommand(handler any) error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.RegisterCommand(handler)
}

// AddQueueResolver mirrors every registered handler into queueRegistry when
// the adapter is initialized. A blank key uses DefaultQueueResolverKey.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if err := a.ready(); err != nil {
		return err
	}
	if queueRegistry == nil {
		return errors.New("gocommand: queue registry is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultQueueResolverKey
	}
	return a.registry.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if err := a.ready(); err != nil {
		return err
	}
	return a.registry.Initialize()
}

// RegisterAndSubscribe subscribes cmd on the default dispatcher and records
// it in the registry. The subscription is dropped if registration fails.
func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if cmd == nil {
		return nil, errors.New("gocommand: command is required")
	}
	return registerSubscribed(adapter, cmd, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	})
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if qry == nil {
		return nil, errors.New("gocommand: query is required")
	}
	return registerSubscribed(adapter, qry, func() commanddispatcher.Subscription {
		return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
	})
}

func registerSubscribed(
	adapter *RegistryAdapter,
	handler any,
	subscribe func() commanddispatcher.Subscription,
) (commanddispatcher.Subscription, error) {
	if err := adapter.ready(); err != nil {
		return nil, err
	}
	sub := subscribe()
	if err := adapter.registry.RegisterCommand(handler); err != nil {
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return sub, nil
}

// Dispatch validates msg and runs every command handler subscribed for it.
func Dispatch[T command.Message](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

// DispatchResult dispatches msg and returns the value its handler stored.
func DispatchResult[T command.Message, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.DispatchWithResult[T, R](ctx, msg)
}

func Query[T command.Message, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}
