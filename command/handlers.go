package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

type MutatingService interface {
	ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.ExchangeCodeResponse, error)
	GetClientCredentialsToken(ctx context.Context, service string) (core.ClientCredentialsResponse, error)
	RefreshTokens(ctx context.Context, req core.RefreshTokensRequest) (core.RefreshTokensResponse, error)
	UpdateIntegration(ctx context.Context, req core.UpdateIntegrationRequest) (core.CredentialRecord, error)
	Deauthorize(ctx context.Context, req core.DeauthorizeRequest) (core.DeauthorizeResponse, error)
	DeauthorizeUser(ctx context.Context, userID string, service string) error
}

type ExchangeCodeCommand struct {
	service MutatingService
}

func NewExchangeCodeCommand(service MutatingService) *ExchangeCodeCommand {
	return &ExchangeCodeCommand{service: service}
}

func (c *ExchangeCodeCommand) Execute(ctx context.Context, msg ExchangeCodeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.ExchangeCode(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ClientCredentialsCommand struct {
	service MutatingService
}

func NewClientCredentialsCommand(service MutatingService) *ClientCredentialsCommand {
	return &ClientCredentialsCommand{service: service}
}

func (c *ClientCredentialsCommand) Execute(ctx context.Context, msg ClientCredentialsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: client credentials service is required")
	}
	out, err := c.service.GetClientCredentialsToken(ctx, msg.Service)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshTokensCommand struct {
	service MutatingService
}

func NewRefreshTokensCommand(service MutatingService) *RefreshTokensCommand {
	return &RefreshTokensCommand{service: service}
}

func (c *RefreshTokensCommand) Execute(ctx context.Context, msg RefreshTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshTokens(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateIntegrationCommand struct {
	service MutatingService
}

func NewUpdateIntegrationCommand(service MutatingService) *UpdateIntegrationCommand {
	return &UpdateIntegrationCommand{service: service}
}

func (c *UpdateIntegrationCommand) Execute(ctx context.Context, msg UpdateIntegrationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: update service is required")
	}
	out, err := c.service.UpdateIntegration(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeauthorizeCommand struct {
	service MutatingService
}

func NewDeauthorizeCommand(service MutatingService) *DeauthorizeCommand {
	return &DeauthorizeCommand{service: service}
}

func (c *DeauthorizeCommand) Execute(ctx context.Context, msg DeauthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: deauthorize service is required")
	}
	out, err := c.service.Deauthorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeauthorizeUserCommand struct {
	service MutatingService
}

func NewDeauthorizeUserCommand(service MutatingService) *DeauthorizeUserCommand {
	return &DeauthorizeUserCommand{service: service}
}

func (c *DeauthorizeUserCommand) Execute(ctx context.Context, msg DeauthorizeUserMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: deauthorize service is required")
	}
	return c.service.DeauthorizeUser(ctx, msg.UserID, msg.Service)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
