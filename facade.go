package integrations

import (
	"fmt"

	integrationscommand "github.com/goliatone/go-integrations/command"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

type CommandQueryService interface {
	integrationscommand.MutatingService
	integrationsquery.IntegrationReader
	integrationsquery.AuthorizationURLBuilder
}

type Commands struct {
	ExchangeCode      *integrationscommand.ExchangeCodeCommand
	ClientCredentials *integrationscommand.ClientCredentialsCommand
	RefreshTokens     *integrationscommand.RefreshTokensCommand
	UpdateIntegration *integrationscommand.UpdateIntegrationCommand
	Deauthorize       *integrationscommand.DeauthorizeCommand
	DeauthorizeUser   *integrationscommand.DeauthorizeUserCommand
}

type Queries struct {
	GetIntegration        *integrationsquery.GetIntegrationQuery
	BuildAuthorizationURL *integrationsquery.BuildAuthorizationURLQuery
}

// Facade exposes the integration service as go-command handlers.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("integrations: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			ExchangeCode:      integrationscommand.NewExchangeCodeCommand(service),
			ClientCredentials: integrationscommand.NewClientCredentialsCommand(service),
			RefreshTokens:     integrationscommand.NewRefreshTokensCommand(service),
			UpdateIntegration: integrationscommand.NewUpdateIntegrationCommand(service),
			Deauthorize:       integrationscommand.NewDeauthorizeCommand(service),
			DeauthorizeUser:   integrationscommand.NewDeauthorizeUserCommand(service),
		},
		queries: Queries{
			GetIntegration:        integrationsquery.NewGetIntegrationQuery(service),
			BuildAuthorizationURL: integrationsquery.NewBuildAuthorizationURLQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
