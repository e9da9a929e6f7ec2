package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ExchangeCodeMessage]      = (*ExchangeCodeCommand)(nil)
	_ gocmd.Commander[ClientCredentialsMessage] = (*ClientCredentialsCommand)(nil)
	_ gocmd.Commander[RefreshTokensMessage]     = (*RefreshTokensCommand)(nil)
	_ gocmd.Commander[UpdateIntegrationMessage] = (*UpdateIntegrationCommand)(nil)
	_ gocmd.Commander[DeauthorizeMessage]       = (*DeauthorizeCommand)(nil)
	_ gocmd.Commander[DeauthorizeUserMessage]   = (*DeauthorizeUserCommand)(nil)
)
