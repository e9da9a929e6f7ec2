package command

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeExchangeCode      = "integrations.command.oauth.exchange_code"
	TypeClientCredentials = "integrations.command.oauth.client_credentials"
	TypeRefreshTokens     = "integrations.command.oauth.refresh"
	TypeUpdateIntegration = "integrations.command.record.update"
	TypeDeauthorize       = "integrations.command.record.deauthorize"
	TypeDeauthorizeUser   = "integrations.command.record.deauthorize_user"
)

type ExchangeCodeMessage struct {
	Request core.ExchangeCodeRequest
}

func (ExchangeCodeMessage) Type() string { return TypeExchangeCode }

func (m ExchangeCodeMessage) Validate() error {
	if strings.TrimSpace(m.Request.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type ClientCredentialsMessage struct {
	Service string
}

func (ClientCredentialsMessage) Type() string { return TypeClientCredentials }

func (m ClientCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	return nil
}

type RefreshTokensMessage struct {
	Request core.RefreshTokensRequest
}

func (RefreshTokensMessage) Type() string { return TypeRefreshTokens }

func (m RefreshTokensMessage) Validate() error {
	if strings.TrimSpace(m.Request.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type UpdateIntegrationMessage struct {
	Request core.UpdateIntegrationRequest
}

func (UpdateIntegrationMessage) Type() string { return TypeUpdateIntegration }

func (m UpdateIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.Request.ID) == "" {
		return commandValidationError("id", "record id is required")
	}
	if strings.TrimSpace(m.Request.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	if err := m.Request.Patch.Validate(); err != nil {
		return commandValidationError("patch", err.Error())
	}
	return nil
}

type DeauthorizeMessage struct {
	Request core.DeauthorizeRequest
}

func (DeauthorizeMessage) Type() string { return TypeDeauthorize }

func (m DeauthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Request.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	if strings.TrimSpace(m.Request.AppAccountID) == "" {
		return commandValidationError("app_account_id", "app account id is required")
	}
	return nil
}

type DeauthorizeUserMessage struct {
	UserID  string
	Service string
}

func (DeauthorizeUserMessage) Type() string { return TypeDeauthorizeUser }

func (m DeauthorizeUserMessage) Validate() error {
	if strings.TrimSpace(m.Service) == "" {
		return commandValidationError("service", "service is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}
