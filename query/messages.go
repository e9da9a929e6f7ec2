package query

import (
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const (
	TypeGetIntegration        = "integrations.query.record.get"
	TypeBuildAuthorizationURL = "integrations.query.oauth.authorization_url"
)

type GetIntegrationMessage struct {
	UserID  string
	Service string
}

func (GetIntegrationMessage) Type() string { return TypeGetIntegration }

func (m GetIntegrationMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Service) == "" {
		return queryValidationError("service", "service is required")
	}
	return nil
}

type BuildAuthorizationURLMessage struct {
	Request core.BuildAuthorizationURLRequest
}

func (BuildAuthorizationURLMessage) Type() string { return TypeBuildAuthorizationURL }

func (m BuildAuthorizationURLMessage) Validate() error {
	if strings.TrimSpace(m.Request.Service) == "" {
		return queryValidationError("service", "service is required")
	}
	return nil
}
