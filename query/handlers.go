package query

import (
	"context"

	"github.com/goliatone/go-integrations/core"
)

type IntegrationReader interface {
	GetIntegration(ctx context.Context, userID string, service string) (core.Integration, error)
}

type AuthorizationURLBuilder interface {
	BuildAuthorizationURL(ctx context.Context, req core.BuildAuthorizationURLRequest) (core.BuildAuthorizationURLResponse, error)
}

// GetIntegrationQuery returns the decrypted integration for a user.
type GetIntegrationQuery struct {
	reader IntegrationReader
}

func NewGetIntegrationQuery(reader IntegrationReader) *GetIntegrationQuery {
	return &GetIntegrationQuery{reader: reader}
}

func (q *GetIntegrationQuery) Query(ctx context.Context, msg GetIntegrationMessage) (core.Integration, error) {
	if q == nil || q.reader == nil {
		return core.Integration{}, queryDependencyError("query: integration reader is required")
	}
	return q.reader.GetIntegration(ctx, msg.UserID, msg.Service)
}

type BuildAuthorizationURLQuery struct {
	builder AuthorizationURLBuilder
}

func NewBuildAuthorizationURLQuery(builder AuthorizationURLBuilder) *BuildAuthorizationURLQuery {
	return &BuildAuthorizationURLQuery{builder: builder}
}

func (q *BuildAuthorizationURLQuery) Query(
	ctx context.Context,
	msg BuildAuthorizationURLMessage,
) (core.BuildAuthorizationURLResponse, error) {
	if q == nil || q.builder == nil {
		return core.BuildAuthorizationURLResponse{}, queryDependencyError("query: authorization url builder is required")
	}
	return q.builder.BuildAuthorizationURL(ctx, msg.Request)
}
