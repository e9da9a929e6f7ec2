package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Querier[GetIntegrationMessage, core.Integration]                          = (*GetIntegrationQuery)(nil)
	_ gocmd.Querier[BuildAuthorizationURLMessage, core.BuildAuthorizationURLResponse] = (*BuildAuthorizationURLQuery)(nil)
)
