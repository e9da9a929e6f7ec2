package integrations

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	facade, err := NewFacade(&stubFacadeService{})
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.ExchangeCode == nil || commands.ClientCredentials == nil || commands.RefreshTokens == nil ||
		commands.UpdateIntegration == nil || commands.Deauthorize == nil || commands.DeauthorizeUser == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetIntegration == nil || queries.BuildAuthorizationURL == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}
	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.DeauthorizeResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Deauthorize.Execute(ctx, integrationscommand.DeauthorizeMessage{
		Request: core.DeauthorizeRequest{Service: "zoom", AppAccountID: "acct-1"},
	}); err != nil {
		t.Fatalf("execute deauthorize command: %v", err)
	}
	if svc.lastDeauthorize.AppAccountID != "acct-1" {
		t.Fatalf("unexpected deauthorize delegation payload %+v", svc.lastDeauthorize)
	}
	result, ok := collector.Load()
	if !ok || result.Affected != 2 {
		t.Fatalf("expected deauthorize result in context, got %+v ok=%v", result, ok)
	}

	integration, err := facade.Queries().GetIntegration.Query(context.Background(), integrationsquery.GetIntegrationMessage{
		UserID:  "user-1",
		Service: "github",
	})
	if err != nil {
		t.Fatalf("query integration: %v", err)
	}
	if integration.Record.UserID != "user-1" || integration.AccessToken != "token" {
		t.Fatalf("unexpected integration result %+v", integration)
	}

	authURL, err := facade.Queries().BuildAuthorizationURL.Query(context.Background(), integrationsquery.BuildAuthorizationURLMessage{
		Request: core.BuildAuthorizationURLRequest{Service: "github", State: "state-1"},
	})
	if err != nil {
		t.Fatalf("query authorization url: %v", err)
	}
	if authURL.State != "state-1" {
		t.Fatalf("unexpected authorization url result %+v", authURL)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastDeauthorize core.DeauthorizeRequest
}

func (s *stubFacadeService) ExchangeCode(context.Context, core.ExchangeCodeRequest) (core.ExchangeCodeResponse, error) {
	return core.ExchangeCodeResponse{}, nil
}

func (s *stubFacadeService) GetClientCredentialsToken(context.Context, string) (core.ClientCredentialsResponse, error) {
	return core.ClientCredentialsResponse{}, nil
}

func (s *stubFacadeService) RefreshTokens(context.Context, core.RefreshTokensRequest) (core.RefreshTokensResponse, error) {
	return core.RefreshTokensResponse{}, nil
}

func (s *stubFacadeService) UpdateIntegration(context.Context, core.UpdateIntegrationRequest) (core.CredentialRecord, error) {
	return core.CredentialRecord{}, nil
}

func (s *stubFacadeService) Deauthorize(_ context.Context, req core.DeauthorizeRequest) (core.DeauthorizeResponse, error) {
	s.lastDeauthorize = req
	return core.DeauthorizeResponse{Affected: 2}, nil
}

func (s *stubFacadeService) DeauthorizeUser(context.Context, string, string) error {
	return nil
}

func (s *stubFacadeService) GetIntegration(_ context.Context, userID string, service string) (core.Integration, error) {
	return core.Integration{
		Record:      core.CredentialRecord{UserID: userID, Service: service},
		AccessToken: "token",
	}, nil
}

func (s *stubFacadeService) BuildAuthorizationURL(_ context.Context, req core.BuildAuthorizationURLRequest) (core.BuildAuthorizationURLResponse, error) {
	return core.BuildAuthorizationURLResponse{URL: "https://example.test/authorize", State: req.State}, nil
}
