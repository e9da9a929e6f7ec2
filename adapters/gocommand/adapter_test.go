package gocommand

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	integrationscommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationsquery "github.com/goliatone/go-integrations/query"
)

type stubIntegrationService struct {
	exchanged   []core.ExchangeCodeRequest
	deauthorize []core.DeauthorizeRequest
	affected    int
	exchangeErr error
}

func (s *stubIntegrationService) ExchangeCode(_ context.Context, req core.ExchangeCodeRequest) (core.ExchangeCodeResponse, error) {
	if s.exchangeErr != nil {
		return core.ExchangeCodeResponse{}, s.exchangeErr
	}
	s.exchanged = append(s.exchanged, req)
	return core.ExchangeCodeResponse{
		Record: core.CredentialRecord{UserID: req.UserID, Service: req.Service},
		Tokens: core.TokenResult{AccessToken: "access-" + req.Code, ExpiresIn: 3600},
	}, nil
}

func (s *stubIntegrationService) GetClientCredentialsToken(context.Context, string) (core.ClientCredentialsResponse, error) {
	return core.ClientCredentialsResponse{}, nil
}

func (s *stubIntegrationService) RefreshTokens(context.Context, core.RefreshTokensRequest) (core.RefreshTokensResponse, error) {
	return core.RefreshTokensResponse{}, nil
}

func (s *stubIntegrationService) UpdateIntegration(context.Context, core.UpdateIntegrationRequest) (core.CredentialRecord, error) {
	return core.CredentialRecord{}, nil
}

func (s *stubIntegrationService) Deauthorize(_ context.Context, req core.DeauthorizeRequest) (core.DeauthorizeResponse, error) {
	s.deauthorize = append(s.deauthorize, req)
	return core.DeauthorizeResponse{Affected: s.affected}, nil
}

func (s *stubIntegrationService) DeauthorizeUser(context.Context, string, string) error {
	return nil
}

func (s *stubIntegrationService) GetIntegration(_ context.Context, userID string, service string) (core.Integration, error) {
	return core.Integration{Record: core.CredentialRecord{UserID: userID, Service: service}}, nil
}

func (s *stubIntegrationService) BuildAuthorizationURL(_ context.Context, req core.BuildAuthorizationURLRequest) (core.BuildAuthorizationURLResponse, error) {
	return core.BuildAuthorizationURLResponse{URL: "https://zoom.us/oauth/authorize", State: req.State}, nil
}

func registerStub(t *testing.T, svc *stubIntegrationService) *RegistryAdapter {
	t.Helper()
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterIntegrationHandlers(adapter, svc)
	if err != nil {
		t.Fatalf("register integration handlers: %v", err)
	}
	t.Cleanup(subs.Unsubscribe)
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	return adapter
}

func TestDispatch_ExchangeCodeMessage(t *testing.T) {
	svc := &stubIntegrationService{}
	registerStub(t, svc)

	err := Dispatch(context.Background(), integrationscommand.ExchangeCodeMessage{
		Request: core.ExchangeCodeRequest{UserID: "user-1", Service: "zoom", Code: "abc"},
	})
	if err != nil {
		t.Fatalf("dispatch exchange: %v", err)
	}
	if len(svc.exchanged) != 1 || svc.exchanged[0].Code != "abc" {
		t.Fatalf("expected one exchange for code abc, got %+v", svc.exchanged)
	}

	out, err := ExchangeCode(context.Background(), core.ExchangeCodeRequest{UserID: "user-1", Service: "zoom", Code: "def"})
	if err != nil {
		t.Fatalf("exchange code: %v", err)
	}
	if out.Tokens.AccessToken != "access-def" || out.Record.Service != "zoom" {
		t.Fatalf("expected stored exchange result, got %+v", out)
	}
}

func TestDispatch_ExchangeCodeRejectsInvalidMessage(t *testing.T) {
	svc := &stubIntegrationService{}
	registerStub(t, svc)

	err := Dispatch(context.Background(), integrationscommand.ExchangeCodeMessage{
		Request: core.ExchangeCodeRequest{UserID: "user-1", Service: "zoom"},
	})
	if err == nil {
		t.Fatalf("expected missing code to fail validation")
	}
	if len(svc.exchanged) != 0 {
		t.Fatalf("expected handler not to run, got %+v", svc.exchanged)
	}
}

func TestDispatch_PropagatesServiceError(t *testing.T) {
	boom := errors.New("token endpoint unavailable")
	svc := &stubIntegrationService{exchangeErr: boom}
	registerStub(t, svc)

	_, err := ExchangeCode(context.Background(), core.ExchangeCodeRequest{UserID: "user-1", Service: "zoom", Code: "abc"})
	if err == nil || !strings.Contains(err.Error(), boom.Error()) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestDispatch_DeauthorizeMessage(t *testing.T) {
	svc := &stubIntegrationService{affected: 2}
	registerStub(t, svc)

	out, err := Deauthorize(context.Background(), core.DeauthorizeRequest{Service: "zoom", AppAccountID: "acct-7"})
	if err != nil {
		t.Fatalf("deauthorize: %v", err)
	}
	if out.Affected != 2 {
		t.Fatalf("expected 2 affected records, got %d", out.Affected)
	}
	if len(svc.deauthorize) != 1 || svc.deauthorize[0].AppAccountID != "acct-7" {
		t.Fatalf("unexpected deauthorize requests %+v", svc.deauthorize)
	}

	if err := Dispatch(context.Background(), integrationscommand.DeauthorizeMessage{
		Request: core.DeauthorizeRequest{Service: "zoom"},
	}); err == nil {
		t.Fatalf("expected missing app_account_id to fail validation")
	}
	if len(svc.deauthorize) != 1 {
		t.Fatalf("expected invalid deauthorize to be rejected before the handler")
	}
}

func TestQuery_GetIntegration(t *testing.T) {
	registerStub(t, &stubIntegrationService{})

	integration, err := Query[integrationsquery.GetIntegrationMessage, core.Integration](
		context.Background(),
		integrationsquery.GetIntegrationMessage{UserID: "user-1", Service: "zoom"},
	)
	if err != nil {
		t.Fatalf("query integration: %v", err)
	}
	if integration.Record.UserID != "user-1" || integration.Record.Service != "zoom" {
		t.Fatalf("unexpected integration %+v", integration)
	}
}

func TestAddQueueResolver_MirrorsIntegrationCommands(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	if err := adapter.AddQueueResolver("", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(integrationscommand.NewDeauthorizeCommand(&stubIntegrationService{})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if _, ok := queueRegistry.Get(integrationscommand.TypeDeauthorize); !ok {
		t.Fatalf("expected deauthorize command mirrored into queue registry")
	}
}

func TestRegistryAdapter_RequiresRegistry(t *testing.T) {
	var adapter *RegistryAdapter
	if err := adapter.Initialize(); err == nil {
		t.Fatalf("expected nil adapter to fail")
	}
	if _, err := RegisterIntegrationHandlers(adapter, &stubIntegrationService{}); err == nil {
		t.Fatalf("expected nil adapter to fail registration")
	}
	if err := NewRegistryAdapter(nil).AddQueueResolver("queue", nil); err == nil {
		t.Fatalf("expected nil queue registry to fail")
	}
}
