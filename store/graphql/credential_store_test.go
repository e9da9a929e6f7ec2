package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-integrations/core"
)

type capturedRequest struct {
	Headers       http.Header
	Query         string
	OperationName string
	Variables     map[string]any
}

type hasuraStub struct {
	mu       sync.Mutex
	requests []capturedRequest
	respond  func(req capturedRequest) (int, string)
}

func (h *hasuraStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	captured := capturedRequest{
		Headers:       r.Header.Clone(),
		Query:         payload.Query,
		OperationName: payload.OperationName,
		Variables:     payload.Variables,
	}
	h.mu.Lock()
	h.requests = append(h.requests, captured)
	h.mu.Unlock()

	status, body := h.respond(captured)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (h *hasuraStub) last(t *testing.T) capturedRequest {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.requests) == 0 {
		t.Fatalf("expected at least one request")
	}
	return h.requests[len(h.requests)-1]
}

func newTestStore(t *testing.T, respond func(req capturedRequest) (int, string)) (*CredentialStore, *hasuraStub) {
	t.Helper()
	stub := &hasuraStub{respond: respond}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	cfg := core.DefaultConfig().CredentialStore
	cfg.Endpoint = server.URL + "/v1/graphql"
	cfg.AdminSecret = "hasura-secret"
	store, err := NewCredentialStore(cfg, server.Client(), WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, stub
}

const recordJSON = `{
  "id": "8b0f2a52-3c1e-4c55-9d38-1f0b0c1a2b3c",
  "userId": "user-1",
  "resource": "zoom",
  "token": "enc.v2:abc",
  "refreshToken": null,
  "expiresAt": "2026-03-01T13:00:00Z",
  "scope": "meeting:read",
  "tokenType": "Bearer",
  "enabled": true,
  "syncEnabled": true,
  "appAccountId": "acct-9",
  "appEmail": null,
  "appId": null,
  "contactFirstName": null,
  "contactLastName": null,
  "contactName": null,
  "phoneCountry": null,
  "cipherFormat": "v2",
  "createdDate": "2026-02-01T00:00:00Z",
  "updatedAt": "2026-03-01T12:00:00Z"
}`

func TestNewCredentialStoreValidatesConfig(t *testing.T) {
	base := core.DefaultConfig().CredentialStore
	base.Endpoint = "https://hasura.example.com/v1/graphql"
	base.AdminSecret = "secret"

	cases := map[string]func(cfg *core.CredentialStoreConfig){
		"missing endpoint":   func(cfg *core.CredentialStoreConfig) { cfg.Endpoint = "" },
		"missing secret":     func(cfg *core.CredentialStoreConfig) { cfg.AdminSecret = " " },
		"invalid table":      func(cfg *core.CredentialStoreConfig) { cfg.Table = "Calendar Integration" },
		"invalid constraint": func(cfg *core.CredentialStoreConfig) { cfg.Constraint = "x}{" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			if _, err := NewCredentialStore(cfg, nil); err == nil {
				t.Fatalf("expected config error")
			}
		})
	}
}

func TestUpsertTokensSendsAdminHeadersAndOnConflict(t *testing.T) {
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"insert_Calendar_Integration_one":` + recordJSON + `}}`
	})

	expiresAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	record, err := store.UpsertTokens(context.Background(), core.UpsertTokensInput{
		UserID:  "user-1",
		Service: "Zoom",
		Tokens: core.TokenResult{
			AccessToken: "enc.v2:abc",
			Scope:       "meeting:read",
			TokenType:   "Bearer",
			ExpiresAt:   &expiresAt,
		},
		CipherFormat: "v2",
		Enabled:      true,
		SyncEnabled:  true,
		Metadata:     core.ContactMetadata{AppAccountID: "acct-9"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if record.ID == "" || record.Service != core.ServiceZoom || record.AppAccountID != "acct-9" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.RefreshToken != nil {
		t.Fatalf("expected nil refresh token")
	}

	req := stub.last(t)
	if got := req.Headers.Get(HeaderAdminSecret); got != "hasura-secret" {
		t.Fatalf("expected admin secret header, got %q", got)
	}
	if got := req.Headers.Get(HeaderRole); got != RoleAdmin {
		t.Fatalf("expected admin role header, got %q", got)
	}
	if !strings.Contains(req.Query, "constraint: Calendar_Integration_userId_resource_key") {
		t.Fatalf("expected on_conflict constraint in query: %s", req.Query)
	}
	if strings.Contains(req.Query, "refreshToken,") || strings.Contains(req.Query, ", refreshToken]") {
		t.Fatalf("refresh token must not be overwritten when absent: %s", req.Query)
	}
	object, _ := req.Variables["object"].(map[string]any)
	if object["userId"] != "user-1" || object["resource"] != "zoom" {
		t.Fatalf("unexpected object key: %+v", object)
	}
	if _, ok := object["refreshToken"]; ok {
		t.Fatalf("refresh token should be omitted: %+v", object)
	}
	if _, ok := object["contactName"]; ok {
		t.Fatalf("empty contact fields should be omitted: %+v", object)
	}
	if object["expiresAt"] != "2026-03-01T13:00:00Z" {
		t.Fatalf("unexpected expiresAt %v", object["expiresAt"])
	}
}

func TestUpsertTokensIncludesRefreshTokenWhenPresent(t *testing.T) {
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"insert_Calendar_Integration_one":` + recordJSON + `}}`
	})
	_, err := store.UpsertTokens(context.Background(), core.UpsertTokensInput{
		UserID:  "user-1",
		Service: core.ServiceZoom,
		Tokens:  core.TokenResult{AccessToken: "a", RefreshToken: "r"},
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	req := stub.last(t)
	if !strings.Contains(req.Query, "refreshToken") {
		t.Fatalf("expected refreshToken in update columns: %s", req.Query)
	}
	object, _ := req.Variables["object"].(map[string]any)
	if object["refreshToken"] != "r" {
		t.Fatalf("expected refresh token in object: %+v", object)
	}
}

func TestUpdateFieldsBuildsSparseSet(t *testing.T) {
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"update_Calendar_Integration_by_pk":` + recordJSON + `}}`
	})

	_, err := store.UpdateFields(context.Background(), "8b0f2a52-3c1e-4c55-9d38-1f0b0c1a2b3c", core.UpdateFieldsInput{
		SyncEnabled: core.SetTo(false),
		ContactName: core.Clear[string](),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	req := stub.last(t)
	if !strings.Contains(req.Query, "update_Calendar_Integration_by_pk") {
		t.Fatalf("unexpected query: %s", req.Query)
	}
	if strings.Contains(req.Query, "token:") || strings.Contains(req.Query, "scope:") {
		t.Fatalf("unchanged fields must not be set: %s", req.Query)
	}
	if req.Variables["syncEnabled"] != false {
		t.Fatalf("expected syncEnabled=false, got %v", req.Variables["syncEnabled"])
	}
	value, ok := req.Variables["contactName"]
	if !ok || value != nil {
		t.Fatalf("expected contactName cleared to null, got %v (present=%v)", value, ok)
	}
	if _, ok := req.Variables["enabled"]; ok {
		t.Fatalf("enabled should not be sent")
	}
}

func TestUpdateFieldsRejectsEmptyPatch(t *testing.T) {
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{}}`
	})
	_, err := store.UpdateFields(context.Background(), "id-1", core.UpdateFieldsInput{})
	if !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected empty patch error, got %v", err)
	}
	if len(stub.requests) != 0 {
		t.Fatalf("expected no request for empty patch")
	}
}

func TestUpdateFieldsNotFound(t *testing.T) {
	store, _ := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"update_Calendar_Integration_by_pk":null}}`
	})
	_, err := store.UpdateFields(context.Background(), "missing", core.UpdateFieldsInput{Enabled: core.SetTo(true)})
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeauthorizeSoftDeletesByAccount(t *testing.T) {
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"update_Calendar_Integration":{"affected_rows":2}}}`
	})
	affected, err := store.Deauthorize(context.Background(), "zoom", "acct-9")
	if err != nil {
		t.Fatalf("deauthorize: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected rows, got %d", affected)
	}
	req := stub.last(t)
	if req.Variables["where_resource"] != "zoom" || req.Variables["where_appAccountId"] != "acct-9" {
		t.Fatalf("unexpected where variables: %+v", req.Variables)
	}
	for _, name := range []string{"token", "refreshToken", "expiresAt"} {
		value, ok := req.Variables[name]
		if !ok || value != nil {
			t.Fatalf("expected %s cleared, got %v", name, value)
		}
	}
	if req.Variables["enabled"] != false || req.Variables["syncEnabled"] != false {
		t.Fatalf("expected flags disabled: %+v", req.Variables)
	}
}

func TestDeauthorizeUserReportsMissingRow(t *testing.T) {
	store, _ := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"update_Calendar_Integration":{"affected_rows":0}}}`
	})
	err := store.DeauthorizeUser(context.Background(), "user-1", "zoom")
	if !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetReturnsRecordOrNotFound(t *testing.T) {
	rows := `[` + recordJSON + `]`
	store, stub := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"data":{"Calendar_Integration":` + rows + `}}`
	})
	record, err := store.Get(context.Background(), "user-1", "zoom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.AccessToken == nil || *record.AccessToken != "enc.v2:abc" {
		t.Fatalf("unexpected access token: %+v", record.AccessToken)
	}
	if record.ExpiresAt == nil || !record.ExpiresAt.Equal(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry: %v", record.ExpiresAt)
	}
	if !strings.Contains(stub.last(t).Query, "limit: 1") {
		t.Fatalf("expected limit in query")
	}

	rows = `[]`
	if _, err := store.Get(context.Background(), "user-1", "zoom"); !errors.Is(err, core.ErrCredentialNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGraphQLErrorsBecomePersistenceFailures(t *testing.T) {
	store, _ := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"Uniqueness violation","extensions":{"code":"constraint-violation"}}]}`
	})
	_, err := store.Get(context.Background(), "user-1", "zoom")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !core.IsTextCode(err, core.IntegrationErrorPersistence) {
		t.Fatalf("expected persistence text code, got %v", err)
	}
}

func TestHTTPFailureBecomesPersistenceFailure(t *testing.T) {
	store, _ := newTestStore(t, func(capturedRequest) (int, string) {
		return http.StatusInternalServerError, `oops`
	})
	_, err := store.Deauthorize(context.Background(), "zoom", "acct-1")
	if !core.IsTextCode(err, core.IntegrationErrorPersistence) {
		t.Fatalf("expected persistence text code, got %v", err)
	}
}
