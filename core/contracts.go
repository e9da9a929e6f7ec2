package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type AuthorizationRequest struct {
	State       string
	RedirectURI string
	Scopes      []string
}

type ExchangeRequest struct {
	Code        string
	RedirectURI string
}

// Provider implements the authorization-code grant for one service.
type Provider interface {
	ID() string
	AuthorizationURL(ctx context.Context, req AuthorizationRequest) (string, error)
	Exchange(ctx context.Context, req ExchangeRequest) (TokenResult, error)
	Refresh(ctx context.Context, refreshToken string) (TokenResult, error)
}

// ClientCredentialsProvider mints application tokens with no end user.
type ClientCredentialsProvider interface {
	ID() string
	ClientCredentialsToken(ctx context.Context) (TokenResult, error)
}

type Registry interface {
	Register(provider Provider) error
	RegisterClientCredentials(provider ClientCredentialsProvider) error
	Get(providerID string) (Provider, bool)
	GetClientCredentials(providerID string) (ClientCredentialsProvider, bool)
	List() []string
}

// CredentialStore persists CredentialRecords keyed by (user, service).
type CredentialStore interface {
	UpsertTokens(ctx context.Context, in UpsertTokensInput) (CredentialRecord, error)
	UpdateFields(ctx context.Context, id string, patch UpdateFieldsInput) (CredentialRecord, error)
	Deauthorize(ctx context.Context, service string, appAccountID string) (int, error)
	DeauthorizeUser(ctx context.Context, userID string, service string) error
	Get(ctx context.Context, userID string, service string) (CredentialRecord, error)
}

type TokenPair struct {
	Token        string
	RefreshToken *string
}

// TokenCipher protects token columns at rest.
type TokenCipher interface {
	Format() string
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	EncryptPair(token string, refreshToken *string) (TokenPair, error)
	DecryptPair(pair TokenPair) (TokenPair, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type BuildAuthorizationURLRequest struct {
	Service     string
	UserID      string
	State       string
	RedirectURI string
	Scopes      []string
}

type BuildAuthorizationURLResponse struct {
	URL   string
	State string
}

type ExchangeCodeRequest struct {
	UserID      string
	Service     string
	Code        string
	State       string
	RedirectURI string
	Metadata    ContactMetadata
}

type ExchangeCodeResponse struct {
	Record CredentialRecord
	Tokens TokenResult
}

type ClientCredentialsResponse struct {
	Record CredentialRecord
	Tokens TokenResult
}

type RefreshTokensRequest struct {
	UserID  string
	Service string
}

type RefreshTokensResponse struct {
	Record    CredentialRecord
	ExpiresAt *time.Time
	Rotated   bool
}

type DeauthorizeRequest struct {
	Service      string
	AppAccountID string
}

type DeauthorizeResponse struct {
	Affected int
}

// Integration is a decrypted view of a CredentialRecord.
type Integration struct {
	Record       CredentialRecord
	AccessToken  string
	RefreshToken *string
}

type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	ReceivedAt time.Time
	Metadata   map[string]any
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
