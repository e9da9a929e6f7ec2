package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

type testProvider struct {
	id         string
	exchange   TokenResult
	refresh    TokenResult
	err        error
	refreshErr error

	mu            sync.Mutex
	exchangeCodes []string
	refreshTokens []string
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) AuthorizationURL(_ context.Context, req AuthorizationRequest) (string, error) {
	return "https://auth.example.test/" + p.id + "?state=" + req.State + "&scope=" + strings.Join(req.Scopes, "+"), nil
}

func (p *testProvider) Exchange(_ context.Context, req ExchangeRequest) (TokenResult, error) {
	p.mu.Lock()
	p.exchangeCodes = append(p.exchangeCodes, req.Code)
	p.mu.Unlock()
	if p.err != nil {
		return TokenResult{}, p.err
	}
	return p.exchange, nil
}

func (p *testProvider) Refresh(_ context.Context, refreshToken string) (TokenResult, error) {
	p.mu.Lock()
	p.refreshTokens = append(p.refreshTokens, refreshToken)
	p.mu.Unlock()
	if p.refreshErr != nil {
		return TokenResult{}, p.refreshErr
	}
	return p.refresh, nil
}

type testClientCredentialsProvider struct {
	id     string
	tokens TokenResult
	err    error
}

func (p testClientCredentialsProvider) ID() string { return p.id }

func (p testClientCredentialsProvider) ClientCredentialsToken(context.Context) (TokenResult, error) {
	if p.err != nil {
		return TokenResult{}, p.err
	}
	return p.tokens, nil
}

// testCipher is a reversible stand-in for the AES cipher.
type testCipher struct {
	failDecrypt bool
}

const testCipherPrefix = "enc.v2:"

func (testCipher) Format() string { return "v2" }

func (testCipher) Encrypt(plaintext string) (string, error) {
	return testCipherPrefix + reverse(plaintext), nil
}

func (c testCipher) Decrypt(ciphertext string) (string, error) {
	if c.failDecrypt || !strings.HasPrefix(ciphertext, testCipherPrefix) {
		return "", fmt.Errorf("test cipher: cannot decrypt %q", ciphertext)
	}
	return reverse(strings.TrimPrefix(ciphertext, testCipherPrefix)), nil
}

func (c testCipher) EncryptPair(token string, refreshToken *string) (TokenPair, error) {
	sealed, _ := c.Encrypt(token)
	pair := TokenPair{Token: sealed}
	if refreshToken != nil {
		sealedRefresh, _ := c.Encrypt(*refreshToken)
		pair.RefreshToken = &sealedRefresh
	}
	return pair, nil
}

func (c testCipher) DecryptPair(pair TokenPair) (TokenPair, error) {
	token, err := c.Decrypt(pair.Token)
	if err != nil {
		return TokenPair{}, err
	}
	out := TokenPair{Token: token}
	if pair.RefreshToken != nil {
		refresh, refreshErr := c.Decrypt(*pair.RefreshToken)
		if refreshErr != nil {
			return TokenPair{}, refreshErr
		}
		out.RefreshToken = &refresh
	}
	return out, nil
}

func reverse(value string) string {
	runes := []rune(value)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// memoryCredentialStore mirrors the upsert and soft-delete rules of the real
// stores.
type memoryCredentialStore struct {
	mu      sync.Mutex
	nextID  int
	records map[CredentialKey]CredentialRecord
	now     func() time.Time
	failErr error
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{
		records: map[CredentialKey]CredentialRecord{},
		now:     func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (s *memoryCredentialStore) UpsertTokens(_ context.Context, in UpsertTokensInput) (CredentialRecord, error) {
	if s.failErr != nil {
		return CredentialRecord{}, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := CredentialKey{UserID: in.UserID, Service: in.Service}.Normalize()
	record, exists := s.records[key]
	if !exists {
		s.nextID++
		record = CredentialRecord{
			ID:        fmt.Sprintf("rec-%d", s.nextID),
			UserID:    key.UserID,
			Service:   key.Service,
			CreatedAt: s.now(),
		}
	}
	access := in.Tokens.AccessToken
	record.AccessToken = &access
	if strings.TrimSpace(in.Tokens.RefreshToken) != "" {
		refresh := in.Tokens.RefreshToken
		record.RefreshToken = &refresh
	}
	record.ExpiresAt = cloneTimePointer(in.Tokens.ExpiresAt)
	record.Scope = in.Tokens.Scope
	record.TokenType = in.Tokens.TokenType
	record.CipherFormat = in.CipherFormat
	record.Enabled = in.Enabled
	record.SyncEnabled = in.SyncEnabled
	if in.Metadata.AppAccountID != "" {
		record.AppAccountID = in.Metadata.AppAccountID
	}
	if in.Metadata.AppEmail != "" {
		record.AppEmail = in.Metadata.AppEmail
	}
	record.UpdatedAt = s.now()
	s.records[key] = record
	return record, nil
}

func (s *memoryCredentialStore) UpdateFields(_ context.Context, id string, patch UpdateFieldsInput) (CredentialRecord, error) {
	if s.failErr != nil {
		return CredentialRecord{}, s.failErr
	}
	if err := patch.Validate(); err != nil {
		return CredentialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.records {
		if record.ID != id {
			continue
		}
		updated := ApplyChanges(record, patch.Changes(s.now()))
		updated.UpdatedAt = s.now()
		s.records[key] = updated
		return updated, nil
	}
	return CredentialRecord{}, fmt.Errorf("%w: id %s", ErrCredentialNotFound, id)
}

func (s *memoryCredentialStore) Deauthorize(_ context.Context, service string, appAccountID string) (int, error) {
	if s.failErr != nil {
		return 0, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	affected := 0
	for key, record := range s.records {
		if record.Service != service || record.AppAccountID != appAccountID {
			continue
		}
		s.records[key] = ApplyChanges(record, DeauthorizeChanges().Changes(s.now()))
		affected++
	}
	return affected, nil
}

func (s *memoryCredentialStore) DeauthorizeUser(_ context.Context, userID string, service string) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := CredentialKey{UserID: userID, Service: service}.Normalize()
	record, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: user %s service %s", ErrCredentialNotFound, userID, service)
	}
	s.records[key] = ApplyChanges(record, DeauthorizeChanges().Changes(s.now()))
	return nil
}

func (s *memoryCredentialStore) Get(_ context.Context, userID string, service string) (CredentialRecord, error) {
	if s.failErr != nil {
		return CredentialRecord{}, s.failErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[CredentialKey{UserID: userID, Service: service}.Normalize()]
	if !ok {
		return CredentialRecord{}, fmt.Errorf("%w: user %s service %s", ErrCredentialNotFound, userID, service)
	}
	return record, nil
}

func (s *memoryCredentialStore) put(record CredentialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key().Normalize()] = record
}

func (s *memoryCredentialStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var errStoreDown = errors.New("store: connection refused")

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(t testingT, provider *testProvider, store CredentialStore, opts ...Option) *Service {
	t.Helper()
	registry := NewProviderRegistry()
	if provider != nil {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider: %v", err)
		}
	}
	base := []Option{
		WithRegistry(registry),
		WithTokenCipher(testCipher{}),
		WithClock(fixedClock),
	}
	if store != nil {
		base = append(base, WithCredentialStore(store))
	}
	svc, err := NewService(Config{}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
