package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProviderNotFound             = errors.New("core: provider not found")
	ErrCredentialNotFound           = errors.New("core: credential record not found")
	ErrCredentialStoreUnavailable   = errors.New("core: credential store unavailable")
	ErrTokenCipherUnavailable       = errors.New("core: token cipher unavailable")
	ErrClientCredentialsUnsupported = errors.New("core: client credentials grant not supported")
	ErrRefreshTokenMissing          = errors.New("core: refresh token missing")
	ErrInvalidExchangeTransition    = errors.New("core: invalid exchange state transition")
	ErrEmptyPatch                   = errors.New("core: patch has no fields to update")
	ErrInvalidPatch                 = errors.New("core: invalid patch")
)

const (
	ServiceGoogleCalendar = "google_calendar"
	ServiceGitHub         = "github"
	ServiceDiscord        = "discord"
	ServiceJira           = "jira"
	ServicePayPal         = "paypal"
	ServiceZoom           = "zoom"
)

// ServiceAccountUserIDPrefix marks records that belong to the application
// itself rather than an end user.
const ServiceAccountUserIDPrefix = "service-account:"

// ServiceAccountUserID returns the synthetic owner of client-credentials tokens.
func ServiceAccountUserID(service string) string {
	return ServiceAccountUserIDPrefix + strings.TrimSpace(strings.ToLower(service))
}

// CredentialRecord is the persisted token entry for one user and service.
// AccessToken, RefreshToken and ExpiresAt are nil once cleared.
type CredentialRecord struct {
	ID               string
	UserID           string
	Service          string
	AccessToken      *string
	RefreshToken     *string
	ExpiresAt        *time.Time
	Scope            string
	TokenType        string
	Enabled          bool
	SyncEnabled      bool
	AppAccountID     string
	AppEmail         string
	AppID            string
	ContactFirstName string
	ContactLastName  string
	ContactName      string
	PhoneCountry     string
	CipherFormat     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Key returns the natural key of the record.
func (r CredentialRecord) Key() CredentialKey {
	return CredentialKey{UserID: r.UserID, Service: r.Service}
}

// Expired reports whether the stored expiry is at or before now.
func (r CredentialRecord) Expired(now time.Time) bool {
	if r.ExpiresAt == nil {
		return false
	}
	return !r.ExpiresAt.After(now)
}

type CredentialKey struct {
	UserID  string
	Service string
}

func (k CredentialKey) Normalize() CredentialKey {
	return CredentialKey{
		UserID:  strings.TrimSpace(k.UserID),
		Service: strings.TrimSpace(strings.ToLower(k.Service)),
	}
}

func (k CredentialKey) Validate() error {
	normalized := k.Normalize()
	if normalized.UserID == "" {
		return fmt.Errorf("core: user id is required")
	}
	if normalized.Service == "" {
		return fmt.Errorf("core: service is required")
	}
	return nil
}

// TokenResult is what a provider returns from a token endpoint.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	ExpiresAt    *time.Time
	Raw          map[string]any
}

// ResolveExpiresAt computes the absolute expiry for a write happening at now.
// A zero ExpiresIn falls back to ExpiresAt reported by the provider.
func (t TokenResult) ResolveExpiresAt(now time.Time) *time.Time {
	if t.ExpiresIn > 0 {
		expiresAt := now.UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
		return &expiresAt
	}
	return cloneTimePointer(t.ExpiresAt)
}

// ExchangeState tracks a single authorization attempt.
type ExchangeState string

const (
	ExchangeStateInitiated    ExchangeState = "initiated"
	ExchangeStateCodeReceived ExchangeState = "code_received"
	ExchangeStateExchanging   ExchangeState = "exchanging"
	ExchangeStateExchanged    ExchangeState = "exchanged"
	ExchangeStateFailed       ExchangeState = "failed"
)

type ExchangeAttempt struct {
	Service   string
	UserID    string
	State     ExchangeState
	UpdatedAt time.Time
}

func (a *ExchangeAttempt) TransitionTo(state ExchangeState, now time.Time) error {
	if a == nil {
		return nil
	}
	if a.State == state {
		a.UpdatedAt = now
		return nil
	}
	if !exchangeTransitionAllowed(a.State, state) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidExchangeTransition, a.State, state)
	}
	a.State = state
	a.UpdatedAt = now
	return nil
}

func exchangeTransitionAllowed(current, next ExchangeState) bool {
	allowed := map[ExchangeState]map[ExchangeState]struct{}{
		ExchangeStateInitiated: {
			ExchangeStateCodeReceived: {},
			ExchangeStateFailed:       {},
		},
		ExchangeStateCodeReceived: {
			ExchangeStateExchanging: {},
			ExchangeStateFailed:     {},
		},
		ExchangeStateExchanging: {
			ExchangeStateExchanged: {},
			ExchangeStateFailed:    {},
		},
	}
	next = ExchangeState(strings.TrimSpace(string(next)))
	if transitions, ok := allowed[current]; ok {
		_, ok = transitions[next]
		return ok
	}
	return false
}

type UpsertTokensInput struct {
	UserID       string
	Service      string
	Tokens       TokenResult
	CipherFormat string
	Enabled      bool
	SyncEnabled  bool
	Metadata     ContactMetadata
}

// ContactMetadata carries optional provider-specific display fields.
type ContactMetadata struct {
	AppAccountID     string
	AppEmail         string
	AppID            string
	ContactFirstName string
	ContactLastName  string
	ContactName      string
	PhoneCountry     string
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func cloneStringPointer(input *string) *string {
	if input == nil {
		return nil
	}
	value := *input
	return &value
}

func stringPointer(value string) *string {
	return &value
}
