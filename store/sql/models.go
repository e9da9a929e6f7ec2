package sqlstore

import (
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:integration_credentials,alias:ic"`

	ID               string     `bun:"id,pk"`
	UserID           string     `bun:"user_id,notnull"`
	Service          string     `bun:"service,notnull"`
	AccessToken      *string    `bun:"access_token"`
	RefreshToken     *string    `bun:"refresh_token"`
	ExpiresAt        *time.Time `bun:"expires_at"`
	Scope            string     `bun:"scope,notnull"`
	TokenType        string     `bun:"token_type,notnull"`
	Enabled          bool       `bun:"enabled,notnull"`
	SyncEnabled      bool       `bun:"sync_enabled,notnull"`
	AppAccountID     string     `bun:"app_account_id,notnull"`
	AppEmail         string     `bun:"app_email,notnull"`
	AppID            string     `bun:"app_id,notnull"`
	ContactFirstName string     `bun:"contact_first_name,notnull"`
	ContactLastName  string     `bun:"contact_last_name,notnull"`
	ContactName      string     `bun:"contact_name,notnull"`
	PhoneCountry     string     `bun:"phone_country,notnull"`
	CipherFormat     string     `bun:"cipher_format,notnull"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newCredentialRecord(userID string, service string, now time.Time) *credentialRecord {
	return &credentialRecord{
		UserID:      userID,
		Service:     service,
		Enabled:     true,
		SyncEnabled: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *credentialRecord) toDomain() core.CredentialRecord {
	if r == nil {
		return core.CredentialRecord{}
	}
	return core.CredentialRecord{
		ID:               r.ID,
		UserID:           r.UserID,
		Service:          r.Service,
		AccessToken:      cloneStringPointer(r.AccessToken),
		RefreshToken:     cloneStringPointer(r.RefreshToken),
		ExpiresAt:        cloneTimePointer(r.ExpiresAt),
		Scope:            r.Scope,
		TokenType:        r.TokenType,
		Enabled:          r.Enabled,
		SyncEnabled:      r.SyncEnabled,
		AppAccountID:     r.AppAccountID,
		AppEmail:         r.AppEmail,
		AppID:            r.AppID,
		ContactFirstName: r.ContactFirstName,
		ContactLastName:  r.ContactLastName,
		ContactName:      r.ContactName,
		PhoneCountry:     r.PhoneCountry,
		CipherFormat:     r.CipherFormat,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
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
