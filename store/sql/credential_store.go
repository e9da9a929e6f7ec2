package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
	now  func() time.Time
}

func NewCredentialStore(db *bun.DB) (*CredentialStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	return &CredentialStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// UpsertTokens writes the tokens of one (user, service) pair. The stored
// refresh token is kept when the new grant carries none.
func (s *CredentialStore) UpsertTokens(ctx context.Context, in core.UpsertTokensInput) (core.CredentialRecord, error) {
	if s == nil || s.db == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.CredentialKey{UserID: in.UserID, Service: in.Service}.Normalize()
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	now := s.now()
	changes := upsertChanges(in)

	var out core.CredentialRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCredentialTx(ctx, tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			record = newCredentialRecord(key.UserID, key.Service, now)
			record.ID = uuid.NewString()
			applyRecordChanges(record, changes)
			_, insertErr := tx.NewInsert().Model(record).Exec(ctx)
			if insertErr == nil {
				out = record.toDomain()
				return nil
			}
			if !isUniqueViolation(insertErr) {
				return insertErr
			}
			record, err = findCredentialTx(ctx, tx, key)
			if err != nil {
				return err
			}
			if record == nil {
				return insertErr
			}
		}

		applyRecordChanges(record, changes)
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(record).WherePK().Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return out, nil
}

func (s *CredentialStore) UpdateFields(ctx context.Context, id string, patch core.UpdateFieldsInput) (core.CredentialRecord, error) {
	if s == nil || s.db == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: record id is required")
	}
	if err := patch.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	now := s.now()

	var out core.CredentialRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &credentialRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %s", core.ErrCredentialNotFound, id)
			}
			return err
		}
		applyRecordChanges(record, patch.Changes(now))
		record.UpdatedAt = now
		if _, updateErr := tx.NewUpdate().Model(record).WherePK().Exec(ctx); updateErr != nil {
			return updateErr
		}
		out = record.toDomain()
		return nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return out, nil
}

// Deauthorize clears tokens and disables every record of service bound to
// appAccountID. Rows are kept.
func (s *CredentialStore) Deauthorize(ctx context.Context, service string, appAccountID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: credential store is not configured")
	}
	service = strings.TrimSpace(strings.ToLower(service))
	appAccountID = strings.TrimSpace(appAccountID)
	if service == "" || appAccountID == "" {
		return 0, fmt.Errorf("sqlstore: service and app account id are required")
	}
	result, err := s.deauthorizeQuery().
		Where("service = ?", service).
		Where("app_account_id = ?", appAccountID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *CredentialStore) DeauthorizeUser(ctx context.Context, userID string, service string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.CredentialKey{UserID: userID, Service: service}.Normalize()
	if err := key.Validate(); err != nil {
		return err
	}
	result, err := s.deauthorizeQuery().
		Where("user_id = ?", key.UserID).
		Where("service = ?", key.Service).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s service %s", core.ErrCredentialNotFound, key.UserID, key.Service)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string, service string) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key := core.CredentialKey{UserID: userID, Service: service}.Normalize()
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", key.UserID),
		repository.SelectBy("service", "=", key.Service),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	if len(records) == 0 {
		return core.CredentialRecord{}, fmt.Errorf("%w: user %s service %s", core.ErrCredentialNotFound, key.UserID, key.Service)
	}
	return records[0].toDomain(), nil
}

// FindByAppAccount lists the owners of service records bound to appAccountID.
func (s *CredentialStore) FindByAppAccount(ctx context.Context, service string, appAccountID string) ([]core.CredentialKey, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("service", "=", strings.TrimSpace(strings.ToLower(service))),
		repository.SelectBy("app_account_id", "=", strings.TrimSpace(appAccountID)),
	)
	if err != nil {
		return nil, err
	}
	keys := make([]core.CredentialKey, 0, len(records))
	for _, record := range records {
		keys = append(keys, record.toDomain().Key())
	}
	return keys, nil
}

func (s *CredentialStore) deauthorizeQuery() *bun.UpdateQuery {
	return s.db.NewUpdate().
		Model((*credentialRecord)(nil)).
		Set("access_token = NULL").
		Set("refresh_token = NULL").
		Set("expires_at = NULL").
		Set("enabled = ?", false).
		Set("sync_enabled = ?", false).
		Set("updated_at = ?", s.now())
}

func findCredentialTx(ctx context.Context, tx bun.Tx, key core.CredentialKey) (*credentialRecord, error) {
	record := &credentialRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", key.UserID).
		Where("?TableAlias.service = ?", key.Service).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// upsertChanges lists the columns an upsert writes. Empty optional values
// never overwrite stored ones.
func upsertChanges(in core.UpsertTokensInput) []core.FieldChange {
	changes := []core.FieldChange{
		{Name: core.FieldAccessToken, Value: in.Tokens.AccessToken},
		{Name: core.FieldEnabled, Value: in.Enabled},
		{Name: core.FieldSyncEnabled, Value: in.SyncEnabled},
		{Name: core.FieldCipherFormat, Value: in.CipherFormat},
	}
	if in.Tokens.ExpiresAt != nil {
		changes = append(changes, core.FieldChange{Name: core.FieldExpiresAt, Value: in.Tokens.ExpiresAt.UTC()})
	} else {
		changes = append(changes, core.FieldChange{Name: core.FieldExpiresAt, Clear: true})
	}
	optional := []struct {
		name  string
		value string
	}{
		{core.FieldRefreshToken, in.Tokens.RefreshToken},
		{core.FieldScope, in.Tokens.Scope},
		{core.FieldTokenType, in.Tokens.TokenType},
		{core.FieldAppAccountID, in.Metadata.AppAccountID},
		{core.FieldAppEmail, in.Metadata.AppEmail},
		{core.FieldAppID, in.Metadata.AppID},
		{core.FieldContactFirstName, in.Metadata.ContactFirstName},
		{core.FieldContactLastName, in.Metadata.ContactLastName},
		{core.FieldContactName, in.Metadata.ContactName},
		{core.FieldPhoneCountry, in.Metadata.PhoneCountry},
	}
	for _, field := range optional {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		changes = append(changes, core.FieldChange{Name: field.name, Value: strings.TrimSpace(field.value)})
	}
	return changes
}

func applyRecordChanges(record *credentialRecord, changes []core.FieldChange) {
	applied := core.ApplyChanges(record.toDomain(), changes)
	record.AccessToken = applied.AccessToken
	record.RefreshToken = applied.RefreshToken
	record.ExpiresAt = applied.ExpiresAt
	record.Scope = applied.Scope
	record.TokenType = applied.TokenType
	record.Enabled = applied.Enabled
	record.SyncEnabled = applied.SyncEnabled
	record.AppAccountID = applied.AppAccountID
	record.AppEmail = applied.AppEmail
	record.AppID = applied.AppID
	record.ContactFirstName = applied.ContactFirstName
	record.ContactLastName = applied.ContactLastName
	record.ContactName = applied.ContactName
	record.PhoneCountry = applied.PhoneCountry
	record.CipherFormat = applied.CipherFormat
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
