package core

import (
	"fmt"
	"time"
)

type fieldState uint8

const (
	fieldUnchanged fieldState = iota
	fieldSet
	fieldClear
)

// Field is one entry of a sparse patch. The zero value leaves the column
// untouched, SetTo writes a value and Clear writes null.
type Field[T any] struct {
	state fieldState
	value T
}

func Unchanged[T any]() Field[T] {
	return Field[T]{}
}

func SetTo[T any](value T) Field[T] {
	return Field[T]{state: fieldSet, value: value}
}

func Clear[T any]() Field[T] {
	return Field[T]{state: fieldClear}
}

func (f Field[T]) IsUnchanged() bool { return f.state == fieldUnchanged }

func (f Field[T]) IsSet() bool { return f.state == fieldSet }

func (f Field[T]) IsClear() bool { return f.state == fieldClear }

// Value returns the value and true only for SetTo.
func (f Field[T]) Value() (T, bool) {
	if f.state != fieldSet {
		var zero T
		return zero, false
	}
	return f.value, true
}

func (f Field[T]) String() string {
	switch f.state {
	case fieldSet:
		return fmt.Sprintf("set(%v)", f.value)
	case fieldClear:
		return "clear"
	default:
		return "unchanged"
	}
}

func (f Field[T]) change(name string) (FieldChange, bool) {
	switch f.state {
	case fieldSet:
		return FieldChange{Name: name, Value: f.value}, true
	case fieldClear:
		return FieldChange{Name: name, Clear: true}, true
	default:
		return FieldChange{}, false
	}
}

// Canonical field names used by credential stores to map patches to columns.
const (
	FieldAccessToken      = "access_token"
	FieldRefreshToken     = "refresh_token"
	FieldExpiresAt        = "expires_at"
	FieldScope            = "scope"
	FieldTokenType        = "token_type"
	FieldEnabled          = "enabled"
	FieldSyncEnabled      = "sync_enabled"
	FieldAppAccountID     = "app_account_id"
	FieldAppEmail         = "app_email"
	FieldAppID            = "app_id"
	FieldContactFirstName = "contact_first_name"
	FieldContactLastName  = "contact_last_name"
	FieldContactName      = "contact_name"
	FieldPhoneCountry     = "phone_country"
	FieldCipherFormat     = "cipher_format"
)

// FieldChange is a resolved patch entry. Clear means write null.
type FieldChange struct {
	Name  string
	Value any
	Clear bool
}

// UpdateFieldsInput is a sparse patch over a CredentialRecord. ExpiresIn is
// relative and converted to an absolute expires_at when changes are resolved.
type UpdateFieldsInput struct {
	AccessToken      Field[string]
	RefreshToken     Field[string]
	ExpiresIn        Field[int64]
	Scope            Field[string]
	TokenType        Field[string]
	Enabled          Field[bool]
	SyncEnabled      Field[bool]
	AppAccountID     Field[string]
	AppEmail         Field[string]
	AppID            Field[string]
	ContactFirstName Field[string]
	ContactLastName  Field[string]
	ContactName      Field[string]
	PhoneCountry     Field[string]
	CipherFormat     Field[string]
}

func (in UpdateFieldsInput) IsEmpty() bool {
	return len(in.Changes(time.Time{})) == 0
}

func (in UpdateFieldsInput) Validate() error {
	if in.Enabled.IsClear() {
		return fmt.Errorf("%w: enabled cannot be cleared", ErrInvalidPatch)
	}
	if in.SyncEnabled.IsClear() {
		return fmt.Errorf("%w: sync_enabled cannot be cleared", ErrInvalidPatch)
	}
	if value, ok := in.ExpiresIn.Value(); ok && value < 0 {
		return fmt.Errorf("%w: expires_in must be >= 0", ErrInvalidPatch)
	}
	if in.IsEmpty() {
		return ErrEmptyPatch
	}
	return nil
}

// Changes lists the fields that are not Unchanged in a stable order.
func (in UpdateFieldsInput) Changes(now time.Time) []FieldChange {
	changes := make([]FieldChange, 0, 8)
	appendChange := func(change FieldChange, ok bool) {
		if ok {
			changes = append(changes, change)
		}
	}
	appendChange(in.AccessToken.change(FieldAccessToken))
	appendChange(in.RefreshToken.change(FieldRefreshToken))
	switch {
	case in.ExpiresIn.IsSet():
		seconds, _ := in.ExpiresIn.Value()
		changes = append(changes, FieldChange{
			Name:  FieldExpiresAt,
			Value: now.UTC().Add(time.Duration(seconds) * time.Second),
		})
	case in.ExpiresIn.IsClear():
		changes = append(changes, FieldChange{Name: FieldExpiresAt, Clear: true})
	}
	appendChange(in.Scope.change(FieldScope))
	appendChange(in.TokenType.change(FieldTokenType))
	appendChange(in.Enabled.change(FieldEnabled))
	appendChange(in.SyncEnabled.change(FieldSyncEnabled))
	appendChange(in.AppAccountID.change(FieldAppAccountID))
	appendChange(in.AppEmail.change(FieldAppEmail))
	appendChange(in.AppID.change(FieldAppID))
	appendChange(in.ContactFirstName.change(FieldContactFirstName))
	appendChange(in.ContactLastName.change(FieldContactLastName))
	appendChange(in.ContactName.change(FieldContactName))
	appendChange(in.PhoneCountry.change(FieldPhoneCountry))
	appendChange(in.CipherFormat.change(FieldCipherFormat))
	return changes
}

// DeauthorizeChanges is the soft-delete patch applied on deauthorization.
func DeauthorizeChanges() UpdateFieldsInput {
	return UpdateFieldsInput{
		AccessToken:  Clear[string](),
		RefreshToken: Clear[string](),
		ExpiresIn:    Clear[int64](),
		Enabled:      SetTo(false),
		SyncEnabled:  SetTo(false),
	}
}

// ApplyChanges applies resolved changes to a record in memory.
func ApplyChanges(record CredentialRecord, changes []FieldChange) CredentialRecord {
	out := record
	for _, change := range changes {
		switch change.Name {
		case FieldAccessToken:
			out.AccessToken = changeString(change)
		case FieldRefreshToken:
			out.RefreshToken = changeString(change)
		case FieldExpiresAt:
			if change.Clear {
				out.ExpiresAt = nil
			} else if value, ok := change.Value.(time.Time); ok {
				out.ExpiresAt = cloneTimePointer(&value)
			}
		case FieldScope:
			out.Scope = changeStringValue(change)
		case FieldTokenType:
			out.TokenType = changeStringValue(change)
		case FieldEnabled:
			out.Enabled, _ = change.Value.(bool)
		case FieldSyncEnabled:
			out.SyncEnabled, _ = change.Value.(bool)
		case FieldAppAccountID:
			out.AppAccountID = changeStringValue(change)
		case FieldAppEmail:
			out.AppEmail = changeStringValue(change)
		case FieldAppID:
			out.AppID = changeStringValue(change)
		case FieldContactFirstName:
			out.ContactFirstName = changeStringValue(change)
		case FieldContactLastName:
			out.ContactLastName = changeStringValue(change)
		case FieldContactName:
			out.ContactName = changeStringValue(change)
		case FieldPhoneCountry:
			out.PhoneCountry = changeStringValue(change)
		case FieldCipherFormat:
			out.CipherFormat = changeStringValue(change)
		}
	}
	return out
}

func changeString(change FieldChange) *string {
	if change.Clear {
		return nil
	}
	value, _ := change.Value.(string)
	return &value
}

func changeStringValue(change FieldChange) string {
	if change.Clear {
		return ""
	}
	value, _ := change.Value.(string)
	return value
}
