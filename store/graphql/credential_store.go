package graphql

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport"
)

const (
	HeaderAdminSecret = "X-Hasura-Admin-Secret"
	HeaderRole        = "X-Hasura-Role"
	RoleAdmin         = "admin"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type column struct {
	name        string
	graphqlType string
}

// columns maps patch field names onto the Hasura table.
var columns = map[string]column{
	core.FieldAccessToken:      {name: "token", graphqlType: "String"},
	core.FieldRefreshToken:     {name: "refreshToken", graphqlType: "String"},
	core.FieldExpiresAt:        {name: "expiresAt", graphqlType: "timestamptz"},
	core.FieldScope:            {name: "scope", graphqlType: "String"},
	core.FieldTokenType:        {name: "tokenType", graphqlType: "String"},
	core.FieldEnabled:          {name: "enabled", graphqlType: "Boolean"},
	core.FieldSyncEnabled:      {name: "syncEnabled", graphqlType: "Boolean"},
	core.FieldAppAccountID:     {name: "appAccountId", graphqlType: "String"},
	core.FieldAppEmail:         {name: "appEmail", graphqlType: "String"},
	core.FieldAppID:            {name: "appId", graphqlType: "String"},
	core.FieldContactFirstName: {name: "contactFirstName", graphqlType: "String"},
	core.FieldContactLastName:  {name: "contactLastName", graphqlType: "String"},
	core.FieldContactName:      {name: "contactName", graphqlType: "String"},
	core.FieldPhoneCountry:     {name: "phoneCountry", graphqlType: "String"},
	core.FieldCipherFormat:     {name: "cipherFormat", graphqlType: "String"},
}

const recordSelection = `id
    userId
    resource
    token
    refreshToken
    expiresAt
    scope
    tokenType
    enabled
    syncEnabled
    appAccountId
    appEmail
    appId
    contactFirstName
    contactLastName
    contactName
    phoneCountry
    cipherFormat
    createdDate
    updatedAt`

type Option func(*CredentialStore)

func WithClock(now func() time.Time) Option {
	return func(s *CredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

// CredentialStore persists credential records through Hasura. Every request
// carries the admin secret and the admin role.
type CredentialStore struct {
	client     *transport.GraphQLAdapter
	table      string
	constraint string
	timeout    time.Duration
	now        func() time.Time
}

func NewCredentialStore(cfg core.CredentialStoreConfig, client core.HTTPDoer, opts ...Option) (*CredentialStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("graphql store: endpoint is required")
	}
	if strings.TrimSpace(cfg.AdminSecret) == "" {
		return nil, fmt.Errorf("graphql store: admin secret is required")
	}
	table := strings.TrimSpace(cfg.Table)
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("graphql store: table %q is invalid", cfg.Table)
	}
	constraint := strings.TrimSpace(cfg.Constraint)
	if !identifierPattern.MatchString(constraint) {
		return nil, fmt.Errorf("graphql store: constraint %q is invalid", cfg.Constraint)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	store := &CredentialStore{
		client: transport.NewGraphQLAdapter(endpoint, client,
			transport.WithDefaultHeader(HeaderAdminSecret, cfg.AdminSecret),
			transport.WithDefaultHeader(HeaderRole, RoleAdmin),
		),
		table:      table,
		constraint: constraint,
		timeout:    timeout,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// UpsertTokens inserts or updates the (user, service) row. A grant without a
// refresh token leaves the stored refresh token untouched.
func (s *CredentialStore) UpsertTokens(ctx context.Context, in core.UpsertTokensInput) (core.CredentialRecord, error) {
	key := core.CredentialKey{UserID: in.UserID, Service: in.Service}.Normalize()
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}

	object := map[string]any{
		"userId":       key.UserID,
		"resource":     key.Service,
		"token":        in.Tokens.AccessToken,
		"expiresAt":    in.Tokens.ExpiresAt,
		"enabled":      in.Enabled,
		"syncEnabled":  in.SyncEnabled,
		"cipherFormat": in.CipherFormat,
		"updatedAt":    s.now().UTC(),
	}
	if refresh := strings.TrimSpace(in.Tokens.RefreshToken); refresh != "" {
		object["refreshToken"] = refresh
	}
	optional := map[string]string{
		"scope":            in.Tokens.Scope,
		"tokenType":        in.Tokens.TokenType,
		"appAccountId":     in.Metadata.AppAccountID,
		"appEmail":         in.Metadata.AppEmail,
		"appId":            in.Metadata.AppID,
		"contactFirstName": in.Metadata.ContactFirstName,
		"contactLastName":  in.Metadata.ContactLastName,
		"contactName":      in.Metadata.ContactName,
		"phoneCountry":     in.Metadata.PhoneCountry,
	}
	for name, value := range optional {
		if strings.TrimSpace(value) != "" {
			object[name] = value
		}
	}

	updateColumns := make([]string, 0, len(object))
	for name := range object {
		if name == "userId" || name == "resource" {
			continue
		}
		updateColumns = append(updateColumns, name)
	}
	sort.Strings(updateColumns)

	query := fmt.Sprintf(`mutation UpsertCredential($object: %[1]s_insert_input!) {
  insert_%[1]s_one(
    object: $object,
    on_conflict: {constraint: %[2]s, update_columns: [%[3]s]}
  ) {
    %[4]s
  }
}`, s.table, s.constraint, strings.Join(updateColumns, ", "), recordSelection)

	var out map[string]*recordPayload
	if err := s.execute(ctx, "upsert", "UpsertCredential", query, map[string]any{"object": object}, &out); err != nil {
		return core.CredentialRecord{}, err
	}
	payload := out["insert_"+s.table+"_one"]
	if payload == nil {
		return core.CredentialRecord{}, core.NewPersistenceError("upsert", fmt.Errorf("graphql store: upsert returned no row"))
	}
	return payload.record(), nil
}

// UpdateFields applies a sparse patch by primary key. Only fields present in
// the patch are declared and written; cleared fields are sent as null.
func (s *CredentialStore) UpdateFields(ctx context.Context, id string, patch core.UpdateFieldsInput) (core.CredentialRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.CredentialRecord{}, fmt.Errorf("graphql store: record id is required")
	}
	if err := patch.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}

	declarations, set, variables := s.buildSet(patch)
	declarations = append([]string{"$id: uuid!"}, declarations...)
	variables["id"] = id

	query := fmt.Sprintf(`mutation UpdateCredential(%[2]s) {
  update_%[1]s_by_pk(pk_columns: {id: $id}, _set: {%[3]s}) {
    %[4]s
  }
}`, s.table, strings.Join(declarations, ", "), strings.Join(set, ", "), recordSelection)

	var out map[string]*recordPayload
	if err := s.execute(ctx, "update", "UpdateCredential", query, variables, &out); err != nil {
		return core.CredentialRecord{}, err
	}
	payload := out["update_"+s.table+"_by_pk"]
	if payload == nil {
		return core.CredentialRecord{}, fmt.Errorf("%w: id %s", core.ErrCredentialNotFound, id)
	}
	return payload.record(), nil
}

// Deauthorize soft-deletes every record of service bound to appAccountID.
func (s *CredentialStore) Deauthorize(ctx context.Context, service string, appAccountID string) (int, error) {
	service = strings.TrimSpace(strings.ToLower(service))
	appAccountID = strings.TrimSpace(appAccountID)
	if service == "" || appAccountID == "" {
		return 0, fmt.Errorf("graphql store: service and app account id are required")
	}
	return s.updateWhere(ctx, "DeauthorizeAccount",
		map[string]string{"resource": service, "appAccountId": appAccountID})
}

func (s *CredentialStore) DeauthorizeUser(ctx context.Context, userID string, service string) error {
	key := core.CredentialKey{UserID: userID, Service: service}.Normalize()
	if err := key.Validate(); err != nil {
		return err
	}
	affected, err := s.updateWhere(ctx, "DeauthorizeUser",
		map[string]string{"userId": key.UserID, "resource": key.Service})
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s service %s", core.ErrCredentialNotFound, key.UserID, key.Service)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, userID string, service string) (core.CredentialRecord, error) {
	key := core.CredentialKey{UserID: userID, Service: service}.Normalize()
	if err := key.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}
	query := fmt.Sprintf(`query GetCredential($userId: String!, $resource: String!) {
  %[1]s(where: {userId: {_eq: $userId}, resource: {_eq: $resource}}, limit: 1) {
    %[2]s
  }
}`, s.table, recordSelection)

	var out map[string][]recordPayload
	if err := s.execute(ctx, "get", "GetCredential", query, map[string]any{
		"userId":   key.UserID,
		"resource": key.Service,
	}, &out); err != nil {
		return core.CredentialRecord{}, err
	}
	rows := out[s.table]
	if len(rows) == 0 {
		return core.CredentialRecord{}, fmt.Errorf("%w: user %s service %s", core.ErrCredentialNotFound, key.UserID, key.Service)
	}
	return rows[0].record(), nil
}

func (s *CredentialStore) updateWhere(ctx context.Context, operation string, where map[string]string) (int, error) {
	declarations, set, variables := s.buildSet(core.DeauthorizeChanges())

	names := make([]string, 0, len(where))
	for name := range where {
		names = append(names, name)
	}
	sort.Strings(names)
	conditions := make([]string, 0, len(names))
	for _, name := range names {
		variable := "where_" + name
		declarations = append(declarations, "$"+variable+": String!")
		conditions = append(conditions, fmt.Sprintf("%s: {_eq: $%s}", name, variable))
		variables[variable] = where[name]
	}

	query := fmt.Sprintf(`mutation %[1]s(%[3]s) {
  update_%[2]s(where: {%[4]s}, _set: {%[5]s}) {
    affected_rows
  }
}`, operation, s.table, strings.Join(declarations, ", "), strings.Join(conditions, ", "), strings.Join(set, ", "))

	var out map[string]*struct {
		AffectedRows int `json:"affected_rows"`
	}
	if err := s.execute(ctx, "deauthorize", operation, query, variables, &out); err != nil {
		return 0, err
	}
	result := out["update_"+s.table]
	if result == nil {
		return 0, nil
	}
	return result.AffectedRows, nil
}

// buildSet returns variable declarations, _set entries and variable values
// for every field the patch touches, in a stable order.
func (s *CredentialStore) buildSet(patch core.UpdateFieldsInput) ([]string, []string, map[string]any) {
	changes := patch.Changes(s.now())
	declarations := make([]string, 0, len(changes)+1)
	set := make([]string, 0, len(changes)+1)
	variables := make(map[string]any, len(changes)+2)

	for _, change := range changes {
		col, ok := columns[change.Name]
		if !ok {
			continue
		}
		declarations = append(declarations, fmt.Sprintf("$%s: %s", col.name, col.graphqlType))
		set = append(set, fmt.Sprintf("%s: $%s", col.name, col.name))
		if change.Clear {
			variables[col.name] = nil
			continue
		}
		variables[col.name] = change.Value
	}
	declarations = append(declarations, "$updatedAt: timestamptz")
	set = append(set, "updatedAt: $updatedAt")
	variables["updatedAt"] = s.now().UTC()
	return declarations, set, variables
}

func (s *CredentialStore) execute(
	ctx context.Context,
	operation string,
	operationName string,
	query string,
	variables map[string]any,
	out any,
) error {
	_, err := s.client.Execute(ctx, transport.GraphQLRequest{
		Query:         query,
		OperationName: operationName,
		Variables:     variables,
		Timeout:       s.timeout,
	}, out)
	if err != nil {
		return core.NewPersistenceError(operation, err)
	}
	return nil
}

type recordPayload struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Resource         string     `json:"resource"`
	Token            *string    `json:"token"`
	RefreshToken     *string    `json:"refreshToken"`
	ExpiresAt        *time.Time `json:"expiresAt"`
	Scope            *string    `json:"scope"`
	TokenType        *string    `json:"tokenType"`
	Enabled          *bool      `json:"enabled"`
	SyncEnabled      *bool      `json:"syncEnabled"`
	AppAccountID     *string    `json:"appAccountId"`
	AppEmail         *string    `json:"appEmail"`
	AppID            *string    `json:"appId"`
	ContactFirstName *string    `json:"contactFirstName"`
	ContactLastName  *string    `json:"contactLastName"`
	ContactName      *string    `json:"contactName"`
	PhoneCountry     *string    `json:"phoneCountry"`
	CipherFormat     *string    `json:"cipherFormat"`
	CreatedDate      *time.Time `json:"createdDate"`
	UpdatedAt        *time.Time `json:"updatedAt"`
}

func (p recordPayload) record() core.CredentialRecord {
	record := core.CredentialRecord{
		ID:               p.ID,
		UserID:           p.UserID,
		Service:          p.Resource,
		AccessToken:      p.Token,
		RefreshToken:     p.RefreshToken,
		ExpiresAt:        p.ExpiresAt,
		Scope:            deref(p.Scope),
		TokenType:        deref(p.TokenType),
		Enabled:          p.Enabled != nil && *p.Enabled,
		SyncEnabled:      p.SyncEnabled != nil && *p.SyncEnabled,
		AppAccountID:     deref(p.AppAccountID),
		AppEmail:         deref(p.AppEmail),
		AppID:            deref(p.AppID),
		ContactFirstName: deref(p.ContactFirstName),
		ContactLastName:  deref(p.ContactLastName),
		ContactName:      deref(p.ContactName),
		PhoneCountry:     deref(p.PhoneCountry),
		CipherFormat:     deref(p.CipherFormat),
	}
	if p.CreatedDate != nil {
		record.CreatedAt = p.CreatedDate.UTC()
	}
	if p.UpdatedAt != nil {
		record.UpdatedAt = p.UpdatedAt.UTC()
	}
	return record
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

var _ core.CredentialStore = (*CredentialStore)(nil)
