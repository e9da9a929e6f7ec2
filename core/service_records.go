package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type UpdateIntegrationRequest struct {
	ID      string
	Service string
	Patch   UpdateFieldsInput
}

// UpdateIntegration applies a sparse patch. Token fields set by the patch are
// sealed with the service's storage policy first.
func (s *Service) UpdateIntegration(ctx context.Context, req UpdateIntegrationRequest) (record CredentialRecord, err error) {
	startedAt := time.Now().UTC()
	service := normalizeProviderID(req.Service)
	fields := map[string]any{
		"service":   service,
		"record_id": req.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_integration", err, fields)
	}()

	if strings.TrimSpace(req.ID) == "" {
		err = s.mapError(fmt.Errorf("core: record id is required"))
		return CredentialRecord{}, err
	}
	if service == "" {
		err = s.mapError(fmt.Errorf("core: service is required"))
		return CredentialRecord{}, err
	}
	if err = req.Patch.Validate(); err != nil {
		err = s.mapError(err)
		return CredentialRecord{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return CredentialRecord{}, err
	}

	patch, err := s.sealPatch(service, req.Patch)
	if err != nil {
		return CredentialRecord{}, err
	}
	changed := make([]string, 0, 4)
	for _, change := range patch.Changes(s.currentTime()) {
		changed = append(changed, change.Name)
	}
	fields["fields"] = strings.Join(changed, ",")

	record, err = store.UpdateFields(ctx, strings.TrimSpace(req.ID), patch)
	if err != nil {
		err = s.persistenceError("update", err)
		return CredentialRecord{}, err
	}
	return record, nil
}

// Deauthorize soft-deletes every record of service linked to appAccountID.
func (s *Service) Deauthorize(ctx context.Context, req DeauthorizeRequest) (response DeauthorizeResponse, err error) {
	startedAt := time.Now().UTC()
	service := normalizeProviderID(req.Service)
	fields := map[string]any{
		"service":        service,
		"app_account_id": req.AppAccountID,
	}
	defer func() {
		fields["affected"] = response.Affected
		s.observeOperation(ctx, startedAt, "deauthorize", err, fields)
	}()

	if service == "" {
		err = s.mapError(fmt.Errorf("core: service is required"))
		return DeauthorizeResponse{}, err
	}
	if strings.TrimSpace(req.AppAccountID) == "" {
		err = s.mapError(fmt.Errorf("core: app account id is required"))
		return DeauthorizeResponse{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return DeauthorizeResponse{}, err
	}

	affected, err := store.Deauthorize(ctx, service, strings.TrimSpace(req.AppAccountID))
	if err != nil {
		err = s.persistenceError("deauthorize", err)
		return DeauthorizeResponse{}, err
	}
	if affected == 0 {
		s.logWarn(ctx, "deauthorize matched no records", map[string]any{
			"service":        service,
			"app_account_id": req.AppAccountID,
		})
	}
	return DeauthorizeResponse{Affected: affected}, nil
}

func (s *Service) DeauthorizeUser(ctx context.Context, userID string, service string) (err error) {
	startedAt := time.Now().UTC()
	service = normalizeProviderID(service)
	fields := map[string]any{
		"service": service,
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "deauthorize_user", err, fields)
	}()

	if err = (CredentialKey{UserID: userID, Service: service}).Validate(); err != nil {
		err = s.mapError(err)
		return err
	}
	store, err := s.requireStore()
	if err != nil {
		return err
	}
	if err = store.DeauthorizeUser(ctx, strings.TrimSpace(userID), service); err != nil {
		err = s.persistenceError("deauthorize", err)
		return err
	}
	return nil
}

// GetIntegration loads a record and decrypts its tokens.
func (s *Service) GetIntegration(ctx context.Context, userID string, service string) (integration Integration, err error) {
	startedAt := time.Now().UTC()
	service = normalizeProviderID(service)
	fields := map[string]any{
		"service": service,
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_integration", err, fields)
	}()

	if err = (CredentialKey{UserID: userID, Service: service}).Validate(); err != nil {
		err = s.mapError(err)
		return Integration{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return Integration{}, err
	}
	record, err := store.Get(ctx, strings.TrimSpace(userID), service)
	if err != nil {
		err = s.persistenceError("get", err)
		return Integration{}, err
	}
	fields["record_id"] = record.ID
	return s.openRecord(record)
}
