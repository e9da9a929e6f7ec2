package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (s *Service) BuildAuthorizationURL(
	ctx context.Context,
	req BuildAuthorizationURLRequest,
) (response BuildAuthorizationURLResponse, err error) {
	startedAt := time.Now().UTC()
	service := normalizeProviderID(req.Service)
	fields := map[string]any{
		"service": service,
		"user_id": req.UserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "build_authorization_url", err, fields)
	}()

	if service == "" {
		err = s.mapError(fmt.Errorf("core: service is required"))
		return BuildAuthorizationURLResponse{}, err
	}
	provider, err := s.resolveProvider(service)
	if err != nil {
		return BuildAuthorizationURLResponse{}, err
	}

	state := strings.TrimSpace(req.State)
	if state == "" {
		state, err = GenerateOAuthState()
		if err != nil {
			err = s.mapError(err)
			return BuildAuthorizationURLResponse{}, err
		}
	}

	authURL, err := provider.AuthorizationURL(ctx, AuthorizationRequest{
		State:       state,
		RedirectURI: strings.TrimSpace(req.RedirectURI),
		Scopes:      append([]string(nil), req.Scopes...),
	})
	if err != nil {
		err = s.mapError(err)
		return BuildAuthorizationURLResponse{}, err
	}

	if s.oauthStateStore != nil {
		if err = s.oauthStateStore.Save(ctx, OAuthStateRecord{
			State:       state,
			Service:     service,
			UserID:      strings.TrimSpace(req.UserID),
			RedirectURI: strings.TrimSpace(req.RedirectURI),
		}); err != nil {
			err = s.mapError(err)
			return BuildAuthorizationURLResponse{}, err
		}
	}
	fields["exchange_state"] = ExchangeStateInitiated

	return BuildAuthorizationURLResponse{URL: authURL, State: state}, nil
}

// ExchangeCode completes the authorization-code grant and upserts the record.
// Both exchange and persistence failures are returned as typed errors.
func (s *Service) ExchangeCode(ctx context.Context, req ExchangeCodeRequest) (response ExchangeCodeResponse, err error) {
	startedAt := time.Now().UTC()
	service := normalizeProviderID(req.Service)
	attempt := ExchangeAttempt{
		Service:   service,
		UserID:    strings.TrimSpace(req.UserID),
		State:     ExchangeStateInitiated,
		UpdatedAt: s.currentTime(),
	}
	fields := map[string]any{
		"service": service,
		"user_id": attempt.UserID,
	}
	defer func() {
		if err != nil && attempt.State != ExchangeStateFailed {
			_ = attempt.TransitionTo(ExchangeStateFailed, s.currentTime())
		}
		fields["exchange_state"] = string(attempt.State)
		if response.Record.ID != "" {
			fields["record_id"] = response.Record.ID
		}
		s.observeOperation(ctx, startedAt, "exchange_code", err, fields)
	}()

	if err = (CredentialKey{UserID: req.UserID, Service: service}).Validate(); err != nil {
		err = s.mapError(err)
		return ExchangeCodeResponse{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return ExchangeCodeResponse{}, err
	}
	if err = attempt.TransitionTo(ExchangeStateCodeReceived, s.currentTime()); err != nil {
		err = s.mapError(err)
		return ExchangeCodeResponse{}, err
	}
	if err = s.consumeOAuthState(ctx, req, service); err != nil {
		err = s.mapError(err)
		return ExchangeCodeResponse{}, err
	}

	provider, err := s.resolveProvider(service)
	if err != nil {
		return ExchangeCodeResponse{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return ExchangeCodeResponse{}, err
	}
	if s.config.EncryptsService(service) && s.tokenCipher == nil {
		err = s.mapError(fmt.Errorf("%w: service %q", ErrTokenCipherUnavailable, service))
		return ExchangeCodeResponse{}, err
	}

	if err = attempt.TransitionTo(ExchangeStateExchanging, s.currentTime()); err != nil {
		err = s.mapError(err)
		return ExchangeCodeResponse{}, err
	}
	tokens, err := provider.Exchange(ctx, ExchangeRequest{
		Code:        strings.TrimSpace(req.Code),
		RedirectURI: strings.TrimSpace(req.RedirectURI),
	})
	if err != nil {
		err = NewOAuthExchangeError(service, err)
		return ExchangeCodeResponse{}, err
	}

	record, err := s.persistTokens(ctx, store, attempt.UserID, service, tokens, req.Metadata)
	if err != nil {
		return ExchangeCodeResponse{}, err
	}
	if err = attempt.TransitionTo(ExchangeStateExchanged, s.currentTime()); err != nil {
		err = s.mapError(err)
		return ExchangeCodeResponse{}, err
	}

	return ExchangeCodeResponse{Record: record, Tokens: tokens}, nil
}

func (s *Service) consumeOAuthState(ctx context.Context, req ExchangeCodeRequest, service string) error {
	if s.oauthStateStore == nil {
		return nil
	}
	record, err := s.oauthStateStore.Consume(ctx, req.State)
	if err != nil {
		return err
	}
	if normalizeProviderID(record.Service) != service {
		return fmt.Errorf("%w: service mismatch", ErrOAuthStateInvalid)
	}
	if record.UserID != "" && record.UserID != strings.TrimSpace(req.UserID) {
		return fmt.Errorf("%w: user mismatch", ErrOAuthStateInvalid)
	}
	return nil
}

// GetClientCredentialsToken mints an application token and stores it under
// the synthetic service account user.
func (s *Service) GetClientCredentialsToken(
	ctx context.Context,
	service string,
) (response ClientCredentialsResponse, err error) {
	startedAt := time.Now().UTC()
	service = normalizeProviderID(service)
	userID := ServiceAccountUserID(service)
	fields := map[string]any{
		"service": service,
		"user_id": userID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "client_credentials", err, fields)
	}()

	if service == "" {
		err = s.mapError(fmt.Errorf("core: service is required"))
		return ClientCredentialsResponse{}, err
	}
	provider, err := s.resolveClientCredentialsProvider(service)
	if err != nil {
		return ClientCredentialsResponse{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return ClientCredentialsResponse{}, err
	}

	tokens, err := provider.ClientCredentialsToken(ctx)
	if err != nil {
		err = NewOAuthExchangeError(service, err)
		return ClientCredentialsResponse{}, err
	}
	record, err := s.persistTokens(ctx, store, userID, service, tokens, ContactMetadata{})
	if err != nil {
		return ClientCredentialsResponse{}, err
	}
	return ClientCredentialsResponse{Record: record, Tokens: tokens}, nil
}

// RefreshTokens exchanges the stored refresh token for a new access token.
// The refresh token is re-sealed on every refresh so older formats migrate.
func (s *Service) RefreshTokens(ctx context.Context, req RefreshTokensRequest) (response RefreshTokensResponse, err error) {
	startedAt := time.Now().UTC()
	service := normalizeProviderID(req.Service)
	fields := map[string]any{
		"service": service,
		"user_id": req.UserID,
	}
	defer func() {
		fields["rotated"] = response.Rotated
		s.observeOperation(ctx, startedAt, "refresh_tokens", err, fields)
	}()

	if err = (CredentialKey{UserID: req.UserID, Service: service}).Validate(); err != nil {
		err = s.mapError(err)
		return RefreshTokensResponse{}, err
	}
	provider, err := s.resolveProvider(service)
	if err != nil {
		return RefreshTokensResponse{}, err
	}
	store, err := s.requireStore()
	if err != nil {
		return RefreshTokensResponse{}, err
	}

	record, err := store.Get(ctx, strings.TrimSpace(req.UserID), service)
	if err != nil {
		err = s.persistenceError("get", err)
		return RefreshTokensResponse{}, err
	}
	fields["record_id"] = record.ID
	if !record.Enabled {
		err = NewCredentialsInvalidError("integration is disabled", nil).
			WithMetadata(map[string]any{"service": service})
		return RefreshTokensResponse{}, err
	}
	opened, err := s.openRecord(record)
	if err != nil {
		return RefreshTokensResponse{}, err
	}
	if opened.RefreshToken == nil || strings.TrimSpace(*opened.RefreshToken) == "" {
		err = s.mapError(fmt.Errorf("%w: service %q", ErrRefreshTokenMissing, service))
		return RefreshTokensResponse{}, err
	}

	tokens, err := provider.Refresh(ctx, *opened.RefreshToken)
	if err != nil {
		err = NewOAuthExchangeError(service, err)
		return RefreshTokensResponse{}, err
	}

	now := s.currentTime()
	refreshToken := *opened.RefreshToken
	rotated := strings.TrimSpace(tokens.RefreshToken) != "" && tokens.RefreshToken != refreshToken
	if rotated {
		refreshToken = tokens.RefreshToken
	}

	patch := UpdateFieldsInput{
		AccessToken:  SetTo(tokens.AccessToken),
		RefreshToken: SetTo(refreshToken),
	}
	if expiresAt := tokens.ResolveExpiresAt(now); expiresAt != nil {
		patch.ExpiresIn = SetTo(int64(expiresAt.Sub(now).Seconds()))
	}
	if strings.TrimSpace(tokens.TokenType) != "" {
		patch.TokenType = SetTo(tokens.TokenType)
	}
	if strings.TrimSpace(tokens.Scope) != "" {
		patch.Scope = SetTo(tokens.Scope)
	}
	if !s.config.EncryptsService(service) {
		patch.CipherFormat = SetTo("")
	}
	sealed, err := s.sealPatch(service, patch)
	if err != nil {
		return RefreshTokensResponse{}, err
	}

	updated, err := store.UpdateFields(ctx, record.ID, sealed)
	if err != nil {
		err = s.persistenceError("update", err)
		return RefreshTokensResponse{}, err
	}
	return RefreshTokensResponse{
		Record:    updated,
		ExpiresAt: cloneTimePointer(updated.ExpiresAt),
		Rotated:   rotated,
	}, nil
}

func (s *Service) persistTokens(
	ctx context.Context,
	store CredentialStore,
	userID string,
	service string,
	tokens TokenResult,
	metadata ContactMetadata,
) (CredentialRecord, error) {
	now := s.currentTime()
	sealed, format, err := s.sealTokens(service, tokens)
	if err != nil {
		return CredentialRecord{}, err
	}
	sealed.ExpiresAt = tokens.ResolveExpiresAt(now)

	record, err := store.UpsertTokens(ctx, UpsertTokensInput{
		UserID:       userID,
		Service:      service,
		Tokens:       sealed,
		CipherFormat: format,
		Enabled:      true,
		SyncEnabled:  true,
		Metadata:     metadata,
	})
	if err != nil {
		return CredentialRecord{}, s.persistenceError("upsert", err)
	}
	return record, nil
}
