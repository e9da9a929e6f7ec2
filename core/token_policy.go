package core

import (
	"fmt"
	"strings"
)

// sealTokens encrypts the token pair when the service stores tokens encrypted.
// The returned format is empty for plaintext storage.
func (s *Service) sealTokens(service string, tokens TokenResult) (TokenResult, string, error) {
	if !s.config.EncryptsService(service) {
		return tokens, "", nil
	}
	if s.tokenCipher == nil {
		return TokenResult{}, "", s.mapError(fmt.Errorf("%w: service %q", ErrTokenCipherUnavailable, service))
	}

	var refresh *string
	if strings.TrimSpace(tokens.RefreshToken) != "" {
		refresh = stringPointer(tokens.RefreshToken)
	}
	pair, err := s.tokenCipher.EncryptPair(tokens.AccessToken, refresh)
	if err != nil {
		return TokenResult{}, "", s.mapError(err)
	}

	sealed := tokens
	sealed.Raw = copyAnyMap(tokens.Raw)
	sealed.AccessToken = pair.Token
	sealed.RefreshToken = ""
	if pair.RefreshToken != nil {
		sealed.RefreshToken = *pair.RefreshToken
	}
	return sealed, s.tokenCipher.Format(), nil
}

func (s *Service) sealValue(service string, value string) (string, string, error) {
	if !s.config.EncryptsService(service) {
		return value, "", nil
	}
	if s.tokenCipher == nil {
		return "", "", s.mapError(fmt.Errorf("%w: service %q", ErrTokenCipherUnavailable, service))
	}
	sealed, err := s.tokenCipher.Encrypt(value)
	if err != nil {
		return "", "", s.mapError(err)
	}
	return sealed, s.tokenCipher.Format(), nil
}

// openRecord decrypts the token columns of a stored record.
func (s *Service) openRecord(record CredentialRecord) (Integration, error) {
	out := Integration{Record: record}
	if record.AccessToken == nil {
		return out, nil
	}
	if strings.TrimSpace(record.CipherFormat) == "" {
		out.AccessToken = *record.AccessToken
		out.RefreshToken = cloneStringPointer(record.RefreshToken)
		return out, nil
	}
	if s.tokenCipher == nil {
		return Integration{}, s.mapError(fmt.Errorf("%w: service %q", ErrTokenCipherUnavailable, record.Service))
	}
	pair, err := s.tokenCipher.DecryptPair(TokenPair{
		Token:        *record.AccessToken,
		RefreshToken: cloneStringPointer(record.RefreshToken),
	})
	if err != nil {
		return Integration{}, NewCredentialsInvalidError("stored credentials could not be decrypted", err).
			WithMetadata(map[string]any{"service": record.Service, "user_id": record.UserID})
	}
	out.AccessToken = pair.Token
	out.RefreshToken = pair.RefreshToken
	return out, nil
}

// sealPatch encrypts token fields that a patch sets.
func (s *Service) sealPatch(service string, patch UpdateFieldsInput) (UpdateFieldsInput, error) {
	if !patch.AccessToken.IsSet() && !patch.RefreshToken.IsSet() {
		return patch, nil
	}
	out := patch
	format := ""
	if value, ok := patch.AccessToken.Value(); ok {
		sealed, sealedFormat, err := s.sealValue(service, value)
		if err != nil {
			return UpdateFieldsInput{}, err
		}
		out.AccessToken = SetTo(sealed)
		format = sealedFormat
	}
	if value, ok := patch.RefreshToken.Value(); ok {
		sealed, sealedFormat, err := s.sealValue(service, value)
		if err != nil {
			return UpdateFieldsInput{}, err
		}
		out.RefreshToken = SetTo(sealed)
		format = sealedFormat
	}
	if out.CipherFormat.IsUnchanged() && format != "" {
		out.CipherFormat = SetTo(format)
	}
	return out, nil
}
