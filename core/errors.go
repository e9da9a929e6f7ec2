package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IntegrationErrorBadInput          = "INTEGRATION_BAD_INPUT"
	IntegrationErrorConfigInvalid     = "INTEGRATION_CONFIG_INVALID"
	IntegrationErrorProviderNotFound  = "INTEGRATION_PROVIDER_NOT_FOUND"
	IntegrationErrorNotFound          = "INTEGRATION_NOT_FOUND"
	IntegrationErrorOAuthStateInvalid = "INTEGRATION_OAUTH_STATE_INVALID"
	IntegrationErrorOAuthExchange     = "OAUTH_EXCHANGE_FAILED"
	IntegrationErrorPersistence       = "PERSISTENCE_FAILED"
	IntegrationErrorWebhookSignature  = "WEBHOOK_SIGNATURE_INVALID"
	IntegrationErrorCredentials       = "CREDENTIALS_INVALID"
	IntegrationErrorExternal          = "INTEGRATION_EXTERNAL_FAILURE"
	IntegrationErrorInternal          = "INTEGRATION_INTERNAL_ERROR"
)

// NewOAuthExchangeError classifies a failed token endpoint call.
func NewOAuthExchangeError(service string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "oauth token exchange failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorOAuthExchange).
		WithMetadata(map[string]any{"service": service})
}

// NewPersistenceError classifies a credential store failure.
func NewPersistenceError(operation string, err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "credential store "+operation+" failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(IntegrationErrorPersistence).
		WithMetadata(map[string]any{"operation": operation})
}

// NewCredentialsInvalidError marks stored credentials as unusable. Callers
// should send the user through authorization again.
func NewCredentialsInvalidError(message string, err error) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(IntegrationErrorCredentials).
			WithMetadata(map[string]any{"reauthorize": true})
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, message).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntegrationErrorCredentials).
		WithMetadata(map[string]any{"reauthorize": true})
}

// NewConfigInvalidError reports configuration that prevents startup.
func NewConfigInvalidError(message string, err error) *goerrors.Error {
	if err == nil {
		return goerrors.New(message, goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(IntegrationErrorConfigInvalid)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(IntegrationErrorConfigInvalid)
}

// NewWebhookSignatureError rejects an inbound webhook.
func NewWebhookSignatureError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(IntegrationErrorWebhookSignature)
}

// IsTextCode reports whether err carries the given go-errors text code.
func IsTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func integrationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrProviderNotFound):
		return wrapIntegrationError(err, goerrors.CategoryNotFound, IntegrationErrorProviderNotFound)
	case errors.Is(err, ErrCredentialNotFound):
		return wrapIntegrationError(err, goerrors.CategoryNotFound, IntegrationErrorNotFound)
	case errors.Is(err, ErrOAuthStateInvalid):
		return wrapIntegrationError(err, goerrors.CategoryAuth, IntegrationErrorOAuthStateInvalid)
	case errors.Is(err, ErrRefreshTokenMissing):
		return wrapIntegrationError(err, goerrors.CategoryAuth, IntegrationErrorCredentials)
	case errors.Is(err, ErrCredentialStoreUnavailable), errors.Is(err, ErrTokenCipherUnavailable):
		return wrapIntegrationError(err, goerrors.CategoryInternal, IntegrationErrorConfigInvalid)
	case errors.Is(err, ErrClientCredentialsUnsupported), errors.Is(err, ErrEmptyPatch), errors.Is(err, ErrInvalidPatch):
		return wrapIntegrationError(err, goerrors.CategoryBadInput, IntegrationErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must be"):
		return wrapIntegrationError(err, goerrors.CategoryBadInput, IntegrationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationErrorEnvelope(mapped)
}

func wrapIntegrationError(err error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIntegrationErrorEnvelope(
		goerrors.Wrap(err, category, err.Error()).
			WithTextCode(textCode),
	)
}

func ensureIntegrationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IntegrationErrorBadInput
	case goerrors.CategoryNotFound:
		return IntegrationErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IntegrationErrorCredentials
	case goerrors.CategoryExternal:
		return IntegrationErrorPersistence
	default:
		return IntegrationErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
