package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

type ProviderWebhookTemplate struct {
	ProviderID string
	Verifier   Verifier
}

type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return core.NewWebhookSignatureError("webhooks: " + strings.TrimSpace(v.Header) + " signature header is required")
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.NewWebhookSignatureError("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return core.NewWebhookSignatureError("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	var (
		decoded []byte
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(signature)
	}
	if err != nil {
		return core.NewWebhookSignatureError("webhooks: signature is not correctly encoded")
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return core.NewWebhookSignatureError("webhooks: signature verification failed")
	}
	return nil
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return core.NewWebhookSignatureError("webhooks: verification token is required")
	}
	actual := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if actual == "" {
		return core.NewWebhookSignatureError("webhooks: " + strings.TrimSpace(v.Header) + " verification header is required")
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return core.NewWebhookSignatureError("webhooks: verification token mismatch")
	}
	return nil
}

func NewZoomWebhookTemplate(cfg core.ZoomConfig) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: core.ServiceZoom,
		Verifier:   NewZoomVerifier(cfg),
	}
}

func NewGitHubWebhookTemplate(secret string) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: core.ServiceGitHub,
		Verifier: HeaderHMACVerifier{
			Header:   "X-Hub-Signature-256",
			Prefix:   "sha256=",
			Secret:   strings.TrimSpace(secret),
			Encoding: "hex",
		},
	}
}

// NewGoogleCalendarWebhookTemplate verifies push notification channels by the
// token set when the watch channel was created.
func NewGoogleCalendarWebhookTemplate(channelToken string) ProviderWebhookTemplate {
	return ProviderWebhookTemplate{
		ProviderID: core.ServiceGoogleCalendar,
		Verifier: HeaderTokenVerifier{
			Header: "X-Goog-Channel-Token",
			Token:  strings.TrimSpace(channelToken),
		},
	}
}
