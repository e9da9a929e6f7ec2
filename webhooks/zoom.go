package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

const (
	ZoomSignatureHeader = "x-zm-signature"
	ZoomTimestampHeader = "x-zm-request-timestamp"
	ZoomSignatureScheme = "v0"

	ZoomEventURLValidation = "endpoint.url_validation"
)

// ChallengeResponse is the body Zoom expects when it validates an endpoint.
type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// VerifyEndpointChallenge answers Zoom's URL validation: the encrypted token
// is hex(HMAC-SHA256(secret, plainToken)).
func VerifyEndpointChallenge(plainToken string, secret string) ChallengeResponse {
	return ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: hmacHex(secret, []byte(plainToken)),
	}
}

// SignZoomPayload returns the x-zm-signature value for body sent at timestamp.
func SignZoomPayload(secret string, timestamp string, body []byte) string {
	message := make([]byte, 0, len(body)+len(timestamp)+4)
	message = append(message, ZoomSignatureScheme+":"+timestamp+":"...)
	message = append(message, body...)
	return ZoomSignatureScheme + "=" + hmacHex(secret, message)
}

type ZoomVerifier struct {
	Secret string
	// Tolerance rejects requests whose timestamp is further than this from
	// Now. Zero disables the check.
	Tolerance time.Duration
	Now       func() time.Time
}

func NewZoomVerifier(cfg core.ZoomConfig) ZoomVerifier {
	return ZoomVerifier{
		Secret:    strings.TrimSpace(cfg.WebhookSecret),
		Tolerance: time.Duration(cfg.TimestampToleranceSeconds) * time.Second,
	}
}

// VerifySignature checks the x-zm-signature header against the raw body.
func (v ZoomVerifier) VerifySignature(headers map[string]string, body []byte) error {
	if strings.TrimSpace(v.Secret) == "" {
		return core.NewWebhookSignatureError("webhooks: zoom webhook secret is not configured")
	}
	signature := headerValue(headers, ZoomSignatureHeader)
	if signature == "" {
		return core.NewWebhookSignatureError("webhooks: " + ZoomSignatureHeader + " header is required")
	}
	timestamp := headerValue(headers, ZoomTimestampHeader)
	if timestamp == "" {
		return core.NewWebhookSignatureError("webhooks: " + ZoomTimestampHeader + " header is required")
	}
	if err := v.checkTimestamp(timestamp); err != nil {
		return err
	}

	expected := SignZoomPayload(v.Secret, timestamp, body)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return core.NewWebhookSignatureError("webhooks: zoom signature verification failed")
	}
	return nil
}

func (v ZoomVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	return v.VerifySignature(req.Headers, req.Body)
}

func (v ZoomVerifier) checkTimestamp(raw string) error {
	if v.Tolerance <= 0 {
		return nil
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.NewWebhookSignatureError("webhooks: zoom request timestamp is not numeric")
	}
	now := time.Now().UTC()
	if v.Now != nil {
		now = v.Now().UTC()
	}
	skew := now.Sub(time.Unix(seconds, 0).UTC())
	if skew < 0 {
		skew = -skew
	}
	if skew > v.Tolerance {
		return core.NewWebhookSignatureError("webhooks: zoom request timestamp outside tolerance").
			WithMetadata(map[string]any{"skew_seconds": int64(skew.Seconds())})
	}
	return nil
}

func hmacHex(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ Verifier = ZoomVerifier{}
