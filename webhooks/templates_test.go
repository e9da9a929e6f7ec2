package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/goliatone/go-integrations/core"
)

func TestProviderWebhookTemplates_Verify(t *testing.T) {
	body := []byte(`{"action":"opened"}`)

	github := NewGitHubWebhookTemplate("gh_secret")
	if err := github.Verifier.Verify(context.Background(), core.InboundRequest{
		ProviderID: github.ProviderID,
		Body:       body,
		Headers: map[string]string{
			"X-Hub-Signature-256": "sha256=" + signHexHMAC("gh_secret", body),
		},
	}); err != nil {
		t.Fatalf("verify github: %v", err)
	}

	google := NewGoogleCalendarWebhookTemplate("channel_token")
	if err := google.Verifier.Verify(context.Background(), core.InboundRequest{
		ProviderID: google.ProviderID,
		Headers: map[string]string{
			"x-goog-channel-token": "channel_token",
		},
	}); err != nil {
		t.Fatalf("verify google calendar: %v", err)
	}

	base64Verifier := HeaderHMACVerifier{Header: "X-Signature", Secret: "b64", Encoding: "base64"}
	if err := base64Verifier.Verify(context.Background(), core.InboundRequest{
		Body:    body,
		Headers: map[string]string{"X-Signature": signBase64HMAC("b64", body)},
	}); err != nil {
		t.Fatalf("verify base64 signature: %v", err)
	}
}

func TestProviderWebhookTemplates_RejectsInvalidSignature(t *testing.T) {
	template := NewGitHubWebhookTemplate("secret")
	err := template.Verifier.Verify(context.Background(), core.InboundRequest{
		ProviderID: core.ServiceGitHub,
		Body:       []byte(`{}`),
		Headers: map[string]string{
			"X-Hub-Signature-256": "sha256=bad",
		},
	})
	if err == nil {
		t.Fatalf("expected invalid signature to fail verification")
	}
	if !core.IsTextCode(err, core.IntegrationErrorWebhookSignature) {
		t.Fatalf("expected webhook signature text code, got %v", err)
	}

	token := NewGoogleCalendarWebhookTemplate("expected")
	if err := token.Verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"X-Goog-Channel-Token": "other"},
	}); err == nil {
		t.Fatalf("expected token mismatch to fail")
	}
}

func signHexHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func signBase64HMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
