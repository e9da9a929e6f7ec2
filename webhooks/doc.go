// Package webhooks verifies inbound provider webhooks.
//
// Zoom requests are signed as v0=hex(HMAC-SHA256(secret, "v0:<ts>:<body>"))
// over the raw body bytes; endpoint.url_validation events are answered with
// the challenge response before any signature check.
package webhooks
