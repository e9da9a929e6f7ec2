package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/valyala/fasthttp"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Metric event tags. Event names come from the request body, so only names
// with a known route are exported as-is.
const (
	metricEventUnverified = "unverified"
	metricEventOther      = "other"
)

// ZoomEvent is the envelope of every Zoom webhook notification.
type ZoomEvent struct {
	Event   string          `json:"event"`
	EventTS int64           `json:"event_ts"`
	Payload json.RawMessage `json:"payload"`
}

type EventHandler interface {
	HandleEvent(ctx context.Context, event ZoomEvent) error
}

// EventRoutes is implemented by event handlers that know which event names
// they dispatch.
type EventRoutes interface {
	Routes(event string) bool
}

type EventHandlerFunc func(ctx context.Context, event ZoomEvent) error

func (fn EventHandlerFunc) HandleEvent(ctx context.Context, event ZoomEvent) error {
	return fn(ctx, event)
}

type HandlerOption func(*ZoomHandler)

func WithHandlerLogger(logger core.Logger) HandlerOption {
	return func(h *ZoomHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithHandlerMetrics(recorder core.MetricsRecorder) HandlerOption {
	return func(h *ZoomHandler) {
		if recorder != nil {
			h.metrics = recorder
		}
	}
}

func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *ZoomHandler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// ZoomHandler answers endpoint validation challenges and dispatches verified
// events. It serves both net/http and fasthttp.
type ZoomHandler struct {
	verifier     ZoomVerifier
	events       EventHandler
	logger       core.Logger
	metrics      core.MetricsRecorder
	maxBodyBytes int64
}

func NewZoomHandler(verifier ZoomVerifier, events EventHandler, opts ...HandlerOption) *ZoomHandler {
	h := &ZoomHandler{
		verifier:     verifier,
		events:       events,
		logger:       glog.Nop(),
		metrics:      core.NopMetricsRecorder{},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type HandlerResult struct {
	Status int
	Body   any
}

func (h *ZoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unable to read body"))
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("body too large"))
		return
	}
	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}
	result := h.Handle(r.Context(), headers, body)
	writeJSON(w, result.Status, result.Body)
}

// ServeFastHTTP is the fasthttp entry point.
func (h *ZoomHandler) ServeFastHTTP(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		writeFastJSON(ctx, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}
	body := ctx.PostBody()
	if int64(len(body)) > h.maxBodyBytes {
		writeFastJSON(ctx, http.StatusRequestEntityTooLarge, errorBody("body too large"))
		return
	}
	headers := map[string]string{}
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})
	result := h.Handle(ctx, headers, append([]byte(nil), body...))
	writeFastJSON(ctx, result.Status, result.Body)
}

// Handle runs the transport-independent part of a webhook request.
func (h *ZoomHandler) Handle(ctx context.Context, headers map[string]string, body []byte) HandlerResult {
	startedAt := time.Now()
	var event ZoomEvent
	if err := json.Unmarshal(body, &event); err != nil || strings.TrimSpace(event.Event) == "" {
		h.observe(ctx, "malformed", metricEventUnverified, startedAt)
		return HandlerResult{Status: http.StatusBadRequest, Body: errorBody("invalid event payload")}
	}

	if event.Event == ZoomEventURLValidation {
		var payload struct {
			PlainToken string `json:"plainToken"`
		}
		if err := json.Unmarshal(event.Payload, &payload); err != nil || payload.PlainToken == "" {
			h.observe(ctx, "malformed", ZoomEventURLValidation, startedAt)
			return HandlerResult{Status: http.StatusBadRequest, Body: errorBody("plainToken is required")}
		}
		if strings.TrimSpace(h.verifier.Secret) == "" {
			h.observe(ctx, "failed", ZoomEventURLValidation, startedAt)
			return HandlerResult{Status: http.StatusInternalServerError, Body: errorBody("webhook secret not configured")}
		}
		h.observe(ctx, "challenge", ZoomEventURLValidation, startedAt)
		return HandlerResult{Status: http.StatusOK, Body: VerifyEndpointChallenge(payload.PlainToken, h.verifier.Secret)}
	}

	if err := h.verifier.VerifySignature(headers, body); err != nil {
		h.log(ctx, "warn", "zoom webhook rejected", err, "")
		h.observe(ctx, "rejected", metricEventUnverified, startedAt)
		return HandlerResult{Status: http.StatusUnauthorized, Body: errorBody("invalid signature")}
	}

	if h.events != nil {
		if err := h.events.HandleEvent(ctx, event); err != nil {
			h.log(ctx, "error", "zoom webhook handler failed", err, event.Event)
			h.observe(ctx, "failed", h.metricEvent(event.Event), startedAt)
			return HandlerResult{Status: http.StatusInternalServerError, Body: errorBody("event handling failed")}
		}
	}
	h.observe(ctx, "accepted", h.metricEvent(event.Event), startedAt)
	return HandlerResult{Status: http.StatusOK, Body: map[string]any{"status": "ok"}}
}

func (h *ZoomHandler) observe(ctx context.Context, outcome string, event string, startedAt time.Time) {
	if h.metrics == nil {
		return
	}
	tags := map[string]string{
		"provider": core.ServiceZoom,
		"outcome":  outcome,
		"event":    event,
	}
	h.metrics.IncCounter(ctx, "integrations.webhook.total", 1, tags)
	h.metrics.ObserveHistogram(ctx, "integrations.webhook.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
}

func (h *ZoomHandler) metricEvent(event string) string {
	if routes, ok := h.events.(EventRoutes); ok && routes.Routes(event) {
		return event
	}
	return metricEventOther
}

func (h *ZoomHandler) log(ctx context.Context, level string, message string, err error, event string) {
	if h.logger == nil {
		return
	}
	args := []any{"provider", core.ServiceZoom, "error", err.Error()}
	if event != "" {
		args = append(args, "event", event)
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		args = append(args, "error_text_code", richErr.TextCode)
	}
	logger := h.logger.WithContext(ctx)
	if level == "error" {
		logger.Error(message, args...)
		return
	}
	logger.Warn(message, args...)
}

func errorBody(message string) map[string]any {
	return map[string]any{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFastJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(payload)
}
