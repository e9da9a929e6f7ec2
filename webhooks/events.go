package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-integrations/core"
)

const ZoomEventAppDeauthorized = "app_deauthorized"

// EventRouter dispatches verified events by name. Unrouted events go to
// Fallback, or are accepted and dropped when Fallback is nil.
type EventRouter struct {
	routes   map[string]EventHandler
	Fallback EventHandler
}

func NewEventRouter() *EventRouter {
	return &EventRouter{routes: map[string]EventHandler{}}
}

func (r *EventRouter) Handle(event string, handler EventHandler) *EventRouter {
	event = strings.TrimSpace(event)
	if event == "" || handler == nil {
		return r
	}
	r.routes[event] = handler
	return r
}

// Routes reports whether event has a dedicated handler.
func (r *EventRouter) Routes(event string) bool {
	if r == nil {
		return false
	}
	_, ok := r.routes[event]
	return ok
}

func (r *EventRouter) HandleEvent(ctx context.Context, event ZoomEvent) error {
	if r == nil {
		return nil
	}
	if handler, ok := r.routes[event.Event]; ok {
		return handler.HandleEvent(ctx, event)
	}
	if r.Fallback != nil {
		return r.Fallback.HandleEvent(ctx, event)
	}
	return nil
}

type Deauthorizer interface {
	Deauthorize(ctx context.Context, req core.DeauthorizeRequest) (core.DeauthorizeResponse, error)
}

// DeauthorizationHandler soft-deletes the Zoom records of the account named
// in an app_deauthorized event.
type DeauthorizationHandler struct {
	deauthorizer Deauthorizer
}

func NewDeauthorizationHandler(deauthorizer Deauthorizer) *DeauthorizationHandler {
	return &DeauthorizationHandler{deauthorizer: deauthorizer}
}

func (h *DeauthorizationHandler) HandleEvent(ctx context.Context, event ZoomEvent) error {
	if h == nil || h.deauthorizer == nil {
		return fmt.Errorf("webhooks: deauthorizer is not configured")
	}
	var payload struct {
		AccountID string `json:"account_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("webhooks: decode %s payload: %w", event.Event, err)
	}
	accountID := strings.TrimSpace(payload.AccountID)
	if accountID == "" {
		return fmt.Errorf("webhooks: %s payload has no account_id", event.Event)
	}
	_, err := h.deauthorizer.Deauthorize(ctx, core.DeauthorizeRequest{
		Service:      core.ServiceZoom,
		AppAccountID: accountID,
	})
	return err
}

var (
	_ EventHandler = (*EventRouter)(nil)
	_ EventRoutes  = (*EventRouter)(nil)
	_ EventHandler = (*DeauthorizationHandler)(nil)
)
