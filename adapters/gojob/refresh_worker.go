package gojob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-integrations/core"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-job/queue/worker"
)

const (
	defaultRetryBaseDelay = 2 * time.Second
	defaultPollInterval   = time.Second
)

// TokenRefresher is the slice of the integration service a refresh worker needs.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, req core.RefreshTokensRequest) (core.RefreshTokensResponse, error)
}

type RefreshWorkerOption func(*RefreshWorker)

func WithRetryPolicy(policy RetryPolicy) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.policy = policy
	}
}

func WithRetryBaseDelay(delay time.Duration) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		if delay > 0 {
			w.baseDelay = delay
		}
	}
}

func WithPollInterval(interval time.Duration) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithWorkerHook attaches a go-job lifecycle hook.
func WithWorkerHook(hook worker.Hook) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func withWorkerClock(now func() time.Time) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// RefreshWorker consumes refresh jobs and renews the stored tokens.
type RefreshWorker struct {
	dequeuer     core.JobDequeuer
	refresher    TokenRefresher
	policy       RetryPolicy
	baseDelay    time.Duration
	pollInterval time.Duration
	hook         worker.Hook
	logger       core.Logger
	now          func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewRefreshWorker(dequeuer core.JobDequeuer, refresher TokenRefresher, opts ...RefreshWorkerOption) (*RefreshWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("gojob: token refresher is required")
	}
	w := &RefreshWorker{
		dequeuer:     dequeuer,
		refresher:    refresher,
		policy:       RetryPolicy{MaxAttempts: 5, MaxDelay: 5 * time.Minute, DeadLetterOnMax: true},
		baseDelay:    defaultRetryBaseDelay,
		pollInterval: defaultPollInterval,
		logger:       glog.Nop(),
		now:          func() time.Time { return time.Now().UTC() },
		attempts:     map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run processes jobs until ctx is done.
func (w *RefreshWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Warn("refresh worker dequeue failed", "error", err)
			timer := time.NewTimer(w.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// ProcessNext handles a single delivery. Errors are only returned when no
// delivery could be obtained or settled; refresh failures are settled via Nack.
func (w *RefreshWorker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	req, err := RefreshTargetFromMessage(msg)
	if err != nil {
		w.logger.Error("refresh worker dropped malformed job", "error", err)
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: err.Error()})
	}

	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	started := w.now()
	event := worker.Event{
		Message:   ToExecutionMessage(msg),
		Attempt:   attempt,
		StartedAt: started,
	}
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}

	_, refreshErr := w.refresher.RefreshTokens(ctx, req)
	event.Duration = w.now().Sub(started)
	if refreshErr == nil {
		w.resetAttempts(key)
		if w.hook != nil {
			w.hook.OnSuccess(ctx, event)
		}
		return delivery.Ack(ctx)
	}

	event.Err = refreshErr
	opts := core.JobNackOptions{Requeue: true, Delay: w.backoff(attempt), Reason: refreshErr.Error()}
	if isPermanentRefreshError(refreshErr) {
		opts = core.JobNackOptions{DeadLetter: true, Reason: refreshErr.Error()}
	}
	opts = w.policy.NormalizeAttempt(opts, attempt)
	if opts.Requeue {
		event.Delay = opts.Delay
		if w.hook != nil {
			w.hook.OnRetry(ctx, event)
		}
		w.logger.Warn("token refresh failed, retrying",
			"service", req.Service, "user_id", req.UserID, "attempt", attempt, "error", refreshErr)
	} else {
		w.resetAttempts(key)
		if w.hook != nil {
			w.hook.OnFailure(ctx, event)
		}
		w.logger.Error("token refresh failed",
			"service", req.Service, "user_id", req.UserID, "attempt", attempt, "error", refreshErr)
	}
	if adapter, ok := delivery.(*DeliveryAdapter); ok {
		return adapter.NackForAttempt(ctx, opts, attempt)
	}
	return delivery.Nack(ctx, opts)
}

func (w *RefreshWorker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := w.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if w.policy.MaxDelay > 0 && delay >= w.policy.MaxDelay {
			return w.policy.MaxDelay
		}
	}
	return delay
}

func (w *RefreshWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *RefreshWorker) resetAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func attemptKey(msg *core.JobExecutionMessage) string {
	if msg.IdempotencyKey != "" {
		return msg.IdempotencyKey
	}
	userID, _ := msg.Parameters[ParamUserID].(string)
	service, _ := msg.Parameters[ParamService].(string)
	return JobIDRefresh + ":" + service + ":" + userID
}

// Credentials the provider rejects, or records that no longer exist, will
// not recover on retry.
func isPermanentRefreshError(err error) bool {
	if errors.Is(err, core.ErrCredentialNotFound) {
		return true
	}
	for _, code := range []string{
		core.IntegrationErrorCredentials,
		core.IntegrationErrorBadInput,
		core.IntegrationErrorNotFound,
		core.IntegrationErrorProviderNotFound,
	} {
		if core.IsTextCode(err, code) {
			return true
		}
	}
	return false
}
