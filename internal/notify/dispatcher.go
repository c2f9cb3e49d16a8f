// internal/notify/dispatcher.go
package notify

import (
	"context"
	"time"

	"poultry-review-engine/internal/common/config"
	"poultry-review-engine/internal/common/logger"
	"poultry-review-engine/internal/common/metrics"
)

const (
	defaultQueueSize  = 256
	defaultRetryDelay = 500 * time.Millisecond
)

// Dispatcher decouples notification delivery from workflow transitions. It is
// itself a Notifier: Notify enqueues onto a bounded buffer and returns
// immediately, a worker goroutine drains the buffer and delivers through the
// wrapped Notifier with retries. When the buffer is full the event is dropped
// with a warning rather than blocking the caller.
type Dispatcher struct {
	inner      Notifier
	inbox      chan Event
	maxRetries int
	retryDelay time.Duration
	logger     logger.Logger
}

func NewDispatcher(inner Notifier, cfg config.NotificationConfig, log logger.Logger) *Dispatcher {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Dispatcher{
		inner:      inner,
		inbox:      make(chan Event, size),
		maxRetries: retries,
		retryDelay: defaultRetryDelay,
		logger:     log.WithFields(map[string]interface{}{"component": "notify-dispatcher"}),
	}
}

// Notify enqueues the event for async delivery. It never blocks and never
// returns an error: a full buffer drops the event.
func (d *Dispatcher) Notify(_ context.Context, event Event) error {
	select {
	case d.inbox <- event:
	default:
		d.logger.Warn("notification buffer full, dropping event", map[string]interface{}{
			"event":       string(event.Kind),
			"application": event.ApplicationNumber,
		})
		metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "queue", "dropped").Inc()
	}
	return nil
}

// Run drains the buffer until ctx is cancelled. Call in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.inbox:
			d.deliver(ctx, event)
		}
	}
}

// deliver attempts the wrapped Notifier with exponential backoff. An event
// that still fails after maxRetries extra attempts is logged and dropped.
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	var err error
	delay := d.retryDelay

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if err = d.inner.Notify(ctx, event); err == nil {
			return
		}

		if attempt < d.maxRetries {
			d.logger.Warn("notification delivery failed, retrying", map[string]interface{}{
				"event":       string(event.Kind),
				"application": event.ApplicationNumber,
				"attempt":     attempt + 1,
				"nextRetryIn": delay.String(),
				"error":       err.Error(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	d.logger.Error("notification dropped after retries", map[string]interface{}{
		"event":       string(event.Kind),
		"application": event.ApplicationNumber,
		"attempts":    d.maxRetries + 1,
		"error":       err.Error(),
	})
	metrics.NotificationsDispatched.WithLabelValues(string(event.Kind), "queue", "failed").Inc()
}
