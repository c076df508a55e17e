package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"golang.org/x/time/rate"
)

const defaultQueueSize = 256

// NotificationSender delivers one notification to operators
type NotificationSender interface {
	SendNotification(ctx context.Context, n models.Notification) error
}

// NotificationDispatcher fans stored notifications out to a sender from a
// bounded queue. Enqueue never blocks; sends are throttled by a rate limiter.
type NotificationDispatcher struct {
	sender  NotificationSender
	limiter *rate.Limiter
	logger  *slog.Logger
	queue   chan models.Notification
	timeout time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewNotificationDispatcher creates a dispatcher sending at most perSecond
// e-mails per second. Non-positive values fall back to one per second.
func NewNotificationDispatcher(sender NotificationSender, logger *slog.Logger, queueSize int, perSecond float64) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &NotificationDispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger,
		queue:   make(chan models.Notification, queueSize),
		timeout: 15 * time.Second,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Enqueue hands n to the worker. It reports false when the queue is full.
func (d *NotificationDispatcher) Enqueue(n models.Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		return false
	}
}

// Start runs the worker until ctx is cancelled or Stop is called
func (d *NotificationDispatcher) Start(ctx context.Context) {
	defer close(d.doneCh)

	for {
		select {
		case n := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				d.logger.Info("notification dispatcher context cancelled")
				return
			}
			d.send(ctx, n)
		case <-d.stopCh:
			d.logger.Info("notification dispatcher stopped")
			return
		case <-ctx.Done():
			d.logger.Info("notification dispatcher context cancelled")
			return
		}
	}
}

func (d *NotificationDispatcher) send(ctx context.Context, n models.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.SendNotification(sendCtx, n); err != nil {
		d.logger.Error("failed to dispatch notification",
			slog.String("notification_id", n.ID),
			slog.Any("error", err))
	}
}

// Stop signals the worker to exit and waits for the in-flight send. Start must
// have been called.
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}
