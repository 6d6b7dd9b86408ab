// Package notify carries outbound email and Discord notifications. The API enqueues
// requests; the worker renders and delivers them.
package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/pkg/queue"
)

// Notification is one delivery request. Recipient is an email address for email
// and a channel ID for Discord (empty means the default channel).
type Notification struct {
	Channel   string            `json:"channel"`
	Kind      string            `json:"kind"`
	EventID   *uuid.UUID        `json:"event_id,omitempty"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}

// Dispatcher hands notifications off for asynchronous delivery. Dispatch never fails the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// Enqueuer is the queue operation the dispatcher needs; *queue.Queue satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, jobType queue.JobType, payload any) (string, error)
}

// QueueDispatcher enqueues notification jobs on the Redis work queue.
type QueueDispatcher struct {
	queue   Enqueuer
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewQueueDispatcher creates a dispatcher. m may be nil.
func NewQueueDispatcher(q Enqueuer, logger *zap.Logger, m *metrics.Metrics) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: q, logger: logger, metrics: m}
}

// Dispatch enqueues n. Enqueue failures are logged and counted, never returned.
func (d *QueueDispatcher) Dispatch(ctx context.Context, n Notification) {
	if d == nil || d.queue == nil {
		return
	}
	jobID, err := d.queue.Enqueue(context.WithoutCancel(ctx), queue.QueueNotifications, queue.JobTypeNotification, n)
	d.metrics.ObserveNotificationQueued(n.Channel, err == nil)
	if err != nil {
		d.logger.Warn("notification enqueue failed",
			zap.Error(err),
			zap.String("channel", n.Channel),
			zap.String("kind", n.Kind),
		)
		return
	}
	d.logger.Debug("notification queued", zap.String("job_id", jobID), zap.String("kind", n.Kind))
}

// Nop discards notifications. Used when no queue is configured.
type Nop struct{}

// Dispatch does nothing.
func (Nop) Dispatch(context.Context, Notification) {}
