// Package worker consumes the notification queue and delivers messages.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/queue"
)

// JobQueue is the subset of *queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context, queueName string) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (dead bool, err error)
}

// EmailSender delivers one email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ChatSender posts one chat message.
type ChatSender interface {
	Send(ctx context.Context, channelID, content string) error
}

// LogStore records delivery outcomes.
type LogStore interface {
	Insert(ctx context.Context, l *models.NotificationLog) error
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// NotificationProcessor processes notification jobs: render, deliver, record the outcome.
type NotificationProcessor struct {
	queue   JobQueue
	email   EmailSender
	chat    ChatSender
	logs    LogStore
	metrics *metrics.Metrics
	logger  *zap.Logger
	backoff time.Duration
}

// NewNotificationProcessor creates a notification processor. m may be nil.
func NewNotificationProcessor(q JobQueue, email EmailSender, chat ChatSender, logs LogStore, m *metrics.Metrics, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{
		queue:   q,
		email:   email,
		chat:    chat,
		logs:    logs,
		metrics: m,
		logger:  logger,
		backoff: queue.RetryBackoff,
	}
}

// Process executes one notification job and returns the rendered subject.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) (notify.Notification, string, error) {
	var n notify.Notification
	if job.Type != queue.JobTypeNotification {
		return n, "", permanentError{fmt.Errorf("unknown job type: %s", job.Type)}
	}
	if err := json.Unmarshal(job.Payload, &n); err != nil {
		return n, "", permanentError{fmt.Errorf("unmarshal payload: %w", err)}
	}
	subject, body, err := notify.Render(n)
	if err != nil {
		return n, "", permanentError{err}
	}
	switch n.Channel {
	case models.ChannelEmail:
		if n.Recipient == "" {
			return n, subject, permanentError{errors.New("email notification without recipient")}
		}
		err = p.email.Send(ctx, n.Recipient, subject, body)
	case models.ChannelDiscord:
		err = p.chat.Send(ctx, n.Recipient, "**"+subject+"**\n"+body)
	default:
		return n, subject, permanentError{fmt.Errorf("unknown channel %q", n.Channel)}
	}
	if errors.Is(err, notify.ErrEmailNotConfigured) || errors.Is(err, notify.ErrDiscordNotConfigured) {
		return n, subject, permanentError{err}
	}
	return n, subject, err
}

// Handle processes one job and applies the retry policy. It reports whether the worker
// should back off before the next job.
func (p *NotificationProcessor) Handle(ctx context.Context, job *queue.Job) (backoff bool) {
	n, subject, err := p.Process(ctx, job)
	entry := &models.NotificationLog{
		EventID:   n.EventID,
		Channel:   n.Channel,
		Kind:      n.Kind,
		Recipient: n.Recipient,
		Subject:   subject,
		Attempt:   job.Attempt + 1,
		Status:    models.NotificationStatusSent,
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
		var perm permanentError
		dead := errors.As(err, &perm)
		if !dead {
			var reErr error
			dead, reErr = p.queue.Retry(ctx, job, err)
			if reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr), zap.String("job_id", job.ID))
			}
		}
		entry.Status = models.NotificationStatusFailed
		if dead {
			entry.Status = models.NotificationStatusDead
		}
		p.logger.Error("notification delivery failed",
			zap.String("job_id", job.ID),
			zap.String("channel", n.Channel),
			zap.String("kind", n.Kind),
			zap.Int("attempt", entry.Attempt),
			zap.Bool("dead", dead),
			zap.Error(err),
		)
		backoff = !dead
	}
	p.metrics.ObserveNotificationDelivery(n.Channel, entry.Status)
	if n.Channel != "" {
		if lerr := p.logs.Insert(context.WithoutCancel(ctx), entry); lerr != nil {
			p.logger.Warn("notification log insert failed", zap.Error(lerr), zap.String("job_id", job.ID))
		}
	}
	return backoff
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.QueueNotifications)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if p.Handle(ctx, job) {
			p.sleep(ctx)
		}
	}
}

func (p *NotificationProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
