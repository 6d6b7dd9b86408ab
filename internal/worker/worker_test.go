package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/internal/notify"
	"github.com/meetup-ops/backend/pkg/queue"
)

type fakeQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
	max     int
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ string) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	return j, nil
}

func (q *fakeQueue) Retry(_ context.Context, job *queue.Job, cause error) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	if job.Attempt >= q.max {
		return true, nil
	}
	q.retried = append(q.retried, job)
	return false, nil
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) Send(_ context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type fakeChat struct{ sent []string }

func (f *fakeChat) Send(_ context.Context, channelID, content string) error {
	f.sent = append(f.sent, channelID+"|"+content)
	return nil
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []*models.NotificationLog
}

func (f *fakeLogs) Insert(_ context.Context, l *models.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, l)
	return nil
}

func job(t *testing.T, n notify.Notification) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(n)
	require.NoError(t, err)
	return &queue.Job{ID: "j1", Type: queue.JobTypeNotification, Queue: queue.QueueNotifications, Payload: raw}
}

func digest(to string) notify.Notification {
	return notify.Notification{
		Channel:   models.ChannelEmail,
		Kind:      models.NotificationWeeklyDigest,
		Recipient: to,
		Data:      map[string]string{"name": "Sam", "days": "7", "events": "- Go Night"},
	}
}

func TestHandleDeliversEmailAndLogs(t *testing.T) {
	email, logs := &fakeEmail{}, &fakeLogs{}
	m := metrics.New(prometheus.NewRegistry())
	p := NewNotificationProcessor(&fakeQueue{max: 3}, email, &fakeChat{}, logs, m, nil)

	backoff := p.Handle(context.Background(), job(t, digest("sam@example.com")))

	assert.False(t, backoff)
	assert.Equal(t, []string{"sam@example.com|Meetups this week"}, email.sent)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.NotificationStatusSent, logs.entries[0].Status)
	assert.Equal(t, 1, logs.entries[0].Attempt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues(models.ChannelEmail, models.NotificationStatusSent)))
}

func TestHandleRetriesTransientFailure(t *testing.T) {
	q := &fakeQueue{max: 3}
	logs := &fakeLogs{}
	p := NewNotificationProcessor(q, &fakeEmail{err: errors.New("421 try later")}, &fakeChat{}, logs, nil, nil)

	backoff := p.Handle(context.Background(), job(t, digest("sam@example.com")))

	assert.True(t, backoff)
	assert.Len(t, q.retried, 1)
	assert.Equal(t, models.NotificationStatusFailed, logs.entries[0].Status)
}

func TestHandleMovesExhaustedJobToDLQ(t *testing.T) {
	q := &fakeQueue{max: 3}
	logs := &fakeLogs{}
	p := NewNotificationProcessor(q, &fakeEmail{err: errors.New("421 try later")}, &fakeChat{}, logs, nil, nil)
	j := job(t, digest("sam@example.com"))
	j.Attempt = 2

	backoff := p.Handle(context.Background(), j)

	assert.False(t, backoff)
	assert.Empty(t, q.retried)
	assert.Equal(t, models.NotificationStatusDead, logs.entries[0].Status)
	assert.Equal(t, 3, logs.entries[0].Attempt)
}

func TestHandlePermanentFailureSkipsRetry(t *testing.T) {
	q := &fakeQueue{max: 3}
	logs := &fakeLogs{}
	p := NewNotificationProcessor(q, &fakeEmail{err: notify.ErrEmailNotConfigured}, &fakeChat{}, logs, nil, nil)

	p.Handle(context.Background(), job(t, digest("sam@example.com")))

	assert.Empty(t, q.retried)
	assert.Equal(t, models.NotificationStatusDead, logs.entries[0].Status)
}

func TestProcessDiscordUsesRecipientChannel(t *testing.T) {
	chat := &fakeChat{}
	p := NewNotificationProcessor(&fakeQueue{max: 3}, &fakeEmail{}, chat, &fakeLogs{}, nil, nil)
	n := notify.Notification{
		Channel:   models.ChannelDiscord,
		Kind:      models.NotificationChecklistsApplied,
		Recipient: "123",
		Data:      map[string]string{"title": "Go Night", "template": "Standard", "checklists": "3", "tasks": "12"},
	}

	_, subject, err := p.Process(context.Background(), job(t, n))

	require.NoError(t, err)
	assert.Equal(t, "Checklists ready for Go Night", subject)
	require.Len(t, chat.sent, 1)
	assert.Contains(t, chat.sent[0], "123|**Checklists ready for Go Night**")
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := NewNotificationProcessor(&fakeQueue{max: 3}, &fakeEmail{}, &fakeChat{}, &fakeLogs{}, nil, nil)
	_, _, err := p.Process(context.Background(), &queue.Job{Type: "other"})
	var perm permanentError
	assert.ErrorAs(t, err, &perm)
}

func TestRunStopsOnCancel(t *testing.T) {
	email := &fakeEmail{}
	q := &fakeQueue{max: 3, jobs: []*queue.Job{job(t, digest("a@example.com"))}}
	p := NewNotificationProcessor(q, email, &fakeChat{}, &fakeLogs{}, nil, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.jobs) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
