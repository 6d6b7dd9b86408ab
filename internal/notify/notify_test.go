package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/meetup-ops/backend/config"
	"github.com/meetup-ops/backend/internal/metrics"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/queue"
)

type fakeEnqueuer struct {
	queued []any
	err    error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, queueName string, jobType queue.JobType, payload any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.queued = append(f.queued, payload)
	return "job-1", nil
}

func TestDispatchEnqueues(t *testing.T) {
	q := &fakeEnqueuer{}
	m := metrics.New(prometheus.NewRegistry())
	d := NewQueueDispatcher(q, nil, m)

	d.Dispatch(context.Background(), Notification{Channel: models.ChannelEmail, Kind: models.NotificationWeeklyDigest, Recipient: "a@example.com"})

	require.Len(t, q.queued, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsQueued.WithLabelValues(models.ChannelEmail, "ok")))
}

func TestDispatchSwallowsEnqueueFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := NewQueueDispatcher(&fakeEnqueuer{err: errors.New("redis down")}, zap.New(core), nil)

	assert.NotPanics(t, func() {
		d.Dispatch(context.Background(), Notification{Channel: models.ChannelDiscord, Kind: models.NotificationChecklistsApplied})
	})
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification enqueue failed", logs.All()[0].Message)
}

func TestRenderKnownKinds(t *testing.T) {
	subject, body, err := Render(Notification{
		Kind: models.NotificationVolunteerAssigned,
		Data: map[string]string{"name": "Sam", "title": "Go Night", "date": "2026-06-15", "role": "door"},
	})
	require.NoError(t, err)
	assert.Equal(t, "You're volunteering at Go Night", subject)
	assert.Contains(t, body, "as door")

	_, _, err = Render(Notification{Kind: "nope"})
	assert.Error(t, err)
}

func TestRenderTaskAssigned(t *testing.T) {
	subject, body, err := Render(Notification{
		Kind: models.NotificationTaskAssigned,
		Data: map[string]string{"name": "Ana", "task": "Order pizza", "title": "Go Night", "deadline": "Mon 8 Jun 2026"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New task for Go Night: Order pizza", subject)
	assert.Contains(t, body, "Hi Ana,")
	assert.Contains(t, body, "Due: Mon 8 Jun 2026")

	subject, body, err = Render(Notification{
		Kind: models.NotificationTaskAssigned,
		Data: map[string]string{"name": "Ana", "task": "Order pizza", "title": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "New task: Order pizza", subject)
	assert.NotContains(t, body, "Due:")
}

func TestDiscordSendPostsToChannel(t *testing.T) {
	var gotPath, gotAuth, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotContent = body["content"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDiscordSender(config.DiscordConfig{BotToken: "tok", DefaultChannelID: "42", APIBaseURL: srv.URL + "/"}, srv.Client())
	require.NoError(t, d.Send(context.Background(), "", "hello"))
	assert.Equal(t, "/channels/42/messages", gotPath)
	assert.Equal(t, "Bot tok", gotAuth)
	assert.Equal(t, "hello", gotContent)
}

func TestDiscordSendReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "missing access", http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDiscordSender(config.DiscordConfig{BotToken: "tok", APIBaseURL: srv.URL}, srv.Client())
	err := d.Send(context.Background(), "7", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDiscordSendUnconfigured(t *testing.T) {
	d := NewDiscordSender(config.DiscordConfig{}, nil)
	assert.ErrorIs(t, d.Send(context.Background(), "", "hi"), ErrDiscordNotConfigured)
}

func TestSMTPSend(t *testing.T) {
	s := NewSMTPSender(config.EmailConfig{FromAddress: "ops@example.com", FromName: "Meetup Ops", SMTPHost: "mail.local", SMTPPort: 2525})
	var gotAddr string
	var gotMsg []byte
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		return nil
	}
	require.NoError(t, s.Send(context.Background(), "sam@example.com", "Hi", "line1\nline2"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	msg := string(gotMsg)
	assert.Contains(t, msg, "From: Meetup Ops <ops@example.com>\r\n")
	assert.True(t, strings.HasSuffix(msg, "line1\r\nline2"))
}

func TestSMTPSendUnconfigured(t *testing.T) {
	s := NewSMTPSender(config.EmailConfig{})
	assert.ErrorIs(t, s.Send(context.Background(), "a@b.c", "s", "b"), ErrEmailNotConfigured)
}

func TestBuildMessageStripsSubjectNewlines(t *testing.T) {
	msg := string(buildMessage("", "ops@example.com", "a@b.c", "one\ntwo", "body", time.Unix(0, 0)))
	assert.Contains(t, msg, "Subject: one two\r\n")
	assert.Contains(t, msg, "From: ops@example.com\r\n")
}
