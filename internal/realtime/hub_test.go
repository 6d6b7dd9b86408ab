package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePubSub struct {
	published    []string
	publishErr   error
	subscribeErr error
	handlers     map[uuid.UUID]func(string, []byte)
	cancelled    int
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{handlers: map[uuid.UUID]func(string, []byte){}}
}

func (f *fakePubSub) PublishEventMessage(eventID uuid.UUID, msgType string, payload []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, msgType)
	if h, ok := f.handlers[eventID]; ok {
		h(msgType, payload)
	}
	return nil
}

func (f *fakePubSub) SubscribeEvent(eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.handlers[eventID] = handler
	return func() {
		f.cancelled++
		delete(f.handlers, eventID)
	}, nil
}

func testClient(eventID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), EventID: eventID, send: make(chan WSMessage, 4)}
}

func TestBroadcastLocalOnlyWithoutRedis(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	c := testClient(eventID)
	other := testClient(uuid.New())
	hub.Register(c)
	hub.Register(other)

	hub.BroadcastToEventAndPublish(eventID, "task_updated", map[string]string{"id": "1"})

	require.Len(t, c.send, 1)
	msg := <-c.send
	assert.Equal(t, "task_updated", msg.Event)
	assert.JSONEq(t, `{"id":"1"}`, string(msg.Data))
	assert.Empty(t, other.send)
}

func TestBroadcastGoesThroughRedisOnce(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)

	hub.BroadcastToEventAndPublish(eventID, "tasks_reset", []string{"a"})

	assert.Equal(t, []string{"tasks_reset"}, ps.published)
	assert.Len(t, c.send, 1, "delivered exactly once via the subscription")
}

func TestBroadcastFallsBackWhenPublishFails(t *testing.T) {
	ps := newFakePubSub()
	ps.publishErr = errors.New("redis down")
	hub := NewHub(nil, ps, ps)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)

	hub.BroadcastToEventAndPublish(eventID, "task_added", map[string]int{"n": 1})
	assert.Len(t, c.send, 1)
}

func TestBroadcastDeliversLocallyWhenSubscribeFailed(t *testing.T) {
	ps := newFakePubSub()
	ps.subscribeErr = errors.New("redis down")
	hub := NewHub(nil, ps, ps)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)

	hub.BroadcastToEventAndPublish(eventID, "task_updated", map[string]string{"id": "1"})

	assert.Equal(t, []string{"task_updated"}, ps.published)
	require.Len(t, c.send, 1)
	assert.Equal(t, "task_updated", (<-c.send).Event)
}

func TestRegisterRetriesFailedSubscription(t *testing.T) {
	ps := newFakePubSub()
	ps.subscribeErr = errors.New("redis down")
	hub := NewHub(nil, ps, ps)
	eventID := uuid.New()
	first, second := testClient(eventID), testClient(eventID)
	hub.Register(first)

	ps.subscribeErr = nil
	hub.Register(second)
	hub.BroadcastToEventAndPublish(eventID, "task_added", map[string]int{"n": 1})

	assert.Len(t, first.send, 1, "delivered once via the new subscription")
	assert.Len(t, second.send, 1)

	hub.Unregister(first)
	hub.Unregister(second)
	assert.Equal(t, 1, ps.cancelled)
}

func TestUnregisterCancelsSubscriptionWithLastClient(t *testing.T) {
	ps := newFakePubSub()
	hub := NewHub(nil, ps, ps)
	eventID := uuid.New()
	a, b := testClient(eventID), testClient(eventID)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.WatcherCount(eventID))

	hub.Unregister(a)
	assert.Zero(t, ps.cancelled)
	hub.Unregister(b)
	assert.Equal(t, 1, ps.cancelled)
	assert.Zero(t, hub.WatcherCount(eventID))
}

type stubAuthn struct{ actor *models.Actor }

func (s stubAuthn) Authenticate(_ context.Context, token string) (*models.Actor, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return s.actor, nil
}

type stubChecker struct{ allow bool }

func (s stubChecker) CanUserAccessEvent(context.Context, uuid.UUID, uuid.UUID, access.Mode) bool {
	return s.allow
}

func TestServeWsRejectsBeforeUpgrade(t *testing.T) {
	actor := &models.Actor{UserID: uuid.New(), Role: models.RoleVolunteer}
	eventID := uuid.New().String()
	tests := []struct {
		name  string
		query string
		allow bool
		want  int
	}{
		{"missing token", "?event_id=" + eventID, true, http.StatusBadRequest},
		{"bad event id", "?event_id=nope&token=good", true, http.StatusBadRequest},
		{"bad token", "?event_id=" + eventID + "&token=bad", true, http.StatusUnauthorized},
		{"no access", "?event_id=" + eventID + "&token=good", false, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ws", ServeWs(NewHub(nil, nil, nil), NewUpgrader([]string{"*"}), stubAuthn{actor}, stubChecker{tt.allow}, nil))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws"+tt.query, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestServeWsDeliversBroadcasts(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	actor := &models.Actor{UserID: uuid.New(), Role: models.RoleVolunteer}
	r := gin.New()
	r.GET("/ws", ServeWs(hub, NewUpgrader([]string{"*"}), stubAuthn{actor}, stubChecker{true}, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	eventID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=good&event_id=" + eventID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.WatcherCount(eventID) == 1 }, time.Second, 10*time.Millisecond)
	hub.BroadcastToEventAndPublish(eventID, "task_updated", map[string]string{"status": "DONE"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "task_updated", msg.Event)
	var data map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, "DONE", data["status"])
}

func TestUpgraderOrigins(t *testing.T) {
	u := NewUpgrader([]string{"https://ops.example.com"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, u.CheckOrigin(req))
	req.Header.Set("Origin", "https://ops.example.com")
	assert.True(t, u.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, u.CheckOrigin(req))
}
