package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
)

type fakeLogs struct {
	byEvent map[uuid.UUID][]*models.NotificationLog
	err     error
}

func (f *fakeLogs) ListByEvent(_ context.Context, eventID uuid.UUID) ([]*models.NotificationLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byEvent[eventID], nil
}

func serveLogs(t *testing.T, repo LogLister, eventID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/events/:id/notifications", func(c *gin.Context) {
		c.Set(middleware.ContextEventID, eventID)
		c.Next()
	}, NewHandler(repo, nil).ListByEvent)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events/"+eventID.String()+"/notifications", nil))
	return w
}

func TestListByEventReturnsLogs(t *testing.T) {
	eventID := uuid.New()
	repo := &fakeLogs{byEvent: map[uuid.UUID][]*models.NotificationLog{
		eventID: {{ID: uuid.New(), EventID: &eventID, Channel: models.ChannelEmail, Kind: "volunteer_assigned", Recipient: "ana@example.org", Status: "sent", Attempt: 1}},
	}}

	w := serveLogs(t, repo, eventID)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool                     `json:"success"`
		Data    []models.NotificationLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ana@example.org", body.Data[0].Recipient)
}

func TestListByEventStoreFailure(t *testing.T) {
	w := serveLogs(t, &fakeLogs{err: errors.New("db down")}, uuid.New())
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
