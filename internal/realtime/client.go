package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client represents a single WebSocket connection watching an event.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	Role    models.Role
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
	logger  *zap.Logger
}

// NewUpgrader returns an upgrader accepting the given origins ("*" accepts any).
// Requests without an Origin header (non-browser clients) are accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowAll || allowed[origin]
		},
	}
}

// ServeWs handles GET /ws?event_id=&token=. The token is checked like a bearer token and
// the caller needs read access to the event.
func ServeWs(hub *Hub, upgrader *websocket.Upgrader, authn middleware.Authenticator, checker middleware.EventAccessChecker, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		eventIDStr := c.Query("event_id")
		token := c.Query("token")
		if eventIDStr == "" || token == "" {
			response.BadRequest(c, "event_id and token required")
			return
		}
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		actor, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		if !checker.CanUserAccessEvent(c.Request.Context(), actor.UserID, eventID, access.ModeRead) {
			response.Forbidden(c, "not authorized for this event")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:      uuid.New().String(),
			EventID: eventID,
			UserID:  actor.UserID,
			Role:    actor.Role,
			hub:     hub,
			conn:    conn,
			send:    make(chan WSMessage, 64),
			logger:  logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch msg.Event {
		case "join":
			c.hub.BroadcastToEventAndPublish(c.EventID, "presence", map[string]string{
				"user_id": c.UserID.String(),
				"role":    string(c.Role),
			})
		case "task_focus":
			// shows who is looking at a task; the feed is otherwise server-driven
			var payload struct {
				TaskID string `json:"task_id"`
			}
			if err := json.Unmarshal(msg.Data, &payload); err == nil {
				if _, err := uuid.Parse(payload.TaskID); err == nil {
					c.hub.BroadcastToEventAndPublish(c.EventID, "task_focus", map[string]string{
						"task_id": payload.TaskID,
						"user_id": c.UserID.String(),
					})
				}
			}
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
