package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/pkg/response"
)

// ContextEventID is the key for the authorized event ID in gin context.
const ContextEventID = "event_id"

// EventAccessChecker is satisfied by *access.Resolver.
type EventAccessChecker interface {
	CanUserAccessEvent(ctx context.Context, userID, eventID uuid.UUID, mode access.Mode) bool
}

// RequireEventAccess checks the caller against the event named by the :id route param.
// Missing events and missing rights both answer 403 so existence is not leaked.
func RequireEventAccess(checker EventAccessChecker, mode access.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		eventID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			response.BadRequest(c, "invalid event id")
			c.Abort()
			return
		}
		if !checker.CanUserAccessEvent(c.Request.Context(), actor.UserID, eventID, mode) {
			response.Forbidden(c, "not authorized for this event")
			c.Abort()
			return
		}
		c.Set(ContextEventID, eventID)
		c.Next()
	}
}

// EventID returns the event ID set by RequireEventAccess.
func EventID(c *gin.Context) uuid.UUID {
	return c.MustGet(ContextEventID).(uuid.UUID)
}
