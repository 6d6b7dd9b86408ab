package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/meetup-ops/backend/internal/access"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

// RequireMinimumRole allows only callers whose global role ranks at or above required.
func RequireMinimumRole(required models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !access.HasMinimumRole(actor.Role, required) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
