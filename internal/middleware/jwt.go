package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

const (
	// ContextActor is the key for the authenticated *models.Actor in gin context.
	ContextActor = "actor"
)

// Authenticator turns a bearer token into the caller's identity. Implementations must
// reject tokens whose user no longer exists or has been soft-deleted.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Actor, error)
}

// JWT returns a middleware that validates the bearer token and sets the actor in context.
func JWT(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		actor, err := authn.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextActor, actor)
		c.Next()
	}
}

// CurrentActor returns the authenticated actor, if any.
func CurrentActor(c *gin.Context) (*models.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*models.Actor)
	return actor, ok && actor != nil
}

// MustActor returns the actor set by JWT. Only call behind the JWT middleware.
func MustActor(c *gin.Context) *models.Actor {
	return c.MustGet(ContextActor).(*models.Actor)
}
