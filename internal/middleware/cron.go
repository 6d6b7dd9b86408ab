package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meetup-ops/backend/pkg/response"
)

// RequireCronSecret guards scheduled-job endpoints with a shared secret passed as a
// bearer token or ?secret= query parameter. An empty configured secret rejects everything.
func RequireCronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.ServiceUnavailable(c, "cron secret not configured")
			c.Abort()
			return
		}
		provided := c.Query("secret")
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			provided = strings.TrimPrefix(header, "Bearer ")
		}
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			response.Unauthorized(c, "invalid cron secret")
			c.Abort()
			return
		}
		c.Next()
	}
}
