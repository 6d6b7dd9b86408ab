package notify

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

// LogLister reads delivery logs.
type LogLister interface {
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.NotificationLog, error)
}

// Handler serves notification log endpoints.
type Handler struct {
	repo   LogLister
	logger *zap.Logger
}

// NewHandler creates a notification logs handler.
func NewHandler(repo LogLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListByEvent handles GET /events/:id/notifications. Mount behind RequireEventAccess(update).
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID := middleware.EventID(c)
	logs, err := h.repo.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list notification logs failed", zap.Error(err), zap.String("event_id", eventID.String()))
		response.Internal(c, "failed to load notification logs")
		return
	}
	response.OK(c, logs)
}
