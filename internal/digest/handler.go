package digest

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/pkg/response"
)

// Handler exposes the digest as a cron endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a digest handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// WeeklyDigest handles POST /cron/weekly-digest. Mount behind RequireCronSecret.
func (h *Handler) WeeklyDigest(c *gin.Context) {
	summary, err := h.svc.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("weekly digest failed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}
