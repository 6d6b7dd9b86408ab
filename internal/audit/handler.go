package audit

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Lister is the read side of the audit store.
type Lister interface {
	List(ctx context.Context, f Filter) ([]models.AuditLog, int, error)
}

// Handler serves the audit query endpoint.
type Handler struct {
	repo   Lister
	names  *NameRegistry
	logger *zap.Logger
}

// NewHandler creates an audit handler.
func NewHandler(repo Lister, names *NameRegistry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, names: names, logger: logger}
}

// List handles GET /audit-logs?entity_type=&user_id=&entity_id=&page=&limit= (admin only).
func (h *Handler) List(c *gin.Context) {
	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		response.BadRequest(c, "invalid page")
		return
	}
	limit, err := positiveQuery(c, "limit", defaultPageSize)
	if err != nil {
		response.BadRequest(c, "invalid limit")
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	f := Filter{Limit: limit, Offset: (page - 1) * limit}
	if v := c.Query("entity_type"); v != "" {
		t := models.EntityType(v)
		if !validEntityType(t) {
			response.BadRequest(c, "invalid entity_type")
			return
		}
		f.EntityType = &t
	}
	if v := c.Query("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid user_id")
			return
		}
		f.UserID = &id
	}
	if v := c.Query("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid entity_id")
			return
		}
		f.EntityID = &id
	}

	logs, total, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list audit logs failed", zap.Error(err))
		response.Internal(c, "failed to load audit logs")
		return
	}
	if h.names != nil {
		h.names.Enrich(c.Request.Context(), logs)
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	response.OK(c, response.Page{Items: logs, Total: total, Page: page, Limit: limit})
}

func positiveQuery(c *gin.Context, key string, fallback int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

func validEntityType(t models.EntityType) bool {
	for _, known := range models.EntityTypes() {
		if t == known {
			return true
		}
	}
	return false
}
