package sop

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/pkg/response"
)

// ApplyRequest is the body for POST /events/:id/apply-template.
type ApplyRequest struct {
	TemplateID string `json:"template_id" binding:"required,uuid"`
}

// Handler handles SOP HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an SOP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ListTemplates handles GET /sop-templates.
func (h *Handler) ListTemplates(c *gin.Context) {
	list, err := h.svc.ListTemplates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GetTemplate handles GET /sop-templates/:id.
func (h *Handler) GetTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	t, err := h.svc.GetTemplate(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// CreateTemplate handles POST /sop-templates (event lead+).
func (h *Handler) CreateTemplate(c *gin.Context) {
	var req TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.CreateTemplate(c.Request.Context(), middleware.MustActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, t)
}

// UpdateTemplate handles PUT /sop-templates/:id (event lead+).
func (h *Handler) UpdateTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	var req TemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateTemplate(c.Request.Context(), middleware.MustActor(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}

// DeleteTemplate handles DELETE /sop-templates/:id (event lead+).
func (h *Handler) DeleteTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid template id")
		return
	}
	if err := h.svc.DeleteTemplate(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ApplyTemplate handles POST /events/:id/apply-template. Mount behind RequireEventAccess(update).
func (h *Handler) ApplyTemplate(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "template_id required")
		return
	}
	templateID, _ := uuid.Parse(req.TemplateID)
	lists, err := h.svc.ApplyTemplateToEvent(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), templateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lists)
}

// ListChecklists handles GET /events/:id/checklists. Mount behind RequireEventAccess(read).
func (h *Handler) ListChecklists(c *gin.Context) {
	lists, err := h.svc.ListChecklists(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, lists)
}

// UpdateTask handles PATCH /events/:id/tasks/:taskId. Mount behind RequireEventAccess(update).
func (h *Handler) UpdateTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskId"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	var req TaskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.svc.UpdateTask(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), taskID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, task)
}

// AddTask handles POST /events/:id/checklists/:checklistId/tasks. Mount behind RequireEventAccess(update).
func (h *Handler) AddTask(c *gin.Context) {
	checklistID, err := uuid.Parse(c.Param("checklistId"))
	if err != nil {
		response.BadRequest(c, "invalid checklist id")
		return
	}
	var req NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	task, err := h.svc.AddTask(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), checklistID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}
