package events

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/pkg/response"
)

// AddMemberRequest is the body for POST /events/:id/members.
type AddMemberRequest struct {
	MemberID string `json:"member_id" binding:"required,uuid"`
	CanEdit  bool   `json:"can_edit"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an event handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /events (event lead+).
func (h *Handler) Create(c *gin.Context) {
	var req EventInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Create(c.Request.Context(), middleware.MustActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, e)
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.MustActor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /events/:id. Mount behind RequireEventAccess(read).
func (h *Handler) Get(c *gin.Context) {
	e, err := h.svc.GetByID(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id. Mount behind RequireEventAccess(update).
func (h *Handler) Update(c *gin.Context) {
	var req EventUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.Update(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:id (admin+).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /events/:id/members. Mount behind RequireEventAccess(read).
func (h *Handler) ListMembers(c *gin.Context) {
	list, err := h.svc.ListMembers(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// AddMember handles POST /events/:id/members (event lead+).
func (h *Handler) AddMember(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "member_id required")
		return
	}
	memberID, _ := uuid.Parse(req.MemberID)
	m, err := h.svc.AddMember(c.Request.Context(), middleware.MustActor(c), eventID, memberID, req.CanEdit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}

// RemoveMember handles DELETE /events/:id/members/:memberId (event lead+).
func (h *Handler) RemoveMember(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	memberID, err := uuid.Parse(c.Param("memberId"))
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if err := h.svc.RemoveMember(c.Request.Context(), middleware.MustActor(c), eventID, memberID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
