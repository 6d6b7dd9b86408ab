package volunteers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/pkg/response"
)

// Handler handles volunteer and member HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a volunteer handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /volunteers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /volunteers/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer id")
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Create handles POST /volunteers (event lead+).
func (h *Handler) Create(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.Create(c.Request.Context(), middleware.MustActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, v)
}

// Update handles PUT /volunteers/:id (event lead+).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer id")
		return
	}
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.svc.Update(c.Request.Context(), middleware.MustActor(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /volunteers/:id (event lead+).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Promote handles POST /volunteers/:id/promote (admin+).
func (h *Handler) Promote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer id")
		return
	}
	p, err := h.svc.ConvertToMember(c.Request.Context(), middleware.MustActor(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// ListByEvent handles GET /events/:id/volunteers. Mount behind RequireEventAccess(read).
func (h *Handler) ListByEvent(c *gin.Context) {
	list, err := h.svc.ListByEvent(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Assign handles POST /events/:id/volunteers. Mount behind RequireEventAccess(update).
func (h *Handler) Assign(c *gin.Context) {
	var req AssignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "volunteer_id required")
		return
	}
	a, err := h.svc.Assign(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Unassign handles DELETE /events/:id/volunteers/:volunteerId. Mount behind RequireEventAccess(update).
func (h *Handler) Unassign(c *gin.Context) {
	volunteerID, err := uuid.Parse(c.Param("volunteerId"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer id")
		return
	}
	if err := h.svc.Unassign(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), volunteerID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListMembers handles GET /members.
func (h *Handler) ListMembers(c *gin.Context) {
	list, err := h.svc.ListMembers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// CreateMember handles POST /members (admin+).
func (h *Handler) CreateMember(c *gin.Context) {
	var req MemberInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	m, err := h.svc.CreateMember(c.Request.Context(), middleware.MustActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, m)
}
