package speakers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/pkg/response"
)

// LinkRequest is the body for POST /events/:id/speakers.
type LinkRequest struct {
	SpeakerID string `json:"speaker_id" binding:"required,uuid"`
	TalkTitle string `json:"talk_title"`
}

// Handler handles speaker HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a speaker handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /speakers.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /speakers/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid speaker id")
		return
	}
	sp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sp)
}

// Create handles POST /speakers (event lead+).
func (h *Handler) Create(c *gin.Context) {
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sp, err := h.svc.Create(c.Request.Context(), middleware.MustActor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sp)
}

// Update handles PUT /speakers/:id (event lead+).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid speaker id")
		return
	}
	var req Input
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sp, err := h.svc.Update(c.Request.Context(), middleware.MustActor(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sp)
}

// Delete handles DELETE /speakers/:id (event lead+).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid speaker id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByEvent handles GET /events/:id/speakers. Mount behind RequireEventAccess(read).
func (h *Handler) ListByEvent(c *gin.Context) {
	list, err := h.svc.ListByEvent(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Link handles POST /events/:id/speakers. Mount behind RequireEventAccess(update).
func (h *Handler) Link(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "speaker_id required")
		return
	}
	speakerID, _ := uuid.Parse(req.SpeakerID)
	l, err := h.svc.LinkToEvent(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), speakerID, req.TalkTitle)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, l)
}

// Unlink handles DELETE /events/:id/speakers/:speakerId. Mount behind RequireEventAccess(update).
func (h *Handler) Unlink(c *gin.Context) {
	speakerID, err := uuid.Parse(c.Param("speakerId"))
	if err != nil {
		response.BadRequest(c, "invalid speaker id")
		return
	}
	if err := h.svc.UnlinkFromEvent(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), speakerID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
