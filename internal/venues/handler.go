package venues

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/internal/models"
	"github.com/meetup-ops/backend/pkg/response"
)

// LinkRequest is the body for POST /events/:id/venues.
type LinkRequest struct {
	VenueID string               `json:"venue_id" binding:"required,uuid"`
	Status  models.PartnerStatus `json:"status"`
}

// StatusRequest is the body for PATCH /events/:id/venues/:venueId.
type StatusRequest struct {
	Status models.PartnerStatus `json:"status" binding:"required"`
}

// Handler handles venue HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a venue handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /venues.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /venues/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Create handles POST /venues (event lead+).
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

// Update handles PUT /venues/:id (event lead+).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
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

// Delete handles DELETE /venues/:id (event lead+).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.MustActor(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListPartners handles GET /events/:id/venues. Mount behind RequireEventAccess(read).
func (h *Handler) ListPartners(c *gin.Context) {
	list, err := h.svc.ListPartners(c.Request.Context(), middleware.EventID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// LinkPartner handles POST /events/:id/venues. Mount behind RequireEventAccess(update).
func (h *Handler) LinkPartner(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "venue_id required")
		return
	}
	venueID, _ := uuid.Parse(req.VenueID)
	p, err := h.svc.LinkPartner(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), venueID, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// UpdatePartnerStatus handles PATCH /events/:id/venues/:venueId. Mount behind RequireEventAccess(update).
func (h *Handler) UpdatePartnerStatus(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	if err := h.svc.UpdatePartnerStatus(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), venueID, req.Status); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"status": req.Status})
}

// UnlinkPartner handles DELETE /events/:id/venues/:venueId. Mount behind RequireEventAccess(update).
func (h *Handler) UnlinkPartner(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return
	}
	res, err := h.svc.UnlinkPartner(c.Request.Context(), middleware.MustActor(c), middleware.EventID(c), venueID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}
