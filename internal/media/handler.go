package media

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meetup-ops/backend/internal/middleware"
	"github.com/meetup-ops/backend/pkg/response"
)

// UploadURLRequest is the body for POST /{folder}/:id/photo/upload-url.
type UploadURLRequest struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

// AttachRequest is the body for PUT /{folder}/:id/photo.
type AttachRequest struct {
	Key string `json:"key" binding:"required"`
}

// Handler serves the photo endpoints of one directory. Routes use the :id param for the owner.
type Handler struct {
	photos *Photos
}

// NewHandler creates a photo handler.
func NewHandler(photos *Photos) *Handler {
	return &Handler{photos: photos}
}

func ownerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// UploadURL handles POST /{folder}/:id/photo/upload-url.
func (h *Handler) UploadURL(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	up, err := h.photos.RequestUpload(c.Request.Context(), id, req.ContentType, req.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, up)
}

// Upload handles POST /{folder}/:id/photo (multipart form field "file").
func (h *Handler) Upload(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	rc, err := file.Open()
	if err != nil {
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()
	key, err := h.photos.Upload(c.Request.Context(), middleware.MustActor(c).UserID, id,
		file.Header.Get("Content-Type"), file.Filename, file.Size, rc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"key": key})
}

// Attach handles PUT /{folder}/:id/photo after a presigned upload finished.
func (h *Handler) Attach(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}
	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "key required")
		return
	}
	if err := h.photos.Attach(c.Request.Context(), middleware.MustActor(c).UserID, id, req.Key); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"key": req.Key})
}

// Download handles GET /{folder}/:id/photo.
func (h *Handler) Download(c *gin.Context) {
	id, ok := ownerID(c)
	if !ok {
		return
	}
	url, err := h.photos.DownloadURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"url": url})
}
