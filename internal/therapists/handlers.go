package therapists

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mindsage/internal/respond"
)

// Handler handles HTTP requests for the therapist directory
type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// ListTherapists handles GET /api/therapists
func (h *Handler) ListTherapists(c *gin.Context) {
	therapists, err := h.service.List(c.Request.Context())
	if err != nil {
		respond.Degraded(c, h.logger, "therapists", err)
		return
	}
	c.JSON(http.StatusOK, therapists)
}

// GetTherapist handles GET /api/therapists/:id
func (h *Handler) GetTherapist(c *gin.Context) {
	therapist, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get therapist", err)
		return
	}
	c.JSON(http.StatusOK, therapist)
}

// CreateTherapist handles POST /api/therapists
func (h *Handler) CreateTherapist(c *gin.Context) {
	var req CreateTherapistRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	therapist, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "create therapist", err)
		return
	}
	c.JSON(http.StatusCreated, therapist)
}

// UpdateTherapist handles PATCH /api/therapists/:id
func (h *Handler) UpdateTherapist(c *gin.Context) {
	var req UpdateTherapistRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	therapist, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, "update therapist", err)
		return
	}
	c.JSON(http.StatusOK, therapist)
}

// ImageUploadURL handles POST /api/therapists/:id/image-upload-url
func (h *Handler) ImageUploadURL(c *gin.Context) {
	var req ImageUploadRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.ImageUploadURL(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, "presign therapist image", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrTherapistNotFound):
		respond.Error(c, http.StatusNotFound, "Therapist not found")
	case errors.Is(err, ErrStorageUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, "Image uploads are not available")
	default:
		respond.Internal(c, h.logger, op, err)
	}
}
