package users

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mindsage/internal/auth"
	"mindsage/internal/respond"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Me handles GET /api/me
func (h *Handler) Me(c *gin.Context) {
	user := auth.UserFrom(c)
	if user == nil {
		respond.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), user)
	if err != nil {
		respond.Internal(c, h.logger, "fetch user profile", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdatePreferences handles PATCH /api/me/preferences
func (h *Handler) UpdatePreferences(c *gin.Context) {
	user := auth.UserFrom(c)
	if user == nil {
		respond.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req UpdatePreferencesRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	profile, err := h.service.UpdatePreferences(c.Request.Context(), user, req)
	if err != nil {
		respond.Internal(c, h.logger, "update user preferences", err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// ListAvatars handles GET /api/avatars
func (h *Handler) ListAvatars(c *gin.Context) {
	c.JSON(http.StatusOK, Avatars)
}

func RegisterRoutes(r gin.IRouter, h *Handler) {
	r.GET("/api/me", h.Me)
	r.PATCH("/api/me/preferences", h.UpdatePreferences)
	r.GET("/api/avatars", h.ListAvatars)
}
