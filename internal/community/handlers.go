package community

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"mindsage/internal/auth"
	"mindsage/internal/respond"
)

// Handler handles HTTP requests for the community feed
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

// ListPosts handles GET /api/community?tag=
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.service.List(c.Request.Context(), c.Query("tag"))
	if err != nil {
		respond.Degraded(c, h.logger, "community", err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// CreatePost handles POST /api/community
func (h *Handler) CreatePost(c *gin.Context) {
	user := auth.UserFrom(c)
	if user == nil {
		respond.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreatePostRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	post, err := h.service.Create(c.Request.Context(), user.ID, req)
	if err != nil {
		respond.Internal(c, h.logger, "create community post", err)
		return
	}
	c.JSON(http.StatusCreated, post.View())
}

// HidePost handles PATCH /api/community/:id/hide
func (h *Handler) HidePost(c *gin.Context) {
	h.moderate(c, h.service.Hide)
}

// ApprovePost handles PATCH /api/community/:id/approve
func (h *Handler) ApprovePost(c *gin.Context) {
	h.moderate(c, h.service.Approve)
}

func (h *Handler) moderate(c *gin.Context, action func(ctx context.Context, actorID, postID string) (*Post, error)) {
	var actorID string
	if user := auth.UserFrom(c); user != nil {
		actorID = user.ID
	}

	post, err := action(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			respond.Error(c, http.StatusNotFound, "Post not found")
			return
		}
		respond.Internal(c, h.logger, "moderate community post", err)
		return
	}
	c.JSON(http.StatusOK, post.View())
}

// React handles POST /api/community/:id/react
func (h *Handler) React(c *gin.Context) {
	user := auth.UserFrom(c)
	if user == nil {
		respond.Error(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ReactRequest
	if !respond.BindJSON(c, &req) {
		return
	}

	resp, err := h.service.React(c.Request.Context(), user.ID, c.Param("id"), req.Type)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			respond.Error(c, http.StatusNotFound, "Post not found")
			return
		}
		respond.Internal(c, h.logger, "react to community post", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
