package therapists

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the directory. Writes are admin-only through the server policy.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	g := r.Group("/api/therapists")
	{
		g.GET("", h.ListTherapists)
		g.POST("", h.CreateTherapist)
		g.GET("/:id", h.GetTherapist)
		g.PATCH("/:id", h.UpdateTherapist)
		g.POST("/:id/image-upload-url", h.ImageUploadURL)
	}
}
