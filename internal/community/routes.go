package community

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the community endpoints. Access levels are enforced upstream by
// the auth gate; handlers only read the attached user.
func RegisterRoutes(r gin.IRouter, h *Handler) {
	g := r.Group("/api/community")
	{
		g.GET("", h.ListPosts)                 // GET /api/community?tag=
		g.POST("", h.CreatePost)               // POST /api/community
		g.PATCH("/:id/hide", h.HidePost)       // PATCH /api/community/:id/hide
		g.PATCH("/:id/approve", h.ApprovePost) // PATCH /api/community/:id/approve
		g.POST("/:id/react", h.React)          // POST /api/community/:id/react
	}
}
