package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mindsage/internal/policy"
	"mindsage/internal/respond"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
)

// Enforce gates every request by the access level table assigns to its method and path.
// Public routes still get the user attached when a valid token is present.
func (g *Gate) Enforce(table *policy.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		access := table.Resolve(c.Request.Method, c.Request.URL.Path)
		user := g.CurrentUser(c.Request.Context(), c.GetHeader("Authorization"))
		if user != nil {
			c.Set(userKey, user)
			c.Set(userIDKey, user.ID)
		}

		switch access {
		case policy.Authenticated:
			if user == nil {
				g.onDecision(access, OutcomeUnauthorized)
				respond.Abort(c, http.StatusUnauthorized, "Unauthorized")
				return
			}
		case policy.Admin:
			if user == nil {
				g.onDecision(access, OutcomeUnauthorized)
				respond.Abort(c, http.StatusUnauthorized, "Unauthorized - Admin access required")
				return
			}
			if user.Role != RoleAdmin {
				g.logger.WarnContext(c.Request.Context(), "non-admin attempted privileged operation",
					"user_id", user.ID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				g.onDecision(access, OutcomeForbidden)
				respond.Abort(c, http.StatusUnauthorized, "Unauthorized - Admin access required")
				return
			}
		default:
			if user == nil {
				g.onDecision(access, OutcomeAnonymous)
				c.Next()
				return
			}
		}

		g.onDecision(access, OutcomeAllowed)
		c.Next()
	}
}

// UserFrom returns the session user attached by Enforce, or nil.
func UserFrom(c *gin.Context) *SessionUser {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*SessionUser)
	return u
}
