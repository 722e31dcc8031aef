package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mindsage/internal/identity"
	"mindsage/internal/respond"
)

// AuthCheck handles GET /api/auth-check. It is the only endpoint that reports why a token
// was rejected.
func (g *Gate) AuthCheck(c *gin.Context) {
	token := BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		respond.Error(c, http.StatusUnauthorized, "Missing authorization header")
		return
	}

	tok, err := g.verifier.VerifyIDToken(c.Request.Context(), token)
	if err != nil {
		msg := err.Error()
		var ie *identity.Error
		if errors.As(err, &ie) {
			msg = ie.Message
		}
		c.JSON(http.StatusUnauthorized, respond.ErrorResponse{
			Error: msg,
			Code:  identity.ErrorCode(err),
		})
		return
	}

	c.JSON(http.StatusOK, authCheckResponse{
		Success: true,
		UID:     tok.UID,
		Email:   tok.Email,
		Message: "Token verified successfully",
	})
}
