package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	auth *Authenticator
}

func NewHandler(a *Authenticator) *Handler {
	return &Handler{auth: a}
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "admin_enabled": h.auth.Enabled()})
}

// Me returns the claims of the calling admin token
func (h *Handler) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		forbid(c, "missing claims")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"subject":    claims.Subject,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt,
	})
}
