package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appointment-scheduler/internal/auth"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AdminLogin exchanges the admin password for a short-lived token.
func (h *Handler) AdminLogin(c *gin.Context) {
	if !h.admin.Enabled() || h.admin.PasswordHash == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "admin login not configured"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password required"})
		return
	}

	if !auth.CheckPassword(h.admin.PasswordHash, req.Password) {
		h.log.Warn("admin login failed", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	tok, err := auth.MakeAdminToken(h.admin.Secret, h.admin.TokenTTL)
	if err != nil {
		h.internalError(c, "make admin token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}
