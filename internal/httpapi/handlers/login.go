package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raffleri/raffleri/internal/auth"
)

type loginReq struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	if h.Cfg.AdminPasswordHash == "" {
		fail(c, http.StatusServiceUnavailable, 50301, "admin password is not configured")
		return
	}
	if !auth.CheckPassword(h.Cfg.AdminPasswordHash, req.Password) {
		fail(c, http.StatusUnauthorized, 40102, "wrong password")
		return
	}

	token, err := auth.SignJWT("admin", h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to sign token")
		return
	}

	ok(c, gin.H{"token": token})
}
