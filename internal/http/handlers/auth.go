package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"duel_arena/internal/domain"
	"duel_arena/internal/service"
)

// Вход через Telegram WebApp: init data -> токен участника
func (h *Handler) LoginTelegram(c *gin.Context) {
	var req struct {
		InitData string `json:"initData" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "initData обязателен", "code": "invalid_request"})
		return
	}

	sess, err := h.Auth.LoginTelegram(req.InitData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInitDataExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "init data устарели", "code": "auth_failure"})
		case errors.Is(err, service.ErrInvalidInitData):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверные init data", "code": "auth_failure"})
		default:
			h.Log.Error("ошибка выдачи токена", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Create(c.Request.Context(), &domain.AuditLog{
			ParticipantID: sess.ParticipantID,
			Action:        domain.AuditActionLogin,
			Category:      domain.AuditCategoryAuth,
			Details:       map[string]any{"ip": c.ClientIP()},
		}); err != nil {
			h.Log.Warn("не удалось записать аудит входа", "error", err)
		}
	}

	c.JSON(http.StatusOK, sess)
}
