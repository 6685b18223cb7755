package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"duel_arena/internal/domain"
	"duel_arena/internal/http/middleware"
)

// Прогресс текущего участника. Без базы - всегда первый уровень
func (h *Handler) MyProgress(c *gin.Context) {
	pid, ok := middleware.ParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth_failure"})
		return
	}
	if h.Progress == nil {
		c.JSON(http.StatusOK, domain.PlayerProgress{ParticipantID: pid, Level: 1})
		return
	}

	prog, err := h.Progress.Get(c.Request.Context(), pid)
	if err != nil {
		h.Log.Error("ошибка чтения прогресса", "error", err, "participant", pid)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, prog)
}

// список лучших игроков по опыту
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 100
	}
	if h.Progress == nil {
		c.JSON(http.StatusOK, gin.H{"leaderboard": []domain.PlayerProgress{}})
		return
	}

	top, err := h.Progress.Top(c.Request.Context(), limit)
	if err != nil {
		h.Log.Error("ошибка чтения рейтинга", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}
	if top == nil {
		top = []domain.PlayerProgress{}
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}

func (h *Handler) Health(c *gin.Context) {
	st := h.Registry.Stats()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.Version, "rooms": st.Rooms})
}
