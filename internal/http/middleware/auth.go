package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"duel_arena/internal/logger"
	"duel_arena/internal/ports"
)

const (
	CtxParticipantID = "participant_id"
	CtxDisplayName   = "display_name"
)

// Auth пропускает запрос только с валидным Bearer-токеном
func Auth(resolver ports.IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "токен обязателен", "code": "auth_failure"})
			return
		}

		id, err := resolver.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "неверный токен", "code": "auth_failure"})
			return
		}

		c.Set(CtxParticipantID, id.ParticipantID)
		c.Set(CtxDisplayName, id.DisplayName)
		log := logger.WithContext(c.Request.Context()).With("participant", id.ParticipantID)
		c.Request = c.Request.WithContext(logger.IntoContext(c.Request.Context(), log))
		c.Next()
	}
}

// ParticipantID достает участника, положенного Auth
func ParticipantID(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxParticipantID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
