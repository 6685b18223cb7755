package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// содержит зависимости для обработки WebSocket
type WSHandler struct {
	Hub           *Hub
	AllowedOrigin string
}

func NewWSHandler(hub *Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{Hub: hub, AllowedOrigin: allowedOrigin}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (h *WSHandler) HandleWS() gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if h.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == h.AllowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "токен обязателен", "code": "auth_failure"})
			return
		}

		connID := uuid.NewString()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		rec, err := h.Hub.tracker.Connect(ctx, connID, token)
		cancel()
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "неверный токен", "code": ErrorCode(err)})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.Hub.log.Warn("ошибка обновления ws", "error", err)
			h.Hub.tracker.Disconnect(connID)
			return
		}

		client := NewClient(connID, conn, h.Hub)
		client.sendJSON(Envelope{Type: "welcome", RoomID: rec.RoomID, Payload: rec})
		if rec.RoomID != "" {
			// вернулся в окне переподключения
			if snap, err := h.Hub.rooms.Snapshot(rec.RoomID); err == nil {
				client.sendJSON(Envelope{Type: "snapshot", RoomID: rec.RoomID, Payload: snap})
			}
		}
		go client.Run()
	}
}
