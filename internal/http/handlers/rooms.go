package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"duel_arena/internal/game"
	"duel_arena/internal/http/middleware"
	"duel_arena/internal/match"
)

type createRoomRequest struct {
	Name            string    `json:"name"`
	Mode            game.Mode `json:"mode"`
	IsPrivate       bool      `json:"isPrivate"`
	Password        string    `json:"password"`
	MaxParticipants int       `json:"maxParticipants"`
}

// Создание комнаты. Создатель не входит в нее автоматически, вход - через ws join
func (h *Handler) CreateRoom(c *gin.Context) {
	pid, _ := middleware.ParticipantID(c)

	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request", "code": "invalid_request"})
		return
	}
	if req.Password != "" && !req.IsPrivate {
		req.IsPrivate = true
	}

	s, err := h.Registry.CreateRoom(match.RoomConfig{
		Name:      req.Name,
		Mode:      req.Mode,
		IsPrivate: req.IsPrivate,
		Password:  req.Password,
		Capacity:  req.MaxParticipants,
	})
	if err != nil {
		if errors.Is(err, match.ErrInvalidCapacity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "в комнате ровно два места", "code": "invalid_request"})
			return
		}
		if errors.Is(err, game.ErrUnknownMode) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "неизвестный режим", "code": "invalid_request", "modes": game.Modes()})
			return
		}
		h.Log.Error("ошибка создания комнаты", "error", err, "participant", pid)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, s.Info())
}

// Публичные комнаты в ожидании игроков
func (h *Handler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Registry.ListPublic()})
}

func (h *Handler) GetRoom(c *gin.Context) {
	s, err := h.Registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "комната не найдена", "code": "room_not_found"})
		return
	}
	c.JSON(http.StatusOK, s.Info())
}
