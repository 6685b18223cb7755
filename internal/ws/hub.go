package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"duel_arena/internal/game"
	"duel_arena/internal/match"
	"duel_arena/internal/ports"
	"duel_arena/internal/presence"
)

var ErrClientGone = errors.New("клиент не подключен")

// Envelope - формат всех исходящих сообщений
type Envelope struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Rooms - операции реестра, которые вызывает транспорт
type Rooms interface {
	JoinRoom(roomID string, id ports.Identity, password string) (match.Snapshot, error)
	LeaveRoom(roomID, participantID string) error
	SetReady(roomID, participantID string, ready bool) error
	SubmitAction(roomID, participantID string, action game.Action) error
	ClientLoaded(roomID, participantID string) error
	Snapshot(roomID string) (match.Snapshot, error)
}

// Hub держит живые websocket-клиенты. Это Emitter для комнат
// и Transport для трекера присутствия
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client

	rooms   Rooms
	tracker *presence.Tracker
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "ws"),
		clients: make(map[string]*Client),
	}
}

// Attach замыкает цикл зависимостей: реестр и трекер создаются уже с хабом
func (h *Hub) Attach(rooms Rooms, tracker *presence.Tracker) {
	h.rooms = rooms
	h.tracker = tracker
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.ID]; ok && cur == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()

	h.tracker.Disconnect(c.ID)
}

func (h *Hub) client(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[connID]
}

// Emit сериализует событие сразу: payload может принадлежать сессии под ее mutex
func (h *Hub) Emit(roomID, event string, payload any) {
	msg, err := json.Marshal(Envelope{Type: event, RoomID: roomID, Payload: payload})
	if err != nil {
		h.log.Error("не удалось сериализовать событие", "event", event, "room", roomID, "error", err)
		return
	}

	conns := h.tracker.Connections(roomID)
	for _, id := range conns {
		if c := h.client(id); c != nil {
			c.enqueue(msg)
		}
	}
	if event == "room_closed" {
		for _, id := range conns {
			h.tracker.Unbind(id)
		}
	}
}

func (h *Hub) Probe(connID string) error {
	c := h.client(connID)
	if c == nil {
		return ErrClientGone
	}
	c.probe()
	return nil
}

func (h *Hub) Close(connID string) {
	if c := h.client(connID); c != nil {
		c.close()
	}
}

// CloseAll закрывает все соединения при остановке
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var (
	_ ports.Emitter      = (*Hub)(nil)
	_ presence.Transport = (*Hub)(nil)
)
