package ws

import (
	"encoding/json"
	"errors"

	"duel_arena/internal/game"
	"duel_arena/internal/match"
	"duel_arena/internal/ports"
)

// входящее сообщение клиента
type inbound struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId"`
	Password string          `json:"password"`
	Value    json.RawMessage `json:"value"`
}

var errInvalidRequest = errors.New("некорректный запрос")

// ErrorCode переводит ошибку в код для клиента
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, match.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, match.ErrRoomFull):
		return "room_full"
	case errors.Is(err, match.ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, match.ErrMatchAlreadyStarted):
		return "match_already_started"
	case errors.Is(err, match.ErrParticipantNotInRoom):
		return "participant_not_in_room"
	case errors.Is(err, ports.ErrAuthFailure):
		return "auth_failure"
	default:
		return "invalid_request"
	}
}

func (c *Client) sendError(reqType string, err error) {
	c.sendJSON(Envelope{Type: "error", Payload: map[string]any{
		"request": reqType,
		"code":    ErrorCode(err),
		"message": err.Error(),
	}})
}

func (h *Hub) dispatch(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		c.sendError("", errInvalidRequest)
		return
	}

	rec, ok := h.tracker.Identity(c.ID)
	if !ok {
		c.sendError(msg.Type, ports.ErrAuthFailure)
		return
	}
	id := ports.Identity{ParticipantID: rec.ParticipantID, DisplayName: rec.DisplayName}

	if rec.RoomID == "" && (msg.Type == "ready" || msg.Type == "action" || msg.Type == "loaded") {
		c.sendError(msg.Type, match.ErrParticipantNotInRoom)
		return
	}

	var err error
	switch msg.Type {
	case "ping":
		c.sendJSON(Envelope{Type: "pong"})
	case "join":
		err = h.join(c, rec.RoomID, id, msg)
	case "leave":
		if rec.RoomID == "" {
			err = match.ErrParticipantNotInRoom
			break
		}
		if err = h.rooms.LeaveRoom(rec.RoomID, id.ParticipantID); err == nil || errors.Is(err, match.ErrRoomNotFound) {
			h.tracker.Unbind(c.ID)
			c.sendJSON(Envelope{Type: "left", RoomID: rec.RoomID})
			err = nil
		}
	case "ready":
		ready := true
		if len(msg.Value) > 0 {
			if jerr := json.Unmarshal(msg.Value, &ready); jerr != nil {
				err = errInvalidRequest
				break
			}
		}
		err = h.rooms.SetReady(rec.RoomID, id.ParticipantID, ready)
	case "action":
		var action string
		if jerr := json.Unmarshal(msg.Value, &action); jerr != nil || action == "" {
			err = errInvalidRequest
			break
		}
		err = h.rooms.SubmitAction(rec.RoomID, id.ParticipantID, game.Action(action))
	case "loaded":
		err = h.rooms.ClientLoaded(rec.RoomID, id.ParticipantID)
	case "snapshot":
		err = h.snapshot(c, rec.RoomID, msg.RoomID)
	default:
		err = errInvalidRequest
	}

	if err != nil {
		h.log.Debug("запрос отклонен", "conn", c.ID, "type", msg.Type, "error", err)
		c.sendError(msg.Type, err)
	}
}

// snapshot отдает состояние своей комнаты, а чужой - только если она публичная
func (h *Hub) snapshot(c *Client, bound, requested string) error {
	roomID, member := bound, true
	if roomID == "" {
		roomID, member = requested, false
	}
	snap, err := h.rooms.Snapshot(roomID)
	if err != nil {
		return err
	}
	if !member && snap.RoomInfo.IsPrivate {
		return match.ErrParticipantNotInRoom
	}
	c.sendJSON(Envelope{Type: "snapshot", RoomID: roomID, Payload: snap})
	return nil
}

// join переводит соединение в новую комнату, выходя из прежней
func (h *Hub) join(c *Client, current string, id ports.Identity, msg inbound) error {
	if msg.RoomID == "" {
		return match.ErrRoomNotFound
	}
	if current != "" && current != msg.RoomID {
		if err := h.rooms.LeaveRoom(current, id.ParticipantID); err != nil && !errors.Is(err, match.ErrParticipantNotInRoom) && !errors.Is(err, match.ErrRoomNotFound) {
			return err
		}
		h.tracker.Unbind(c.ID)
	}

	// привязка до входа, чтобы новый участник получил события своего входа
	if err := h.tracker.Bind(c.ID, msg.RoomID); err != nil {
		return err
	}
	snap, err := h.rooms.JoinRoom(msg.RoomID, id, msg.Password)
	if err != nil {
		h.tracker.Unbind(c.ID)
		return err
	}
	c.sendJSON(Envelope{Type: "joined", RoomID: msg.RoomID, Payload: snap})
	return nil
}
