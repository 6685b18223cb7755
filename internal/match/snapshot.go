package match

import (
	"time"

	"duel_arena/internal/game"
	"duel_arena/internal/ports"
)

// RoomInfo - краткое описание комнаты для лобби
type RoomInfo struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Mode                game.Mode `json:"mode"`
	MaxParticipants     int       `json:"maxParticipants"`
	CurrentParticipants int       `json:"currentParticipants"`
	IsPrivate           bool      `json:"isPrivate"`
	State               State     `json:"state"`
	CreatedAt           time.Time `json:"createdAt"`
}

type ParticipantView struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Ready       bool   `json:"ready"`
	Away        bool   `json:"away"`
	Submitted   bool   `json:"submitted"`
}

// Snapshot - полное состояние комнаты для клиента. Ходы текущего раунда не раскрываются
type Snapshot struct {
	State            State              `json:"state"`
	Mode             game.Mode          `json:"mode"`
	MatchID          string             `json:"matchId,omitempty"`
	Round            int                `json:"round"`
	Countdown        int                `json:"countdown"`
	Participants     []ParticipantView  `json:"participants"`
	ParticipantCount int                `json:"participantCount"`
	Readiness        map[string]bool    `json:"readiness"`
	RoundState       game.RoundState    `json:"roundState"`
	History          []game.RoundRecord `json:"history"`
	Result           *ports.MatchResult `json:"result,omitempty"`
	RoomInfo         RoomInfo           `json:"roomInfo"`
}

func (s *Session) infoLocked() RoomInfo {
	return RoomInfo{
		ID:                  s.id,
		Name:                s.cfg.Name,
		Mode:                s.strategy.Mode,
		MaxParticipants:     s.cfg.Capacity,
		CurrentParticipants: len(s.participants),
		IsPrivate:           s.cfg.IsPrivate,
		State:               s.state.name(),
		CreatedAt:           s.createdAt,
	}
}

func (s *Session) Info() RoomInfo {
	s.lock()
	defer s.unlock()
	return s.infoLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	views := make([]ParticipantView, 0, len(s.participants))
	readiness := make(map[string]bool, len(s.readiness))
	for _, p := range s.participants {
		_, submitted := s.pending[p.ID]
		views = append(views, ParticipantView{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Ready:       s.readiness[p.ID],
			Away:        s.away[p.ID],
			Submitted:   submitted,
		})
		readiness[p.ID] = s.readiness[p.ID]
	}

	history := make([]game.RoundRecord, len(s.history))
	copy(history, s.history)

	snap := Snapshot{
		State:            s.state.name(),
		Mode:             s.strategy.Mode,
		MatchID:          s.matchID,
		Round:            s.round,
		Countdown:        s.countdown,
		Participants:     views,
		ParticipantCount: len(s.participants),
		Readiness:        readiness,
		RoundState:       s.roundState.Clone(),
		History:          history,
		RoomInfo:         s.infoLocked(),
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	return snap
}

func (s *Session) Snapshot() Snapshot {
	s.lock()
	defer s.unlock()
	return s.snapshotLocked()
}
