// Package ports - узкие интерфейсы, через которые движок матчей обращается наружу:
// идентификация, сохранение результатов, выдача наград и рассылка событий.
package ports

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAuthFailure        = errors.New("auth failure")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrRewardFailure      = errors.New("reward failure")
)

// Identity - кто стоит за соединением
type Identity struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
}

// IdentityResolver проверяет токен соединения
type IdentityResolver interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// ParticipantResult - итог матча для одного участника
type ParticipantResult struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	Score         int    `json:"score"`
	Experience    int64  `json:"experience"`
	Won           bool   `json:"won"`
}

// MatchResult передается в хранилище ровно один раз за жизнь матча
type MatchResult struct {
	MatchID      string              `json:"matchId"`
	RoomID       string              `json:"roomId"`
	Mode         string              `json:"mode"`
	WinnerID     *string             `json:"winnerId"`
	Draw         bool                `json:"draw"`
	Reason       string              `json:"reason"`
	Rounds       int                 `json:"rounds"`
	Participants []ParticipantResult `json:"participants"`
	FinishedAt   time.Time           `json:"finishedAt"`
}

type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, result MatchResult) error
}

// RewardGrant - ответ системы прогресса
type RewardGrant struct {
	NewLevel        int      `json:"newLevel"`
	LeveledUp       bool     `json:"leveledUp"`
	UnlockedRewards []string `json:"unlockedRewards"`
}

// RewardIssuer вызывается один раз на участника после сохранения результата
type RewardIssuer interface {
	GrantExperience(ctx context.Context, participantID string, amount int64) (RewardGrant, error)
}

// Emitter рассылает событие всем соединениям комнаты
type Emitter interface {
	Emit(roomID, event string, payload any)
}

// EmitterFunc позволяет использовать функцию как Emitter
type EmitterFunc func(roomID, event string, payload any)

func (f EmitterFunc) Emit(roomID, event string, payload any) { f(roomID, event, payload) }
