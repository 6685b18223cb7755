package handlers

import (
	"context"
	"log/slog"

	"duel_arena/internal/domain"
	"duel_arena/internal/match"
	"duel_arena/internal/service"
)

// Progress - чтение прогресса игроков. nil, если база не настроена
type Progress interface {
	Get(ctx context.Context, participantID string) (domain.PlayerProgress, error)
	Top(ctx context.Context, limit int) ([]domain.PlayerProgress, error)
}

type Audit interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Handler - зависимости HTTP-ручек
type Handler struct {
	Registry *match.Registry
	Auth     *service.AuthService
	Progress Progress
	Audit    Audit
	Version  string
	Log      *slog.Logger
}
