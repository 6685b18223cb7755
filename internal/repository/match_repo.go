package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"duel_arena/internal/domain"
	"duel_arena/internal/ports"
)

// MatchRepository сохраняет итоги матчей, реализует ports.ResultRecorder
type MatchRepository struct {
	db    *pgxpool.Pool
	audit *AuditRepository
}

func NewMatchRepository(db *pgxpool.Pool, audit *AuditRepository) *MatchRepository {
	return &MatchRepository{db: db, audit: audit}
}

// RecordMatchResult пишет результат и запись аудита одной транзакцией.
// Повторная запись того же match_id ничего не меняет.
func (r *MatchRepository) RecordMatchResult(ctx context.Context, res ports.MatchResult) error {
	participants, err := json.Marshal(res.Participants)
	if err != nil {
		return eris.Wrap(ports.ErrPersistenceFailure, "marshal participants: "+err.Error())
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return eris.Wrap(ports.ErrPersistenceFailure, "begin tx: "+err.Error())
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO match_results (match_id, room_id, mode, winner_id, draw, reason, rounds, participants, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (match_id) DO NOTHING
	`, res.MatchID, res.RoomID, res.Mode, res.WinnerID, res.Draw, res.Reason, res.Rounds, participants, res.FinishedAt)
	if err != nil {
		return eris.Wrap(ports.ErrPersistenceFailure, "insert match result: "+err.Error())
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	action := domain.AuditActionMatchFinished
	if res.Reason == "forfeit" {
		action = domain.AuditActionMatchForfeit
	}
	details := map[string]any{
		"match_id": res.MatchID,
		"room_id":  res.RoomID,
		"mode":     res.Mode,
		"reason":   res.Reason,
		"rounds":   res.Rounds,
		"draw":     res.Draw,
	}
	if res.WinnerID != nil {
		details["winner_id"] = *res.WinnerID
	}
	for _, p := range res.Participants {
		entry := &domain.AuditLog{
			ParticipantID: p.ParticipantID,
			Action:        action,
			Category:      domain.AuditCategoryMatch,
			Details:       withScore(details, p),
		}
		if err := r.audit.CreateWithTx(ctx, tx, entry); err != nil {
			return eris.Wrap(ports.ErrPersistenceFailure, err.Error())
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(ports.ErrPersistenceFailure, "commit: "+err.Error())
	}
	return nil
}

func withScore(base map[string]any, p ports.ParticipantResult) map[string]any {
	out := make(map[string]any, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	out["score"] = p.Score
	out["won"] = p.Won
	return out
}
