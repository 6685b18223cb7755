package repository

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"duel_arena/internal/domain"
	"duel_arena/internal/ports"
)

// сколько опыта нужно с уровня n на n+1: 100 * n^1.2
const baseXPPerLevel = 100

// уровень выше не считаем, защита от бесконечного цикла
const maxLevel = 500

func xpForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(float64(baseXPPerLevel) * math.Pow(float64(level), 1.2))
}

// LevelForExperience - уровень для суммарного опыта, начиная с 1
func LevelForExperience(total int64) int {
	level := 1
	need := xpForNextLevel(level)
	for total >= need && level < maxLevel {
		total -= need
		level++
		need = xpForNextLevel(level)
	}
	return level
}

// UnlockedBetween - награды за уровни из (from, to], по возрастанию уровня
func UnlockedBetween(from, to int) []string {
	var levels []int
	for lvl := range domain.LevelRewards {
		if lvl > from && lvl <= to {
			levels = append(levels, lvl)
		}
	}
	sort.Ints(levels)
	out := make([]string, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, domain.LevelRewards[lvl])
	}
	return out
}

// ProgressRepository ведет опыт игроков, реализует ports.RewardIssuer
type ProgressRepository struct {
	db    *pgxpool.Pool
	audit *AuditRepository
}

func NewProgressRepository(db *pgxpool.Pool, audit *AuditRepository) *ProgressRepository {
	return &ProgressRepository{db: db, audit: audit}
}

// GrantExperience начисляет опыт под блокировкой строки и пересчитывает уровень
func (r *ProgressRepository) GrantExperience(ctx context.Context, participantID string, amount int64) (ports.RewardGrant, error) {
	if amount < 0 {
		amount = 0
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, "begin tx: "+err.Error())
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO player_progress (participant_id) VALUES ($1)
		ON CONFLICT (participant_id) DO NOTHING
	`, participantID); err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, "ensure progress: "+err.Error())
	}

	var prog domain.PlayerProgress
	if err := tx.QueryRow(ctx, `
		SELECT participant_id, experience, level, matches_played
		FROM player_progress
		WHERE participant_id = $1
		FOR UPDATE
	`, participantID).Scan(&prog.ParticipantID, &prog.Experience, &prog.Level, &prog.MatchesPlayed); err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, "lock progress: "+err.Error())
	}

	oldLevel := prog.Level
	prog.Experience += amount
	prog.MatchesPlayed++
	prog.Level = LevelForExperience(prog.Experience)
	if prog.Level < oldLevel {
		prog.Level = oldLevel
	}

	if _, err := tx.Exec(ctx, `
		UPDATE player_progress
		SET experience = $2, level = $3, matches_played = $4, updated_at = NOW()
		WHERE participant_id = $1
	`, participantID, prog.Experience, prog.Level, prog.MatchesPlayed); err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, "update progress: "+err.Error())
	}

	grant := ports.RewardGrant{
		NewLevel:        prog.Level,
		LeveledUp:       prog.Level > oldLevel,
		UnlockedRewards: UnlockedBetween(oldLevel, prog.Level),
	}

	action := domain.AuditActionExperience
	if grant.LeveledUp {
		action = domain.AuditActionLevelUp
	}
	if err := r.audit.CreateWithTx(ctx, tx, &domain.AuditLog{
		ParticipantID: participantID,
		Action:        action,
		Category:      domain.AuditCategoryProgress,
		Details: map[string]any{
			"amount":    amount,
			"level":     prog.Level,
			"old_level": oldLevel,
			"unlocked":  grant.UnlockedRewards,
		},
	}); err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, err.Error())
	}

	if err := tx.Commit(ctx); err != nil {
		return ports.RewardGrant{}, eris.Wrap(ports.ErrRewardFailure, "commit: "+err.Error())
	}
	return grant, nil
}

// Get возвращает прогресс участника, для новичка - уровень 1
func (r *ProgressRepository) Get(ctx context.Context, participantID string) (domain.PlayerProgress, error) {
	prog := domain.PlayerProgress{ParticipantID: participantID, Level: 1}
	err := r.db.QueryRow(ctx, `
		SELECT experience, level, matches_played, updated_at
		FROM player_progress WHERE participant_id = $1
	`, participantID).Scan(&prog.Experience, &prog.Level, &prog.MatchesPlayed, &prog.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return prog, nil
	}
	if err != nil {
		return prog, eris.Wrap(err, "get progress")
	}
	return prog, nil
}

// Top - лучшие игроки по опыту
func (r *ProgressRepository) Top(ctx context.Context, limit int) ([]domain.PlayerProgress, error) {
	rows, err := r.db.Query(ctx, `
		SELECT participant_id, experience, level, matches_played, updated_at
		FROM player_progress
		ORDER BY experience DESC, participant_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "query leaderboard")
	}
	defer rows.Close()

	var out []domain.PlayerProgress
	for rows.Next() {
		var p domain.PlayerProgress
		if err := rows.Scan(&p.ParticipantID, &p.Experience, &p.Level, &p.MatchesPlayed, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "scan leaderboard")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "iterate leaderboard")
}
