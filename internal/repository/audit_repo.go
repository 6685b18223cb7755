package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"duel_arena/internal/domain"
)

// отвечает за операции с базой данных для логов аудита
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// создает новую запись в логе аудита
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.db.Exec(ctx, insertAudit, nullable(log.ParticipantID), log.Action, log.Category, detailsJSON(log.Details))
	return eris.Wrap(err, "insert audit log")
}

// то же самое внутри транзакции
func (r *AuditRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, log *domain.AuditLog) error {
	_, err := tx.Exec(ctx, insertAudit, nullable(log.ParticipantID), log.Action, log.Category, detailsJSON(log.Details))
	return eris.Wrap(err, "insert audit log")
}

// возвращает логи аудита для участника
func (r *AuditRepository) GetByParticipant(ctx context.Context, participantID string, limit int) ([]*domain.AuditLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(participant_id, ''), action, category, details, created_at
		FROM audit_logs
		WHERE participant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, participantID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "query audit logs")
	}
	defer rows.Close()

	return scanAuditLogs(rows)
}

const insertAudit = `
	INSERT INTO audit_logs (participant_id, action, category, details)
	VALUES ($1, $2, $3, $4)
`

func detailsJSON(details map[string]any) []byte {
	if details == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(details)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// преобразует строки из БД в структуры AuditLog
func scanAuditLogs(rows pgx.Rows) ([]*domain.AuditLog, error) {
	var logs []*domain.AuditLog
	for rows.Next() {
		var log domain.AuditLog
		var raw []byte
		if err := rows.Scan(&log.ID, &log.ParticipantID, &log.Action, &log.Category, &raw, &log.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "scan audit log")
		}
		if err := json.Unmarshal(raw, &log.Details); err != nil {
			log.Details = make(map[string]any)
		}
		logs = append(logs, &log)
	}
	return logs, eris.Wrap(rows.Err(), "iterate audit logs")
}
