package domain

import "time"

// Журнал важных событий движка
type AuditLog struct {
	ID            int64          `db:"id" json:"id"`
	ParticipantID string         `db:"participant_id" json:"participant_id,omitempty"`
	Action        string         `db:"action" json:"action"`
	Category      string         `db:"category" json:"category"`
	Details       map[string]any `db:"details" json:"details"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Категории
const (
	AuditCategoryAuth     = "auth"
	AuditCategoryMatch    = "match"
	AuditCategoryProgress = "progress"
)

const (
	AuditActionLogin = "login"

	AuditActionMatchFinished = "match_finished"
	AuditActionMatchForfeit  = "match_forfeit"

	AuditActionExperience = "experience_granted"
	AuditActionLevelUp    = "level_up"
)
