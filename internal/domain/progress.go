package domain

import "time"

// PlayerProgress - опыт и уровень участника
type PlayerProgress struct {
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	Experience    int64     `db:"experience" json:"experience"`
	Level         int       `db:"level" json:"level"`
	MatchesPlayed int       `db:"matches_played" json:"matches_played"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// награды за достижение уровня
var LevelRewards = map[int]string{
	2:  "avatar_frame_bronze",
	5:  "emote_pack_basic",
	10: "avatar_frame_silver",
	20: "arena_skin_night",
	35: "avatar_frame_gold",
	50: "title_champion",
}
