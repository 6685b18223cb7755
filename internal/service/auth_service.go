package service

import (
	"strconv"
	"time"
)

// AuthService обменивает init data Telegram на токен участника
type AuthService struct {
	BotToken    string
	InitDataTTL time.Duration
	JWT         *JWTService
	Now         func() time.Time
}

type Session struct {
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
}

func ParticipantIDForTelegram(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

func (a *AuthService) LoginTelegram(initData string) (Session, error) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	user, err := ValidateTelegramInitData(initData, a.BotToken, now, a.InitDataTTL)
	if err != nil {
		return Session{}, err
	}

	pid := ParticipantIDForTelegram(user.ID)
	token, exp, err := a.JWT.Issue(pid, user.DisplayName())
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, ParticipantID: pid, DisplayName: user.DisplayName()}, nil
}
