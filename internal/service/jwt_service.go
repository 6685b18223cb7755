package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"

	"duel_arena/internal/ports"
)

var ErrInvalidToken = errors.New("неверный токен")

const tokenIssuer = "duel_arena"

// Claims - полезная нагрузка токена участника
type Claims struct {
	DisplayName string `json:"name"`
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет токены участников (HS256)
type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *JWTService) Issue(participantID, displayName string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "sign token")
	}
	return signed, exp, nil
}

func (s *JWTService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidToken, "parse token: %v", err)
	}
	if claims.Subject == "" {
		return nil, eris.Wrap(ErrInvalidToken, "empty subject")
	}
	return claims, nil
}

// Authenticate реализует ports.IdentityResolver
func (s *JWTService) Authenticate(_ context.Context, token string) (ports.Identity, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return ports.Identity{}, err
	}
	return ports.Identity{ParticipantID: claims.Subject, DisplayName: claims.DisplayName}, nil
}

var _ ports.IdentityResolver = (*JWTService)(nil)
