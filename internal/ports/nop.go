package ports

import "context"

// NopRecorder используется когда база данных не настроена
type NopRecorder struct{}

func (NopRecorder) RecordMatchResult(context.Context, MatchResult) error { return nil }

// NopRewards не ведет прогресс, уровень всегда 1
type NopRewards struct{}

func (NopRewards) GrantExperience(context.Context, string, int64) (RewardGrant, error) {
	return RewardGrant{NewLevel: 1}, nil
}

type NopEmitter struct{}

func (NopEmitter) Emit(string, string, any) {}
