package game

// Scoring задает границы очков матча и награды опытом
type Scoring struct {
	ScoreFloor    int
	ScoreCeiling  int
	RewardFloor   int64
	RewardCeiling int64

	WinBase   int
	DrawBase  int
	LoseBase  int
	RoundWin  int
	PerPoint  int
	WinReward int64
}

var DefaultScoring = Scoring{
	ScoreFloor:    10,
	ScoreCeiling:  1000,
	RewardFloor:   5,
	RewardCeiling: 250,

	WinBase:   400,
	DrawBase:  200,
	LoseBase:  50,
	RoundWin:  30,
	PerPoint:  2,
	WinReward: 50,
}

// ComputeMatchScore считает очки участника id по итоговому состоянию и истории.
// Результат всегда в [ScoreFloor, ScoreCeiling]
func (s Scoring) ComputeMatchScore(final RoundState, history []RoundRecord, id string, won, draw bool) int {
	score := s.LoseBase
	switch {
	case won:
		score = s.WinBase
	case draw:
		score = s.DrawBase
	}

	score += final[id] * s.PerPoint
	for _, r := range history {
		if r.RoundWinner != nil && *r.RoundWinner == id {
			score += s.RoundWin
		}
	}
	return clamp(score, s.ScoreFloor, s.ScoreCeiling)
}

// ComputeReward переводит очки матча в опыт, никогда не отрицательный
func (s Scoring) ComputeReward(score int, won bool) int64 {
	xp := int64(score) / 10
	if won {
		xp += s.WinReward
	}
	lo := s.RewardFloor
	if lo < 0 {
		lo = 0
	}
	if xp < lo {
		return lo
	}
	if xp > s.RewardCeiling {
		return s.RewardCeiling
	}
	return xp
}
