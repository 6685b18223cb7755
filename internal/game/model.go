package game

const (
	DefaultMaxHealth   = 100
	DefaultTargetScore = 100
)

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HealthModel - дуэль на здоровье: урон вычитается, матч окончен когда у кого-то 0
type HealthModel struct {
	Max int
}

func (m HealthModel) Initial(ids []string) RoundState {
	st := make(RoundState, len(ids))
	for _, id := range ids {
		st[id] = m.Max
	}
	return st
}

func (m HealthModel) Apply(state RoundState, ids [2]string, o RoundOutcome) RoundState {
	next := state.Clone()
	next[ids[0]] = clamp(next[ids[0]]-o.DamageA, 0, m.Max)
	next[ids[1]] = clamp(next[ids[1]]-o.DamageB, 0, m.Max)
	return next
}

func (m HealthModel) Terminal(state RoundState) bool {
	for _, v := range state {
		if v <= 0 {
			return true
		}
	}
	return false
}

func (m HealthModel) Leader(state RoundState, ids [2]string) (string, bool) {
	a, b := state[ids[0]], state[ids[1]]
	switch {
	case a > b:
		return ids[0], false
	case b > a:
		return ids[1], false
	default:
		return "", true
	}
}

func (m HealthModel) Bounds() (int, int) { return 0, m.Max }

// ScoreModel - дуэль на очки: урон, нанесенный сопернику, засчитывается как очки
type ScoreModel struct {
	Target int
}

func (m ScoreModel) Initial(ids []string) RoundState {
	st := make(RoundState, len(ids))
	for _, id := range ids {
		st[id] = 0
	}
	return st
}

func (m ScoreModel) Apply(state RoundState, ids [2]string, o RoundOutcome) RoundState {
	next := state.Clone()
	// каждой стороне идет урон, нанесенный сопернику; при ничьей обоим поровну
	next[ids[0]] = clamp(next[ids[0]]+o.DamageB, 0, m.Target)
	next[ids[1]] = clamp(next[ids[1]]+o.DamageA, 0, m.Target)
	return next
}

func (m ScoreModel) Terminal(state RoundState) bool {
	for _, v := range state {
		if v >= m.Target {
			return true
		}
	}
	return false
}

func (m ScoreModel) Leader(state RoundState, ids [2]string) (string, bool) {
	a, b := state[ids[0]], state[ids[1]]
	switch {
	case a > b:
		return ids[0], false
	case b > a:
		return ids[1], false
	default:
		return "", true
	}
}

func (m ScoreModel) Bounds() (int, int) { return 0, m.Target }
