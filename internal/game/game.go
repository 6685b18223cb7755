package game

import (
	"errors"
	"fmt"
	"sort"
)

// Mode идентифицирует вариант мини-игры, который выбирается при создании комнаты
type Mode string

const (
	ModeDuel     Mode = "duel"
	ModeScore    Mode = "score"
	ModeExtended Mode = "extended"
)

// Action - ход участника в раунде (например "rock")
type Action string

var (
	ErrIllegalAction = errors.New("недопустимый ход")
	ErrUnknownMode   = errors.New("неизвестный режим игры")
)

// стороны раунда: A - первый участник комнаты, B - второй
const (
	NoWinner = -1
	SideA    = 0
	SideB    = 1
)

// RoundOutcome результат одного раунда без привязки к участникам
type RoundOutcome struct {
	DamageA int `json:"damageA"`
	DamageB int `json:"damageB"`
	Winner  int `json:"-"`
}

// RoundState - числовое состояние участников (здоровье или очки)
type RoundState map[string]int

// Clone возвращает копию состояния, чтобы история не делила map с живым состоянием
func (s RoundState) Clone() RoundState {
	out := make(RoundState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// RoundRecord - запись истории, только добавляется
type RoundRecord struct {
	Number      int               `json:"roundNumber"`
	Inputs      map[string]Action `json:"inputs"`
	Outcome     RoundOutcome      `json:"outcome"`
	RoundWinner *string           `json:"roundWinner"`
	State       RoundState        `json:"resultingRoundState"`
	Fallback    []string          `json:"fallback,omitempty"`
}

// Model описывает форму состояния раунда: как применять урон и когда матч окончен
type Model interface {
	Initial(ids []string) RoundState
	Apply(state RoundState, ids [2]string, outcome RoundOutcome) RoundState
	Terminal(state RoundState) bool
	// Leader возвращает лидирующего участника; draw=true если значения равны
	Leader(state RoundState, ids [2]string) (leader string, draw bool)
	Bounds() (min, max int)
}

// Strategy - подменяемая связка правил, модели состояния и начисления очков.
// Машина состояний сессии ничего не знает о конкретной игре кроме этого значения.
type Strategy struct {
	Mode    Mode
	Rules   *Ruleset
	Model   Model
	Scoring Scoring
}

var strategies = map[Mode]Strategy{
	ModeDuel: {
		Mode:    ModeDuel,
		Rules:   Classic,
		Model:   HealthModel{Max: DefaultMaxHealth},
		Scoring: DefaultScoring,
	},
	ModeScore: {
		Mode:    ModeScore,
		Rules:   Classic,
		Model:   ScoreModel{Target: DefaultTargetScore},
		Scoring: DefaultScoring,
	},
	ModeExtended: {
		Mode:    ModeExtended,
		Rules:   Extended,
		Model:   HealthModel{Max: DefaultMaxHealth},
		Scoring: DefaultScoring,
	},
}

// StrategyFor возвращает стратегию для режима; пустой режим - дуэль
func StrategyFor(mode Mode) (Strategy, error) {
	if mode == "" {
		mode = ModeDuel
	}
	s, ok := strategies[mode]
	if !ok {
		return Strategy{}, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return s, nil
}

// Modes - список доступных режимов (для валидации запросов)
func Modes() []Mode {
	out := make([]Mode, 0, len(strategies))
	for m := range strategies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
