package game

import (
	"fmt"
	"math/rand"
	"sort"
)

const (
	DefaultFullDamage = 25
	DefaultTieDamage  = 5
)

// Ruleset - отношение "бьет" над набором допустимых ходов
type Ruleset struct {
	Name       string
	FullDamage int
	TieDamage  int

	actions []Action
	beats   map[Action]map[Action]bool
}

// NewRuleset создает набор правил и проверяет что отношение полное:
// для каждой пары разных ходов ровно один из них побеждает
func NewRuleset(name string, fullDamage, tieDamage int, beats map[Action][]Action) (*Ruleset, error) {
	if fullDamage < 0 || tieDamage < 0 {
		return nil, fmt.Errorf("ruleset %s: урон не может быть отрицательным", name)
	}
	r := &Ruleset{
		Name:       name,
		FullDamage: fullDamage,
		TieDamage:  tieDamage,
		beats:      make(map[Action]map[Action]bool, len(beats)),
	}
	for a, losers := range beats {
		r.actions = append(r.actions, a)
		set := make(map[Action]bool, len(losers))
		for _, l := range losers {
			if l == a {
				return nil, fmt.Errorf("ruleset %s: ход %s не может бить сам себя", name, a)
			}
			set[l] = true
		}
		r.beats[a] = set
	}
	sort.Slice(r.actions, func(i, j int) bool { return r.actions[i] < r.actions[j] })
	if len(r.actions) < 2 {
		return nil, fmt.Errorf("ruleset %s: нужно хотя бы два хода", name)
	}

	for i, a := range r.actions {
		for _, b := range r.actions[i+1:] {
			ab, ba := r.beats[a][b], r.beats[b][a]
			if ab == ba {
				return nil, fmt.Errorf("ruleset %s: пара %s/%s не имеет единственного победителя", name, a, b)
			}
		}
		for l := range r.beats[a] {
			if _, ok := r.beats[l]; !ok {
				return nil, fmt.Errorf("ruleset %s: ход %s бьет неизвестный ход %s", name, a, l)
			}
		}
	}
	return r, nil
}

func mustRuleset(name string, beats map[Action][]Action) *Ruleset {
	r, err := NewRuleset(name, DefaultFullDamage, DefaultTieDamage, beats)
	if err != nil {
		panic(err)
	}
	return r
}

var (
	// Classic - камень, ножницы, бумага
	Classic = mustRuleset("classic", map[Action][]Action{
		"rock":     {"scissors"},
		"paper":    {"rock"},
		"scissors": {"paper"},
	})

	// Extended добавляет ящерицу и Спока
	Extended = mustRuleset("extended", map[Action][]Action{
		"rock":     {"scissors", "lizard"},
		"paper":    {"rock", "spock"},
		"scissors": {"paper", "lizard"},
		"lizard":   {"spock", "paper"},
		"spock":    {"scissors", "rock"},
	})
)

// Actions возвращает допустимые ходы в стабильном порядке
func (r *Ruleset) Actions() []Action {
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

func (r *Ruleset) Legal(a Action) bool {
	_, ok := r.beats[a]
	return ok
}

// decide: 1 если a бьет b, -1 если b бьет a, 0 при ничьей
func (r *Ruleset) decide(a, b Action) int {
	switch {
	case a == b:
		return 0
	case r.beats[a][b]:
		return 1
	default:
		return -1
	}
}

// ResolveRound считает урон за раунд. При ничьей оба получают TieDamage,
// иначе проигравший получает FullDamage, а победитель ничего
func ResolveRound(rules *Ruleset, a, b Action) (RoundOutcome, error) {
	if !rules.Legal(a) {
		return RoundOutcome{}, fmt.Errorf("%w: %q", ErrIllegalAction, a)
	}
	if !rules.Legal(b) {
		return RoundOutcome{}, fmt.Errorf("%w: %q", ErrIllegalAction, b)
	}

	switch rules.decide(a, b) {
	case 1:
		return RoundOutcome{DamageB: rules.FullDamage, Winner: SideA}, nil
	case -1:
		return RoundOutcome{DamageA: rules.FullDamage, Winner: SideB}, nil
	default:
		return RoundOutcome{DamageA: rules.TieDamage, DamageB: rules.TieDamage, Winner: NoWinner}, nil
	}
}

// FallbackAction - случайный ход за участника, не успевшего сходить до таймаута
func FallbackAction(rules *Ruleset, rng *rand.Rand) Action {
	if rng == nil {
		return rules.actions[rand.Intn(len(rules.actions))]
	}
	return rules.actions[rng.Intn(len(rules.actions))]
}
