package match

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"duel_arena/internal/game"
	"duel_arena/internal/logger"
	"duel_arena/internal/ports"
)

// Seats - дуэль всегда на двоих, других размеров комнат нет
const Seats = 2

// RoomConfig задается при создании комнаты и дальше не меняется
type RoomConfig struct {
	Name      string    `json:"name"`
	Mode      game.Mode `json:"mode"`
	IsPrivate bool      `json:"isPrivate"`
	Password  string    `json:"-"`
	Capacity  int       `json:"maxParticipants"`
}

// Timings - все задержки движка. Это конфигурация, а не контракт
type Timings struct {
	CountdownTicks    int
	CountdownInterval time.Duration
	LoadTimeout       time.Duration
	RoundTimeout      time.Duration
	RevealDelay       time.Duration
	FinishedDelay     time.Duration
	SettleTimeout     time.Duration
	CleanupDelay      time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		CountdownTicks:    3,
		CountdownInterval: time.Second,
		LoadTimeout:       5 * time.Second,
		RoundTimeout:      15 * time.Second,
		RevealDelay:       3 * time.Second,
		FinishedDelay:     8 * time.Second,
		SettleTimeout:     10 * time.Second,
		CleanupDelay:      30 * time.Second,
	}
}

// Observer получает счетчики жизненного цикла (реализуется пакетом metrics)
type Observer interface {
	RoundResolved(mode string)
	MatchFinished(mode, reason string)
	Forfeit(mode string)
	CollaboratorFailure(kind string)
	RoomsChanged(delta int)
}

type nopObserver struct{}

func (nopObserver) RoundResolved(string)         {}
func (nopObserver) MatchFinished(string, string) {}
func (nopObserver) Forfeit(string)               {}
func (nopObserver) CollaboratorFailure(string)   {}
func (nopObserver) RoomsChanged(int)             {}

// Deps - общие зависимости всех сессий реестра
type Deps struct {
	Clock    clockwork.Clock
	Emitter  ports.Emitter
	Recorder ports.ResultRecorder
	Rewards  ports.RewardIssuer
	Observer Observer
	Logger   *slog.Logger
	Timings  Timings
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Emitter == nil {
		d.Emitter = ports.NopEmitter{}
	}
	if d.Recorder == nil {
		d.Recorder = ports.NopRecorder{}
	}
	if d.Rewards == nil {
		d.Rewards = ports.NopRewards{}
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Logger == nil {
		d.Logger = logger.Get()
	}
	if d.Timings == (Timings{}) {
		d.Timings = DefaultTimings()
	}
	return d
}
