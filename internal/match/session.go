package match

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"duel_arena/internal/game"
	"duel_arena/internal/ports"
)

var (
	ErrRoomNotFound         = errors.New("комната не найдена")
	ErrRoomFull             = errors.New("комната заполнена")
	ErrWrongPassword        = errors.New("неверный пароль комнаты")
	ErrMatchAlreadyStarted  = errors.New("матч уже начался")
	ErrParticipantNotInRoom = errors.New("участник не в комнате")
	ErrInvalidCapacity      = errors.New("в комнате ровно два места")
)

// Participant - участник комнаты в порядке входа
type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type forfeit struct {
	winner string
	loser  string
	reason string
}

// rosterListener получает число участников после каждого изменения состава
type rosterListener interface {
	rosterChanged(roomID string, count int)
}

// Session - одна комната и ее машина состояний.
// Все поля защищены mu; таймеры возвращаются под тот же mutex
type Session struct {
	mu sync.Mutex

	id        string
	cfg       RoomConfig
	strategy  game.Strategy
	deps      Deps
	log       *slog.Logger
	rng       *rand.Rand
	createdAt time.Time
	listener  rosterListener

	participants []Participant
	readiness    map[string]bool
	away         map[string]bool
	roundState   game.RoundState
	pending      map[string]game.Action
	fallback     []string
	history      []game.RoundRecord
	result       *ports.MatchResult
	forfeit      *forfeit

	matchID    string
	round      int
	countdown  int
	emptySince time.Time

	state         stateHandler
	generation    uint64
	finishedGuard bool
	closed        bool

	// вызовы наружу, которые нужно сделать уже после снятия mu
	effects []func()
}

func newSession(id string, cfg RoomConfig, strategy game.Strategy, deps Deps, listener rosterListener) *Session {
	now := deps.Clock.Now()
	s := &Session{
		id:         id,
		cfg:        cfg,
		strategy:   strategy,
		deps:       deps,
		log:        deps.Logger.With("room", id, "mode", strategy.Mode),
		rng:        rand.New(rand.NewSource(now.UnixNano())),
		createdAt:  now,
		listener:   listener,
		readiness:  make(map[string]bool),
		away:       make(map[string]bool),
		pending:    make(map[string]game.Action),
		emptySince: now,
		state:      waitingState{},
	}
	s.roundState = strategy.Model.Initial(nil)
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) lock() { s.mu.Lock() }

func (s *Session) unlock() {
	effects := s.effects
	s.effects = nil
	s.mu.Unlock()
	for _, f := range effects {
		f()
	}
}

// emit вызывается под mu, чтобы события комнаты уходили в порядке изменений
func (s *Session) emit(event string, payload any) {
	s.deps.Emitter.Emit(s.id, event, payload)
}

// after ставит таймер, который сработает только если состояние,
// его поставившее, все еще текущее
func (s *Session) after(d time.Duration, fn func()) clockwork.Timer {
	gen := s.generation
	return s.deps.Clock.AfterFunc(d, func() {
		s.lock()
		defer s.unlock()
		if s.closed || s.generation != gen {
			return
		}
		fn()
	})
}

// transition - единственная точка смены состояния
func (s *Session) transition(to stateHandler) bool {
	from := s.state.name()
	if !canTransition(from, to.name()) {
		s.log.Debug("переход отклонен", "from", from, "to", to.name())
		return false
	}
	if s.finishedGuard && !guardAllows(from, to.name()) {
		s.log.Debug("переход отклонен: результат уже посчитан", "from", from, "to", to.name())
		return false
	}

	s.state.exit(s)
	s.generation++
	s.state = to
	s.log.Debug("смена состояния", "from", from, "to", to.name())
	s.emit("state", map[string]any{"from": from, "to": to.name()})
	to.enter(s)
	return true
}

func (s *Session) indexOf(participantID string) int {
	for i, p := range s.participants {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}

func (s *Session) isMember(participantID string) bool {
	return s.indexOf(participantID) >= 0
}

func (s *Session) opponentOf(participantID string) string {
	for _, p := range s.participants {
		if p.ID != participantID {
			return p.ID
		}
	}
	return ""
}

func (s *Session) pairLocked() [2]string {
	var ids [2]string
	for i := 0; i < len(s.participants) && i < 2; i++ {
		ids[i] = s.participants[i].ID
	}
	return ids
}

func (s *Session) participantIDs() []string {
	ids := make([]string, len(s.participants))
	for i, p := range s.participants {
		ids[i] = p.ID
	}
	return ids
}

// resetRoundLocked возвращает счетчики раунда к стартовым значениям модели
func (s *Session) resetRoundLocked() {
	s.roundState = s.strategy.Model.Initial(s.participantIDs())
	s.pending = make(map[string]game.Action)
	s.fallback = nil
	s.countdown = 0
	s.forfeit = nil
}

func (s *Session) notifyRoster() {
	if s.listener == nil {
		return
	}
	count := len(s.participants)
	s.effects = append(s.effects, func() { s.listener.rosterChanged(s.id, count) })
}

// removeLocked только убирает участника; переходы делает вызывающий
func (s *Session) removeLocked(participantID, reason string) {
	i := s.indexOf(participantID)
	if i < 0 {
		return
	}
	s.participants = append(s.participants[:i], s.participants[i+1:]...)
	delete(s.readiness, participantID)
	delete(s.away, participantID)
	delete(s.pending, participantID)
	delete(s.roundState, participantID)
	if len(s.participants) == 0 {
		s.emptySince = s.deps.Clock.Now()
	}
	s.emit("participant_left", map[string]any{"participantId": participantID, "reason": reason})
	s.notifyRoster()
}

// Join добавляет участника. Повторный вход того же участника не ошибка
func (s *Session) Join(id ports.Identity, password string) error {
	s.lock()
	defer s.unlock()

	if s.closed {
		return ErrRoomNotFound
	}
	if s.isMember(id.ParticipantID) {
		return nil
	}
	if s.cfg.IsPrivate && s.cfg.Password != "" && s.cfg.Password != password {
		return ErrWrongPassword
	}
	if s.state.name() != Waiting {
		return ErrMatchAlreadyStarted
	}
	if len(s.participants) >= s.cfg.Capacity {
		return ErrRoomFull
	}

	s.participants = append(s.participants, Participant{
		ID:          id.ParticipantID,
		DisplayName: id.DisplayName,
		JoinedAt:    s.deps.Clock.Now(),
	})
	s.readiness[id.ParticipantID] = false
	s.roundState = s.strategy.Model.Initial(s.participantIDs())
	s.emit("participant_joined", map[string]any{
		"participantId": id.ParticipantID,
		"displayName":   id.DisplayName,
	})
	s.emit("snapshot", s.snapshotLocked())
	s.notifyRoster()
	return nil
}

// Leave - явный выход. Во время матча это поражение
func (s *Session) Leave(participantID string) error {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return ErrParticipantNotInRoom
	}

	switch s.state.name() {
	case Active, Resolving:
		if s.opponentOf(participantID) == "" && s.state.name() == Active {
			s.removeLocked(participantID, "left")
			s.transition(waitingState{})
			return nil
		}
		s.forfeitLocked(participantID, "left")
		s.removeLocked(participantID, "left")
	case Starting:
		s.removeLocked(participantID, "left")
		s.transition(waitingState{})
	default:
		s.removeLocked(participantID, "left")
	}
	return nil
}

// forfeitLocked доводит матч до Finished с оставшимся участником как победителем
func (s *Session) forfeitLocked(loser, reason string) {
	if s.finishedGuard {
		return
	}
	winner := s.opponentOf(loser)
	if s.away[winner] {
		// соперник тоже не на связи: матч брошен, победителя нет
		winner = ""
	}
	s.forfeit = &forfeit{winner: winner, loser: loser, reason: reason}
	s.deps.Observer.Forfeit(string(s.strategy.Mode))
	s.log.Info("техническое поражение", "participant", loser, "reason", reason)

	switch s.state.name() {
	case Active:
		s.transition(&resolvingState{})
	case Resolving:
		s.transition(&finishedState{})
	}
}

func (s *Session) SetReady(participantID string, ready bool) error {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return ErrParticipantNotInRoom
	}
	if t, ok := s.state.(readyToggler); ok {
		t.setReady(s, participantID, ready)
		return nil
	}
	s.log.Debug("ready вне лобби игнорируется", "participant", participantID, "state", s.state.name())
	return nil
}

func (s *Session) SubmitAction(participantID string, action game.Action) error {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return ErrParticipantNotInRoom
	}
	if sink, ok := s.state.(actionSink); ok {
		sink.submit(s, participantID, action)
		return nil
	}
	s.log.Debug("ход вне раунда игнорируется", "participant", participantID, "state", s.state.name())
	return nil
}

// ClientLoaded - клиент готов показывать раунд
func (s *Session) ClientLoaded(participantID string) error {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return ErrParticipantNotInRoom
	}
	if l, ok := s.state.(loadSignal); ok {
		l.loaded(s, participantID)
	}
	return nil
}

// Disconnect возвращает true, если участник удержан на время ожидания переподключения
func (s *Session) Disconnect(participantID string) bool {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return false
	}

	switch s.state.name() {
	case Active, Resolving:
		s.away[participantID] = true
		s.emit("participant_away", map[string]any{"participantId": participantID})
		return true
	case Starting:
		s.removeLocked(participantID, "disconnected")
		s.transition(waitingState{})
	default:
		s.removeLocked(participantID, "disconnected")
	}
	return false
}

// Resume снимает отметку отсутствия. false - участник уже не в комнате
func (s *Session) Resume(participantID string) bool {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) {
		return false
	}
	if s.away[participantID] {
		delete(s.away, participantID)
		s.emit("participant_resumed", map[string]any{"participantId": participantID})
	}
	return true
}

// ExpireGrace - окно переподключения закончилось
func (s *Session) ExpireGrace(participantID string) {
	s.lock()
	defer s.unlock()

	if !s.isMember(participantID) || !s.away[participantID] {
		return
	}
	delete(s.away, participantID)

	switch s.state.name() {
	case Active, Resolving:
		if s.opponentOf(participantID) == "" && s.state.name() == Active {
			s.removeLocked(participantID, "timeout")
			s.transition(waitingState{})
			return
		}
		s.forfeitLocked(participantID, "disconnect_timeout")
		s.removeLocked(participantID, "timeout")
	default:
		s.removeLocked(participantID, "timeout")
	}
}

func (s *Session) buildResultLocked(now time.Time) ports.MatchResult {
	ids := s.pairLocked()
	res := ports.MatchResult{
		MatchID:    s.matchID,
		RoomID:     s.id,
		Mode:       string(s.strategy.Mode),
		Rounds:     len(s.history),
		FinishedAt: now,
	}

	var winner string
	switch {
	case s.forfeit != nil && s.forfeit.winner != "":
		winner = s.forfeit.winner
		res.Reason = "forfeit"
	case s.forfeit != nil:
		res.Reason = "abandoned"
		res.Draw = true
	default:
		leader, draw := s.strategy.Model.Leader(s.roundState, ids)
		winner = leader
		res.Draw = draw
		res.Reason = "completed"
	}
	if winner != "" {
		w := winner
		res.WinnerID = &w
	}

	for _, p := range s.participants {
		won := p.ID == winner
		score := s.strategy.Scoring.ComputeMatchScore(s.roundState, s.history, p.ID, won, res.Draw)
		res.Participants = append(res.Participants, ports.ParticipantResult{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         score,
			Experience:    s.strategy.Scoring.ComputeReward(score, won),
			Won:           won,
		})
	}
	return res
}

// settle передает результат наружу. Ошибки коллабораторов только логируются:
// результат уже разослан, комната продолжает жить
func (s *Session) settle(res ports.MatchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timings.SettleTimeout)
	defer cancel()

	log := s.log.With("match", res.MatchID)
	if err := s.deps.Recorder.RecordMatchResult(ctx, res); err != nil {
		s.deps.Observer.CollaboratorFailure("persistence")
		log.Error("не удалось сохранить результат матча", "error", err)
		return
	}

	for _, p := range res.Participants {
		grant, err := s.deps.Rewards.GrantExperience(ctx, p.ParticipantID, p.Experience)
		if err != nil {
			s.deps.Observer.CollaboratorFailure("reward")
			log.Error("не удалось начислить опыт", "participant", p.ParticipantID, "error", err)
			continue
		}
		s.deps.Emitter.Emit(s.id, "rewards", map[string]any{
			"matchId":       res.MatchID,
			"participantId": p.ParticipantID,
			"experience":    p.Experience,
			"grant":         grant,
		})
	}
}

func (s *Session) ParticipantCount() int {
	s.lock()
	defer s.unlock()
	return len(s.participants)
}

func (s *Session) CurrentState() State {
	s.lock()
	defer s.unlock()
	return s.state.name()
}

// close останавливает таймеры текущего состояния; повторный вызов безопасен
func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.state.exit(s)
	s.generation++
}

func (s *Session) Close() {
	s.lock()
	defer s.unlock()
	s.closeLocked()
}

// closeIfEmpty атомарно проверяет пустоту и закрывает сессию
func (s *Session) closeIfEmpty() bool {
	s.lock()
	defer s.unlock()
	if len(s.participants) > 0 {
		return false
	}
	s.closeLocked()
	return true
}
