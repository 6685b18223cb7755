package match

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"duel_arena/internal/game"
)

// State - имя состояния сессии, уходит клиентам как есть
type State string

const (
	Waiting   State = "waiting"
	Starting  State = "starting"
	Active    State = "active"
	Resolving State = "resolving"
	Finished  State = "finished"
)

var transitions = map[State][]State{
	Waiting:   {Starting},
	Starting:  {Active, Waiting},
	Active:    {Resolving, Waiting},
	Resolving: {Active, Finished},
	Finished:  {Waiting},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// после подсчета результата разрешены только возврат в лобби и явный реванш
func guardAllows(from, to State) bool {
	return (from == Finished && to == Waiting) || (from == Waiting && to == Starting)
}

// stateHandler - один экземпляр на каждый вход в состояние.
// Таймеры, поставленные экземпляром, живут в нем же и снимаются в exit
type stateHandler interface {
	name() State
	enter(s *Session)
	exit(s *Session)
}

type readyToggler interface {
	setReady(s *Session, participantID string, ready bool)
}

type actionSink interface {
	submit(s *Session, participantID string, action game.Action)
}

type loadSignal interface {
	loaded(s *Session, participantID string)
}

func stopTimer(t clockwork.Timer) {
	if t != nil {
		t.Stop()
	}
}

// --- Waiting ---

type waitingState struct{}

func (waitingState) name() State { return Waiting }

func (waitingState) enter(s *Session) {
	for id := range s.away {
		s.removeLocked(id, "disconnected")
	}
	s.resetRoundLocked()
	for id := range s.readiness {
		s.readiness[id] = false
	}
}

func (waitingState) exit(*Session) {}

func (w waitingState) setReady(s *Session, participantID string, ready bool) {
	s.readiness[participantID] = ready
	s.emit("ready", map[string]any{"participantId": participantID, "ready": ready})

	if len(s.participants) != Seats {
		return
	}
	for _, p := range s.participants {
		if !s.readiness[p.ID] {
			return
		}
	}
	s.transition(&startingState{})
}

// --- Starting ---

type startingState struct {
	timer clockwork.Timer
}

func (*startingState) name() State { return Starting }

func (st *startingState) enter(s *Session) {
	// новая жизнь матча: прошлый результат и история не переносятся
	s.finishedGuard = false
	s.matchID = uuid.NewString()
	s.history = nil
	s.result = nil
	s.round = 0
	s.resetRoundLocked()
	for id := range s.readiness {
		s.readiness[id] = false
	}

	s.countdown = s.deps.Timings.CountdownTicks
	s.emit("countdown", map[string]any{"matchId": s.matchID, "value": s.countdown})
	st.schedule(s)
}

func (st *startingState) schedule(s *Session) {
	st.timer = s.after(s.deps.Timings.CountdownInterval, func() {
		s.countdown--
		if s.countdown < 0 {
			s.countdown = 0
		}
		s.emit("countdown", map[string]any{"matchId": s.matchID, "value": s.countdown})
		if s.countdown == 0 {
			if len(s.participants) != Seats {
				s.transition(waitingState{})
				return
			}
			s.transition(&activeState{})
			return
		}
		st.schedule(s)
	})
}

func (st *startingState) exit(*Session) {
	stopTimer(st.timer)
}

// --- Active ---

type activeState struct {
	loadTimer  clockwork.Timer
	roundTimer clockwork.Timer
	loadedBy   map[string]bool
	clockOn    bool
}

func (*activeState) name() State { return Active }

func (st *activeState) enter(s *Session) {
	s.round++
	s.pending = make(map[string]game.Action, len(s.participants))
	s.fallback = nil
	s.countdown = 0
	st.loadedBy = make(map[string]bool, len(s.participants))

	s.emit("round_start", map[string]any{
		"matchId": s.matchID,
		"round":   s.round,
		"actions": s.strategy.Rules.Actions(),
	})
	st.loadTimer = s.after(s.deps.Timings.LoadTimeout, func() {
		s.log.Debug("не все клиенты подтвердили загрузку, запускаем раунд", "round", s.round)
		st.startClock(s)
	})
}

func (st *activeState) exit(*Session) {
	stopTimer(st.loadTimer)
	stopTimer(st.roundTimer)
}

func (st *activeState) loaded(s *Session, participantID string) {
	st.loadedBy[participantID] = true
	for _, p := range s.participants {
		if !st.loadedBy[p.ID] && !s.away[p.ID] {
			return
		}
	}
	st.startClock(s)
}

// часы раунда запускаются ровно один раз на вход в Active
func (st *activeState) startClock(s *Session) {
	if st.clockOn {
		return
	}
	st.clockOn = true
	stopTimer(st.loadTimer)

	timeout := s.deps.Timings.RoundTimeout
	st.roundTimer = s.after(timeout, func() { st.onTimeout(s) })
	s.emit("round_clock", map[string]any{
		"round":    s.round,
		"timeout":  timeout.Milliseconds(),
		"deadline": s.deps.Clock.Now().Add(timeout).UnixMilli(),
	})
}

func (st *activeState) submit(s *Session, participantID string, action game.Action) {
	if _, done := s.pending[participantID]; done {
		s.log.Debug("повторный ход игнорируется", "participant", participantID)
		return
	}
	if !s.strategy.Rules.Legal(action) {
		s.log.Debug("недопустимый ход игнорируется", "participant", participantID, "action", action)
		return
	}
	s.pending[participantID] = action
	s.emit("action_received", map[string]any{"participantId": participantID, "round": s.round})

	if len(s.participants) == Seats && len(s.pending) == Seats {
		s.transition(&resolvingState{})
	}
}

func (st *activeState) onTimeout(s *Session) {
	if len(s.participants) != Seats {
		// раунд без соперника не разыгрывается
		s.transition(waitingState{})
		return
	}
	for _, p := range s.participants {
		if _, ok := s.pending[p.ID]; ok {
			continue
		}
		s.pending[p.ID] = game.FallbackAction(s.strategy.Rules, s.rng)
		s.fallback = append(s.fallback, p.ID)
	}
	s.log.Debug("таймаут раунда", "round", s.round, "fallback", s.fallback)
	s.transition(&resolvingState{})
}

// --- Resolving ---

type resolvingState struct {
	timer clockwork.Timer
}

func (*resolvingState) name() State { return Resolving }

func (st *resolvingState) enter(s *Session) {
	if s.forfeit != nil {
		s.transition(&finishedState{})
		return
	}

	ids := s.pairLocked()
	outcome, err := game.ResolveRound(s.strategy.Rules, s.pending[ids[0]], s.pending[ids[1]])
	if err != nil {
		// ходы проверяются при приеме, сюда попасть не должны
		s.log.Error("ошибка расчета раунда", "error", err, "round", s.round)
		outcome = game.RoundOutcome{Winner: game.NoWinner}
	}

	s.roundState = s.strategy.Model.Apply(s.roundState, ids, outcome)

	inputs := make(map[string]game.Action, len(s.pending))
	for k, v := range s.pending {
		inputs[k] = v
	}
	rec := game.RoundRecord{
		Number:   s.round,
		Inputs:   inputs,
		Outcome:  outcome,
		State:    s.roundState.Clone(),
		Fallback: s.fallback,
	}
	if outcome.Winner != game.NoWinner {
		w := ids[outcome.Winner]
		rec.RoundWinner = &w
	}
	s.history = append(s.history, rec)
	s.pending = make(map[string]game.Action)
	s.deps.Observer.RoundResolved(string(s.strategy.Mode))
	s.emit("round_result", rec)

	terminal := s.strategy.Model.Terminal(s.roundState)
	st.timer = s.after(s.deps.Timings.RevealDelay, func() {
		if terminal {
			s.transition(&finishedState{})
			return
		}
		s.transition(&activeState{})
	})
}

func (st *resolvingState) exit(*Session) {
	stopTimer(st.timer)
}

// --- Finished ---

type finishedState struct {
	timer clockwork.Timer
}

func (*finishedState) name() State { return Finished }

func (st *finishedState) enter(s *Session) {
	s.finishedGuard = true
	res := s.buildResultLocked(s.deps.Clock.Now())
	s.result = &res
	s.forfeit = nil

	s.deps.Observer.MatchFinished(res.Mode, res.Reason)
	s.emit("match_result", res)
	s.log.Info("матч завершен", "match", res.MatchID, "reason", res.Reason, "rounds", res.Rounds)

	go s.settle(res)

	st.timer = s.after(s.deps.Timings.FinishedDelay, func() {
		s.transition(waitingState{})
	})
}

func (st *finishedState) exit(*Session) {
	stopTimer(st.timer)
}
