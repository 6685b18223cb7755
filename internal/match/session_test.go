package match

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duel_arena/internal/game"
)

func TestCountdownToActive(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	var values []int
	for _, ev := range h.emitter.named("countdown") {
		values = append(values, ev.payload.(map[string]any)["value"].(int))
	}
	assert.Equal(t, []int{3, 2, 1, 0}, values)
	assert.Equal(t, Active, s.CurrentState())
	assert.NotEmpty(t, s.Snapshot().MatchID)
	assert.Len(t, h.emitter.named("round_clock"), 1)
}

func TestRoundBeatsRelation(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	h.play(t, s, "rock", "scissors")
	snap := s.Snapshot()
	require.Equal(t, Resolving, snap.State)
	require.Len(t, snap.History, 1)

	rec := snap.History[0]
	assert.Equal(t, 1, rec.Number)
	require.NotNil(t, rec.RoundWinner)
	assert.Equal(t, "alice", *rec.RoundWinner)
	assert.Equal(t, game.DefaultMaxHealth, snap.RoundState["alice"])
	assert.Equal(t, game.DefaultMaxHealth-game.DefaultFullDamage, snap.RoundState["bob"])

	h.advance(t, h.timings.RevealDelay, func() bool { return s.CurrentState() == Active })
	assert.Equal(t, 2, s.Snapshot().Round)
	assert.Empty(t, s.Snapshot().History[0].Fallback)
}

func TestRoundTie(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	h.play(t, s, "rock", "rock")
	snap := s.Snapshot()
	rec := snap.History[0]
	assert.Nil(t, rec.RoundWinner)
	assert.Equal(t, game.DefaultMaxHealth-game.DefaultTieDamage, snap.RoundState["alice"])
	assert.Equal(t, game.DefaultMaxHealth-game.DefaultTieDamage, snap.RoundState["bob"])
}

func TestIllegalAndDuplicateActionsDropped(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	require.NoError(t, s.SubmitAction("alice", "lizard"))
	require.NoError(t, s.SubmitAction("alice", "rock"))
	require.NoError(t, s.SubmitAction("alice", "paper"))
	assert.Equal(t, Active, s.CurrentState())

	require.NoError(t, s.SubmitAction("bob", "scissors"))
	snap := s.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, game.Action("rock"), snap.History[0].Inputs["alice"])

	err := s.SubmitAction("carol", "rock")
	assert.True(t, errors.Is(err, ErrParticipantNotInRoom))
}

func TestRoundTimeoutUsesFallback(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	require.NoError(t, s.SubmitAction("alice", "paper"))
	h.advance(t, h.timings.RoundTimeout, func() bool { return len(s.Snapshot().History) == 1 })

	rec := s.Snapshot().History[0]
	assert.Equal(t, []string{"bob"}, rec.Fallback)
	assert.True(t, game.Classic.Legal(rec.Inputs["bob"]))
}

func TestLoadTimeoutStartsClock(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Mode: game.ModeDuel})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Join(bob, ""))
	require.NoError(t, s.SetReady("alice", true))
	require.NoError(t, s.SetReady("bob", true))
	for i := 0; i < 3; i++ {
		n := len(h.emitter.named("countdown")) + 1
		h.advance(t, h.timings.CountdownInterval, func() bool { return len(h.emitter.named("countdown")) == n })
	}
	h.waitState(t, s, Active)

	require.NoError(t, s.ClientLoaded("alice"))
	assert.Empty(t, h.emitter.named("round_clock"))

	h.advance(t, h.timings.LoadTimeout, func() bool { return len(h.emitter.named("round_clock")) == 1 })
	require.NoError(t, s.ClientLoaded("bob"))
	assert.Len(t, h.emitter.named("round_clock"), 1)
}

func playToFinish(t *testing.T, h *harness, s *Session) {
	t.Helper()
	for s.CurrentState() != Finished {
		h.play(t, s, "rock", "scissors")
		if s.Snapshot().RoundState["bob"] == 0 {
			h.advance(t, h.timings.RevealDelay, func() bool { return s.CurrentState() == Finished })
			return
		}
		h.advance(t, h.timings.RevealDelay, func() bool { return s.CurrentState() == Active })
	}
}

func TestMatchFinishesExactlyOnce(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)
	playToFinish(t, h, s)

	snap := s.Snapshot()
	require.NotNil(t, snap.Result)
	require.NotNil(t, snap.Result.WinnerID)
	assert.Equal(t, "alice", *snap.Result.WinnerID)
	assert.Equal(t, "completed", snap.Result.Reason)
	assert.Equal(t, 4, snap.Result.Rounds)
	assert.Len(t, h.emitter.named("match_result"), 1)

	waitFor(t, func() bool { return h.recorder.count() == 1 && h.rewards.count() == 2 })
	assert.Len(t, h.emitter.named("rewards"), 2)

	// повторный вход в Finished отклоняется
	s.lock()
	ok := s.transition(&finishedState{})
	s.unlock()
	assert.False(t, ok)
	assert.Equal(t, 1, h.recorder.count())

	var winnerScore, loserScore int
	for _, p := range snap.Result.Participants {
		if p.Won {
			winnerScore = p.Score
		} else {
			loserScore = p.Score
		}
		assert.GreaterOrEqual(t, p.Experience, int64(0))
	}
	assert.Greater(t, winnerScore, loserScore)
}

func TestRematchResetsMatchState(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)
	playToFinish(t, h, s)
	firstMatch := s.Snapshot().MatchID

	h.advance(t, h.timings.FinishedDelay, func() bool { return s.CurrentState() == Waiting })
	snap := s.Snapshot()
	assert.Equal(t, game.DefaultMaxHealth, snap.RoundState["alice"])
	assert.Equal(t, game.DefaultMaxHealth, snap.RoundState["bob"])
	assert.False(t, snap.Readiness["alice"])
	assert.NotNil(t, snap.Result)

	require.NoError(t, s.SetReady("alice", true))
	require.NoError(t, s.SetReady("bob", true))
	snap = s.Snapshot()
	assert.Equal(t, Starting, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.History)
	assert.NotEqual(t, firstMatch, snap.MatchID)

	s.lock()
	assert.False(t, s.finishedGuard)
	s.unlock()
}

func TestDisconnectDuringActiveThenResume(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	assert.True(t, h.reg.ParticipantDisconnected(s.ID(), "bob"))
	assert.True(t, s.Snapshot().Participants[1].Away)

	assert.True(t, h.reg.ParticipantResumed(s.ID(), "bob"))
	h.reg.ReconnectExpired(s.ID(), "bob")

	assert.Equal(t, Active, s.CurrentState())
	assert.Equal(t, 2, s.ParticipantCount())
	assert.Empty(t, h.emitter.named("match_result"))
}

func TestGraceExpiryForfeits(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	require.True(t, h.reg.ParticipantDisconnected(s.ID(), "bob"))
	h.reg.ReconnectExpired(s.ID(), "bob")
	h.reg.ReconnectExpired(s.ID(), "bob")

	snap := s.Snapshot()
	require.Equal(t, Finished, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "forfeit", snap.Result.Reason)
	assert.Equal(t, "alice", *snap.Result.WinnerID)
	assert.Equal(t, 1, snap.ParticipantCount)

	waitFor(t, func() bool { return h.recorder.count() == 1 })
	assert.Len(t, h.recorder.last().Participants, 2)
	assert.Len(t, h.emitter.named("match_result"), 1)
}

func TestGraceExpiryDuringResolving(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)
	h.play(t, s, "rock", "scissors")
	require.Equal(t, Resolving, s.CurrentState())

	require.True(t, s.Disconnect("bob"))
	s.ExpireGrace("bob")
	assert.Equal(t, Finished, s.CurrentState())

	// таймер показа результата от Resolving не должен сработать
	h.clock.Advance(h.timings.RevealDelay)
	assert.Equal(t, Finished, s.CurrentState())
	assert.Len(t, h.emitter.named("match_result"), 1)
}

func TestLeaveDuringMatchIsForfeit(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	require.NoError(t, h.reg.LeaveRoom(s.ID(), "alice"))
	snap := s.Snapshot()
	assert.Equal(t, Finished, snap.State)
	assert.Equal(t, "bob", *snap.Result.WinnerID)

	err := h.reg.LeaveRoom(s.ID(), "alice")
	assert.ErrorIs(t, err, ErrParticipantNotInRoom)
}

func TestDisconnectOutsideMatchRemovesImmediately(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Mode: game.ModeDuel})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Join(bob, ""))
	require.NoError(t, s.SetReady("alice", true))
	require.NoError(t, s.SetReady("bob", true))
	require.Equal(t, Starting, s.CurrentState())

	assert.False(t, s.Disconnect("bob"))
	assert.Equal(t, Waiting, s.CurrentState())
	assert.Equal(t, 1, s.ParticipantCount())

	// отсчет отменен
	h.clock.Advance(5 * h.timings.CountdownInterval)
	assert.Equal(t, Waiting, s.CurrentState())
}

func TestSettlementFailureDoesNotBlockRoom(t *testing.T) {
	h := newHarness(t)
	h.recorder.err = errors.New("db down")
	s := h.activeRoom(t)
	playToFinish(t, h, s)

	waitFor(t, func() bool { return h.recorder.count() == 1 })
	assert.Len(t, h.emitter.named("match_result"), 1)
	assert.Equal(t, 0, h.rewards.count())

	h.advance(t, h.timings.FinishedDelay, func() bool { return s.CurrentState() == Waiting })
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, canTransition(Waiting, Starting))
	assert.False(t, canTransition(Waiting, Active))
	assert.False(t, canTransition(Active, Finished))
	assert.True(t, canTransition(Resolving, Finished))
	assert.False(t, canTransition(Finished, Active))

	assert.True(t, guardAllows(Finished, Waiting))
	assert.True(t, guardAllows(Waiting, Starting))
	assert.False(t, guardAllows(Resolving, Finished))
}

func TestScoreModeStartsAtZero(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Mode: game.ModeScore})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Join(bob, ""))
	snap := s.Snapshot()
	assert.Equal(t, 0, snap.RoundState["alice"])
	assert.Equal(t, game.ModeScore, snap.Mode)
}

func TestSoloParticipantNeverStarts(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Mode: game.ModeDuel})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.SetReady("alice", true))
	assert.Equal(t, Waiting, s.CurrentState())

	h.clock.Advance(time.Minute)
	assert.Equal(t, Waiting, s.CurrentState())
	assert.Empty(t, h.emitter.named("countdown"))
	assert.Empty(t, h.emitter.named("round_result"))
	assert.Nil(t, s.Snapshot().Result)
	assert.Equal(t, 0, h.recorder.count())
}

func TestOpponentLostDuringCountdownBackToWaiting(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Mode: game.ModeDuel})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Join(bob, ""))
	require.NoError(t, s.SetReady("alice", true))
	require.NoError(t, s.SetReady("bob", true))
	require.Equal(t, Starting, s.CurrentState())

	require.NoError(t, s.Leave("bob"))
	assert.Equal(t, Waiting, s.CurrentState())

	// одиночка не может перезапустить отсчет
	require.NoError(t, s.SetReady("alice", true))
	h.clock.Advance(time.Minute)
	assert.Equal(t, Waiting, s.CurrentState())
	assert.Empty(t, h.emitter.named("round_start"))
}

func TestForfeitAndRevealOnSameTick(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	for i := 0; i < 3; i++ {
		h.play(t, s, "rock", "scissors")
		h.advance(t, h.timings.RevealDelay, func() bool { return s.CurrentState() == Active })
	}
	h.play(t, s, "rock", "scissors")
	require.Equal(t, Resolving, s.CurrentState())
	require.Equal(t, 0, s.Snapshot().RoundState["bob"])

	// окно переподключения bob кончается ровно тогда же, когда срабатывает показ результата
	require.True(t, h.reg.ParticipantDisconnected(s.ID(), "bob"))
	h.clock.AfterFunc(h.timings.RevealDelay, func() { h.reg.ReconnectExpired(s.ID(), "bob") })
	h.clock.Advance(h.timings.RevealDelay)

	waitFor(t, func() bool { return s.CurrentState() == Finished && s.ParticipantCount() == 1 })
	waitFor(t, func() bool { return h.recorder.count() == 1 })

	snap := s.Snapshot()
	require.NotNil(t, snap.Result)
	require.NotNil(t, snap.Result.WinnerID)
	assert.Equal(t, "alice", *snap.Result.WinnerID)
	assert.Len(t, h.emitter.named("match_result"), 1)
	assert.Never(t, func() bool { return h.recorder.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestBothAwayIsAbandoned(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)

	require.True(t, s.Disconnect("alice"))
	require.True(t, s.Disconnect("bob"))
	s.ExpireGrace("bob")

	snap := s.Snapshot()
	require.Equal(t, Finished, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "abandoned", snap.Result.Reason)
	assert.True(t, snap.Result.Draw)
	assert.Nil(t, snap.Result.WinnerID)

	s.ExpireGrace("alice")
	assert.Equal(t, 0, s.ParticipantCount())
	assert.Len(t, h.emitter.named("match_result"), 1)
}
