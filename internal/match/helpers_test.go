package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"duel_arena/internal/game"
	"duel_arena/internal/logger"
	"duel_arena/internal/ports"
)

type event struct {
	room    string
	name    string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []event
}

func (e *recordingEmitter) Emit(roomID, name string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event{room: roomID, name: name, payload: payload})
}

func (e *recordingEmitter) named(name string) []event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []event
	for _, ev := range e.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []ports.MatchResult
	err   error
}

func (f *fakeRecorder) RecordMatchResult(_ context.Context, res ports.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, res)
	return f.err
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRecorder) last() ports.MatchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeRewards struct {
	mu      sync.Mutex
	granted map[string]int64
	calls   int
}

func (f *fakeRewards) GrantExperience(_ context.Context, id string, amount int64) (ports.RewardGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.granted == nil {
		f.granted = make(map[string]int64)
	}
	f.granted[id] += amount
	f.calls++
	return ports.RewardGrant{NewLevel: 2, LeveledUp: true}, nil
}

func (f *fakeRewards) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	clock    *clockwork.FakeClock
	emitter  *recordingEmitter
	recorder *fakeRecorder
	rewards  *fakeRewards
	reg      *Registry
	timings  Timings
}

func testTimings() Timings {
	return Timings{
		CountdownTicks:    3,
		CountdownInterval: time.Second,
		LoadTimeout:       5 * time.Second,
		RoundTimeout:      10 * time.Second,
		RevealDelay:       2 * time.Second,
		FinishedDelay:     4 * time.Second,
		SettleTimeout:     time.Second,
		CleanupDelay:      30 * time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    clockwork.NewFakeClock(),
		emitter:  &recordingEmitter{},
		recorder: &fakeRecorder{},
		rewards:  &fakeRewards{},
		timings:  testTimings(),
	}
	h.reg = NewRegistry(Deps{
		Clock:    h.clock,
		Emitter:  h.emitter,
		Recorder: h.recorder,
		Rewards:  h.rewards,
		Logger:   logger.Nop(),
		Timings:  h.timings,
	})
	return h
}

var (
	alice = ports.Identity{ParticipantID: "alice", DisplayName: "Alice"}
	bob   = ports.Identity{ParticipantID: "bob", DisplayName: "Bob"}
	carol = ports.Identity{ParticipantID: "carol", DisplayName: "Carol"}
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond)
}

func (h *harness) waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	waitFor(t, func() bool { return s.CurrentState() == want })
}

// advance сдвигает часы и ждет, пока сработавший таймер доработает
func (h *harness) advance(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	h.clock.Advance(d)
	waitFor(t, cond)
}

func (h *harness) room(t *testing.T, cfg RoomConfig) *Session {
	t.Helper()
	s, err := h.reg.CreateRoom(cfg)
	require.NoError(t, err)
	return s
}

// activeRoom проводит комнату через лобби и отсчет до первого раунда
func (h *harness) activeRoom(t *testing.T) *Session {
	t.Helper()
	s := h.room(t, RoomConfig{Name: "duel", Mode: game.ModeDuel})
	_, err := h.reg.JoinRoom(s.ID(), alice, "")
	require.NoError(t, err)
	_, err = h.reg.JoinRoom(s.ID(), bob, "")
	require.NoError(t, err)

	require.NoError(t, s.SetReady("alice", true))
	require.NoError(t, s.SetReady("bob", true))
	require.Equal(t, Starting, s.CurrentState())

	for want := 2; want >= 0; want-- {
		w := want
		h.advance(t, h.timings.CountdownInterval, func() bool {
			return s.Snapshot().Countdown == w && (w > 0 || s.CurrentState() == Active)
		})
	}
	require.NoError(t, s.ClientLoaded("alice"))
	require.NoError(t, s.ClientLoaded("bob"))
	return s
}

func (h *harness) play(t *testing.T, s *Session, a, b game.Action) {
	t.Helper()
	rounds := len(s.Snapshot().History)
	require.NoError(t, s.SubmitAction("alice", a))
	require.NoError(t, s.SubmitAction("bob", b))
	waitFor(t, func() bool { return len(s.Snapshot().History) == rounds+1 })
}
