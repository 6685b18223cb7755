package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duel_arena/internal/game"
)

func TestJoinRoomErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.reg.JoinRoom("missing", alice, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	priv := h.room(t, RoomConfig{Name: "secret", IsPrivate: true, Password: "hunter2"})
	_, err = h.reg.JoinRoom(priv.ID(), alice, "nope")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = h.reg.JoinRoom(priv.ID(), alice, "hunter2")
	require.NoError(t, err)

	// повторный вход участника не ошибка
	snap, err := h.reg.JoinRoom(priv.ID(), alice, "")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.ParticipantCount)

	_, err = h.reg.JoinRoom(priv.ID(), bob, "hunter2")
	require.NoError(t, err)
	_, err = h.reg.JoinRoom(priv.ID(), carol, "hunter2")
	assert.ErrorIs(t, err, ErrRoomFull)

	started := h.activeRoom(t)
	_, err = h.reg.JoinRoom(started.ID(), carol, "")
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)
}

func TestCreateRoomUnknownMode(t *testing.T) {
	h := newHarness(t)
	_, err := h.reg.CreateRoom(RoomConfig{Mode: "chess"})
	assert.ErrorIs(t, err, game.ErrUnknownMode)
}

func TestListPublicFilters(t *testing.T) {
	h := newHarness(t)

	empty := h.room(t, RoomConfig{Name: "empty"})
	private := h.room(t, RoomConfig{Name: "private", IsPrivate: true})
	require.NoError(t, private.Join(alice, ""))

	full := h.room(t, RoomConfig{Name: "full"})
	require.NoError(t, full.Join(alice, ""))
	require.NoError(t, full.Join(bob, ""))

	h.clock.Advance(time.Millisecond)
	open1 := h.room(t, RoomConfig{Name: "open-1"})
	require.NoError(t, open1.Join(carol, ""))
	h.clock.Advance(time.Millisecond)
	open2 := h.room(t, RoomConfig{Name: "open-2"})
	require.NoError(t, open2.Join(bob, ""))

	started := h.activeRoom(t)

	list := h.reg.ListPublic()
	ids := make([]string, 0, len(list))
	for _, info := range list {
		ids = append(ids, info.ID)
	}
	assert.Equal(t, []string{open1.ID(), open2.ID()}, ids)
	assert.NotContains(t, ids, empty.ID())
	assert.NotContains(t, ids, started.ID())
}

func TestEmptyRoomCleanup(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Name: "tmp"})
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Leave("alice"))

	h.clock.Advance(h.timings.CleanupDelay - time.Second)
	_, err := h.reg.Get(s.ID())
	require.NoError(t, err)

	h.advance(t, time.Second, func() bool {
		_, err := h.reg.Get(s.ID())
		return err != nil
	})
	assert.Empty(t, h.reg.ListPublic())
	assert.Len(t, h.emitter.named("room_closed"), 1)
}

func TestJoinCancelsCleanup(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Name: "tmp"})

	h.clock.Advance(h.timings.CleanupDelay / 2)
	require.NoError(t, s.Join(alice, ""))
	waitFor(t, func() bool { return !h.reg.cleanupArmed(s.ID()) })

	h.clock.Advance(h.timings.CleanupDelay)
	_, err := h.reg.Get(s.ID())
	require.NoError(t, err)
}

// только последний взведенный таймер может удалить комнату
func TestCleanupFlapping(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Name: "tmp"})

	h.clock.Advance(20 * time.Second)
	require.NoError(t, s.Join(alice, ""))
	require.NoError(t, s.Leave("alice"))
	waitFor(t, func() bool { return h.reg.cleanupArmed(s.ID()) })

	// первый таймер истек бы здесь
	h.clock.Advance(15 * time.Second)
	_, err := h.reg.Get(s.ID())
	require.NoError(t, err)

	h.advance(t, 15*time.Second, func() bool {
		_, err := h.reg.Get(s.ID())
		return err != nil
	})
}

func TestLastLeaveInFinishedArmsCleanup(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)
	require.True(t, s.Disconnect("bob"))
	s.ExpireGrace("bob")
	require.Equal(t, Finished, s.CurrentState())

	require.NoError(t, h.reg.LeaveRoom(s.ID(), "alice"))
	waitFor(t, func() bool { return h.reg.cleanupArmed(s.ID()) })

	h.advance(t, h.timings.CleanupDelay, func() bool {
		_, err := h.reg.Get(s.ID())
		return err != nil
	})
	assert.Empty(t, h.reg.ListPublic())
}

func TestSweepRemovesStaleRooms(t *testing.T) {
	h := newHarness(t)
	s := h.room(t, RoomConfig{Name: "lost"})
	h.reg.cancelCleanup(s.ID())

	assert.Equal(t, 0, h.reg.Sweep())
	h.clock.Advance(h.timings.CleanupDelay)
	assert.Equal(t, 1, h.reg.Sweep())
	_, err := h.reg.Get(s.ID())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDeleteStopsTimers(t *testing.T) {
	h := newHarness(t)
	s := h.activeRoom(t)
	require.NoError(t, h.reg.Delete(s.ID()))
	assert.ErrorIs(t, h.reg.Delete(s.ID()), ErrRoomNotFound)

	h.clock.Advance(time.Minute)
	assert.Equal(t, Active, s.CurrentState())
	assert.Empty(t, h.emitter.named("round_result"))

	_, err := h.reg.JoinRoom(s.ID(), carol, "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.activeRoom(t)
	s := h.room(t, RoomConfig{})
	require.NoError(t, s.Join(carol, ""))

	st := h.reg.Stats()
	assert.Equal(t, 2, st.Rooms)
	assert.Equal(t, 3, st.Participants)
	assert.Equal(t, 1, st.ByState[Active])
	assert.Equal(t, 1, st.ByState[Waiting])
}

func TestShutdownClosesAllRooms(t *testing.T) {
	h := newHarness(t)
	h.activeRoom(t)
	h.room(t, RoomConfig{})

	h.reg.Shutdown()

	assert.Equal(t, 0, h.reg.Stats().Rooms)
	assert.Len(t, h.emitter.named("room_closed"), 2)
}

func TestCreateRoomSeatsAreFixed(t *testing.T) {
	h := newHarness(t)

	for _, capacity := range []int{1, 3, -1} {
		_, err := h.reg.CreateRoom(RoomConfig{Capacity: capacity})
		assert.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", capacity)
	}

	s := h.room(t, RoomConfig{})
	assert.Equal(t, Seats, s.Info().MaxParticipants)
	s = h.room(t, RoomConfig{Capacity: Seats})
	assert.Equal(t, Seats, s.Info().MaxParticipants)
}
