package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duel_arena/internal/logger"
	"duel_arena/internal/match"
)

type fakeRooms struct {
	sweeps atomic.Int32
	swept  int
}

func (f *fakeRooms) Sweep() int {
	f.sweeps.Add(1)
	return f.swept
}

func (f *fakeRooms) Stats() match.Stats {
	return match.Stats{Rooms: 3, Participants: 4, ByState: map[match.State]int{match.Waiting: 3}}
}

type fakeConns int

func (c fakeConns) Count() int { return int(c) }

type fakeGauges struct {
	mu    sync.Mutex
	stats match.Stats
	conns int
	swept int
}

func (g *fakeGauges) Refresh(st match.Stats, connections int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats, g.conns = st, connections
}

func (g *fakeGauges) Swept(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.swept += n
}

func TestJanitorRunOnce(t *testing.T) {
	rooms := &fakeRooms{swept: 2}
	gauges := &fakeGauges{}
	j := NewJanitor(rooms, fakeConns(7), gauges, time.Minute, logger.Nop())

	j.RunOnce()

	assert.Equal(t, int32(1), rooms.sweeps.Load())
	assert.Equal(t, 2, gauges.swept)
	assert.Equal(t, 3, gauges.stats.Rooms)
	assert.Equal(t, 7, gauges.conns)
}

func TestJanitorWithoutGauges(t *testing.T) {
	rooms := &fakeRooms{}
	j := NewJanitor(rooms, nil, nil, 0, logger.Nop())
	assert.Equal(t, time.Minute, j.interval)

	j.RunOnce()
	assert.Equal(t, int32(1), rooms.sweeps.Load())
}

func TestJanitorStartRunsImmediately(t *testing.T) {
	rooms := &fakeRooms{}
	j := NewJanitor(rooms, fakeConns(0), &fakeGauges{}, time.Hour, logger.Nop())

	require.NoError(t, j.Start())
	t.Cleanup(func() { _ = j.Stop() })

	assert.Eventually(t, func() bool { return rooms.sweeps.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
}
