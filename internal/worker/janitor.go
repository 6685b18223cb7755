// Package worker - фоновые задачи процесса
package worker

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rotisserie/eris"

	"duel_arena/internal/match"
)

// Rooms - то, что уборщик берет у реестра
type Rooms interface {
	Sweep() int
	Stats() match.Stats
}

type Connections interface {
	Count() int
}

// Gauges обновляются после каждой уборки
type Gauges interface {
	Refresh(st match.Stats, connections int)
	Swept(n int)
}

// Janitor периодически удаляет забытые пустые комнаты и пересчитывает гейджи
type Janitor struct {
	rooms    Rooms
	conns    Connections
	gauges   Gauges
	log      *slog.Logger
	interval time.Duration
	opts     []gocron.SchedulerOption

	sched gocron.Scheduler
}

func NewJanitor(rooms Rooms, conns Connections, gauges Gauges, interval time.Duration, log *slog.Logger, opts ...gocron.SchedulerOption) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{rooms: rooms, conns: conns, gauges: gauges, log: log, interval: interval, opts: opts}
}

// Start запускает планировщик, первый проход сразу
func (j *Janitor) Start() error {
	sched, err := gocron.NewScheduler(j.opts...)
	if err != nil {
		return eris.Wrap(err, "create scheduler")
	}
	_, err = sched.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(j.RunOnce),
		gocron.WithName("room-janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return eris.Wrap(err, "schedule janitor")
	}
	sched.Start()
	j.sched = sched
	j.log.Info("janitor запущен", "interval", j.interval)
	return nil
}

// RunOnce - один проход уборки
func (j *Janitor) RunOnce() {
	removed := j.rooms.Sweep()
	if removed > 0 {
		j.log.Info("удалены забытые комнаты", "count", removed)
	}
	if j.gauges == nil {
		return
	}
	j.gauges.Swept(removed)
	conns := 0
	if j.conns != nil {
		conns = j.conns.Count()
	}
	j.gauges.Refresh(j.rooms.Stats(), conns)
}

func (j *Janitor) Stop() error {
	if j.sched == nil {
		return nil
	}
	return eris.Wrap(j.sched.Shutdown(), "shutdown scheduler")
}
