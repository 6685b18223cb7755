// Package presence связывает живые соединения с участниками матчей:
// аутентификация, heartbeat и окно переподключения.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"duel_arena/internal/logger"
	"duel_arena/internal/ports"
)

var ErrUnknownConnection = errors.New("соединение не найдено")

// Transport - то, что трекер умеет делать с сетевым соединением
type Transport interface {
	Probe(connID string) error
	Close(connID string)
}

// Rooms - сторона реестра комнат, которую видит трекер
type Rooms interface {
	ParticipantDisconnected(roomID, participantID string) bool
	ParticipantResumed(roomID, participantID string) bool
	ReconnectExpired(roomID, participantID string)
}

type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	ReconnectGrace    time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		ReconnectGrace:    20 * time.Second,
	}
}

// Record - единственная запись о живом соединении
type Record struct {
	ConnID        string    `json:"connId"`
	ParticipantID string    `json:"participantId"`
	DisplayName   string    `json:"displayName"`
	RoomID        string    `json:"roomId,omitempty"`
	ConnectedAt   time.Time `json:"connectedAt"`
}

type conn struct {
	Record
	probe    clockwork.Timer
	deadline clockwork.Timer
	beat     uint64
}

func (c *conn) stop() {
	if c.probe != nil {
		c.probe.Stop()
	}
	if c.deadline != nil {
		c.deadline.Stop()
	}
}

type grace struct {
	roomID   string
	token    uint64
	timer    clockwork.Timer
	resolved bool
}

type Deps struct {
	Clock     clockwork.Clock
	Identity  ports.IdentityResolver
	Rooms     Rooms
	Transport Transport
	Logger    *slog.Logger
}

// Tracker держит записи соединений и окна переподключения.
// Вызовы в Rooms и Transport делаются только после снятия mu
type Tracker struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu            sync.Mutex
	conns         map[string]*conn
	byParticipant map[string]string
	graces        map[string]*grace
	seq           uint64
}

func NewTracker(cfg Config, deps Deps) *Tracker {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Get()
	}
	return &Tracker{
		cfg:           cfg,
		deps:          deps,
		log:           deps.Logger.With("component", "presence"),
		conns:         make(map[string]*conn),
		byParticipant: make(map[string]string),
		graces:        make(map[string]*grace),
	}
}

// Connect аутентифицирует новое соединение. Если участник вернулся в окне
// переподключения, соединение сразу привязывается к его комнате
func (t *Tracker) Connect(ctx context.Context, connID, token string) (Record, error) {
	ident, err := t.deps.Identity.Authenticate(ctx, token)
	if err != nil {
		return Record{}, eris.Wrap(ports.ErrAuthFailure, err.Error())
	}

	t.mu.Lock()
	var superseded, inheritRoom, resumeRoom string
	if oldID, ok := t.byParticipant[ident.ParticipantID]; ok && oldID != connID {
		if old := t.conns[oldID]; old != nil {
			old.stop()
			delete(t.conns, oldID)
			superseded = oldID
			inheritRoom = old.RoomID
		}
	}
	if g, ok := t.graces[ident.ParticipantID]; ok && !g.resolved {
		g.resolved = true
		g.timer.Stop()
		delete(t.graces, ident.ParticipantID)
		resumeRoom = g.roomID
	}

	c := &conn{Record: Record{
		ConnID:        connID,
		ParticipantID: ident.ParticipantID,
		DisplayName:   ident.DisplayName,
		RoomID:        inheritRoom,
		ConnectedAt:   t.deps.Clock.Now(),
	}}
	t.conns[connID] = c
	t.byParticipant[ident.ParticipantID] = connID
	t.armProbeLocked(c)
	t.armDeadlineLocked(c)
	t.mu.Unlock()

	log := t.log.With("conn", connID, "participant", ident.ParticipantID)
	if superseded != "" {
		log.Info("старое соединение участника заменено", "old_conn", superseded)
		t.deps.Transport.Close(superseded)
	}
	if resumeRoom != "" {
		if t.deps.Rooms.ParticipantResumed(resumeRoom, ident.ParticipantID) {
			t.Bind(connID, resumeRoom)
			log.Info("участник вернулся в окне переподключения", "room", resumeRoom)
		}
	}

	rec, _ := t.Identity(connID)
	return rec, nil
}

func (t *Tracker) armProbeLocked(c *conn) {
	connID, beat := c.ConnID, c.beat
	c.probe = t.deps.Clock.AfterFunc(t.cfg.HeartbeatInterval, func() {
		t.mu.Lock()
		cur, ok := t.conns[connID]
		if !ok || cur != c {
			t.mu.Unlock()
			return
		}
		t.armProbeLocked(c)
		t.mu.Unlock()

		if err := t.deps.Transport.Probe(connID); err != nil {
			t.log.Debug("heartbeat не отправлен", "conn", connID, "beat", beat, "error", err)
		}
	})
}

func (t *Tracker) armDeadlineLocked(c *conn) {
	if c.deadline != nil {
		c.deadline.Stop()
	}
	c.beat++
	connID, beat := c.ConnID, c.beat
	c.deadline = t.deps.Clock.AfterFunc(t.cfg.HeartbeatTimeout, func() {
		t.mu.Lock()
		cur, ok := t.conns[connID]
		stale := !ok || cur != c || c.beat != beat
		t.mu.Unlock()
		if stale {
			return
		}

		t.log.Info("соединение не отвечает, закрываем", "conn", connID)
		t.Disconnect(connID)
		t.deps.Transport.Close(connID)
	})
}

// Touch - любая входящая активность соединения продлевает его жизнь
func (t *Tracker) Touch(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[connID]; ok {
		t.armDeadlineLocked(c)
	}
}

func (t *Tracker) Bind(connID, roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	c.RoomID = roomID
	return nil
}

func (t *Tracker) Unbind(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[connID]; ok {
		c.RoomID = ""
	}
}

func (t *Tracker) Identity(connID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[connID]
	if !ok {
		return Record{}, false
	}
	return c.Record, true
}

// Connections - соединения, привязанные к комнате
func (t *Tracker) Connections(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for id, c := range t.conns {
		if c.RoomID == roomID {
			out = append(out, id)
		}
	}
	return out
}

func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// Disconnect убирает запись. Если комната удерживает участника, открывается окно переподключения
func (t *Tracker) Disconnect(connID string) {
	t.mu.Lock()
	c, ok := t.conns[connID]
	if !ok {
		t.mu.Unlock()
		return
	}
	c.stop()
	delete(t.conns, connID)
	if t.byParticipant[c.ParticipantID] == connID {
		delete(t.byParticipant, c.ParticipantID)
	}
	t.mu.Unlock()

	if c.RoomID == "" {
		return
	}
	if t.deps.Rooms.ParticipantDisconnected(c.RoomID, c.ParticipantID) {
		t.startGrace(c.ParticipantID, c.RoomID)
	}
}

func (t *Tracker) startGrace(participantID, roomID string) {
	t.mu.Lock()
	// участник успел переподключиться, пока мы говорили с комнатой
	if live, ok := t.byParticipant[participantID]; ok {
		t.mu.Unlock()
		if t.deps.Rooms.ParticipantResumed(roomID, participantID) {
			t.Bind(live, roomID)
		}
		return
	}

	if old, ok := t.graces[participantID]; ok {
		old.timer.Stop()
	}
	t.seq++
	token := t.seq
	g := &grace{roomID: roomID, token: token}
	g.timer = t.deps.Clock.AfterFunc(t.cfg.ReconnectGrace, func() {
		t.expireGrace(participantID, token)
	})
	t.graces[participantID] = g
	t.mu.Unlock()

	t.log.Info("ожидаем переподключения", "participant", participantID, "room", roomID, "grace", t.cfg.ReconnectGrace)
}

// expireGrace уведомляет комнату ровно один раз; повторное срабатывание ничего не делает
func (t *Tracker) expireGrace(participantID string, token uint64) {
	t.mu.Lock()
	g, ok := t.graces[participantID]
	if !ok || g.token != token || g.resolved {
		t.mu.Unlock()
		return
	}
	g.resolved = true
	delete(t.graces, participantID)
	t.mu.Unlock()

	t.log.Info("окно переподключения истекло", "participant", participantID, "room", g.roomID)
	t.deps.Rooms.ReconnectExpired(g.roomID, participantID)
}

// Pending - ожидает ли участник переподключения
func (t *Tracker) Pending(participantID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.graces[participantID]
	return ok && !g.resolved
}
