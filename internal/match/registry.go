package match

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"duel_arena/internal/game"
	"duel_arena/internal/ports"
)

type cleanupEntry struct {
	token uint64
	timer clockwork.Timer
}

// Registry владеет всеми сессиями и таймерами удаления пустых комнат
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session

	cleanupMu sync.Mutex
	cleanups  map[string]*cleanupEntry
	seq       uint64
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
		cleanups: make(map[string]*cleanupEntry),
	}
}

// CreateRoom создает комнату в Waiting. Пустая комната сразу ставится на удаление
func (r *Registry) CreateRoom(cfg RoomConfig) (*Session, error) {
	strategy, err := game.StrategyFor(cfg.Mode)
	if err != nil {
		return nil, err
	}
	cfg.Mode = strategy.Mode
	if cfg.Capacity != 0 && cfg.Capacity != Seats {
		return nil, ErrInvalidCapacity
	}
	cfg.Capacity = Seats
	if cfg.Name == "" {
		cfg.Name = "Room"
	}

	id := uuid.NewString()
	s := newSession(id, cfg, strategy, r.deps, r)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	r.deps.Observer.RoomsChanged(1)
	r.armCleanup(id)
	r.deps.Logger.Info("комната создана", "room", id, "mode", cfg.Mode, "private", cfg.IsPrivate)
	return s, nil
}

func (r *Registry) Get(roomID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return s, nil
}

// Delete закрывает сессию и убирает ее из реестра
func (r *Registry) Delete(roomID string) error {
	r.mu.Lock()
	s, ok := r.sessions[roomID]
	if ok {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()
	if !ok {
		return ErrRoomNotFound
	}

	s.Close()
	r.cancelCleanup(roomID)
	r.deps.Observer.RoomsChanged(-1)
	r.deps.Emitter.Emit(roomID, "room_closed", map[string]any{"roomId": roomID})
	r.deps.Logger.Info("комната удалена", "room", roomID)
	return nil
}

// Shutdown закрывает все комнаты при остановке процесса
func (r *Registry) Shutdown() {
	for _, s := range r.all() {
		_ = r.Delete(s.id)
	}
}

// deleteIfEmpty проверяет пустоту под блокировкой реестра, чтобы вход
// между проверкой и удалением был невозможен
func (r *Registry) deleteIfEmpty(roomID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[roomID]
	if !ok || !s.closeIfEmpty() {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, roomID)
	r.mu.Unlock()

	r.deps.Observer.RoomsChanged(-1)
	r.deps.Emitter.Emit(roomID, "room_closed", map[string]any{"roomId": roomID})
	r.deps.Logger.Info("пустая комната удалена", "room", roomID)
	return true
}

func (r *Registry) rosterChanged(roomID string, count int) {
	if count > 0 {
		r.cancelCleanup(roomID)
		return
	}
	r.armCleanup(roomID)
}

// armCleanup ставит новый таймер; сработать может только последний поставленный
func (r *Registry) armCleanup(roomID string) {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()

	if old, ok := r.cleanups[roomID]; ok {
		old.timer.Stop()
	}
	r.seq++
	token := r.seq
	timer := r.deps.Clock.AfterFunc(r.deps.Timings.CleanupDelay, func() {
		r.fireCleanup(roomID, token)
	})
	r.cleanups[roomID] = &cleanupEntry{token: token, timer: timer}
}

func (r *Registry) cancelCleanup(roomID string) {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()

	if c, ok := r.cleanups[roomID]; ok {
		c.timer.Stop()
		delete(r.cleanups, roomID)
	}
}

func (r *Registry) fireCleanup(roomID string, token uint64) {
	r.cleanupMu.Lock()
	c, ok := r.cleanups[roomID]
	if !ok || c.token != token {
		r.cleanupMu.Unlock()
		return
	}
	delete(r.cleanups, roomID)
	r.cleanupMu.Unlock()

	r.deleteIfEmpty(roomID)
}

func (r *Registry) cleanupArmed(roomID string) bool {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()
	_, ok := r.cleanups[roomID]
	return ok
}

func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// ListPublic - открытые комнаты в лобби, где есть место и кто-то ждет
func (r *Registry) ListPublic() []RoomInfo {
	out := make([]RoomInfo, 0)
	for _, s := range r.all() {
		info := s.Info()
		if info.IsPrivate || info.State != Waiting {
			continue
		}
		if info.CurrentParticipants == 0 || info.CurrentParticipants >= info.MaxParticipants {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Registry) JoinRoom(roomID string, id ports.Identity, password string) (Snapshot, error) {
	s, err := r.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Join(id, password); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (r *Registry) LeaveRoom(roomID, participantID string) error {
	s, err := r.Get(roomID)
	if err != nil {
		return err
	}
	return s.Leave(participantID)
}

func (r *Registry) SetReady(roomID, participantID string, ready bool) error {
	s, err := r.Get(roomID)
	if err != nil {
		return err
	}
	return s.SetReady(participantID, ready)
}

func (r *Registry) SubmitAction(roomID, participantID string, action game.Action) error {
	s, err := r.Get(roomID)
	if err != nil {
		return err
	}
	return s.SubmitAction(participantID, action)
}

func (r *Registry) ClientLoaded(roomID, participantID string) error {
	s, err := r.Get(roomID)
	if err != nil {
		return err
	}
	return s.ClientLoaded(participantID)
}

func (r *Registry) Snapshot(roomID string) (Snapshot, error) {
	s, err := r.Get(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// ParticipantDisconnected - true если сессия удерживает участника до конца окна переподключения
func (r *Registry) ParticipantDisconnected(roomID, participantID string) bool {
	s, err := r.Get(roomID)
	if err != nil {
		return false
	}
	return s.Disconnect(participantID)
}

func (r *Registry) ParticipantResumed(roomID, participantID string) bool {
	s, err := r.Get(roomID)
	if err != nil {
		return false
	}
	return s.Resume(participantID)
}

func (r *Registry) ReconnectExpired(roomID, participantID string) {
	s, err := r.Get(roomID)
	if err != nil {
		return
	}
	s.ExpireGrace(participantID)
}

// Sweep - страховка на случай потерянного таймера: удаляет комнаты,
// пустые дольше CleanupDelay и без взведенного таймера
func (r *Registry) Sweep() int {
	now := r.deps.Clock.Now()
	removed := 0
	for _, s := range r.all() {
		if r.cleanupArmed(s.id) {
			continue
		}
		s.lock()
		stale := len(s.participants) == 0 && now.Sub(s.emptySince) >= r.deps.Timings.CleanupDelay
		s.unlock()
		if stale && r.deleteIfEmpty(s.id) {
			removed++
		}
	}
	return removed
}

// Stats - число комнат по состояниям для метрик
type Stats struct {
	Rooms        int
	Participants int
	ByState      map[State]int
}

func (r *Registry) Stats() Stats {
	st := Stats{ByState: make(map[State]int)}
	for _, s := range r.all() {
		info := s.Info()
		st.Rooms++
		st.Participants += info.CurrentParticipants
		st.ByState[info.State]++
	}
	return st
}
