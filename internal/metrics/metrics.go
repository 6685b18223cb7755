// Package metrics - prometheus-коллекторы движка матчей
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"duel_arena/internal/match"
)

const namespace = "duel_arena"

// Metrics реализует match.Observer
type Metrics struct {
	Rooms         prometheus.Gauge
	RoomsByState  *prometheus.GaugeVec
	Participants  prometheus.Gauge
	Connections   prometheus.Gauge
	MatchesTotal  *prometheus.CounterVec
	RoundsTotal   *prometheus.CounterVec
	ForfeitsTotal *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	SweptRooms    prometheus.Counter
}

var _ match.Observer = (*Metrics)(nil)

// New регистрирует коллекторы в reg. Для тестов передавайте prometheus.NewRegistry()
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_active",
			Help: "Число комнат в реестре",
		}),
		RoomsByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rooms_by_state",
			Help: "Комнаты по состоянию машины",
		}, []string{"state"}),
		Participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "participants",
			Help: "Участники во всех комнатах",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connections",
			Help: "Активные websocket-соединения",
		}),
		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "matches_finished_total",
			Help: "Завершенные матчи",
		}, []string{"mode", "reason"}),
		RoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_resolved_total",
			Help: "Разыгранные раунды",
		}, []string{"mode"}),
		ForfeitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "forfeits_total",
			Help: "Технические поражения",
		}, []string{"mode"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "collaborator_failures_total",
			Help: "Ошибки хранилища и системы наград",
		}, []string{"kind"}),
		SweptRooms: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rooms_swept_total",
			Help: "Комнаты, удаленные уборщиком",
		}),
	}
	reg.MustRegister(
		m.Rooms, m.RoomsByState, m.Participants, m.Connections,
		m.MatchesTotal, m.RoundsTotal, m.ForfeitsTotal, m.FailuresTotal, m.SweptRooms,
	)
	return m
}

func (m *Metrics) RoundResolved(mode string) { m.RoundsTotal.WithLabelValues(mode).Inc() }

func (m *Metrics) MatchFinished(mode, reason string) {
	m.MatchesTotal.WithLabelValues(mode, reason).Inc()
}

func (m *Metrics) Forfeit(mode string) { m.ForfeitsTotal.WithLabelValues(mode).Inc() }

func (m *Metrics) CollaboratorFailure(kind string) { m.FailuresTotal.WithLabelValues(kind).Inc() }

func (m *Metrics) RoomsChanged(delta int) { m.Rooms.Add(float64(delta)) }

var allStates = []match.State{match.Waiting, match.Starting, match.Active, match.Resolving, match.Finished}

// Refresh выставляет гейджи по снимку реестра, исправляя накопленный дрейф
func (m *Metrics) Refresh(st match.Stats, connections int) {
	m.Rooms.Set(float64(st.Rooms))
	m.Participants.Set(float64(st.Participants))
	m.Connections.Set(float64(connections))
	for _, state := range allStates {
		m.RoomsByState.WithLabelValues(string(state)).Set(float64(st.ByState[state]))
	}
}

func (m *Metrics) Swept(n int) { m.SweptRooms.Add(float64(n)) }
