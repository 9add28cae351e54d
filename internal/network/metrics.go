package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics - метрики игрового сервера одного процесса
type Metrics struct {
	Connections    prometheus.Gauge
	Players        prometheus.Gauge
	Rooms          prometheus.Gauge
	Messages       *prometheus.CounterVec // {type}
	ProtocolErrors prometheus.Counter
	Rejected       *prometheus.CounterVec   // {reason}
	HandleDuration *prometheus.HistogramVec // {type}
	BlockChanges   prometheus.Counter
	DroppedPeers   prometheus.Counter
}

// NewMetrics регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockverse",
			Name:      "connections",
			Help:      "Открытые соединения клиентов.",
		}),
		Players: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockverse",
			Name:      "players_in_rooms",
			Help:      "Игроки, находящиеся в комнатах.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "blockverse",
			Name:      "rooms",
			Help:      "Существующие комнаты.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockverse",
			Name:      "messages_total",
			Help:      "Обработанные сообщения клиентов по типу.",
		}, []string{"type"}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "blockverse",
			Name:      "protocol_errors_total",
			Help:      "Отброшенные неразборчивые сообщения.",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockverse",
			Name:      "rejected_total",
			Help:      "Запросы, получившие error.",
		}, []string{"reason"}),
		HandleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockverse",
			Name:      "handle_duration_seconds",
			Help:      "Время обработки сообщения диспетчером.",
			Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"type"}),
		BlockChanges: f.NewCounter(prometheus.CounterOpts{
			Namespace: "blockverse",
			Name:      "block_changes_total",
			Help:      "Записи, добавленные в журналы комнат.",
		}),
		DroppedPeers: f.NewCounter(prometheus.CounterOpts{
			Namespace: "blockverse",
			Name:      "dropped_peers_total",
			Help:      "Соединения, закрытые из-за переполненной очереди отправки.",
		}),
	}
}
