// Package metrics exposes Prometheus collectors for persistence, live
// event delivery, notifications and the learning counters.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursetrack/coursetrack/internal/domain"
)

const namespace = "coursetrack"

// Metrics owns a private registry. It implements store.SaveObserver,
// sse.DeliveryObserver and progress.StatsObserver.
type Metrics struct {
	registry *prometheus.Registry

	saveDuration  *prometheus.HistogramVec
	saveBytes     *prometheus.GaugeVec
	saveErrors    *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
	sseEvents     *prometheus.CounterVec
	sseClients    prometheus.Gauge
	notifications *prometheus.CounterVec

	watchTime       prometheus.Gauge
	completedVideos prometheus.Gauge
	currentStreak   prometheus.Gauge
	longestStreak   prometheus.Gauge
}

// New registers every collector, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		saveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "save_duration_seconds",
			Help:      "Time taken to persist the state blob.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"backend"}),
		saveBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "state_bytes",
			Help:      "Size of the last persisted state blob.",
		}, []string{"backend"}),
		saveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "save_errors_total",
			Help:      "Failed state saves.",
		}, []string{"backend"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "corrupt_recoveries_total",
			Help:      "Undecodable state blobs replaced by the default state.",
		}, []string{"backend"}),
		sseEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "deliveries_total",
			Help:      "Per-client event deliveries by outcome.",
		}, []string{"event_type", "outcome"}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "clients",
			Help:      "Connected SSE clients.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "pushed_total",
			Help:      "Notifications raised, by type.",
		}, []string{"type"}),
		watchTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "watch_time_seconds",
			Help:      "Accumulated watch time.",
		}),
		completedVideos: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "completed_videos",
			Help:      "Videos completed at least once.",
		}),
		currentStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "current_streak_days",
			Help:      "Current learning streak.",
		}),
		longestStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "longest_streak_days",
			Help:      "Longest learning streak.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.saveDuration, m.saveBytes, m.saveErrors, m.recoveries,
		m.sseEvents, m.sseClients, m.notifications,
		m.watchTime, m.completedVideos, m.currentStreak, m.longestStreak,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSave records one save attempt.
func (m *Metrics) ObserveSave(backend string, took time.Duration, size int, err error) {
	if err != nil {
		m.saveErrors.WithLabelValues(backend).Inc()
		return
	}
	m.saveDuration.WithLabelValues(backend).Observe(took.Seconds())
	m.saveBytes.WithLabelValues(backend).Set(float64(size))
}

// ObserveRecovery counts a corrupt blob that was set aside.
func (m *Metrics) ObserveRecovery(backend string) {
	m.recoveries.WithLabelValues(backend).Inc()
}

// ObserveBroadcast records how one event fanned out.
func (m *Metrics) ObserveBroadcast(eventType string, delivered, dropped int) {
	if delivered > 0 {
		m.sseEvents.WithLabelValues(eventType, "delivered").Add(float64(delivered))
	}
	if dropped > 0 {
		m.sseEvents.WithLabelValues(eventType, "dropped").Add(float64(dropped))
	}
}

// ObserveClients sets the connected client gauge.
func (m *Metrics) ObserveClients(n int) {
	m.sseClients.Set(float64(n))
}

// NotificationPushed counts n. It matches notify.Options.OnPush.
func (m *Metrics) NotificationPushed(n domain.Notification) {
	m.notifications.WithLabelValues(string(n.Type)).Inc()
}

// SetStats mirrors the aggregate counters into the gauges.
func (m *Metrics) SetStats(s domain.UserStats) {
	m.watchTime.Set(s.TotalWatchTime)
	m.completedVideos.Set(float64(s.CompletedVideos))
	m.currentStreak.Set(float64(s.CurrentStreak))
	m.longestStreak.Set(float64(s.LongestStreak))
}

// StatsChanged implements progress.StatsObserver.
func (m *Metrics) StatsChanged(_ context.Context, _, next domain.UserStats) {
	m.SetStats(next)
}
