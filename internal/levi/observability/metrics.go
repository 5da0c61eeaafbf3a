// Package observability groups the Prometheus instruments exported by Levi.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	MessagesHandled *prometheus.CounterVec
	Replies         *prometheus.CounterVec
	MemoriesStored  *prometheus.CounterVec
	MemorySearches  prometheus.Counter
	RemindersFired  *prometheus.CounterVec
}

// NewMetrics registers and returns the bot's instruments under the given
// namespace. Must be called at most once per process (promauto registers
// globally).
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_handled_total",
			Help:      "Inbound messages handled, by selected persona.",
		}, []string{"persona"}),
		Replies: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_total",
			Help:      "Generated replies by outcome (ok or fallback).",
		}, []string{"outcome"}),
		MemoriesStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_stored_total",
			Help:      "Long-term memory records stored, by kind.",
		}, []string{"kind"}),
		MemorySearches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_searches_total",
			Help:      "Similarity searches against long-term memory.",
		}),
		RemindersFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_fired_total",
			Help:      "Scheduled reminder firings, by action.",
		}, []string{"action"}),
	}
}

// MetricsHandler returns the HTTP handler serving the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
