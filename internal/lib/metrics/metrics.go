// Package metrics описывает prometheus-метрики движка алертов.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения label result.
const (
	ResultOK          = "ok"
	ResultFeedError   = "feed_error"
	ResultStoreError  = "store_error"
	ResultPanic       = "panic"
	ResultSent        = "sent"
	ResultFailed      = "failed"
	ResultNoAddress   = "no_address"
	ResultParseFailed = "parse_failed"
)

// Engine набор метрик движка. Методы безопасно вызывать на nil.
type Engine struct {
	cycles        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	duration      prometheus.Histogram
	evaluated     prometheus.Counter
}

// NewEngine создаёт метрики и регистрирует их в reg.
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_alert_cycles_total",
			Help: "Poll cycles by outcome.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_alert_notifications_total",
			Help: "Triggered subscriptions by delivery outcome.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "price_alert_cycle_duration_seconds",
			Help:    "Duration of a poll cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "price_alert_subscriptions_evaluated_total",
			Help: "Subscriptions evaluated against a price snapshot.",
		}),
	}
	reg.MustRegister(m.cycles, m.notifications, m.duration, m.evaluated)
	return m
}

// ObserveCycle учитывает завершённый цикл.
func (m *Engine) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

// IncNotification учитывает исход по одной сработавшей подписке.
func (m *Engine) IncNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// AddEvaluated учитывает n проверенных подписок.
func (m *Engine) AddEvaluated(n int) {
	if m == nil {
		return
	}
	m.evaluated.Add(float64(n))
}
