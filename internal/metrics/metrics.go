package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChatMetrics groups the collectors exported by the chat service. Each
// instance owns its registry so tests can build as many as they like.
type ChatMetrics struct {
	Registry *prometheus.Registry

	MessagesSent      prometheus.Counter
	SendFailures      prometheus.Counter
	HistoryFetches    prometheus.Counter
	ConversationLists prometheus.Counter
	RealtimePublished prometheus.Counter
	RealtimeDelivered prometheus.Counter
	RealtimeDropped   prometheus.Counter
	Subscribers       prometheus.Gauge
	RequestDuration   *prometheus.HistogramVec
}

func NewChatMetrics() *ChatMetrics {
	reg := prometheus.NewRegistry()
	m := &ChatMetrics{
		Registry: reg,
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "chat", Name: "messages_sent_total",
			Help: "Messages persisted by the chat service.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "chat", Name: "send_failures_total",
			Help: "Message sends rejected or failed.",
		}),
		HistoryFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "chat", Name: "history_fetches_total",
			Help: "Message history reads.",
		}),
		ConversationLists: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "chat", Name: "conversation_lists_total",
			Help: "Conversation list reads.",
		}),
		RealtimePublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "realtime", Name: "published_total",
			Help: "Insert events accepted for fan-out.",
		}),
		RealtimeDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "realtime", Name: "delivered_total",
			Help: "Insert events handed to subscribers.",
		}),
		RealtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecoshare", Subsystem: "realtime", Name: "dropped_total",
			Help: "Insert events dropped because a buffer was full.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ecoshare", Subsystem: "realtime", Name: "subscribers",
			Help: "Active topic subscriptions.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ecoshare", Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.MessagesSent,
		m.SendFailures,
		m.HistoryFetches,
		m.ConversationLists,
		m.RealtimePublished,
		m.RealtimeDelivered,
		m.RealtimeDropped,
		m.Subscribers,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *ChatMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument records request latency labelled by the matched route template.
func (m *ChatMetrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
