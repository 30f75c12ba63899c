package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akarpovich/notification-service/internal/model"
)

// Metrics collects dispatch pipeline counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	createdTotal     *prometheus.CounterVec
	deliveredTotal   *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	publishFailTotal *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		createdTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_created_total",
				Help: "Total number of notification records created",
			},
			[]string{"channel"},
		),
		deliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_delivered_total",
				Help: "Total number of delivery outcomes by terminal status",
			},
			[]string{"channel", "status"},
		),
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_delivery_attempts_total",
				Help: "Total number of send attempts, including retries",
			},
			[]string{"channel"},
		),
		publishFailTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_publish_failures_total",
				Help: "Records persisted but never published to the broker",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		m.createdTotal,
		m.deliveredTotal,
		m.attemptsTotal,
		m.publishFailTotal,
	)

	return m
}

func (m *Metrics) Created(channel model.Channel) {
	m.createdTotal.WithLabelValues(string(channel)).Inc()
}

func (m *Metrics) Delivered(channel model.Channel, status model.Status) {
	m.deliveredTotal.WithLabelValues(string(channel), string(status)).Inc()
}

func (m *Metrics) DeliveryAttempt(channel model.Channel) {
	m.attemptsTotal.WithLabelValues(string(channel)).Inc()
}

func (m *Metrics) PublishFailed(channel model.Channel) {
	m.publishFailTotal.WithLabelValues(string(channel)).Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
