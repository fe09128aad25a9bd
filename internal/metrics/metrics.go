package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
)

const namespace = "orderdesk"

// Metrics собирает счётчики чатов и событий заказов.
type Metrics struct {
	ChatConnections prometheus.Gauge

	chatMessages *prometheus.CounterVec
	chatRejected *prometheus.CounterVec
	orderEvents  *prometheus.CounterVec
}

// New регистрирует метрики в reg. nil означает prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ChatConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections",
			Help:      "Число открытых WebSocket соединений чатов.",
		}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Сохранённые сообщения чатов по типу.",
		}, []string{"message_type"}),
		chatRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "rejected_total",
			Help:      "Отклонённые сообщения чатов по причине.",
		}, []string{"reason"}),
		orderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "events_total",
			Help:      "События заказов по типу и результату публикации.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.ChatConnections, m.chatMessages, m.chatRejected, m.orderEvents)
	return m
}

func (m *Metrics) MessageAccepted(messageType string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(messageType).Inc()
}

func (m *Metrics) MessageRejected(reason string) {
	if m == nil {
		return
	}
	m.chatRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeEvent(event string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.orderEvents.WithLabelValues(event, result).Inc()
}

type instrumentedPublisher struct {
	next    repository.EventPublisher
	metrics *Metrics
}

// InstrumentPublisher считает каждую попытку публикации события заказа.
func InstrumentPublisher(next repository.EventPublisher, m *Metrics) repository.EventPublisher {
	return &instrumentedPublisher{next: next, metrics: m}
}

func (p *instrumentedPublisher) Publish(ctx context.Context, event entity.OrderEvent) error {
	err := p.next.Publish(ctx, event)
	p.metrics.observeEvent(event.Type, err)
	return err
}
