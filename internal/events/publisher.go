package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/goroutine"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/retry"
)

const (
	connectAttempts      = 5
	dialTimeout          = 3 * time.Second
	publishTimeout       = 2 * time.Second
	maxReconnectInterval = 30 * time.Second
)

// ErrNotConnected возвращается Publish, пока соединение с брокером восстанавливается.
var ErrNotConnected = errors.New("events: нет соединения с RabbitMQ")

// RabbitPublisher публикует события заказов в fanout exchange.
// Подписчики (push-уведомления, аналитика) привязывают к нему свои очереди.
// Publish никогда не ждёт брокер: переподключением занимается фоновый цикл.
type RabbitPublisher struct {
	url      string
	exchange string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitPublisher подключается к брокеру, объявляет exchange и запускает
// фоновое восстановление соединения.
func NewRabbitPublisher(ctx context.Context, url, exchange string) (*RabbitPublisher, error) {
	p := newRabbitPublisher(url, exchange)
	_, err := retry.Connect(ctx, "rabbitmq", connectAttempts, func(context.Context) (struct{}, error) {
		return struct{}{}, p.dial()
	})
	if err != nil {
		p.cancel()
		return nil, fmt.Errorf("events: подключение к RabbitMQ: %w", err)
	}
	p.start()
	return p, nil
}

func newRabbitPublisher(url, exchange string) *RabbitPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &RabbitPublisher{
		url:      url,
		exchange: exchange,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (p *RabbitPublisher) start() {
	goroutine.SafeGo("events.supervise", func() {
		defer close(p.done)
		p.supervise()
	})
}

// dial выполняет одну попытку подключения с коротким таймаутом.
func (p *RabbitPublisher) dial() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("events: открытие канала: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("events: объявление exchange %s: %w", p.exchange, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.ch = ch
	p.mu.Unlock()
	return nil
}

// supervise ждёт разрыва соединения или канала и переподключается с экспоненциальной
// задержкой, пока publisher не закрыт.
func (p *RabbitPublisher) supervise() {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = maxReconnectInterval

	for {
		p.mu.RLock()
		conn, ch := p.conn, p.ch
		p.mu.RUnlock()

		if conn != nil {
			connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
			chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

			var reason *amqp.Error
			select {
			case <-p.ctx.Done():
				return
			case reason = <-connClosed:
			case reason = <-chClosed:
			}
			if p.ctx.Err() != nil {
				return
			}
			fields := logrus.Fields{}
			if reason != nil {
				fields["error"] = reason.Error()
			}
			logger.Log.WithFields(fields).Warn("events: соединение с RabbitMQ потеряно, переподключаемся")

			p.mu.Lock()
			p.conn, p.ch = nil, nil
			p.mu.Unlock()
			_ = conn.Close()
		}

		for {
			if p.ctx.Err() != nil {
				return
			}
			err := p.dial()
			if err == nil {
				b.Reset()
				logger.Log.Info("events: соединение с RabbitMQ восстановлено")
				break
			}

			sleep := b.NextBackOff()
			if sleep == backoff.Stop {
				sleep = maxReconnectInterval
			}
			logger.Log.WithFields(logrus.Fields{
				"retry": sleep.String(),
				"error": err.Error(),
			}).Warn("events: не удалось переподключиться к RabbitMQ")

			select {
			case <-p.ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}
}

// Publish отправляет событие. Без живого соединения сразу возвращает ErrNotConnected.
func (p *RabbitPublisher) Publish(ctx context.Context, event entity.OrderEvent) error {
	msg, err := buildPublishing(event)
	if err != nil {
		return err
	}

	p.mu.RLock()
	ch := p.ch
	p.mu.RUnlock()
	if ch == nil || ch.IsClosed() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("events: публикация %s: %w", event.Type, err)
	}

	logger.Log.WithFields(logrus.Fields{
		"event":    event.Type,
		"order_id": event.OrderID,
	}).Debug("events: событие опубликовано")
	return nil
}

// Close останавливает переподключение и закрывает канал и соединение.
func (p *RabbitPublisher) Close() error {
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func buildPublishing(event entity.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: сериализация %s: %w", event.Type, err)
	}

	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    ts,
		Type:         event.Type,
		Body:         body,
	}, nil
}

// NopPublisher используется, когда брокер не настроен.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event entity.OrderEvent) error {
	return nil
}
