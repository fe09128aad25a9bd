package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ignatzorin/orderdesk-backend/internal/goroutine"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Файл до 10 МБ в base64 плюс JSON обёртка.
	maxFrameSize = 15 * 1024 * 1024
	sendBuffer   = 32
)

// Исходящие события.
const (
	EventConnection = "connection"
	EventError      = "error"
)

// InboundHandler обрабатывает входящие кадры одного соединения.
type InboundHandler interface {
	HandleFrame(ctx context.Context, client *Client, raw []byte)
}

// Client представляет одно подключение WebSocket.
type Client struct {
	ID      uuid.UUID
	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
	limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient создаёт клиента. limiter ограничивает входящие кадры и может быть nil.
func NewClient(conn *websocket.Conn, hub *Hub, limiter *rate.Limiter) *Client {
	return &Client{
		ID:      uuid.New(),
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		done:    make(chan struct{}),
	}
}

// Run запускает обработку исходящих кадров и блокируется на чтении входящих.
func (c *Client) Run(ctx context.Context, handler InboundHandler) {
	goroutine.SafeGo("ws.write-pump", c.writePump)
	c.readPump(ctx, handler)
}

// IsOpen сообщает, что соединение ещё не закрыто.
func (c *Client) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close снимает соединение с регистрации и закрывает его. Повторный вызов безопасен.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// SendJSON ставит адресный кадр в очередь только этому соединению.
func (c *Client) SendJSON(event string, data any) bool {
	raw, err := encodeFrame(event, data)
	if err != nil {
		logger.Log.WithField("error", err.Error()).Error("ws: адресный кадр не отправлен")
		return false
	}
	return c.enqueue(raw)
}

// SendError отправляет ошибку только этому соединению.
func (c *Client) SendError(message string) bool {
	return c.SendJSON(EventError, map[string]string{"message": message})
}

func (c *Client) enqueue(raw []byte) bool {
	if !c.IsOpen() {
		return false
	}
	select {
	case c.send <- raw:
		return true
	default:
		return false
	}
}

func (c *Client) readPump(ctx context.Context, handler InboundHandler) {
	defer c.Close()
	defer goroutine.Recover("ws.read-pump")

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.WithFields(logrus.Fields{
					"connection_id": c.ID,
					"error":         err.Error(),
				}).Debug("ws: соединение разорвано")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if c.limiter != nil && !c.limiter.Allow() {
			c.SendError("слишком много сообщений, подождите")
			continue
		}
		if handler != nil {
			handler.HandleFrame(ctx, c, raw)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
