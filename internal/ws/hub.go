package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/logger"
)

// Session represents the identity bound to a connection for its lifetime.
type Session struct {
	OrderID  uuid.UUID
	UserID   uuid.UUID
	UserType string
	Role     string
}

// Frame описывает конверт всех сообщений WebSocket: type содержит имя события, data — полезную нагрузку.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub хранит реестр живых соединений чатов, сгруппированных по заказу.
// Состояние хранится только в памяти процесса, поэтому рассылка не выходит
// за пределы одного экземпляра сервиса.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Client]Session
	rooms    map[uuid.UUID]map[*Client]struct{}

	connections prometheus.Gauge
}

// NewHub создаёт реестр. connections может быть nil.
func NewHub(connections prometheus.Gauge) *Hub {
	return &Hub{
		sessions:    make(map[*Client]Session),
		rooms:       make(map[uuid.UUID]map[*Client]struct{}),
		connections: connections,
	}
}

// Register привязывает соединение к сессии. Повторная регистрация переносит соединение в другой чат.
func (h *Hub) Register(client *Client, s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.sessions[client]; ok {
		h.leaveRoomLocked(client, prev.OrderID)
	} else if h.connections != nil {
		h.connections.Inc()
	}

	h.sessions[client] = s
	room, ok := h.rooms[s.OrderID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[s.OrderID] = room
	}
	room[client] = struct{}{}
}

// Unregister удаляет соединение. Для незарегистрированного соединения ничего не делает.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[client]
	if !ok {
		return
	}
	delete(h.sessions, client)
	h.leaveRoomLocked(client, s.OrderID)
	if h.connections != nil {
		h.connections.Dec()
	}
}

func (h *Hub) leaveRoomLocked(client *Client, orderID uuid.UUID) {
	room, ok := h.rooms[orderID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, orderID)
	}
}

// Session возвращает сессию соединения.
func (h *Hub) Session(client *Client) (Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[client]
	return s, ok
}

// RoomSize возвращает число зарегистрированных соединений чата заказа.
func (h *Hub) RoomSize(orderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[orderID])
}

// Broadcast отправляет событие всем открытым соединениям чата заказа и возвращает
// число соединений, которым кадр поставлен в очередь. Закрытые соединения и
// соединения с переполненным буфером пропускаются.
func (h *Hub) Broadcast(orderID uuid.UUID, event string, data any) int {
	raw, err := encodeFrame(event, data)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"order_id": orderID,
			"event":    event,
			"error":    err.Error(),
		}).Error("ws: не удалось сериализовать сообщение")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered, dropped := 0, 0
	for client := range h.rooms[orderID] {
		if !client.IsOpen() {
			continue
		}
		// Соединение снимается только по собственному разрыву, медленному клиенту кадр не достаётся.
		if client.enqueue(raw) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		logger.Log.WithFields(logrus.Fields{
			"order_id": orderID,
			"event":    event,
			"dropped":  dropped,
		}).Warn("ws: буфер соединения переполнен, кадр пропущен")
	}
	return delivered
}

// CloseAll закрывает все соединения, например при остановке сервиса.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions))
	for c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

// encodeFrame используется клиентом для адресных кадров.
func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(Frame{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}
