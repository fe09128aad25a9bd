package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer регистрирует каждое соединение в чате заказа из параметра orderId.
func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID := uuid.MustParse(r.URL.Query().Get("orderId"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, nil)
		hub.Register(client, Session{OrderID: orderID, UserID: uuid.New(), UserType: "user"})
		client.Run(context.Background(), nil)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, orderID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?orderId=" + orderID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestHub_BroadcastReachesOnlySameOrder(t *testing.T) {
	hub := NewHub(nil)
	srv := newTestServer(t, hub)
	orderA, orderB := uuid.New(), uuid.New()

	a1 := dial(t, srv, orderA)
	a2 := dial(t, srv, orderA)
	b1 := dial(t, srv, orderB)

	require.Eventually(t, func() bool {
		return hub.RoomSize(orderA) == 2 && hub.RoomSize(orderB) == 1
	}, 2*time.Second, 10*time.Millisecond)

	delivered := hub.Broadcast(orderA, "message", map[string]string{"content": "привет"})
	assert.Equal(t, 2, delivered)

	for _, conn := range []*websocket.Conn{a1, a2} {
		f := readFrame(t, conn)
		assert.Equal(t, "message", f.Type)
		assert.Equal(t, map[string]any{"content": "привет"}, f.Data)
	}

	require.NoError(t, b1.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := b1.ReadMessage()
	assert.Error(t, err, "соединение другого заказа не должно получить сообщение")
}

func TestHub_DisconnectRemovesSession(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_connections"})
	hub := NewHub(gauge)
	srv := newTestServer(t, hub)
	orderID := uuid.New()

	conn := dial(t, srv, orderID)
	require.Eventually(t, func() bool { return hub.RoomSize(orderID) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge))

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return hub.RoomSize(orderID) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
	assert.Equal(t, 0, hub.Broadcast(orderID, "message", "x"))
}

func TestHub_UnregisterWithoutRegisterIsSafe(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_connections"})
	hub := NewHub(gauge)
	client := &Client{send: make(chan []byte, 1), done: make(chan struct{})}

	assert.NotPanics(t, func() {
		hub.Unregister(client)
		hub.Unregister(client)
	})
	_, ok := hub.Session(client)
	assert.False(t, ok)
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))
}

func TestHub_ClosedClientSkipped(t *testing.T) {
	hub := NewHub(nil)
	orderID := uuid.New()
	open := &Client{send: make(chan []byte, 1), done: make(chan struct{})}
	closed := &Client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.Register(open, Session{OrderID: orderID})
	hub.Register(closed, Session{OrderID: orderID})
	close(closed.done)

	delivered := hub.Broadcast(orderID, "message", "hello")

	assert.Equal(t, 1, delivered)
	assert.Len(t, open.send, 1)
	assert.Len(t, closed.send, 0)
}

func TestHub_RegisterMovesBetweenRooms(t *testing.T) {
	hub := NewHub(nil)
	orderA, orderB := uuid.New(), uuid.New()
	client := &Client{send: make(chan []byte, 1), done: make(chan struct{})}

	hub.Register(client, Session{OrderID: orderA})
	hub.Register(client, Session{OrderID: orderB, UserType: "admin"})

	assert.Equal(t, 0, hub.RoomSize(orderA))
	assert.Equal(t, 1, hub.RoomSize(orderB))
	s, ok := hub.Session(client)
	require.True(t, ok)
	assert.Equal(t, "admin", s.UserType)
}

func TestClient_SendErrorOnlyToItself(t *testing.T) {
	hub := NewHub(nil)
	orderID := uuid.New()
	sender := &Client{send: make(chan []byte, 1), done: make(chan struct{})}
	peer := &Client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.Register(sender, Session{OrderID: orderID})
	hub.Register(peer, Session{OrderID: orderID})

	require.True(t, sender.SendError("файл слишком большой"))

	require.Len(t, sender.send, 1)
	assert.Len(t, peer.send, 0)
	var f Frame
	require.NoError(t, json.Unmarshal(<-sender.send, &f))
	assert.Equal(t, EventError, f.Type)
}

func TestHub_FullBufferSkipsFrameKeepsClient(t *testing.T) {
	hub := NewHub(nil)
	orderID := uuid.New()
	slow := &Client{send: make(chan []byte, 1), done: make(chan struct{})}
	fast := &Client{send: make(chan []byte, 2), done: make(chan struct{})}
	hub.Register(slow, Session{OrderID: orderID})
	hub.Register(fast, Session{OrderID: orderID})

	assert.Equal(t, 2, hub.Broadcast(orderID, "message", "first"))
	assert.Equal(t, 1, hub.Broadcast(orderID, "message", "second"))

	assert.True(t, slow.IsOpen())
	assert.Equal(t, 2, hub.RoomSize(orderID))
	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 2)
}
