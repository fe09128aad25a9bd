package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/http/middleware"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
	"github.com/ignatzorin/orderdesk-backend/internal/ws"
)

type memoryChat struct {
	mu       sync.Mutex
	messages []*entity.ChatMessage
}

func (m *memoryChat) Create(ctx context.Context, msg *entity.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = fmt.Sprintf("m%d", len(m.messages)+1)
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memoryChat) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ChatMessage
	for _, msg := range m.messages {
		if msg.OrderID == orderID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryChat) List(ctx context.Context, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages, int64(len(m.messages)), nil
}

func (m *memoryChat) ActiveRooms(ctx context.Context) ([]*entity.ActiveRoom, error) {
	return nil, nil
}

func (m *memoryChat) Delete(ctx context.Context, id string) error {
	return apperror.ErrMessageNotFound
}

type chatFixture struct {
	order    *entity.Order
	owner    valueobject.Actor
	admin    valueobject.Actor
	messages *memoryChat
	hub      *ws.Hub
	service  *chat.Service
	pipeline *chat.Pipeline
}

func newChatFixture() *chatFixture {
	owner := valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleUser}
	o := entity.NewOrder(owner.ID, uuid.New(), nil, nil, time.Now().UTC())
	repo := &mockOrderRepo{}
	repo.On("FindByID", mock.Anything, o.ID).Return(o, nil)
	repo.On("FindByID", mock.Anything, mock.Anything).Return(nil, apperror.ErrOrderNotFound)

	messages := &memoryChat{}
	hub := ws.NewHub(nil)
	return &chatFixture{
		order:    o,
		owner:    owner,
		admin:    valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin},
		messages: messages,
		hub:      hub,
		service:  chat.NewService(repo, nil, messages),
		pipeline: chat.NewPipeline(messages, nil, hub, nil, 0),
	}
}

// wsServer поднимает маршрут чата, где пользователь берётся из заголовка X-Test-Role.
func (f *chatFixture) wsServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewWSHandler(f.hub, f.service, f.pipeline, WSOptions{
		CheckOrigin: func(*http.Request) bool { return true },
	})

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		actor := f.owner
		if c.GetHeader("X-Test-Role") == "admin" {
			actor = f.admin
		}
		c.Set(middleware.ContextUserIDKey, actor.ID)
		c.Set(middleware.ContextRoleKey, actor.Role)
	}, h.Connect)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		f.hub.CloseAll()
		srv.Close()
	})
	return srv
}

func dialChat(t *testing.T, srv *httptest.Server, orderID uuid.UUID, userType string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?orderId=" + orderID.String() + "&userType=" + userType
	header := http.Header{}
	if userType == "admin" {
		header.Set("X-Test-Role", "admin")
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readWSFrame(t *testing.T, conn *websocket.Conn) ws.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame ws.Frame
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestWSHandler_MessageReachesBothSides(t *testing.T) {
	f := newChatFixture()
	srv := f.wsServer(t)

	user, _, err := dialChat(t, srv, f.order.ID, "user")
	require.NoError(t, err)
	defer user.Close()
	assert.Equal(t, ws.EventConnection, readWSFrame(t, user).Type)

	admin, _, err := dialChat(t, srv, f.order.ID, "admin")
	require.NoError(t, err)
	defer admin.Close()
	connected := readWSFrame(t, admin)
	assert.Equal(t, ws.EventConnection, connected.Type)
	assert.Equal(t, float64(2), connected.Data.(map[string]any)["roomSize"])

	require.NoError(t, user.WriteJSON(map[string]string{"type": "message", "content": "  добрый день  "}))

	for _, conn := range []*websocket.Conn{user, admin} {
		frame := readWSFrame(t, conn)
		require.Equal(t, chat.EventMessage, frame.Type)
		data := frame.Data.(map[string]any)
		assert.Equal(t, "добрый день", data["content"])
		assert.Equal(t, "user", data["senderType"])
		assert.Equal(t, f.owner.ID.String(), data["senderId"])
	}

	history, err := f.messages.FindByOrderID(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWSHandler_ErrorsGoOnlyToSender(t *testing.T) {
	f := newChatFixture()
	srv := f.wsServer(t)

	user, _, err := dialChat(t, srv, f.order.ID, "user")
	require.NoError(t, err)
	defer user.Close()
	readWSFrame(t, user)

	admin, _, err := dialChat(t, srv, f.order.ID, "admin")
	require.NoError(t, err)
	defer admin.Close()
	readWSFrame(t, admin)

	require.NoError(t, user.WriteJSON(map[string]string{"type": "message", "content": "   "}))
	assert.Equal(t, ws.EventError, readWSFrame(t, user).Type)

	require.NoError(t, user.WriteMessage(websocket.TextMessage, []byte("{broken")))
	assert.Equal(t, ws.EventError, readWSFrame(t, user).Type)

	require.NoError(t, user.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readWSFrame(t, user).Type)

	require.NoError(t, admin.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = admin.ReadMessage()
	assert.Error(t, err, "администратор не должен получать чужие ошибки")

	history, err := f.messages.FindByOrderID(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestWSHandler_RejectsBeforeUpgrade(t *testing.T) {
	f := newChatFixture()
	srv := f.wsServer(t)

	tests := []struct {
		name     string
		orderID  uuid.UUID
		userType string
		want     int
	}{
		{"unknown user type", f.order.ID, "guest", http.StatusBadRequest},
		{"unknown order", uuid.New(), "user", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := dialChat(t, srv, tt.orderID, tt.userType)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, f.hub.RoomSize(f.order.ID))
}

func TestWSHandler_ChatDisabledForUser(t *testing.T) {
	f := newChatFixture()
	f.order.Statuses.ChatStatus = valueobject.ToggleDisabled
	srv := f.wsServer(t)

	_, resp, err := dialChat(t, srv, f.order.ID, "user")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin, _, err := dialChat(t, srv, f.order.ID, "admin")
	require.NoError(t, err)
	defer admin.Close()
	assert.Equal(t, ws.EventConnection, readWSFrame(t, admin).Type)
}

func TestChatHandler_History(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newChatFixture()
	require.NoError(t, f.messages.Create(context.Background(), &entity.ChatMessage{OrderID: f.order.ID, Content: "привет"}))
	h := NewChatHandler(f.service, f.pipeline, 1024)

	r := gin.New()
	r.GET("/orders/:id/chat", withActor(f.owner), h.History)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+f.order.ID.String()+"/chat", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "привет")

	stranger := gin.New()
	stranger.GET("/orders/:id/chat", withActor(valueobject.Actor{ID: uuid.New(), Role: valueobject.RoleUser}), h.History)
	w = httptest.NewRecorder()
	stranger.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+f.order.ID.String()+"/chat", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestChatHandler_AdminViews(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newChatFixture()
	h := NewChatHandler(f.service, f.pipeline, 1024)

	r := gin.New()
	r.GET("/admin/chat/active", withActor(f.admin), h.ActiveRooms)
	r.DELETE("/admin/chat/messages/:messageId", withActor(f.admin), h.DeleteMessage)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/chat/active", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(decode(t, w).Data))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/chat/messages/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks map[string]HealthCheck
		want   int
	}{
		{"all healthy", map[string]HealthCheck{"postgres": ok, "mongo": ok}, http.StatusOK},
		{"mongo down", map[string]HealthCheck{"postgres": ok, "mongo": down}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", NewHealthHandler(tt.checks).Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.want, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "healthy", body.Checks["postgres"])
		})
	}
}

func TestWSHandler_LostSessionClosesConnection(t *testing.T) {
	f := newChatFixture()
	h := NewWSHandler(f.hub, f.service, f.pipeline, WSOptions{})
	frame := []byte(`{"type":"message","content":"привет"}`)

	registered := ws.NewClient(nil, f.hub, nil)
	f.hub.Register(registered, ws.Session{OrderID: f.order.ID, UserID: f.owner.ID, UserType: "user", Role: f.owner.Role})
	h.HandleFrame(context.Background(), registered, frame)
	assert.True(t, registered.IsOpen())

	orphan := ws.NewClient(nil, f.hub, nil)
	h.HandleFrame(context.Background(), orphan, frame)
	assert.False(t, orphan.IsOpen())

	history, err := f.messages.FindByOrderID(context.Background(), f.order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
