package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/dto"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
	"github.com/ignatzorin/orderdesk-backend/internal/ws"
)

// Типы входящих кадров.
const (
	frameMessage = "message"
	framePing    = "ping"
	framePong    = "pong"
)

// WSOptions holds limits for chat connections.
type WSOptions struct {
	CheckOrigin func(r *http.Request) bool
	RatePerSec  float64
	RateBurst   int
}

// WSHandler принимает WebSocket соединения чата и передаёт входящие кадры в конвейер.
type WSHandler struct {
	upgrader websocket.Upgrader
	hub      *ws.Hub
	chat     *chat.Service
	pipeline *chat.Pipeline
	opts     WSOptions
}

func NewWSHandler(hub *ws.Hub, chatService *chat.Service, pipeline *chat.Pipeline, opts WSOptions) *WSHandler {
	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		hub:      hub,
		chat:     chatService,
		pipeline: pipeline,
		opts:     opts,
	}
}

// Connect handles GET /api/chat/ws?token=&orderId=&userType=
// Права проверяются до апгрейда, поэтому отказ приходит обычным HTTP ответом.
func (h *WSHandler) Connect(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, err := uuid.Parse(c.Query("orderId"))
	if err != nil {
		response.BadRequest(c, "параметр orderId должен быть валидным UUID")
		return
	}

	sender, err := h.chat.AuthorizeConnection(c.Request.Context(), orderID, actor, c.Query("userType"))
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.WithField("error", err.Error()).Warn("ws: апгрейд не удался")
		return
	}

	client := ws.NewClient(conn, h.hub, h.newLimiter())
	h.hub.Register(client, ws.Session{
		OrderID:  sender.OrderID,
		UserID:   sender.UserID,
		UserType: string(sender.Type),
		Role:     sender.Role,
	})

	client.SendJSON(ws.EventConnection, dto.ConnectionFrame{
		OrderID:  orderID.String(),
		UserType: string(sender.Type),
		RoomSize: h.hub.RoomSize(orderID),
	})

	logger.Log.WithFields(logrus.Fields{
		"connection_id": client.ID,
		"order_id":      orderID,
		"user_id":       actor.ID,
		"user_type":     sender.Type,
	}).Info("ws: соединение открыто")

	// Запрос уже завершён с точки зрения HTTP, контекст соединения живёт до его закрытия.
	client.Run(context.Background(), h)
}

// HandleFrame разбирает входящий кадр. Ошибка отправляется только этому соединению.
func (h *WSHandler) HandleFrame(ctx context.Context, client *ws.Client, raw []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.SendError("некорректный формат сообщения")
		return
	}

	switch frame.Type {
	case framePing:
		client.SendJSON(framePong, nil)
	case frameMessage:
		_, err := h.pipeline.Process(ctx, h.senderFor(client), frame.ToMessage())
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"connection_id": client.ID,
				"error":         err.Error(),
			}).Debug("ws: сообщение отклонено")
			client.SendError(publicMessage(err))
			// Сессия уже снята с регистрации: соединение больше не может писать в чат.
			if apperror.IsUnauthorized(err) {
				client.Close()
			}
		}
	default:
		client.SendError("неизвестный тип сообщения")
	}
}

// senderFor возвращает nil, если соединение уже снято с регистрации.
func (h *WSHandler) senderFor(client *ws.Client) *chat.Sender {
	s, ok := h.hub.Session(client)
	if !ok {
		return nil
	}
	return &chat.Sender{
		OrderID: s.OrderID,
		UserID:  s.UserID,
		Type:    entity.SenderType(s.UserType),
		Role:    s.Role,
	}
}

func (h *WSHandler) newLimiter() *rate.Limiter {
	if h.opts.RatePerSec <= 0 {
		return nil
	}
	burst := h.opts.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.opts.RatePerSec), burst)
}

func publicMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !apperror.IsInfrastructure(err) {
		return appErr.Message
	}
	return "не удалось обработать сообщение, попробуйте ещё раз"
}
