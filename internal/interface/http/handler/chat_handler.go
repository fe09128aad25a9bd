package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/dto"
	"github.com/ignatzorin/orderdesk-backend/internal/interface/http/response"
	"github.com/ignatzorin/orderdesk-backend/internal/usecase/chat"
)

// ChatHandler обслуживает HTTP маршруты чата.
type ChatHandler struct {
	chat          *chat.Service
	pipeline      *chat.Pipeline
	maxUploadSize int64
}

func NewChatHandler(chatService *chat.Service, pipeline *chat.Pipeline, maxUploadSize int64) *ChatHandler {
	return &ChatHandler{chat: chatService, pipeline: pipeline, maxUploadSize: maxUploadSize}
}

// History возвращает переписку по заказу в порядке отправки.
func (h *ChatHandler) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	messages, err := h.chat.History(c.Request.Context(), orderID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ChatMessages(messages))
}

// Upload сохраняет файл администратора как сообщение чата и возвращает его.
// Поля формы: file и необязательный message.
func (h *ChatHandler) Upload(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := paramUUID(c, "orderId")
	if !ok {
		return
	}

	sender, err := h.chat.AuthorizeConnection(c.Request.Context(), orderID, actor, string(entity.SenderTypeAdmin))
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	msg, err := h.pipeline.Upload(c.Request.Context(), *sender, c.PostForm("message"), file.Name, file.MimeType, file.Data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

func (h *ChatHandler) AllMessages(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c, 50, 200)

	messages, total, err := h.chat.AllMessages(c.Request.Context(), actor, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ChatMessages(messages), int(total), limit, offset)
}

func (h *ChatHandler) ActiveRooms(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	rooms, err := h.chat.ActiveRooms(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ActiveRooms(rooms))
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.chat.DeleteMessage(c.Request.Context(), c.Param("messageId"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
