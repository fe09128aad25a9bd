package entity

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// SenderType identifies the side of a conversation.
type SenderType string

const (
	SenderTypeUser  SenderType = "user"
	SenderTypeAdmin SenderType = "admin"
)

func NewSenderType(v string) (SenderType, error) {
	switch SenderType(v) {
	case SenderTypeUser, SenderTypeAdmin:
		return SenderType(v), nil
	}
	return "", apperror.Newf(apperror.ErrCodeValidation, "userType: недопустимое значение %q", v)
}

// MaxMessageLength задаёт предел длины текста сообщения в символах.
const MaxMessageLength = 5000

// ChatMessage represents a message in an order chat. ID is assigned by the store.
type ChatMessage struct {
	ID          string                  `json:"id"`
	OrderID     uuid.UUID               `json:"orderId"`
	SenderID    uuid.UUID               `json:"senderId"`
	SenderType  SenderType              `json:"senderType"`
	MessageType valueobject.MessageType `json:"messageType"`
	Content     string                  `json:"content"`
	FileURL     string                  `json:"fileUrl,omitempty"`
	FileName    string                  `json:"fileName,omitempty"`
	FileSize    int64                   `json:"fileSize,omitempty"`
	MimeType    string                  `json:"mimeType,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// Attachment represents a stored message file.
type Attachment struct {
	URL      string
	Name     string
	Size     int64
	MimeType string
}

func NewTextMessage(orderID, senderID uuid.UUID, senderType SenderType, content string, now time.Time) (*ChatMessage, error) {
	if content == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "сообщение не может быть пустым")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "сообщение должно быть не более %d символов", MaxMessageLength)
	}
	return &ChatMessage{
		OrderID:     orderID,
		SenderID:    senderID,
		SenderType:  senderType,
		MessageType: valueobject.MessageTypeText,
		Content:     content,
		CreatedAt:   messageTime(now),
	}, nil
}

// NewFileMessage создаёт сообщение с файлом. Если текст не передан, в content попадает имя файла.
func NewFileMessage(orderID, senderID uuid.UUID, senderType SenderType, content string, att Attachment, now time.Time) *ChatMessage {
	if content == "" {
		content = att.Name
	}
	return &ChatMessage{
		OrderID:     orderID,
		SenderID:    senderID,
		SenderType:  senderType,
		MessageType: valueobject.MessageTypeForMime(att.MimeType),
		Content:     content,
		FileURL:     att.URL,
		FileName:    att.Name,
		FileSize:    att.Size,
		MimeType:    att.MimeType,
		CreatedAt:   messageTime(now),
	}
}

// messageTime округляет время до миллисекунд: с такой точностью его хранит MongoDB,
// и кадр рассылки совпадает с тем, что потом вернёт история.
func messageTime(now time.Time) time.Time {
	return now.Truncate(time.Millisecond)
}

// ActiveRoom represents the latest activity in one order chat.
type ActiveRoom struct {
	OrderID      uuid.UUID    `json:"orderId"`
	LastMessage  *ChatMessage `json:"lastMessage"`
	MessageCount int64        `json:"messageCount"`
}
