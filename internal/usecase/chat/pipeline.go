package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// EventMessage is the outbound frame type for a new message.
const EventMessage = "message"

// Причины отказа для метрик.
const (
	RejectSession    = "session"
	RejectValidation = "validation"
	RejectStorage    = "storage"
	RejectPersist    = "persist"
)

// Broadcaster рассылает событие всем открытым соединениям чата заказа.
type Broadcaster interface {
	Broadcast(orderID uuid.UUID, event string, data any) int
}

// Observer получает счётчики конвейера. Может быть nil.
type Observer interface {
	MessageAccepted(messageType string)
	MessageRejected(reason string)
}

// Sender represents the sender identity taken from the registered session.
type Sender struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Type    entity.SenderType
	Role    string
}

// InboundFile represents a file in an incoming frame. Data holds base64 or a data URL.
type InboundFile struct {
	Data     string
	Name     string
	Size     int64
	MimeType string
}

type InboundMessage struct {
	Content string
	File    *InboundFile
}

// Pipeline проверяет, сохраняет и рассылает сообщения чата.
type Pipeline struct {
	messages    repository.ChatMessageRepository
	storage     repository.ObjectStorage
	broadcaster Broadcaster
	observer    Observer
	maxFileSize int64
}

func NewPipeline(messages repository.ChatMessageRepository, storage repository.ObjectStorage, broadcaster Broadcaster, observer Observer, maxFileSize int64) *Pipeline {
	if maxFileSize <= 0 || maxFileSize > valueobject.MaxChatFileSize {
		maxFileSize = valueobject.MaxChatFileSize
	}
	return &Pipeline{
		messages:    messages,
		storage:     storage,
		broadcaster: broadcaster,
		observer:    observer,
		maxFileSize: maxFileSize,
	}
}

// Process обрабатывает входящее сообщение из WebSocket. Рассылка выполняется
// только после успешного сохранения. Ошибка возвращается вызывающему и не рассылается.
func (p *Pipeline) Process(ctx context.Context, sender *Sender, in InboundMessage) (*entity.ChatMessage, error) {
	if sender == nil {
		p.rejected(RejectSession)
		return nil, apperror.ErrSessionNotRegistered
	}

	msg, err := p.build(ctx, *sender, in)
	if err != nil {
		return nil, err
	}

	if err := p.persist(ctx, msg); err != nil {
		return nil, err
	}

	delivered := 0
	if p.broadcaster != nil {
		delivered = p.broadcaster.Broadcast(msg.OrderID, EventMessage, msg)
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id":     msg.OrderID,
		"sender_id":    msg.SenderID,
		"message_type": msg.MessageType,
		"delivered":    delivered,
	}).Debug("chat: сообщение разослано")
	return msg, nil
}

// Upload сохраняет файл, загруженный администратором по HTTP. Сообщение не рассылается.
func (p *Pipeline) Upload(ctx context.Context, sender Sender, content, filename, declaredMime string, data []byte) (*entity.ChatMessage, error) {
	if err := p.checkSize(int64(len(data))); err != nil {
		p.rejected(RejectValidation)
		return nil, err
	}

	mimeType, err := valueobject.ResolveMimeType(valueobject.DetectMimeType(declaredMime, data), filename)
	if err != nil {
		p.rejected(RejectValidation)
		return nil, err
	}

	msg, err := p.attach(ctx, sender, strings.TrimSpace(content), filename, mimeType, data)
	if err != nil {
		return nil, err
	}
	if err := p.persist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *Pipeline) build(ctx context.Context, sender Sender, in InboundMessage) (*entity.ChatMessage, error) {
	content := strings.TrimSpace(in.Content)

	if in.File == nil {
		msg, err := entity.NewTextMessage(sender.OrderID, sender.UserID, sender.Type, content, time.Now().UTC())
		if err != nil {
			p.rejected(RejectValidation)
			return nil, err
		}
		return msg, nil
	}

	data, mimeType, err := p.validateFile(in.File)
	if err != nil {
		p.rejected(RejectValidation)
		return nil, err
	}
	return p.attach(ctx, sender, content, in.File.Name, mimeType, data)
}

// validateFile выполняет все проверки файла до обращения к хранилищу.
func (p *Pipeline) validateFile(f *InboundFile) ([]byte, string, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, "", apperror.New(apperror.ErrCodeValidation, "file.name: имя файла обязательно")
	}
	if err := p.checkSize(f.Size); err != nil {
		return nil, "", err
	}

	payload := stripDataURL(f.Data)
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > p.maxFileSize+2 {
		return nil, "", p.sizeError()
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", apperror.New(apperror.ErrCodeValidation, "file.data: некорректные данные base64")
	}
	if len(data) == 0 {
		return nil, "", apperror.New(apperror.ErrCodeValidation, "file.data: файл пустой")
	}
	if err := p.checkSize(int64(len(data))); err != nil {
		return nil, "", err
	}

	mimeType, err := valueobject.ResolveMimeType(f.MimeType, f.Name)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

func (p *Pipeline) attach(ctx context.Context, sender Sender, content, filename, mimeType string, data []byte) (*entity.ChatMessage, error) {
	stored, err := p.storage.Put(ctx, fmt.Sprintf("chat/%s", sender.OrderID), data, filename, mimeType)
	if err != nil {
		p.rejected(RejectStorage)
		logger.Log.WithFields(logrus.Fields{
			"order_id": sender.OrderID,
			"error":    err.Error(),
		}).Error("chat: не удалось загрузить файл")
		return nil, err
	}

	att := entity.Attachment{
		URL:      stored.URL,
		Name:     filename,
		Size:     int64(len(data)),
		MimeType: mimeType,
	}
	return entity.NewFileMessage(sender.OrderID, sender.UserID, sender.Type, content, att, time.Now().UTC()), nil
}

func (p *Pipeline) persist(ctx context.Context, msg *entity.ChatMessage) error {
	if err := p.messages.Create(ctx, msg); err != nil {
		p.rejected(RejectPersist)
		return err
	}
	if p.observer != nil {
		p.observer.MessageAccepted(string(msg.MessageType))
	}
	return nil
}

func (p *Pipeline) checkSize(size int64) error {
	if size > p.maxFileSize {
		return p.sizeError()
	}
	return nil
}

func (p *Pipeline) sizeError() error {
	return apperror.Newf(apperror.ErrCodeValidation, "file: размер превышает %d МБ", p.maxFileSize/(1024*1024))
}

func (p *Pipeline) rejected(reason string) {
	if p.observer != nil {
		p.observer.MessageRejected(reason)
	}
}

// stripDataURL отрезает префикс вида "data:image/png;base64,".
func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}
