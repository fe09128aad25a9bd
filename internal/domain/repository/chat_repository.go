package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
)

// ChatMessageRepository хранит сообщения чатов заказов.
type ChatMessageRepository interface {
	// Create назначает сообщению ID.
	Create(ctx context.Context, msg *entity.ChatMessage) error
	// FindByOrderID возвращает сообщения по возрастанию времени создания.
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]*entity.ChatMessage, error)
	// List возвращает все сообщения, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*entity.ChatMessage, int64, error)
	// ActiveRooms возвращает последнее сообщение каждого чата, новые первыми.
	ActiveRooms(ctx context.Context) ([]*entity.ActiveRoom, error)
	Delete(ctx context.Context, id string) error
}
