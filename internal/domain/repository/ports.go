package repository

import (
	"context"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
)

// StoredObject represents the result of an object storage upload.
type StoredObject struct {
	URL string
	Key string
}

// ObjectStorage defines durable file storage.
type ObjectStorage interface {
	Put(ctx context.Context, prefix string, data []byte, filename, mimeType string) (StoredObject, error)
}

// EventPublisher отправляет события заказов подписчикам. Ошибка публикации не отменяет операцию.
type EventPublisher interface {
	Publish(ctx context.Context, event entity.OrderEvent) error
}
