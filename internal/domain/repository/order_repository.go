package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
)

// OrderRepository хранит заказы на этапе рассмотрения.
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	// Save записывает статусы, новые записи журнала и документы.
	// Если заказ изменили параллельно, возвращает apperror.ErrConcurrentUpdate.
	Save(ctx context.Context, order *entity.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*entity.Order, int, error)
}

type OrderFilter struct {
	Status  string
	OwnerID *uuid.UUID
	Limit   int
	Offset  int
}

// FinalizedOrderRepository defines read access to finalized orders.
type FinalizedOrderRepository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.FinalizedOrder, error)
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]*entity.FinalizedOrder, error)
	List(ctx context.Context, limit, offset int) ([]*entity.FinalizedOrder, int, error)
}

// FinalizationTx defines operations available inside a finalization transaction.
type FinalizationTx interface {
	// LockOrder читает заказ с блокировкой строки до конца транзакции.
	LockOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	// InsertFinalized возвращает apperror.ErrAlreadyFinalized, если запись для заказа уже есть.
	InsertFinalized(ctx context.Context, finalized *entity.FinalizedOrder) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	SaveOrder(ctx context.Context, order *entity.Order) error
}

// Finalizer выполняет fn в одной транзакции: при ошибке или панике всё откатывается.
type Finalizer interface {
	WithinTx(ctx context.Context, fn func(tx FinalizationTx) error) error
}
