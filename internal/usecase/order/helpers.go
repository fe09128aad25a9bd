package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/logger"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// Сколько раз перечитываем заказ при конфликте версий.
const maxSaveAttempts = 3

// mutateOrder читает заказ, применяет fn и сохраняет результат.
// При параллельной записи операция повторяется на свежей версии заказа.
func mutateOrder(ctx context.Context, repo repository.OrderRepository, id uuid.UUID, fn func(o *entity.Order) error) (*entity.Order, error) {
	for attempt := 1; ; attempt++ {
		o, err := repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(o); err != nil {
			return nil, err
		}

		err = repo.Save(ctx, o)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, apperror.ErrConcurrentUpdate) || attempt >= maxSaveAttempts {
			return nil, err
		}

		logger.Log.WithFields(logrus.Fields{
			"order_id": id,
			"attempt":  attempt,
		}).Debug("order: конфликт версий, повторяем")
	}
}

// publish отправляет событие и только логирует ошибку.
func publish(ctx context.Context, publisher repository.EventPublisher, event entity.OrderEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"order_id": event.OrderID,
			"event":    event.Type,
			"error":    err.Error(),
		}).Warn("order: не удалось опубликовать событие")
	}
}
