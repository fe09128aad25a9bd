package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

type UpdateOcrDataUseCase struct {
	orderRepo repository.OrderRepository
}

func NewUpdateOcrDataUseCase(orderRepo repository.OrderRepository) *UpdateOcrDataUseCase {
	return &UpdateOcrDataUseCase{orderRepo: orderRepo}
}

// Execute обновляет OCR данные пачкой: либо все документы, либо ни одного.
func (uc *UpdateOcrDataUseCase) Execute(ctx context.Context, orderID uuid.UUID, updates []entity.OcrUpdate, actor valueobject.Actor) (*entity.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	return mutateOrder(ctx, uc.orderRepo, orderID, func(o *entity.Order) error {
		return o.UpdateOcrData(updates, time.Now().UTC())
	})
}
