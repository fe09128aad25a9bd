package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

type GetOrderUseCase struct {
	orderRepo repository.OrderRepository
}

func NewGetOrderUseCase(orderRepo repository.OrderRepository) *GetOrderUseCase {
	return &GetOrderUseCase{orderRepo: orderRepo}
}

// Execute возвращает заказ владельцу или администратору.
func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) (*entity.Order, error) {
	o, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeViewedBy(actor) {
		return nil, apperror.ErrNotOrderOwner
	}
	return o, nil
}

type ListMyOrdersUseCase struct {
	orderRepo repository.OrderRepository
}

func NewListMyOrdersUseCase(orderRepo repository.OrderRepository) *ListMyOrdersUseCase {
	return &ListMyOrdersUseCase{orderRepo: orderRepo}
}

func (uc *ListMyOrdersUseCase) Execute(ctx context.Context, ownerID uuid.UUID) ([]*entity.Order, error) {
	return uc.orderRepo.FindByOwnerID(ctx, ownerID)
}

type ListOrdersUseCase struct {
	orderRepo repository.OrderRepository
}

func NewListOrdersUseCase(orderRepo repository.OrderRepository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orderRepo: orderRepo}
}

func (uc *ListOrdersUseCase) Execute(ctx context.Context, filter repository.OrderFilter) ([]*entity.Order, int, error) {
	if filter.Status != "" {
		if _, err := valueobject.NewOrderStatus(filter.Status); err != nil {
			return nil, 0, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.orderRepo.List(ctx, filter)
}

type ListFinalizedUseCase struct {
	finalizedRepo repository.FinalizedOrderRepository
}

func NewListFinalizedUseCase(finalizedRepo repository.FinalizedOrderRepository) *ListFinalizedUseCase {
	return &ListFinalizedUseCase{finalizedRepo: finalizedRepo}
}

func (uc *ListFinalizedUseCase) Mine(ctx context.Context, ownerID uuid.UUID) ([]*entity.FinalizedOrder, error) {
	return uc.finalizedRepo.FindByOwnerID(ctx, ownerID)
}

func (uc *ListFinalizedUseCase) All(ctx context.Context, limit, offset int) ([]*entity.FinalizedOrder, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.finalizedRepo.List(ctx, limit, offset)
}
