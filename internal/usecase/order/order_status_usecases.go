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

type StartProcessingUseCase struct {
	orderRepo repository.OrderRepository
	events    repository.EventPublisher
}

func NewStartProcessingUseCase(orderRepo repository.OrderRepository, events repository.EventPublisher) *StartProcessingUseCase {
	return &StartProcessingUseCase{orderRepo: orderRepo, events: events}
}

func (uc *StartProcessingUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) (*entity.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	o, err := mutateOrder(ctx, uc.orderRepo, orderID, func(o *entity.Order) error {
		return o.StartProcessing(actor, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, uc.events, entity.NewStatusEvent(entity.EventOrderStatusChanged, o, actor.ID, entity.ActionStartProcessing))
	return o, nil
}

type CompleteOrderUseCase struct {
	orderRepo repository.OrderRepository
	events    repository.EventPublisher
}

func NewCompleteOrderUseCase(orderRepo repository.OrderRepository, events repository.EventPublisher) *CompleteOrderUseCase {
	return &CompleteOrderUseCase{orderRepo: orderRepo, events: events}
}

func (uc *CompleteOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) (*entity.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	o, err := mutateOrder(ctx, uc.orderRepo, orderID, func(o *entity.Order) error {
		return o.Complete(actor, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, uc.events, entity.NewStatusEvent(entity.EventOrderStatusChanged, o, actor.ID, entity.ActionCompleteOrder))
	return o, nil
}

type PatchStatusesUseCase struct {
	orderRepo repository.OrderRepository
	events    repository.EventPublisher
}

func NewPatchStatusesUseCase(orderRepo repository.OrderRepository, events repository.EventPublisher) *PatchStatusesUseCase {
	return &PatchStatusesUseCase{orderRepo: orderRepo, events: events}
}

func (uc *PatchStatusesUseCase) Execute(ctx context.Context, orderID uuid.UUID, patch valueobject.StatusPatch, actor valueobject.Actor) (*entity.Order, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}

	// Значения проверяются до чтения заказа, чтобы ошибка валидации не зависела от его наличия.
	if _, err := patch.Apply(valueobject.DefaultStatusSnapshot()); err != nil {
		return nil, err
	}

	o, err := mutateOrder(ctx, uc.orderRepo, orderID, func(o *entity.Order) error {
		return o.PatchStatuses(patch, actor, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, uc.events, entity.NewStatusEvent(entity.EventOrderStatusChanged, o, actor.ID, entity.ActionPatchStatuses))
	return o, nil
}

// GetStatusHistoryUseCase возвращает журнал статусов заказа.
type GetStatusHistoryUseCase struct {
	orderRepo repository.OrderRepository
}

func NewGetStatusHistoryUseCase(orderRepo repository.OrderRepository) *GetStatusHistoryUseCase {
	return &GetStatusHistoryUseCase{orderRepo: orderRepo}
}

func (uc *GetStatusHistoryUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) ([]entity.StatusHistoryEntry, error) {
	o, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.CanBeViewedBy(actor) {
		return nil, apperror.ErrNotOrderOwner
	}
	return o.StatusHistory, nil
}
