package order

import (
	"context"
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

// FinalizeInput represents the data of a finalized order record.
type FinalizeInput struct {
	OrderID         uuid.UUID
	OrderIdentifier string
	SelectorField   string
	TrackingStatus  string
}

func (in FinalizeInput) tracking(fallback valueobject.TrackingStatus) (valueobject.TrackingStatus, error) {
	if strings.TrimSpace(in.TrackingStatus) == "" {
		return fallback, nil
	}
	return valueobject.NewFinalizedTrackingStatus(in.TrackingStatus)
}

// ApproveOrderUseCase описывает путь администратора: итоговая запись создаётся,
// а заказ на рассмотрении удаляется в той же транзакции.
type ApproveOrderUseCase struct {
	finalizer repository.Finalizer
	events    repository.EventPublisher
}

func NewApproveOrderUseCase(finalizer repository.Finalizer, events repository.EventPublisher) *ApproveOrderUseCase {
	return &ApproveOrderUseCase{finalizer: finalizer, events: events}
}

func (uc *ApproveOrderUseCase) Execute(ctx context.Context, input FinalizeInput, actor valueobject.Actor) (*entity.FinalizedOrder, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	tracking, err := input.tracking(valueobject.TrackingApproved)
	if err != nil {
		return nil, err
	}

	var finalized *entity.FinalizedOrder
	err = uc.finalizer.WithinTx(ctx, func(tx repository.FinalizationTx) error {
		o, err := tx.LockOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if o.IsFinalized() {
			return apperror.ErrAlreadyFinalized
		}
		if o.Statuses.Status != valueobject.OrderStatusCompleted {
			return apperror.Newf(apperror.ErrCodeValidation, "одобрить можно только заказ в статусе %q, текущий статус %q", valueobject.OrderStatusCompleted, o.Statuses.Status)
		}

		finalized = entity.NewFinalizedOrder(o, input.OrderIdentifier, input.SelectorField, tracking, actor.ID, time.Now().UTC())
		if err := tx.InsertFinalized(ctx, finalized); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, o.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"order_id": finalized.OrderID,
		"admin_id": actor.ID,
	}).Info("order: заказ одобрен администратором")

	publish(ctx, uc.events, finalizedEvent(finalized, actor.ID, entity.ActionApprove))
	return finalized, nil
}

// FinalizeOrderUseCase описывает путь владельца: заказ остаётся для аудита со статусом finalized.
type FinalizeOrderUseCase struct {
	finalizer repository.Finalizer
	events    repository.EventPublisher
}

func NewFinalizeOrderUseCase(finalizer repository.Finalizer, events repository.EventPublisher) *FinalizeOrderUseCase {
	return &FinalizeOrderUseCase{finalizer: finalizer, events: events}
}

func (uc *FinalizeOrderUseCase) Execute(ctx context.Context, input FinalizeInput, actor valueobject.Actor) (*entity.FinalizedOrder, error) {
	// Роль проверяется до владения: администратор не финализирует даже свой заказ.
	if actor.IsAdmin() {
		return nil, apperror.ErrAdminCannotFinalize
	}
	tracking, err := input.tracking(valueobject.TrackingCompleted)
	if err != nil {
		return nil, err
	}

	var finalized *entity.FinalizedOrder
	err = uc.finalizer.WithinTx(ctx, func(tx repository.FinalizationTx) error {
		o, err := tx.LockOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !o.IsOwnedBy(actor.ID) {
			return apperror.ErrNotOrderOwner
		}
		if o.IsFinalized() {
			return apperror.ErrAlreadyFinalized
		}
		if o.Statuses.ApproveStatus != valueobject.ToggleEnabled {
			return apperror.New(apperror.ErrCodeValidation, "approveStatus: заказ ещё не разрешён к финализации")
		}

		now := time.Now().UTC()
		finalized = entity.NewFinalizedOrder(o, input.OrderIdentifier, input.SelectorField, tracking, actor.ID, now)
		if err := tx.InsertFinalized(ctx, finalized); err != nil {
			return err
		}
		if err := o.MarkFinalized(actor, now); err != nil {
			return err
		}
		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, uc.events, finalizedEvent(finalized, actor.ID, entity.ActionFinalize))
	return finalized, nil
}

// DeleteOrderUseCase удаляет заказ на рассмотрении без итоговой записи.
type DeleteOrderUseCase struct {
	orderRepo repository.OrderRepository
	events    repository.EventPublisher
}

func NewDeleteOrderUseCase(orderRepo repository.OrderRepository, events repository.EventPublisher) *DeleteOrderUseCase {
	return &DeleteOrderUseCase{orderRepo: orderRepo, events: events}
}

func (uc *DeleteOrderUseCase) Execute(ctx context.Context, orderID uuid.UUID, actor valueobject.Actor) error {
	if !actor.IsAdmin() {
		return apperror.ErrForbidden
	}

	o, err := uc.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := uc.orderRepo.Delete(ctx, orderID); err != nil {
		return err
	}

	publish(ctx, uc.events, entity.OrderEvent{
		Type:       entity.EventOrderDeleted,
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		ActorID:    actor.ID,
		Status:     string(o.Statuses.Status),
		OccurredAt: time.Now().UTC(),
	})
	return nil
}

func finalizedEvent(f *entity.FinalizedOrder, actorID uuid.UUID, action string) entity.OrderEvent {
	return entity.OrderEvent{
		Type:           entity.EventOrderFinalized,
		OrderID:        f.OrderID,
		OwnerID:        f.OwnerID,
		ActorID:        actorID,
		Action:         action,
		Status:         string(valueobject.OrderStatusFinalized),
		TrackingStatus: string(f.TrackingStatus),
		OccurredAt:     f.ApprovedAt,
	}
}
