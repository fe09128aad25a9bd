package entity

import (
	"time"

	"github.com/google/uuid"
)

// Типы событий заказа для внешних подписчиков (push-уведомления и т.п.).
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderFinalized     = "order.finalized"
	EventOrderDeleted       = "order.deleted"
)

// OrderEvent публикуется после успешного изменения заказа.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        uuid.UUID `json:"orderId"`
	OwnerID        uuid.UUID `json:"ownerId"`
	ActorID        uuid.UUID `json:"actorId"`
	Action         string    `json:"action,omitempty"`
	Status         string    `json:"status,omitempty"`
	TrackingStatus string    `json:"trackingStatus,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewStatusEvent собирает событие из текущего состояния заказа.
func NewStatusEvent(eventType string, o *Order, actorID uuid.UUID, action string) OrderEvent {
	return OrderEvent{
		Type:           eventType,
		OrderID:        o.ID,
		OwnerID:        o.OwnerID,
		ActorID:        actorID,
		Action:         action,
		Status:         string(o.Statuses.Status),
		TrackingStatus: string(o.Statuses.TrackingStatus),
		OccurredAt:     o.UpdatedAt,
	}
}

// ActionApprove не пишется в журнал: заказ удаляется вместе с журналом.
const ActionApprove = "approve"
