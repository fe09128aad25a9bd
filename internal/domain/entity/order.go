package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

// Order represents an order under review.
type Order struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	ServiceID        uuid.UUID
	Documents        []Document
	AdditionalFields []valueobject.AdditionalField
	Statuses         valueobject.StatusSnapshot
	StatusHistory    []StatusHistoryEntry
	// Version растёт при каждом сохранении и используется для оптимистической блокировки.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	persistedHistory int
}

// StatusHistoryEntry represents an immutable status history record.
type StatusHistoryEntry struct {
	Status         valueobject.OrderStatus    `json:"status"`
	TrackingStatus valueobject.TrackingStatus `json:"trackingStatus"`
	ChatStatus     valueobject.Toggle         `json:"chatStatus"`
	ApproveStatus  valueobject.Toggle         `json:"approveStatus"`
	ChangedBy      uuid.UUID                  `json:"changedBy"`
	ChangedByRole  string                     `json:"changedByRole"`
	Action         string                     `json:"action"`
	ChangedAt      time.Time                  `json:"changedAt"`
}

// Действия, которые попадают в журнал статусов.
const (
	ActionCreated         = "created"
	ActionStartProcessing = "start_processing"
	ActionCompleteOrder   = "complete_order"
	ActionPatchStatuses   = "patch_statuses"
	ActionFinalize        = "finalize"
)

func NewOrder(ownerID, serviceID uuid.UUID, documents []Document, fields []valueobject.AdditionalField, now time.Time) *Order {
	o := &Order{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		ServiceID:        serviceID,
		Documents:        documents,
		AdditionalFields: fields,
		Statuses:         valueobject.DefaultStatusSnapshot(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	o.appendHistory(valueobject.Actor{ID: ownerID, Role: valueobject.RoleUser}, ActionCreated, now)
	return o
}

// RestoreOrder собирает заказ из хранилища. Загруженный журнал считается уже сохранённым.
func RestoreOrder(o Order) *Order {
	o.persistedHistory = len(o.StatusHistory)
	return &o
}

// PendingHistory возвращает записи журнала, ещё не записанные в хранилище.
func (o *Order) PendingHistory() []StatusHistoryEntry {
	return o.StatusHistory[o.persistedHistory:]
}

// PersistedHistoryLen возвращает длину журнала в хранилище на момент загрузки.
func (o *Order) PersistedHistoryLen() int {
	return o.persistedHistory
}

// MarkPersisted вызывается хранилищем после успешной записи.
func (o *Order) MarkPersisted() {
	o.persistedHistory = len(o.StatusHistory)
	o.Version++
}

func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.OwnerID == userID
}

// CanBeViewedBy разрешает доступ владельцу и администраторам.
func (o *Order) CanBeViewedBy(actor valueobject.Actor) bool {
	return actor.IsAdmin() || o.IsOwnedBy(actor.ID)
}

func (o *Order) IsFinalized() bool {
	return o.Statuses.Status == valueobject.OrderStatusFinalized
}

// StartProcessing переводит заказ из pending в processing.
func (o *Order) StartProcessing(actor valueobject.Actor, now time.Time) error {
	if o.Statuses.Status != valueobject.OrderStatusPending {
		return apperror.Newf(apperror.ErrCodeValidation, "начать обработку можно только заказа в статусе %q, текущий статус %q", valueobject.OrderStatusPending, o.Statuses.Status)
	}
	o.Statuses.Status = valueobject.OrderStatusProcessing
	o.Statuses.TrackingStatus = valueobject.TrackingProcessingStarted
	o.appendHistory(actor, ActionStartProcessing, now)
	return nil
}

// Complete переводит заказ из processing в completed.
func (o *Order) Complete(actor valueobject.Actor, now time.Time) error {
	if o.Statuses.Status != valueobject.OrderStatusProcessing {
		return apperror.Newf(apperror.ErrCodeValidation, "завершить можно только заказ в статусе %q, текущий статус %q", valueobject.OrderStatusProcessing, o.Statuses.Status)
	}
	o.Statuses.Status = valueobject.OrderStatusCompleted
	o.Statuses.TrackingStatus = valueobject.TrackingReadyForReview
	o.appendHistory(actor, ActionCompleteOrder, now)
	return nil
}

// PatchStatuses применяет частичное изменение осей статуса целиком или не применяет ничего.
func (o *Order) PatchStatuses(patch valueobject.StatusPatch, actor valueobject.Actor, now time.Time) error {
	if patch.IsEmpty() {
		return apperror.New(apperror.ErrCodeValidation, "не передано ни одного поля статуса")
	}
	if o.IsFinalized() {
		return apperror.New(apperror.ErrCodeValidation, "status: финализированный заказ нельзя изменить")
	}

	next, err := patch.Apply(o.Statuses)
	if err != nil {
		return err
	}
	if next.Status == valueobject.OrderStatusFinalized {
		return apperror.New(apperror.ErrCodeValidation, "status: значение finalized устанавливается только при финализации заказа")
	}

	o.Statuses = next
	o.appendHistory(actor, ActionPatchStatuses, now)
	return nil
}

// MarkFinalized помечает заказ как финализированный, сохраняя его для аудита.
func (o *Order) MarkFinalized(actor valueobject.Actor, now time.Time) error {
	if o.IsFinalized() {
		return apperror.ErrAlreadyFinalized
	}
	o.Statuses.Status = valueobject.OrderStatusFinalized
	o.appendHistory(actor, ActionFinalize, now)
	return nil
}

// UpdateOcrData сливает OCR данные в документы. Если хотя бы один документ не найден,
// ни один документ не меняется.
func (o *Order) UpdateOcrData(updates []OcrUpdate, now time.Time) error {
	if len(updates) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "список обновлений OCR пуст")
	}

	indexes := make([]int, len(updates))
	for i, u := range updates {
		idx := o.documentIndex(u.DocumentID)
		if idx < 0 {
			return apperror.Newf(apperror.ErrCodeNotFound, "документ %s не найден в заказе", u.DocumentID)
		}
		indexes[i] = idx
	}

	for i, u := range updates {
		o.Documents[indexes[i]].MergeOcrData(u.OcrData, now)
	}
	o.UpdatedAt = now
	return nil
}

// AddDocument добавляет документ в конец последовательности.
func (o *Order) AddDocument(doc Document, now time.Time) {
	o.Documents = append(o.Documents, doc)
	o.UpdatedAt = now
}

// LastHistoryEntry возвращает последнюю запись журнала.
func (o *Order) LastHistoryEntry() (StatusHistoryEntry, bool) {
	if len(o.StatusHistory) == 0 {
		return StatusHistoryEntry{}, false
	}
	return o.StatusHistory[len(o.StatusHistory)-1], true
}

func (o *Order) documentIndex(id uuid.UUID) int {
	for i := range o.Documents {
		if o.Documents[i].ID == id {
			return i
		}
	}
	return -1
}

func (o *Order) appendHistory(actor valueobject.Actor, action string, now time.Time) {
	o.StatusHistory = append(o.StatusHistory, StatusHistoryEntry{
		Status:         o.Statuses.Status,
		TrackingStatus: o.Statuses.TrackingStatus,
		ChatStatus:     o.Statuses.ChatStatus,
		ApproveStatus:  o.Statuses.ApproveStatus,
		ChangedBy:      actor.ID,
		ChangedByRole:  actor.Role,
		Action:         action,
		ChangedAt:      now,
	})
	o.UpdatedAt = now
}
