package valueobject

import "github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusFinalized  OrderStatus = "finalized"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusRejected, OrderStatusFinalized:
		return true
	}
	return false
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "status: недопустимое значение %q", status)
	}
	return s, nil
}

type TrackingStatus string

// Вехи заказа в порядке, в котором их видит клиент.
const (
	TrackingOrderPlaced            TrackingStatus = "Order Placed"
	TrackingDocumentsReceived      TrackingStatus = "Documents Received"
	TrackingUnderVerification      TrackingStatus = "Under Verification"
	TrackingProcessingStarted      TrackingStatus = "Processing Started"
	TrackingAdditionalInfoRequired TrackingStatus = "Additional Info Required"
	TrackingDocumentsVerified      TrackingStatus = "Documents Verified"
	TrackingInProgress             TrackingStatus = "In Progress"
	TrackingQualityCheck           TrackingStatus = "Quality Check"
	TrackingReadyForReview         TrackingStatus = "Ready for Review"
	TrackingApproved               TrackingStatus = "Approved"
	TrackingCompleted              TrackingStatus = "Completed"
)

var trackingOrder = []TrackingStatus{
	TrackingOrderPlaced,
	TrackingDocumentsReceived,
	TrackingUnderVerification,
	TrackingProcessingStarted,
	TrackingAdditionalInfoRequired,
	TrackingDocumentsVerified,
	TrackingInProgress,
	TrackingQualityCheck,
	TrackingReadyForReview,
	TrackingApproved,
	TrackingCompleted,
}

// TrackingStatuses возвращает все вехи по порядку.
func TrackingStatuses() []TrackingStatus {
	out := make([]TrackingStatus, len(trackingOrder))
	copy(out, trackingOrder)
	return out
}

func (s TrackingStatus) IsValid() bool {
	return s.Position() >= 0
}

// Position возвращает порядковый номер вехи или -1.
func (s TrackingStatus) Position() int {
	for i, t := range trackingOrder {
		if t == s {
			return i
		}
	}
	return -1
}

func NewTrackingStatus(status string) (TrackingStatus, error) {
	s := TrackingStatus(status)
	if !s.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "trackingStatus: недопустимое значение %q", status)
	}
	return s, nil
}

// NewFinalizedTrackingStatus допускает только вехи, разрешённые для финализированного заказа.
func NewFinalizedTrackingStatus(status string) (TrackingStatus, error) {
	s := TrackingStatus(status)
	if s != TrackingApproved && s != TrackingCompleted {
		return "", apperror.Newf(apperror.ErrCodeValidation, "trackingStatus: для финализированного заказа допустимы только %q и %q", TrackingApproved, TrackingCompleted)
	}
	return s, nil
}

// Toggle используется для chatStatus и approveStatus.
type Toggle string

const (
	ToggleEnabled  Toggle = "Enabled"
	ToggleDisabled Toggle = "Disabled"
)

func (t Toggle) IsValid() bool {
	return t == ToggleEnabled || t == ToggleDisabled
}

func (t Toggle) Enabled() bool {
	return t == ToggleEnabled
}

func NewToggle(field, value string) (Toggle, error) {
	t := Toggle(value)
	if !t.IsValid() {
		return "", apperror.Newf(apperror.ErrCodeValidation, "%s: недопустимое значение %q", field, value)
	}
	return t, nil
}

// StatusSnapshot фиксирует значения всех четырёх осей статуса.
type StatusSnapshot struct {
	Status         OrderStatus
	TrackingStatus TrackingStatus
	ChatStatus     Toggle
	ApproveStatus  Toggle
}

// DefaultStatusSnapshot описывает состояние нового заказа.
func DefaultStatusSnapshot() StatusSnapshot {
	return StatusSnapshot{
		Status:         OrderStatusPending,
		TrackingStatus: TrackingOrderPlaced,
		ChatStatus:     ToggleEnabled,
		ApproveStatus:  ToggleDisabled,
	}
}

// StatusPatch описывает частичное изменение осей статуса. nil означает «не менять».
type StatusPatch struct {
	Status         *string
	TrackingStatus *string
	ChatStatus     *string
	ApproveStatus  *string
}

func (p StatusPatch) IsEmpty() bool {
	return p.Status == nil && p.TrackingStatus == nil && p.ChatStatus == nil && p.ApproveStatus == nil
}

// Apply валидирует каждое переданное поле и возвращает новый снимок.
// При любой ошибке исходный снимок не меняется.
func (p StatusPatch) Apply(current StatusSnapshot) (StatusSnapshot, error) {
	next := current

	if p.Status != nil {
		s, err := NewOrderStatus(*p.Status)
		if err != nil {
			return current, err
		}
		next.Status = s
	}
	if p.TrackingStatus != nil {
		t, err := NewTrackingStatus(*p.TrackingStatus)
		if err != nil {
			return current, err
		}
		next.TrackingStatus = t
	}
	if p.ChatStatus != nil {
		t, err := NewToggle("chatStatus", *p.ChatStatus)
		if err != nil {
			return current, err
		}
		next.ChatStatus = t
	}
	if p.ApproveStatus != nil {
		t, err := NewToggle("approveStatus", *p.ApproveStatus)
		if err != nil {
			return current, err
		}
		next.ApproveStatus = t
	}

	return next, nil
}
