package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
)

// FinalizedOrder represents the final record of an order. It never changes after creation.
type FinalizedOrder struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	OwnerID         uuid.UUID
	ServiceID       uuid.UUID
	Documents       []Document
	OrderIdentifier string
	SelectorField   string
	TrackingStatus  valueobject.TrackingStatus
	ApprovedBy      uuid.UUID
	ApprovedAt      time.Time
	CreatedAt       time.Time
}

// NewFinalizedOrder копирует документы и идентификаторы из заказа.
// Пустой orderIdentifier заменяется идентификатором заказа.
func NewFinalizedOrder(o *Order, orderIdentifier, selectorField string, tracking valueobject.TrackingStatus, approvedBy uuid.UUID, now time.Time) *FinalizedOrder {
	if orderIdentifier == "" {
		orderIdentifier = o.ID.String()
	}

	docs := make([]Document, len(o.Documents))
	for i, d := range o.Documents {
		docs[i] = d
		docs[i].OcrData = make(map[string]any, len(d.OcrData))
		for k, v := range d.OcrData {
			docs[i].OcrData[k] = v
		}
	}

	return &FinalizedOrder{
		ID:              uuid.New(),
		OrderID:         o.ID,
		OwnerID:         o.OwnerID,
		ServiceID:       o.ServiceID,
		Documents:       docs,
		OrderIdentifier: orderIdentifier,
		SelectorField:   selectorField,
		TrackingStatus:  tracking,
		ApprovedBy:      approvedBy,
		ApprovedAt:      now,
		CreatedAt:       now,
	}
}
