package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
)

type CreateOrderRequest struct {
	ServiceID        string            `json:"serviceId" binding:"required,uuid"`
	Documents        []DocumentRequest `json:"documents" binding:"omitempty,dive"`
	AdditionalFields map[string]string `json:"additionalFields"`
}

type DocumentRequest struct {
	DocumentName string `json:"documentName" binding:"required,max=255"`
	URL          string `json:"url" binding:"omitempty,url"`
	Key          string `json:"key"`
	PeerHash     string `json:"peerHash"`
	PeerURL      string `json:"peerUrl" binding:"omitempty,url"`
}

// PatchStatusRequest represents a partial status update. A missing field is left unchanged.
type PatchStatusRequest struct {
	Status         *string `json:"status"`
	TrackingStatus *string `json:"trackingStatus"`
	ChatStatus     *string `json:"chatStatus"`
	ApproveStatus  *string `json:"approveStatus"`
}

func (r PatchStatusRequest) ToPatch() valueobject.StatusPatch {
	return valueobject.StatusPatch{
		Status:         r.Status,
		TrackingStatus: r.TrackingStatus,
		ChatStatus:     r.ChatStatus,
		ApproveStatus:  r.ApproveStatus,
	}
}

type UpdateOcrRequest struct {
	Documents []OcrDocumentRequest `json:"documents" binding:"required,min=1,dive"`
}

type OcrDocumentRequest struct {
	DocumentID string         `json:"documentId" binding:"required,uuid"`
	OcrData    map[string]any `json:"ocrData" binding:"required"`
}

// ToUpdates вызывается после биндинга, поэтому ID уже проверены.
func (r UpdateOcrRequest) ToUpdates() []entity.OcrUpdate {
	out := make([]entity.OcrUpdate, 0, len(r.Documents))
	for _, d := range r.Documents {
		out = append(out, entity.OcrUpdate{DocumentID: uuid.MustParse(d.DocumentID), OcrData: d.OcrData})
	}
	return out
}

type FinalizeRequest struct {
	OrderIdentifier string `json:"orderIdentifier" binding:"max=255"`
	SelectorField   string `json:"selectorField" binding:"max=255"`
	TrackingStatus  string `json:"trackingStatus"`
}

type OrderResponse struct {
	ID               uuid.UUID                     `json:"id"`
	OwnerID          uuid.UUID                     `json:"ownerId"`
	ServiceID        uuid.UUID                     `json:"serviceId"`
	Documents        []entity.Document             `json:"documents"`
	AdditionalFields []valueobject.AdditionalField `json:"additionalFields"`
	Status           string                        `json:"status"`
	TrackingStatus   string                        `json:"trackingStatus"`
	ChatStatus       string                        `json:"chatStatus"`
	ApproveStatus    string                        `json:"approveStatus"`
	StatusHistory    []entity.StatusHistoryEntry   `json:"statusHistory"`
	CreatedAt        time.Time                     `json:"createdAt"`
	UpdatedAt        time.Time                     `json:"updatedAt"`
}

func ToOrderResponse(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:               o.ID,
		OwnerID:          o.OwnerID,
		ServiceID:        o.ServiceID,
		Documents:        o.Documents,
		AdditionalFields: o.AdditionalFields,
		Status:           string(o.Statuses.Status),
		TrackingStatus:   string(o.Statuses.TrackingStatus),
		ChatStatus:       string(o.Statuses.ChatStatus),
		ApproveStatus:    string(o.Statuses.ApproveStatus),
		StatusHistory:    o.StatusHistory,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if resp.Documents == nil {
		resp.Documents = []entity.Document{}
	}
	if resp.AdditionalFields == nil {
		resp.AdditionalFields = []valueobject.AdditionalField{}
	}
	if resp.StatusHistory == nil {
		resp.StatusHistory = []entity.StatusHistoryEntry{}
	}
	return resp
}

func ToOrderListResponse(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out
}

type FinalizedOrderResponse struct {
	ID              uuid.UUID         `json:"id"`
	OrderID         uuid.UUID         `json:"orderId"`
	OwnerID         uuid.UUID         `json:"ownerId"`
	ServiceID       uuid.UUID         `json:"serviceId"`
	Documents       []entity.Document `json:"documents"`
	OrderIdentifier string            `json:"orderIdentifier"`
	SelectorField   string            `json:"selectorField"`
	TrackingStatus  string            `json:"trackingStatus"`
	ApprovedBy      uuid.UUID         `json:"approvedBy"`
	ApprovedAt      time.Time         `json:"approvedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
}

func ToFinalizedResponse(f *entity.FinalizedOrder) FinalizedOrderResponse {
	docs := f.Documents
	if docs == nil {
		docs = []entity.Document{}
	}
	return FinalizedOrderResponse{
		ID:              f.ID,
		OrderID:         f.OrderID,
		OwnerID:         f.OwnerID,
		ServiceID:       f.ServiceID,
		Documents:       docs,
		OrderIdentifier: f.OrderIdentifier,
		SelectorField:   f.SelectorField,
		TrackingStatus:  string(f.TrackingStatus),
		ApprovedBy:      f.ApprovedBy,
		ApprovedAt:      f.ApprovedAt,
		CreatedAt:       f.CreatedAt,
	}
}

func ToFinalizedListResponse(list []*entity.FinalizedOrder) []FinalizedOrderResponse {
	out := make([]FinalizedOrderResponse, 0, len(list))
	for _, f := range list {
		out = append(out, ToFinalizedResponse(f))
	}
	return out
}
