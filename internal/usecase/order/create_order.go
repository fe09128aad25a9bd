package order

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/orderdesk-backend/internal/domain/entity"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/repository"
	"github.com/ignatzorin/orderdesk-backend/internal/domain/valueobject"
	"github.com/ignatzorin/orderdesk-backend/internal/pkg/apperror"
)

type CreateOrderInput struct {
	OwnerID          uuid.UUID
	ServiceID        uuid.UUID
	Documents        []DocumentInput
	AdditionalFields map[string]string
}

type DocumentInput struct {
	Name     string
	URL      string
	Key      string
	PeerHash string
	PeerURL  string
}

type CreateOrderUseCase struct {
	orderRepo repository.OrderRepository
	catalog   repository.CatalogRepository
	events    repository.EventPublisher
}

func NewCreateOrderUseCase(orderRepo repository.OrderRepository, catalog repository.CatalogRepository, events repository.EventPublisher) *CreateOrderUseCase {
	return &CreateOrderUseCase{orderRepo: orderRepo, catalog: catalog, events: events}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, input CreateOrderInput) (*entity.Order, error) {
	service, err := uc.catalog.FindServiceByID(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !service.IsActive {
		return nil, apperror.New(apperror.ErrCodeValidation, "serviceId: услуга сейчас недоступна для заказа")
	}

	fields, err := valueobject.ValidateAdditionalFields(service.FieldSchema, input.AdditionalFields)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	docs := make([]entity.Document, 0, len(input.Documents))
	for i, d := range input.Documents {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "documents[%d].documentName: поле обязательно", i)
		}
		doc := entity.NewDocument(name, now)
		doc.URL = d.URL
		doc.StorageKey = d.Key
		doc.PeerHash = d.PeerHash
		doc.PeerURL = d.PeerURL
		docs = append(docs, doc)
	}

	order := entity.NewOrder(input.OwnerID, service.ID, docs, fields, now)
	if err := uc.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	publish(ctx, uc.events, entity.NewStatusEvent(entity.EventOrderCreated, order, input.OwnerID, entity.ActionCreated))
	return order, nil
}
